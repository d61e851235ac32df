package domain

// SSHKeySpec describes an SSH key registered with the provider.
type SSHKeySpec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	PublicKey   string `json:"public_key,omitempty"`
}

// FirewallRule is a single inbound rule. Only TCP ingress rules are ever
// generated; egress stays unrestricted.
type FirewallRule struct {
	Direction string   `json:"direction"`
	Protocol  string   `json:"protocol"`
	Port      string   `json:"port"`
	SourceIPs []string `json:"source_ips"`
}

// FirewallSpec describes a cloud firewall registered with the provider.
type FirewallSpec struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Rules []FirewallRule `json:"rules"`
}

// Firewall rule constants.
const (
	DirectionIn = "in"
	ProtocolTCP = "tcp"
)

// AnySource is the source CIDR set used for public ingress rules.
var AnySource = []string{"0.0.0.0/0", "::/0"}
