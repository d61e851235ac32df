// Package cloudinit builds the first-boot configuration handed to a new
// server as user data. The document is a typed struct serialized with
// yaml.v3; nothing is assembled by string concatenation.
package cloudinit

import (
	"bytes"
	"fmt"
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/util"

	"gopkg.in/yaml.v3"
)

// Header is the first line cloud-init requires to treat user data as a
// cloud-config document.
const Header = "#cloud-config\n"

// BasePackages are installed on every server: the host firewall and the
// intrusion-prevention service.
var BasePackages = []string{"ufw", "fail2ban"}

const sshdDropIn = "/etc/ssh/sshd_config.d/99-hzdeploy.conf"

// Document is a cloud-config document. Field order is the order in which
// keys are emitted.
type Document struct {
	PackageUpdate  bool      `yaml:"package_update"`
	PackageUpgrade bool      `yaml:"package_upgrade"`
	Packages       []string  `yaml:"packages"`
	Users          []User    `yaml:"users"`
	DisableRoot    bool      `yaml:"disable_root"`
	SSHPwauth      bool      `yaml:"ssh_pwauth"`
	WriteFiles     []File    `yaml:"write_files,omitempty"`
	RunCmd         []Command `yaml:"runcmd"`
}

// User is a cloud-config user entry.
type User struct {
	Name              string   `yaml:"name"`
	Sudo              []string `yaml:"sudo"`
	Shell             string   `yaml:"shell"`
	LockPasswd        bool     `yaml:"lock_passwd"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys"`
}

// File is a cloud-config write_files entry.
type File struct {
	Path        string `yaml:"path"`
	Permissions string `yaml:"permissions"`
	Content     string `yaml:"content"`
}

// Command is one runcmd entry in argv form. cloud-init executes argv
// lists directly, so arguments are never reinterpreted by a shell.
type Command []string

// MarshalYAML emits commands as flow sequences: [ufw, --force, enable].
func (c Command) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, arg := range c {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: arg})
	}
	return node, nil
}

// Params are the inputs to Build.
type Params struct {
	// PublicKey is the single authorized_keys line for the user.
	PublicKey string
	// Username is the non-root login created on first boot.
	Username string
	// AllowedPorts are the TCP ports opened in the host firewall.
	AllowedPorts []string
	// ExtraPackages are installed alongside the base packages.
	ExtraPackages []string
}

// Build validates p and returns the boot document with exactly one allow
// rule per normalized port. The document always
// disables root login and password authentication, and always enables the
// host firewall with default-deny-incoming before its allow rules take
// effect.
func Build(p Params) (*Document, error) {
	publicKey := strings.TrimSpace(p.PublicKey)
	if publicKey == "" {
		return nil, fmt.Errorf("%w: SSH public key is empty", domain.ErrInvalidInput)
	}
	if strings.ContainsAny(publicKey, "\r\n") {
		return nil, fmt.Errorf("%w: SSH public key must be a single line", domain.ErrInvalidInput)
	}
	if err := util.ValidateUsername(p.Username); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	ports, err := normalizePorts(p.AllowedPorts)
	if err != nil {
		return nil, err
	}
	packages, err := normalizePackages(p.ExtraPackages)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		PackageUpdate:  true,
		PackageUpgrade: true,
		Packages:       packages,
		Users: []User{{
			Name:              p.Username,
			Sudo:              []string{"ALL=(ALL) NOPASSWD:ALL"},
			Shell:             "/bin/bash",
			LockPasswd:        true,
			SSHAuthorizedKeys: []string{publicKey},
		}},
		DisableRoot: true,
		SSHPwauth:   false,
		WriteFiles: []File{{
			Path:        sshdDropIn,
			Permissions: "0644",
			Content:     "PermitRootLogin no\nPasswordAuthentication no\nKbdInteractiveAuthentication no\n",
		}},
	}

	// Rules are queued while the firewall is inactive and only take
	// effect at the final enable.
	doc.RunCmd = append(doc.RunCmd,
		Command{"ufw", "default", "deny", "incoming"},
		Command{"ufw", "default", "allow", "outgoing"},
	)
	for _, port := range ports {
		doc.RunCmd = append(doc.RunCmd, Command{"ufw", "allow", ufwPort(port) + "/tcp"})
	}
	doc.RunCmd = append(doc.RunCmd,
		Command{"ufw", "--force", "enable"},
		Command{"systemctl", "enable", "--now", "fail2ban"},
	)

	return doc, nil
}

// Render serializes the document with the cloud-config header.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(Header)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("cloudinit: failed to encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("cloudinit: failed to encode document: %w", err)
	}

	return buf.String(), nil
}

// AllowsPort reports whether the host firewall opens port. A document
// that does not open 22 locks out SSH once ufw is enabled; callers decide
// whether that matters.
func (d *Document) AllowsPort(port int) bool {
	var ports []string
	for _, rule := range d.AllowRules() {
		ports = append(ports, strings.Replace(strings.TrimSuffix(rule, "/tcp"), ":", "-", 1))
	}
	return util.CoversPort(ports, port)
}

// AllowRules returns the ports opened by the document's ufw allow
// commands, in order.
func (d *Document) AllowRules() []string {
	var rules []string
	for _, cmd := range d.RunCmd {
		if len(cmd) == 3 && cmd[0] == "ufw" && cmd[1] == "allow" {
			rules = append(rules, cmd[2])
		}
	}
	return rules
}

func normalizePorts(ports []string) ([]string, error) {
	normalized, err := util.NormalizePorts(ports)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return normalized, nil
}

func normalizePackages(extra []string) ([]string, error) {
	all := util.Dedupe(append(append([]string(nil), BasePackages...), extra...))
	for _, pkg := range all {
		if err := util.ValidatePackageName(pkg); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
	}
	return all, nil
}

// ufwPort converts a port range from "a-b" to ufw's "a:b" form.
func ufwPort(port string) string {
	return strings.Replace(port, "-", ":", 1)
}
