package domain

// CreateServerOpts holds the parameters for creating a new server.
// Required fields must be populated for every provider. Optional fields
// may be left at their zero values; providers will apply sensible defaults.
type CreateServerOpts struct {
	// Required
	Name       string
	Image      string // name or ID
	ServerType string // name or ID

	// Common optional
	Location    string
	SSHKeyIDs   []string
	FirewallIDs []string
	Labels      map[string]string
	UserData    string
}

// CreateServerResult is what a provider hands back from CreateServer:
// the server as first seen and the action tracking its creation.
type CreateServerResult struct {
	Server *Server
	Action *ActionStatus
}
