package domain

import "time"

// Server represents a virtual server instance.
type Server struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	PublicIPv4 string    `json:"public_ipv4,omitempty"`
	PublicIPv6 string    `json:"public_ipv6,omitempty"`
	Region     string    `json:"region"`
	ServerType string    `json:"server_type"`
	Image      string    `json:"image,omitempty"`
	Provider   string    `json:"provider"`
}

// Server status values reported by the provider.
const (
	ServerStatusInitializing = "initializing"
	ServerStatusStarting     = "starting"
	ServerStatusRunning      = "running"
	ServerStatusStopping     = "stopping"
	ServerStatusOff          = "off"
)
