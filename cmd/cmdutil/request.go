package cmdutil

import (
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/config"
	"nathanbeddoewebdev/hzdeploy/internal/provision"
)

// ProvisionRequest maps the configuration onto a provisioning request.
// DNS is left unset; callers decide how to treat a partial record.
func ProvisionRequest(cfg config.Config) provision.Request {
	server, ssh := cfg.Server(), cfg.SSH()
	return provision.Request{
		ServerName:    server.Name,
		ServerType:    server.Type,
		Image:         server.Image,
		Location:      server.Location,
		SSHKeyName:    ssh.KeyName,
		PublicKeyPath: ssh.PublicKeyPath,
		RemoteUser:    cfg.RemoteUser(),
		AllowedPorts:  cfg.AllowedPorts(),
		ExtraPackages: cfg.ExtraPackages(),
		FirewallIDs:   cfg.FirewallIDs(),
		FirewallName:  cfg.FirewallName(),
		CopySource:    cfg.CopySource(),
		StartupScript: cfg.StartupScript(),
		WaitTimeout:   cfg.WaitTimeout(),
	}
}

// DNSRecord returns the record to register, the settings still missing
// when the record is only partly configured, or neither when no DNS
// setting is present.
func DNSRecord(cfg config.Config) (*provision.DNSRecord, []string) {
	d := cfg.DNS()
	if !d.Requested() {
		return nil, nil
	}
	if missing := d.Missing(); len(missing) > 0 {
		return nil, missing
	}
	return &provision.DNSRecord{Domain: d.Domain, Host: d.Host, Target: d.Target, TTL: d.TTL}, nil
}

// MissingList formats setting names for messages.
func MissingList(names []string) string {
	return strings.Join(names, ", ")
}
