// Package provision drives a single server from nothing to a reachable,
// hardened host.
//
// A run walks the stages in order: resolve the SSH key (and firewall),
// build the boot document, create the server, wait for the create action,
// read back the address, wait for SSH, then optionally register DNS, copy
// files and run a startup script. Nothing is rolled back on failure; a
// server created before the failure is left running for inspection.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	dnsdomain "nathanbeddoewebdev/hzdeploy/internal/dns/domain"
	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/poll"
	"nathanbeddoewebdev/hzdeploy/internal/remote"
	"nathanbeddoewebdev/hzdeploy/internal/resolver"
	"nathanbeddoewebdev/hzdeploy/internal/services/action"
	"nathanbeddoewebdev/hzdeploy/internal/store"
	"nathanbeddoewebdev/hzdeploy/internal/ui"

	"github.com/rs/zerolog"
)

// Default wait intervals.
const (
	DefaultActionInterval = 5 * time.Second
	DefaultProbeInterval  = 5 * time.Second
)

// ManagedByLabel marks servers created by hzdeploy.
const ManagedByLabel = "managed-by"

// Remote is the SSH surface a run needs once the server exists.
type Remote interface {
	Probe(ctx context.Context, t remote.Target) error
	Upload(ctx context.Context, t remote.Target, localPath string) (remote.Method, error)
	RunScript(ctx context.Context, t remote.Target, scriptPath string, stdout, stderr io.Writer) error
}

// DNSRegistrar creates the CNAME for a new server.
type DNSRegistrar interface {
	EnsureCNAME(ctx context.Context, domainName, host, target string, ttl int) (*dnsdomain.Record, bool, error)
}

// Recorder persists run progress.
type Recorder interface {
	Save(record *store.RunRecord) error
}

// Result describes a finished run.
type Result struct {
	Server domain.Server
	// IP is the public IPv4 the server was reached on.
	IP string
	// Stage is the last stage reached.
	Stage       Stage
	FirewallIDs []string
	// CopyMethod is set when files were copied.
	CopyMethod remote.Method
	// DNSRecord is set when the record was registered; DNSError when the
	// best-effort registration failed.
	DNSRecord *dnsdomain.Record
	DNSError  error
}

// Orchestrator runs provisioning requests. Zero-value optional fields
// (DNS, Runs) disable the corresponding feature.
type Orchestrator struct {
	Cloud  domain.Cloud
	Remote Remote
	DNS    DNSRegistrar
	Runs   Recorder

	// Out receives human-readable progress.
	Out   io.Writer
	Log   zerolog.Logger
	Clock poll.Clock

	ActionInterval     time.Duration
	ProbeInterval      time.Duration
	MaxTransientErrors int
}

// New returns an Orchestrator with default intervals that reports
// progress to out.
func New(cloud domain.Cloud, rem Remote, out io.Writer, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Cloud:              cloud,
		Remote:             rem,
		Out:                out,
		Log:                log,
		Clock:              poll.WallClock{},
		ActionInterval:     DefaultActionInterval,
		ProbeInterval:      DefaultProbeInterval,
		MaxTransientErrors: action.DefaultMaxTransientErrors,
	}
}

// run is the per-invocation state.
type run struct {
	o      *Orchestrator
	req    Request
	res    *Result
	record *store.RunRecord
	log    zerolog.Logger
}

// Run provisions req. Every input is checked before the first network
// call. On failure the returned Result (never nil once checks pass)
// reports the stage reached and any server that was created.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	p, err := o.prepare(req)
	if err != nil {
		return nil, err
	}

	r := &run{
		o:   o,
		req: req,
		res: &Result{Stage: StageStart},
		record: &store.RunRecord{
			ServerName: req.ServerName,
			RemoteUser: req.RemoteUser,
			Stage:      StageStart.String(),
			Outcome:    store.OutcomeRunning,
		},
		log: o.Log.With().Str("server", req.ServerName).Logger(),
	}
	r.save()

	if err := r.execute(ctx, p); err != nil {
		r.record.Outcome = store.OutcomeFailed
		r.record.Error = err.Error()
		r.save()
		r.log.Error().Err(err).Stringer("stage", r.res.Stage).Msg("provisioning failed")
		return r.res, err
	}

	r.advance(StageDone)
	r.record.Outcome = store.OutcomeSucceeded
	r.save()
	return r.res, nil
}

func (r *run) execute(ctx context.Context, p *prepared) error {
	o, req := r.o, r.req
	res := r.res

	// Key and firewall.
	resources := resolver.New(o.Cloud, o.Cloud, r.log)
	key, err := resources.SSHKey(ctx, req.SSHKeyName, p.publicKey)
	if err != nil {
		return err
	}
	r.advance(StageKeyResolved)

	res.FirewallIDs = slices.Clone(req.FirewallIDs)
	if req.FirewallName != "" {
		fw, err := resources.Firewall(ctx, req.FirewallName, req.firewallPorts())
		if err != nil {
			return err
		}
		res.FirewallIDs = appendUnique(res.FirewallIDs, fw.ID)
		fmt.Fprintf(o.Out, "Using firewall %q (ID: %s)\n", fw.Name, fw.ID)
	}

	// Boot document.
	userData, err := p.document.Render()
	if err != nil {
		return fmt.Errorf("%w: render boot document: %w", domain.ErrInvalidInput, err)
	}
	r.advance(StageConfigBuilt)

	// Create.
	fmt.Fprintf(o.Out, "Creating server %q (%s, %s, %s)...\n", req.ServerName, req.ServerType, req.Image, req.Location)
	created, err := o.Cloud.CreateServer(ctx, domain.CreateServerOpts{
		Name:        req.ServerName,
		Image:       req.Image,
		ServerType:  req.ServerType,
		Location:    req.Location,
		SSHKeyIDs:   []string{key.ID},
		FirewallIDs: res.FirewallIDs,
		Labels:      map[string]string{ManagedByLabel: "hzdeploy"},
		UserData:    userData,
	})
	if err != nil {
		return fmt.Errorf("%w: create server %q: %w", domain.ErrProvisioningFailed, req.ServerName, err)
	}
	if created == nil || created.Server == nil || created.Server.ID == "" {
		return fmt.Errorf("%w: create server %q returned no server id", domain.ErrProvisioningFailed, req.ServerName)
	}
	if created.Action == nil || created.Action.ID == "" {
		return fmt.Errorf("%w: create server %q returned no action", domain.ErrProvisioningFailed, req.ServerName)
	}
	res.Server = *created.Server
	r.record.ServerID = created.Server.ID
	r.log = r.log.With().Str("server_id", created.Server.ID).Logger()
	ctx = r.log.WithContext(ctx)
	r.advance(StageServerCreateRequested)

	// Wait for the create action.
	r.advance(StageServerActionPolling)
	waiting := fmt.Sprintf("Waiting for server %s to be created...", created.Server.ID)
	if created.Action.Status == domain.ActionStatusSuccess {
		fmt.Fprintln(o.Out, waiting)
	} else {
		actions := action.NewService(o.Cloud)
		actions.Interval = o.ActionInterval
		actions.Timeout = req.WaitTimeout
		actions.MaxTransientErrors = o.MaxTransientErrors
		actions.Clock = o.Clock
		actions.Log = r.log
		err := ui.Spin(o.Out, waiting, func(progress io.Writer) error {
			return actions.PollAction(ctx, created.Action.ID, progress)
		})
		if err != nil {
			if errors.Is(err, domain.ErrTimeout) {
				return fmt.Errorf("server %s never finished creating: %w", created.Server.ID, err)
			}
			if errors.Is(err, domain.ErrProvisioningFailed) {
				return err
			}
			return fmt.Errorf("%w: polling create action: %w", domain.ErrProvisioningFailed, err)
		}
	}

	// Address.
	server, err := o.Cloud.GetServer(ctx, created.Server.ID)
	if err != nil {
		return fmt.Errorf("%w: fetch server %s: %w", domain.ErrProvisioningFailed, created.Server.ID, err)
	}
	if server == nil || server.PublicIPv4 == "" {
		return fmt.Errorf("%w: server %s has no public IPv4 address", domain.ErrProvisioningFailed, created.Server.ID)
	}
	res.Server = *server
	res.IP = server.PublicIPv4
	r.record.IP = server.PublicIPv4
	r.advance(StageServerReady)

	// SSH.
	target := remote.Target{Host: res.IP, User: req.RemoteUser}
	err = ui.Spin(o.Out, fmt.Sprintf("Waiting for SSH on %s...", target), func(io.Writer) error {
		return r.waitForSSH(ctx, target)
	})
	if err != nil {
		return err
	}
	r.advance(StageSSHReachable)

	if req.DNS != nil {
		r.registerDNS(ctx)
	}

	if req.CopySource != "" {
		fmt.Fprintf(o.Out, "Copying %s to %s...\n", req.CopySource, target)
		method, err := o.Remote.Upload(ctx, target, req.CopySource)
		res.CopyMethod = method
		if err != nil {
			return wrapTransfer(err)
		}
		r.log.Info().Str("method", string(method)).Msg("files copied")
		r.advance(StageFilesCopied)
	}

	if req.StartupScript != "" {
		fmt.Fprintf(o.Out, "Running startup script %s...\n", req.StartupScript)
		if err := o.Remote.RunScript(ctx, target, req.StartupScript, o.Out, o.Out); err != nil {
			return wrapTransfer(err)
		}
		r.advance(StageStartupRan)
	}

	return nil
}

// waitForSSH probes target until a login succeeds. Failures while the
// boot document is still applying are expected and retried; a changed
// host key is not.
func (r *run) waitForSSH(ctx context.Context, target remote.Target) error {
	o := r.o
	result := poll.Until(ctx, poll.Config{
		Interval: o.ProbeInterval,
		Timeout:  r.req.WaitTimeout,
		Clock:    o.Clock,
	}, func(ctx context.Context, attempt int) (poll.Outcome, error) {
		err := o.Remote.Probe(ctx, target)
		if err == nil {
			return poll.Done, nil
		}
		r.log.Debug().Err(err).Int("attempt", attempt).Msg("SSH probe failed")
		if errors.Is(err, remote.ErrHostKeyChanged) || errors.Is(err, domain.ErrInvalidInput) {
			return poll.Abort, err
		}
		return poll.Pending, err
	})

	switch result.Status {
	case poll.Completed:
		return nil
	case poll.TimedOut:
		if result.Err != nil {
			return fmt.Errorf("%w: server %s at %s not reachable over SSH after %s (%d probes): %v",
				domain.ErrTimeout, r.res.Server.ID, target.Host, result.Elapsed, result.Attempts, result.Err)
		}
		return fmt.Errorf("%w: server %s at %s not reachable over SSH after %s (%d probes)",
			domain.ErrTimeout, r.res.Server.ID, target.Host, result.Elapsed, result.Attempts)
	default:
		if errors.Is(result.Err, domain.ErrInvalidInput) {
			return result.Err
		}
		return fmt.Errorf("%w: SSH to %s: %w", domain.ErrProvisioningFailed, target.Host, result.Err)
	}
}

func (r *run) registerDNS(ctx context.Context) {
	o, spec := r.o, r.req.DNS
	rec, created, err := o.DNS.EnsureCNAME(ctx, spec.Domain, spec.Host, spec.Target, spec.TTL)
	if err != nil {
		r.res.DNSError = err
		r.log.Warn().Err(err).Msg("DNS registration failed")
		fmt.Fprintf(o.Out, "Warning: DNS record %s.%s was not registered: %v\n", spec.Host, spec.Domain, err)
		return
	}
	r.res.DNSRecord = rec
	if created {
		fmt.Fprintf(o.Out, "Created DNS record %s -> %s\n", rec.Name, rec.Content)
	} else {
		fmt.Fprintf(o.Out, "DNS record %s already points at %s\n", rec.Name, rec.Content)
	}
	r.advance(StageDNSRegistered)
}

func (r *run) advance(stage Stage) {
	r.res.Stage = stage
	r.record.Stage = stage.String()
	r.log.Debug().Stringer("stage", stage).Msg("stage reached")
	r.save()
}

// save is best-effort; history must never fail a run.
func (r *run) save() {
	if r.o.Runs == nil {
		return
	}
	if err := r.o.Runs.Save(r.record); err != nil {
		r.log.Debug().Err(err).Msg("could not record run")
	}
}

func wrapTransfer(err error) error {
	if errors.Is(err, domain.ErrTransferFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
}
