package provision

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	dnsdomain "nathanbeddoewebdev/hzdeploy/internal/dns/domain"
	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/poll"
	"nathanbeddoewebdev/hzdeploy/internal/remote"
	"nathanbeddoewebdev/hzdeploy/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// fakeCloud implements domain.Cloud in memory and counts every call.
type fakeCloud struct {
	calls int

	keys           []domain.SSHKeySpec
	createKeyCalls int

	firewalls     []domain.FirewallSpec
	createFwCalls int

	createCalls int
	lastCreate  domain.CreateServerOpts
	createResp  *domain.CreateServerResult
	createErr   error

	server *domain.Server

	pollResults []*domain.ActionStatus
	pollCalls   int

	deleteCalls int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		createResp: &domain.CreateServerResult{
			Server: &domain.Server{ID: "42", Name: "web-1", Status: domain.ServerStatusInitializing},
			Action: &domain.ActionStatus{ID: "7", Status: domain.ActionStatusRunning},
		},
		server: &domain.Server{ID: "42", Name: "web-1", Status: domain.ServerStatusRunning, PublicIPv4: "203.0.113.10"},
	}
}

func (f *fakeCloud) GetDisplayName() string { return "Fake" }

func (f *fakeCloud) CreateServer(_ context.Context, opts domain.CreateServerOpts) (*domain.CreateServerResult, error) {
	f.calls++
	f.createCalls++
	f.lastCreate = opts
	return f.createResp, f.createErr
}

func (f *fakeCloud) GetServer(context.Context, string) (*domain.Server, error) {
	f.calls++
	return f.server, nil
}

func (f *fakeCloud) GetServerByName(context.Context, string) (*domain.Server, error) {
	f.calls++
	return nil, domain.ErrNotFound
}

func (f *fakeCloud) ListServers(context.Context) ([]domain.Server, error) {
	f.calls++
	return nil, nil
}

func (f *fakeCloud) DeleteServer(context.Context, string) (*domain.ActionStatus, error) {
	f.calls++
	f.deleteCalls++
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeCloud) StartServer(context.Context, string) (*domain.ActionStatus, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeCloud) StopServer(context.Context, string) (*domain.ActionStatus, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeCloud) PollAction(_ context.Context, id string) (*domain.ActionStatus, error) {
	f.calls++
	i := f.pollCalls
	f.pollCalls++
	if i < len(f.pollResults) {
		return f.pollResults[i], nil
	}
	return &domain.ActionStatus{ID: id, Status: domain.ActionStatusSuccess, Progress: 100}, nil
}

func (f *fakeCloud) ListSSHKeys(context.Context) ([]domain.SSHKeySpec, error) {
	f.calls++
	return f.keys, nil
}

func (f *fakeCloud) CreateSSHKey(_ context.Context, name, publicKey string) (*domain.SSHKeySpec, error) {
	f.calls++
	f.createKeyCalls++
	k := domain.SSHKeySpec{ID: strconv.Itoa(100 + f.createKeyCalls), Name: name, PublicKey: publicKey}
	f.keys = append(f.keys, k)
	return &k, nil
}

func (f *fakeCloud) ListFirewalls(context.Context) ([]domain.FirewallSpec, error) {
	f.calls++
	return f.firewalls, nil
}

func (f *fakeCloud) CreateFirewall(_ context.Context, name string, rules []domain.FirewallRule) (*domain.FirewallSpec, error) {
	f.calls++
	f.createFwCalls++
	fw := domain.FirewallSpec{ID: strconv.Itoa(200 + f.createFwCalls), Name: name, Rules: rules}
	f.firewalls = append(f.firewalls, fw)
	return &fw, nil
}

type fakeRemote struct {
	// ctxLogs receives an event through the context logger of every call.
	ctxLogs []string

	probeErrs  []error
	probeErr   error
	probeCalls int

	uploads   []string
	uploadErr error

	scripts   []string
	scriptErr error
}

func (f *fakeRemote) logFrom(ctx context.Context, op string) {
	var buf bytes.Buffer
	l := zerolog.Ctx(ctx).Output(&buf)
	l.Info().Msg(op)
	f.ctxLogs = append(f.ctxLogs, buf.String())
}

func (f *fakeRemote) Probe(ctx context.Context, t remote.Target) error {
	f.logFrom(ctx, "probe")
	i := f.probeCalls
	f.probeCalls++
	if i < len(f.probeErrs) {
		return f.probeErrs[i]
	}
	return f.probeErr
}

func (f *fakeRemote) Upload(ctx context.Context, t remote.Target, localPath string) (remote.Method, error) {
	f.logFrom(ctx, "upload")
	f.uploads = append(f.uploads, t.String()+":"+localPath)
	return remote.MethodSFTP, f.uploadErr
}

func (f *fakeRemote) RunScript(ctx context.Context, t remote.Target, scriptPath string, stdout, stderr io.Writer) error {
	f.logFrom(ctx, "script")
	f.scripts = append(f.scripts, t.String()+":"+scriptPath)
	return f.scriptErr
}

type fakeDNS struct {
	err   error
	calls []string
}

func (f *fakeDNS) EnsureCNAME(_ context.Context, domainName, host, target string, ttl int) (*dnsdomain.Record, bool, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s.%s->%s/%d", host, domainName, target, ttl))
	if f.err != nil {
		return nil, false, f.err
	}
	return &dnsdomain.Record{ID: "1", Name: host + "." + domainName, Type: dnsdomain.RecordTypeCNAME, Content: target, TTL: ttl}, true, nil
}

type fakeRecorder struct {
	saved []store.RunRecord
}

func (f *fakeRecorder) Save(r *store.RunRecord) error {
	f.saved = append(f.saved, *r)
	return nil
}

func writePublicKey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519.pub")
	require.NoError(t, os.WriteFile(path, ssh.MarshalAuthorizedKey(sshPub), 0o644))
	return path
}

func newTestOrchestrator(cloud *fakeCloud, rem *fakeRemote) (*Orchestrator, *bytes.Buffer) {
	var out bytes.Buffer
	o := New(cloud, rem, &out, zerolog.Nop())
	o.Clock = poll.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return o, &out
}

func baseRequest(t *testing.T) Request {
	return Request{
		ServerName:    "web-1",
		ServerType:    "cx22",
		Image:         "ubuntu-24.04",
		Location:      "nbg1",
		SSHKeyName:    "laptop",
		PublicKeyPath: writePublicKey(t),
		RemoteUser:    "deploy",
		AllowedPorts:  []string{"22", "80", "443"},
		WaitTimeout:   time.Minute,
	}
}

func TestRun_HappyPath(t *testing.T) {
	cloud := newFakeCloud()
	rem := &fakeRemote{probeErrs: []error{errors.New("connection refused")}}
	o, out := newTestOrchestrator(cloud, rem)
	dns := &fakeDNS{}
	runs := &fakeRecorder{}
	o.DNS = dns
	o.Runs = runs

	dir := t.TempDir()
	script := filepath.Join(dir, "setup.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\n"), 0o755))

	req := baseRequest(t)
	req.FirewallIDs = []string{"9"}
	req.FirewallName = "web-fw"
	req.CopySource = dir
	req.StartupScript = script
	req.DNS = &DNSRecord{Domain: "example.com", Host: "app", Target: "lb.example.net", TTL: 600}

	res, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, "203.0.113.10", res.IP)
	assert.Equal(t, remote.MethodSFTP, res.CopyMethod)
	assert.NotNil(t, res.DNSRecord)

	if diff := cmp.Diff([]string{"101"}, cloud.lastCreate.SSHKeyIDs); diff != "" {
		t.Errorf("SSH key ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"9", "201"}, cloud.lastCreate.FirewallIDs); diff != "" {
		t.Errorf("firewall ids mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, strings.HasPrefix(cloud.lastCreate.UserData, "#cloud-config\n"))
	assert.Contains(t, cloud.lastCreate.UserData, "disable_root: true")
	assert.Equal(t, "hzdeploy", cloud.lastCreate.Labels[ManagedByLabel])

	assert.Equal(t, 2, rem.probeCalls)
	assert.Equal(t, []string{"deploy@203.0.113.10:22:" + dir}, rem.uploads)
	assert.Equal(t, []string{"deploy@203.0.113.10:22:" + script}, rem.scripts)
	assert.Equal(t, []string{"app.example.com->lb.example.net/600"}, dns.calls)

	last := runs.saved[len(runs.saved)-1]
	assert.Equal(t, store.OutcomeSucceeded, last.Outcome)
	assert.Equal(t, "done", last.Stage)
	assert.Equal(t, "42", last.ServerID)
	assert.Equal(t, "203.0.113.10", last.IP)
	assert.Contains(t, out.String(), "Creating server \"web-1\"")
}

func TestRun_PortsWithoutSSHWarnAndProceed(t *testing.T) {
	cloud := newFakeCloud()
	o, _ := newTestOrchestrator(cloud, &fakeRemote{})
	var logs bytes.Buffer
	o.Log = zerolog.New(&logs)

	req := baseRequest(t)
	req.AllowedPorts = []string{"80", " 443", "80", ""}

	res, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, 1, cloud.createCalls)

	assert.Contains(t, cloud.lastCreate.UserData, "- [ufw, allow, 80/tcp]")
	assert.Contains(t, cloud.lastCreate.UserData, "- [ufw, allow, 443/tcp]")
	assert.NotContains(t, cloud.lastCreate.UserData, "22/tcp")
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "allowed ports do not include 22")
}

func TestRun_RemoteCallsCarryServerFields(t *testing.T) {
	cloud := newFakeCloud()
	rem := &fakeRemote{}
	o, _ := newTestOrchestrator(cloud, rem)
	o.Log = zerolog.New(io.Discard)

	req := baseRequest(t)
	req.CopySource = t.TempDir()
	req.StartupScript = writeScript(t)

	_, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, rem.ctxLogs, 3)
	for _, line := range rem.ctxLogs {
		assert.Contains(t, line, `"server":"web-1"`)
		assert.Contains(t, line, `"server_id":"42"`)
	}
}

func TestRun_ActionErrorOnThirdPoll(t *testing.T) {
	cloud := newFakeCloud()
	cloud.pollResults = []*domain.ActionStatus{
		{ID: "7", Status: domain.ActionStatusRunning},
		{ID: "7", Status: domain.ActionStatusRunning, Progress: 40},
		{ID: "7", Status: domain.ActionStatusError, ErrorMessage: "image unavailable"},
	}
	rem := &fakeRemote{}
	o, _ := newTestOrchestrator(cloud, rem)
	runs := &fakeRecorder{}
	o.Runs = runs

	res, err := o.Run(context.Background(), baseRequest(t))

	require.ErrorIs(t, err, domain.ErrProvisioningFailed)
	assert.Contains(t, err.Error(), "image unavailable")
	assert.Equal(t, 3, cloud.pollCalls)
	assert.Zero(t, rem.probeCalls)
	assert.Equal(t, StageServerActionPolling, res.Stage)
	assert.Zero(t, cloud.deleteCalls)

	last := runs.saved[len(runs.saved)-1]
	assert.Equal(t, store.OutcomeFailed, last.Outcome)
	assert.Equal(t, "server-action-polling", last.Stage)
}

func TestRun_ProbeTimeout(t *testing.T) {
	cloud := newFakeCloud()
	rem := &fakeRemote{probeErr: errors.New("connection refused")}
	o, _ := newTestOrchestrator(cloud, rem)
	o.ProbeInterval = 5 * time.Second

	req := baseRequest(t)
	req.WaitTimeout = 10 * time.Second

	res, err := o.Run(context.Background(), req)

	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.Contains(t, err.Error(), "203.0.113.10")
	assert.Equal(t, 2, rem.probeCalls)
	assert.Equal(t, StageServerReady, res.Stage)
	assert.Empty(t, rem.uploads)
}

func TestRun_ActionTimeout(t *testing.T) {
	cloud := newFakeCloud()
	cloud.pollResults = []*domain.ActionStatus{
		{ID: "7", Status: domain.ActionStatusRunning},
		{ID: "7", Status: domain.ActionStatusRunning},
		{ID: "7", Status: domain.ActionStatusRunning},
	}
	rem := &fakeRemote{}
	o, _ := newTestOrchestrator(cloud, rem)

	req := baseRequest(t)
	req.WaitTimeout = 15 * time.Second

	_, err := o.Run(context.Background(), req)

	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.Contains(t, err.Error(), "server 42")
	assert.Zero(t, rem.probeCalls)
}

func TestRun_InvalidInputBeforeNetwork(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *Request)
	}{
		{"unreadable key", func(r *Request) { r.PublicKeyPath = filepath.Join(t.TempDir(), "missing.pub") }},
		{"bad port", func(r *Request) { r.AllowedPorts = []string{"22", "http"} }},
		{"bad server name", func(r *Request) { r.ServerName = "web_1!" }},
		{"missing copy source", func(r *Request) { r.CopySource = filepath.Join(t.TempDir(), "nope") }},
		{"partial dns", func(r *Request) { r.DNS = &DNSRecord{Domain: "example.com"} }},
		{"zero timeout", func(r *Request) { r.WaitTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud := newFakeCloud()
			o, _ := newTestOrchestrator(cloud, &fakeRemote{})
			o.DNS = &fakeDNS{}

			req := baseRequest(t)
			tt.modify(&req)

			_, err := o.Run(context.Background(), req)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, cloud.calls, "no network call expected")
		})
	}
}

func TestRun_ReusesExistingKeyAndFirewall(t *testing.T) {
	cloud := newFakeCloud()
	cloud.keys = []domain.SSHKeySpec{{ID: "5", Name: "laptop"}}
	o, _ := newTestOrchestrator(cloud, &fakeRemote{})

	req := baseRequest(t)
	req.FirewallName = "web-fw"

	for range 2 {
		_, err := o.Run(context.Background(), req)
		require.NoError(t, err)
	}

	assert.Zero(t, cloud.createKeyCalls)
	assert.Equal(t, 1, cloud.createFwCalls)
	assert.Equal(t, []string{"5"}, cloud.lastCreate.SSHKeyIDs)
	assert.Equal(t, []string{"201"}, cloud.lastCreate.FirewallIDs)
	assert.Equal(t, 2, cloud.createCalls)
}

func TestRun_MissingAddress(t *testing.T) {
	cloud := newFakeCloud()
	cloud.server = &domain.Server{ID: "42", Status: domain.ServerStatusRunning}
	rem := &fakeRemote{}
	o, _ := newTestOrchestrator(cloud, rem)

	_, err := o.Run(context.Background(), baseRequest(t))

	require.ErrorIs(t, err, domain.ErrProvisioningFailed)
	assert.Zero(t, rem.probeCalls)
}

func TestRun_CreateWithoutID(t *testing.T) {
	cloud := newFakeCloud()
	cloud.createResp = &domain.CreateServerResult{Server: &domain.Server{}}
	o, _ := newTestOrchestrator(cloud, &fakeRemote{})

	_, err := o.Run(context.Background(), baseRequest(t))

	require.ErrorIs(t, err, domain.ErrProvisioningFailed)
	assert.Zero(t, cloud.pollCalls)
}

func TestRun_HostKeyChangedIsFatal(t *testing.T) {
	cloud := newFakeCloud()
	rem := &fakeRemote{probeErr: fmt.Errorf("dial: %w", remote.ErrHostKeyChanged)}
	o, _ := newTestOrchestrator(cloud, rem)

	_, err := o.Run(context.Background(), baseRequest(t))

	require.ErrorIs(t, err, domain.ErrProvisioningFailed)
	require.ErrorIs(t, err, remote.ErrHostKeyChanged)
	assert.Equal(t, 1, rem.probeCalls)
}

func TestRun_DNSFailureIsBestEffort(t *testing.T) {
	cloud := newFakeCloud()
	o, out := newTestOrchestrator(cloud, &fakeRemote{})
	o.DNS = &fakeDNS{err: dnsdomain.ErrUnauthorized}

	req := baseRequest(t)
	req.DNS = &DNSRecord{Domain: "example.com", Host: "app", Target: "lb.example.net", TTL: 600}

	res, err := o.Run(context.Background(), req)

	require.NoError(t, err)
	assert.ErrorIs(t, res.DNSError, dnsdomain.ErrUnauthorized)
	assert.Nil(t, res.DNSRecord)
	assert.Contains(t, out.String(), "Warning: DNS record app.example.com was not registered")
}

func TestRun_TransferFailureLeavesServer(t *testing.T) {
	cloud := newFakeCloud()
	rem := &fakeRemote{uploadErr: errors.New("rsync exited 23")}
	o, _ := newTestOrchestrator(cloud, rem)

	req := baseRequest(t)
	req.CopySource = t.TempDir()
	req.StartupScript = writeScript(t)

	res, err := o.Run(context.Background(), req)

	require.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, StageSSHReachable, res.Stage)
	assert.Equal(t, "42", res.Server.ID)
	assert.Empty(t, rem.scripts)
	assert.Zero(t, cloud.deleteCalls)
}

func TestRun_StartupScriptFailure(t *testing.T) {
	cloud := newFakeCloud()
	rem := &fakeRemote{scriptErr: fmt.Errorf("%w: exit status 1", domain.ErrTransferFailed)}
	o, _ := newTestOrchestrator(cloud, rem)

	req := baseRequest(t)
	req.StartupScript = writeScript(t)

	res, err := o.Run(context.Background(), req)

	require.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, StageSSHReachable, res.Stage)
}

func writeScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "setup.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/bash\ntrue\n"), 0o755))
	return path
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "ssh-reachable", StageSSHReachable.String())
	assert.Equal(t, "Stage(99)", Stage(99).String())
}
