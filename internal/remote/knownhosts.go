package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrHostKeyChanged is returned when a host presents a key different from
// the one recorded for it.
var ErrHostKeyChanged = errors.New("remote host key changed")

// ensureKnownHostsFile makes sure the directory exists and the file is created.
func ensureKnownHostsFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("remote: failed to create known_hosts directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return fmt.Errorf("remote: failed to create known_hosts: %w", err)
	}
	return f.Close()
}

// hostKeyCheck is an ssh.HostKeyCallback that also receives the logger of
// the connection being verified.
type hostKeyCheck func(hostname string, addr net.Addr, key ssh.PublicKey, log zerolog.Logger) error

// trustOnFirstUse returns a host key check backed by the known_hosts
// file at path. Unknown hosts are accepted and recorded; a host whose key
// differs from the recorded one is rejected with ErrHostKeyChanged.
func trustOnFirstUse(path string) (hostKeyCheck, error) {
	if err := ensureKnownHostsFile(path); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	return func(hostname string, addr net.Addr, key ssh.PublicKey, log zerolog.Logger) error {
		mu.Lock()
		defer mu.Unlock()

		check, err := knownhosts.New(path)
		if err != nil {
			return fmt.Errorf("remote: failed to load %s: %w", path, err)
		}

		err = check(hostname, addr, key)
		var keyErr *knownhosts.KeyError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &keyErr) && len(keyErr.Want) > 0:
			log.Warn().Str("fingerprint", ssh.FingerprintSHA256(key)).Msg("host key does not match known_hosts")
			return fmt.Errorf("%w for %s (remove the stale entry from %s)", ErrHostKeyChanged, hostname, path)
		case errors.As(err, &keyErr):
			if err := appendKnownHost(path, hostname, key); err != nil {
				return err
			}
			log.Info().Str("fingerprint", ssh.FingerprintSHA256(key)).Msg("recorded new host key")
			return nil
		default:
			return err
		}
	}, nil
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("remote: failed to open known_hosts: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("remote: failed to write known_hosts: %w", err)
	}
	return nil
}
