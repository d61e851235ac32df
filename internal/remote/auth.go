package remote

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// authMethods returns the ways to authenticate as the remote user: keys
// held by the SSH agent at agentSocket, then the private key file. The
// returned close function releases the agent connection.
func authMethods(privateKeyPath, agentSocket string, log zerolog.Logger) ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod
	closeFn := func() {}

	if agentSocket != "" {
		conn, err := net.Dial("unix", agentSocket)
		if err != nil {
			log.Debug().Err(err).Str("socket", agentSocket).Msg("ssh agent unavailable")
		} else {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			closeFn = func() { conn.Close() }
		}
	}

	if privateKeyPath != "" {
		signer, err := loadSigner(privateKeyPath)
		switch {
		case err == nil:
			methods = append(methods, ssh.PublicKeys(signer))
		case len(methods) > 0:
			log.Debug().Err(err).Str("path", privateKeyPath).Msg("private key unusable, relying on ssh agent")
		default:
			closeFn()
			return nil, nil, err
		}
	}

	if len(methods) == 0 {
		return nil, nil, fmt.Errorf("%w: no SSH private key or agent available", domain.ErrInvalidInput)
	}
	return methods, closeFn, nil
}

func loadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: private key %s not found", domain.ErrInvalidInput, path)
		}
		return nil, fmt.Errorf("%w: failed to read private key: %w", domain.ErrInvalidInput, err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: private key %s is passphrase protected; load it into ssh-agent", domain.ErrInvalidInput, path)
		}
		return nil, fmt.Errorf("%w: failed to parse private key %s: %w", domain.ErrInvalidInput, path, err)
	}
	return signer, nil
}
