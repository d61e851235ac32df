// Package sshkeys reads and checks the local SSH key pair used to reach
// provisioned servers.
package sshkeys

import (
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"golang.org/x/crypto/ssh"
)

// ReadAndValidatePublicKey reads a public key from disk and validates it.
// Every failure wraps domain.ErrInvalidInput.
func ReadAndValidatePublicKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read SSH key file: %w", domain.ErrInvalidInput, err)
	}

	publicKey := strings.TrimSpace(string(data))
	if publicKey == "" {
		return "", fmt.Errorf("%w: SSH key file %s is empty", domain.ErrInvalidInput, path)
	}

	return ValidatePublicKey(publicKey)
}

// ValidatePublicKey checks that publicKey is a single authorized_keys line
// and returns it trimmed.
func ValidatePublicKey(publicKey string) (string, error) {
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return "", fmt.Errorf("%w: SSH key cannot be empty", domain.ErrInvalidInput)
	}

	if strings.Contains(publicKey, "PRIVATE KEY") {
		return "", fmt.Errorf("%w: file appears to contain a private key; please provide the public key (.pub file)", domain.ErrInvalidInput)
	}

	if strings.ContainsAny(publicKey, "\r\n") {
		return "", fmt.Errorf("%w: expected a single public key, found several lines", domain.ErrInvalidInput)
	}

	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey)); err != nil {
		return "", fmt.Errorf("%w: file does not appear to be a valid SSH public key (expected ssh-rsa, ssh-ed25519, or ecdsa-sha2-*): %w", domain.ErrInvalidInput, err)
	}

	return publicKey, nil
}

// DefaultKeyName returns a safe default key name based on hostname.
func DefaultKeyName() string {
	if hostname, err := os.Hostname(); err == nil {
		name := strings.TrimSpace(hostname)
		if name != "" {
			return name
		}
	}

	return "ssh-key"
}
