package auth

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringStore files entries in the OS keychain.
type KeyringStore struct {
	serviceName string
	entries     allowlist
}

// NewKeyringStore returns a store under serviceName that accepts only the
// given entry names, or any name when none are given.
func NewKeyringStore(serviceName string, entries ...string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName, entries: newAllowlist(entries)}
}

func (k *KeyringStore) SetToken(entry string, token string) error {
	key, err := k.entries.check(entry)
	if err != nil {
		return err
	}
	return keyring.Set(k.serviceName, key, token)
}

func (k *KeyringStore) GetToken(entry string) (string, error) {
	key, err := k.entries.check(entry)
	if err != nil {
		return "", err
	}
	token, err := keyring.Get(k.serviceName, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrTokenNotFound
	}
	return token, err
}

func (k *KeyringStore) DeleteToken(entry string) error {
	key, err := k.entries.check(entry)
	if err != nil {
		return err
	}
	err = keyring.Delete(k.serviceName, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}
