// Package auth keeps API credentials in a secret store under a fixed set
// of entry names. A value in the environment always wins over a stored
// one; Resolve applies that order for every caller.
package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/hzdeploy/internal/util"
)

// ServiceName is the keychain service all entries are filed under.
const ServiceName = "hzdeploy"

var (
	ErrTokenNotFound = errors.New("auth token not found")
	ErrUnknownEntry  = errors.New("unknown credential entry")
)

type Store interface {
	SetToken(entry string, token string) error
	GetToken(entry string) (string, error)
	DeleteToken(entry string) error
}

// Entry is a credential and the environment variable that overrides it.
type Entry struct {
	Name string
	Env  string
}

// Source tells where Resolve found a credential.
type Source int

const (
	SourceNone Source = iota
	SourceEnv
	SourceStore
)

func (s Source) String() string {
	switch s {
	case SourceEnv:
		return "environment"
	case SourceStore:
		return "stored"
	default:
		return "not set"
	}
}

// Resolve returns the value of e from lookup or, failing that, from store.
// A missing entry is SourceNone with a nil error; store failures are
// returned so callers can report them.
func Resolve(store Store, e Entry, lookup func(string) (string, bool)) (string, Source, error) {
	if lookup != nil && e.Env != "" {
		if v, ok := lookup(e.Env); ok && v != "" {
			return v, SourceEnv, nil
		}
	}
	if store == nil {
		return "", SourceNone, nil
	}
	token, err := store.GetToken(e.Name)
	switch {
	case err == nil && token != "":
		return token, SourceStore, nil
	case err == nil, errors.Is(err, ErrTokenNotFound):
		return "", SourceNone, nil
	default:
		return "", SourceNone, fmt.Errorf("read %s: %w", e.Name, err)
	}
}

// DefaultStore returns the keychain store restricted to entries.
func DefaultStore(entries ...string) Store {
	return NewKeyringStore(ServiceName, entries...)
}

// NormalizeEntry normalizes an entry name for consistent key lookup.
func NormalizeEntry(name string) string {
	return util.NormalizeKey(name)
}

// allowlist is the set of entry names a store accepts. An empty list
// accepts every name.
type allowlist map[string]struct{}

func newAllowlist(entries []string) allowlist {
	if len(entries) == 0 {
		return nil
	}
	a := make(allowlist, len(entries))
	for _, e := range entries {
		a[NormalizeEntry(e)] = struct{}{}
	}
	return a
}

func (a allowlist) check(name string) (string, error) {
	key := NormalizeEntry(name)
	if key == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownEntry)
	}
	if a == nil {
		return key, nil
	}
	if _, ok := a[key]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntry, name)
	}
	return key, nil
}
