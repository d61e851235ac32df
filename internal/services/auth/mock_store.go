package auth

// MockStore is an in-memory Store for tests. It applies the same name
// normalization and entry restriction as KeyringStore.
type MockStore struct {
	tokens  map[string]string
	entries allowlist
}

func NewMockStore(entries ...string) *MockStore {
	return &MockStore{tokens: make(map[string]string), entries: newAllowlist(entries)}
}

func (m *MockStore) SetToken(entry string, token string) error {
	key, err := m.entries.check(entry)
	if err != nil {
		return err
	}
	m.tokens[key] = token
	return nil
}

func (m *MockStore) GetToken(entry string) (string, error) {
	key, err := m.entries.check(entry)
	if err != nil {
		return "", err
	}
	token, ok := m.tokens[key]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (m *MockStore) DeleteToken(entry string) error {
	key, err := m.entries.check(entry)
	if err != nil {
		return err
	}
	if _, ok := m.tokens[key]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, key)
	return nil
}
