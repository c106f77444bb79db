package credential

import (
	"context"
	"fmt"
	"sync"

	"github.com/dogmatiq/dodeca/config"
)

// SecretStore resolves secret references.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// SecretNotFoundError is returned by a SecretStore when there is no secret
// with the requested key.
type SecretNotFoundError struct {
	Key string
}

func (e SecretNotFoundError) Error() string {
	return fmt.Sprintf("secret '%s' does not exist", e.Key)
}

// MemorySecretStore is an in-memory SecretStore.
type MemorySecretStore struct {
	m       sync.RWMutex
	secrets map[string]string
}

// Set stores a secret.
func (s *MemorySecretStore) Set(key, secret string) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.secrets == nil {
		s.secrets = map[string]string{}
	}

	s.secrets[key] = secret
}

// Get returns the secret with the given key.
func (s *MemorySecretStore) Get(_ context.Context, key string) (string, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	if v, ok := s.secrets[key]; ok {
		return v, nil
	}

	return "", SecretNotFoundError{key}
}

// ConfigSecretStore is a SecretStore that reads secrets from a configuration
// bucket, such as the environment.
type ConfigSecretStore struct {
	// Config is the source of secrets.
	Config config.Bucket

	// Prefix is prepended to each key before it is looked up.
	Prefix string
}

// Get returns the secret with the given key.
func (s ConfigSecretStore) Get(_ context.Context, key string) (string, error) {
	v := s.Config.Get(s.Prefix + key)
	if v.IsZero() {
		return "", SecretNotFoundError{key}
	}

	secret, err := v.AsString()
	if err != nil {
		return "", fmt.Errorf("unable to read secret '%s': %w", key, err)
	}

	return secret, nil
}
