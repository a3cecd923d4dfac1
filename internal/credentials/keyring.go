// Package credentials keeps the store API key out of config files: in the
// system keyring when one is available, else in a 0600 JSON file mapping
// store origin to key.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"github.com/basecamp/stockstatus/internal/config"
)

const service = "stockstatus"

// ErrNotFound is returned when no key is stored for an origin.
var ErrNotFound = errors.New("no key stored")

// Store reads and writes store keys by origin.
type Store struct {
	dir        string
	useKeyring bool

	// keyringDown is set when the keyring check failed, as opposed to
	// being disabled with STOCKSTATUS_NO_KEYRING.
	keyringDown bool

	// Warn receives the plaintext fallback warning. Nil silences it.
	Warn io.Writer
}

// NewStore checks the system keyring and falls back to a file in dir.
func NewStore(dir string, warn io.Writer) *Store {
	s := &Store{dir: dir, Warn: warn}
	if os.Getenv("STOCKSTATUS_NO_KEYRING") != "" {
		return s
	}

	check := service + "::check"
	if err := keyring.Set(service, check, "ok"); err != nil {
		s.keyringDown = true
		return s
	}
	_ = keyring.Delete(service, check)
	s.useKeyring = true
	return s
}

// UsesKeyring reports whether the system keyring backs this store.
func (s *Store) UsesKeyring() bool {
	return s.useKeyring
}

// Path is the fallback file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, "credentials.json")
}

// Load returns the key stored for origin.
func (s *Store) Load(origin string) (string, error) {
	if s.useKeyring {
		key, err := keyring.Get(service, origin)
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("read keyring: %w", err)
		}
		return key, nil
	}

	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	var keys map[string]string
	if err := json.Unmarshal(data, &keys); err != nil {
		return "", fmt.Errorf("invalid %s: %w", s.Path(), err)
	}
	key, ok := keys[origin]
	if !ok || key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

// Save stores key for origin.
func (s *Store) Save(origin, key string) error {
	if s.useKeyring {
		return keyring.Set(service, origin, key)
	}
	if s.keyringDown && s.Warn != nil {
		fmt.Fprintf(s.Warn, "warning: system keyring unavailable, key stored in plaintext at %s\n", s.Path())
	}
	return config.Update(s.Path(), func(m map[string]any) error {
		m[origin] = key
		return nil
	})
}

// Delete removes the key for origin.
func (s *Store) Delete(origin string) error {
	if s.useKeyring {
		err := keyring.Delete(service, origin)
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if _, err := os.Stat(s.Path()); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return config.Update(s.Path(), func(m map[string]any) error {
		if _, ok := m[origin]; !ok {
			return ErrNotFound
		}
		delete(m, origin)
		return nil
	})
}
