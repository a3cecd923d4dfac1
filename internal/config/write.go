package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

// LockTimeout bounds how long Update waits for another process writing the
// same file. Past it the write proceeds unlocked rather than hang the CLI.
const LockTimeout = 100 * time.Millisecond

// Settable lists the keys `config set` accepts, with the value kind each takes.
var Settable = map[string]string{
	"backend":      "string",
	"store_url":    "url",
	"database_url": "string",
	"table":        "string",
	"interval":     "duration",
	"timeout":      "duration",
	"format":       "string",
	"metrics_addr": "string",
	"stats":        "bool",
	"verbose":      "level",
}

// SettableKeys returns the Settable keys sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(Settable))
	for k := range Settable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsAuthorityKey reports keys that local config files may not set.
func IsAuthorityKey(key string) bool {
	return key == "store_url" || key == "database_url"
}

// ParseValue converts a command-line value into the JSON value stored for key.
func ParseValue(key, value string) (any, error) {
	kind, ok := Settable[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	switch kind {
	case "url":
		return NormalizeURL(value), nil
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration like 10s", key)
		}
		if key == "interval" && d < minInterval {
			return nil, fmt.Errorf("interval %s is below the minimum of %s", d, minInterval)
		}
		return d.String(), nil
	case "bool":
		b, ok := parseEnvBool(value)
		if !ok {
			return nil, fmt.Errorf("%s must be true/false (or 1/0)", key)
		}
		return b, nil
	case "level":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 2 {
			return nil, fmt.Errorf("%s must be 0, 1, or 2", key)
		}
		return n, nil
	default:
		return value, nil
	}
}

// GlobalConfigPath returns the global config file path.
func GlobalConfigPath() string {
	return globalConfigPath()
}

// LocalConfigPath returns ./.stockstatus/config.json whether or not it exists.
func LocalConfigPath() string {
	return filepath.Join(".stockstatus", "config.json")
}

// Update applies fn to the JSON object stored at path under a file lock and
// writes the result atomically. A missing or malformed file starts empty.
func Update(path string, fn func(map[string]any) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	unlock, err := lockFile(path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	data := make(map[string]any)
	if raw, err := os.ReadFile(path); err == nil { //nolint:gosec // G304: Path is from trusted config location
		_ = json.Unmarshal(raw, &data)
	}

	if err := fn(data); err != nil {
		return err
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicWriteFile(path, append(out, '\n')); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// lockFile takes an exclusive lock, failing open on timeout.
func lockFile(path string) (func(), error) {
	fl := flock.New(path)

	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return func() {}, nil
		}
		return nil, fmt.Errorf("failed to lock config: %w", err)
	}
	if !locked {
		return func() {}, nil
	}
	return func() { _ = fl.Unlock() }, nil
}

// atomicWriteFile writes data via temp file and rename, mode 0600.
func atomicWriteFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0o600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	err = os.Rename(tmpPath, path)
	if err != nil && runtime.GOOS == "windows" {
		// Windows cannot rename over an existing file.
		_ = os.Remove(path)
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		os.Remove(tmpPath)
	}
	return err
}
