// Package secrets stores SemTab credentials in the OS keyring, with a
// file-based fallback for headless environments.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"

	"github.com/semtab/semtab-cli/internal/config"
)

const credentialsKey = "credentials"

// keyringOpenTimeout bounds how long we wait for a D-Bus secret service
// before giving up.
const keyringOpenTimeout = 5 * time.Second

var errKeyringTimeout = errors.New("keyring open timed out")

// keyringOpenFunc opens the keyring. Tests replace it.
var keyringOpenFunc = keyring.Open

// envGet reads environment variables. Tests replace it.
var envGet = os.Getenv

// Credentials is the record persisted in the keyring.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// KeyringBackendInfo is a resolved backend choice and where it came from.
type KeyringBackendInfo struct {
	Value  string // auto, keychain, file
	Source string // env, config, default
}

// ResolveBackend picks the keyring backend from the environment, then the
// config file, then falls back to auto-detection.
func ResolveBackend(cfg *config.Config) KeyringBackendInfo {
	if v := envGet("SEMTAB_KEYRING_BACKEND"); v != "" {
		return KeyringBackendInfo{Value: v, Source: "env"}
	}
	if cfg != nil && cfg.KeyringBackend != "" {
		return KeyringBackendInfo{Value: cfg.KeyringBackend, Source: "config"}
	}
	return KeyringBackendInfo{Value: "auto", Source: "default"}
}

// shouldForceFileBackend reports whether auto-detection must fall through to
// the file backend. On Linux the secret service needs a session bus; without
// one keyring.Open hangs or fails unhelpfully.
func shouldForceFileBackend(goos string, info KeyringBackendInfo, dbusAddr string) bool {
	return goos == "linux" && info.Value == "auto" && dbusAddr == ""
}

// shouldUseKeyringTimeout reports whether opening the keyring should be
// bounded by a timeout. Only the Linux secret service path can block
// indefinitely.
func shouldUseKeyringTimeout(goos string, info KeyringBackendInfo, dbusAddr string) bool {
	return goos == "linux" && info.Value == "auto" && dbusAddr != ""
}

// Store wraps a keyring for credential storage.
type Store struct {
	ring keyring.Keyring
}

// Open opens the credential store using the given backend choice.
func Open(info KeyringBackendInfo) (*Store, error) {
	backend := info.Value
	if backend == "" {
		backend = "auto"
	}

	dbusAddr := envGet("DBUS_SESSION_BUS_ADDRESS")
	if shouldForceFileBackend(runtime.GOOS, info, dbusAddr) {
		backend = "file"
	}

	cfg := keyring.Config{
		ServiceName: config.AppName,
	}

	switch backend {
	case "auto":
		// keyring picks the best available backend.
	case "keychain":
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
		}
	case "file":
		dir, err := config.EnsureKeyringDir()
		if err != nil {
			return nil, err
		}
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
		cfg.FileDir = dir
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(config.AppName)
	default:
		return nil, fmt.Errorf("unknown keyring backend %q (expected auto, keychain, or file)", backend)
	}

	var (
		ring keyring.Keyring
		err  error
	)
	if shouldUseKeyringTimeout(runtime.GOOS, info, dbusAddr) {
		ring, err = openKeyringWithTimeout(cfg, keyringOpenTimeout)
	} else {
		ring, err = keyringOpenFunc(cfg)
	}
	if err != nil {
		return nil, wrapKeychainError(err)
	}
	return &Store{ring: ring}, nil
}

// openKeyringWithTimeout opens the keyring in a goroutine so a hung secret
// service cannot block the CLI forever.
func openKeyringWithTimeout(cfg keyring.Config, timeout time.Duration) (keyring.Keyring, error) {
	type result struct {
		ring keyring.Keyring
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		ring, err := keyringOpenFunc(cfg)
		ch <- result{ring: ring, err: err}
	}()

	select {
	case res := <-ch:
		return res.ring, res.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %s: the secret service is not responding; set SEMTAB_KEYRING_BACKEND=file to use file-based storage instead", errKeyringTimeout, timeout)
	}
}

// wrapKeychainError adds recovery instructions to macOS locked-keychain
// errors and passes everything else through.
func wrapKeychainError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "errSecInteractionNotAllowed") || strings.Contains(msg, "-25308") {
		return fmt.Errorf("keychain is locked: %w\nRun 'security unlock-keychain' to unlock it, or set SEMTAB_KEYRING_BACKEND=file", err)
	}
	return err
}

// SetCredentials stores the username and password.
func (s *Store) SetCredentials(creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := s.ring.Set(keyring.Item{
		Key:   credentialsKey,
		Data:  data,
		Label: "SemTab credentials",
	}); err != nil {
		return wrapKeychainError(err)
	}
	return nil
}

// GetCredentials retrieves the stored username and password. It returns
// keyring.ErrKeyNotFound when nothing is stored.
func (s *Store) GetCredentials() (Credentials, error) {
	item, err := s.ring.Get(credentialsKey)
	if err != nil {
		return Credentials{}, wrapKeychainError(err)
	}
	var creds Credentials
	if err := json.Unmarshal(item.Data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("decoding stored credentials: %w", err)
	}
	return creds, nil
}

// DeleteCredentials removes the stored credentials. Deleting credentials
// that do not exist is not an error.
func (s *Store) DeleteCredentials() error {
	err := s.ring.Remove(credentialsKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return wrapKeychainError(err)
	}
	return nil
}

// IsNotFound reports whether err means no credentials are stored.
func IsNotFound(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound)
}
