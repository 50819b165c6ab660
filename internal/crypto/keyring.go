package crypto

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name holding the cache key.
const KeyringService = "botlink"

// ResolveKey returns the cache sealing key stored in the OS keyring for
// account, generating and storing one on first use.
func ResolveKey(account string) (string, error) {
	key, err := keyring.Get(KeyringService, account)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("read keyring: %w", err)
	}

	key, err = GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate cache key: %w", err)
	}
	if err := keyring.Set(KeyringService, account, key); err != nil {
		return "", fmt.Errorf("store cache key in keyring: %w", err)
	}
	slog.Info("generated cache key", "keyring_service", KeyringService)
	return key, nil
}

// ForgetKey removes the stored key. Missing keys are not an error.
func ForgetKey(account string) error {
	if err := keyring.Delete(KeyringService, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keyring entry: %w", err)
	}
	return nil
}
