package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	deviceSecretKey   = "waysave_device_secret_v1"
	deviceSecretBytes = 32
)

// SecretStore keeps the signing secret of a device database.
type SecretStore interface {
	GetValue(ctx context.Context, key string) ([]byte, bool, error)
	PutValue(ctx context.Context, key string, value []byte) error
}

// DeviceSecret returns the signing secret for tokens that never leave this database,
// generating and storing a random one on first use.
func DeviceSecret(ctx context.Context, store SecretStore) (string, error) {
	raw, found, err := store.GetValue(ctx, deviceSecretKey)
	if err != nil {
		return "", fmt.Errorf("error reading device secret: %w", err)
	}
	if found && len(raw) > 0 {
		return string(raw), nil
	}

	buf := make([]byte, deviceSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error generating device secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if err := store.PutValue(ctx, deviceSecretKey, []byte(secret)); err != nil {
		return "", fmt.Errorf("error storing device secret: %w", err)
	}
	return secret, nil
}
