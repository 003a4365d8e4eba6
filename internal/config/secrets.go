package config

import (
	"encoding/base64"
	"fmt"
	"os"
)

const EnvSecretsKey = "SENTINEL_SECRETS_KEY"

// SecretsConfig holds the key protecting stored connection strings.
// The key is base64-encoded and must decode to 16, 24, or 32 bytes.
type SecretsConfig struct {
	Key string `toml:"key"`
}

// KeyBytes decodes the configured key.
func (c *SecretsConfig) KeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.Key)
	if err != nil {
		return nil, fmt.Errorf("decode secrets key: %w", err)
	}
	return key, nil
}

// Finalize applies environment variable overrides and validation.
func (c *SecretsConfig) Finalize() error {
	if v := os.Getenv(EnvSecretsKey); v != "" {
		c.Key = v
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *SecretsConfig) Merge(overlay *SecretsConfig) {
	if overlay.Key != "" {
		c.Key = overlay.Key
	}
}

func (c *SecretsConfig) validate() error {
	if c.Key == "" {
		return fmt.Errorf("secrets key is required (set %s)", EnvSecretsKey)
	}

	key, err := c.KeyBytes()
	if err != nil {
		return err
	}

	switch len(key) {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("secrets key must decode to 16, 24, or 32 bytes, got %d", len(key))
	}
}
