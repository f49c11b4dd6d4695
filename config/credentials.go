package config

import (
	"fmt"
	"os"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"

	"github.com/bytedance/sonic"
)

// LoadCredentials reads the exchange credentials JSON file. A missing file, an empty key or a
// file still holding the template placeholders is a configuration error.
func LoadCredentials(path string) (domain.Credentials, error) {
	var creds domain.Credentials
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("read credentials %s: %w: %w", path, ports.ErrConfigurationError, err)
	}
	if err := sonic.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("parse credentials %s: %w: %w", path, ports.ErrConfigurationError, err)
	}
	if creds.IsTemplate() {
		return creds, fmt.Errorf("credentials %s are missing or still the template: %w", path, ports.ErrConfigurationError)
	}
	if creds.Server == "" {
		creds.Server = "testnet"
	}
	return creds, nil
}
