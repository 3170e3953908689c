// config.go - Configuration management for the privacyd daemon.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration.
type Config struct {
	// Demo workload
	NumTransactions int   `json:"num_transactions"`
	BaseAmount      int64 `json:"base_amount"`

	// File paths
	LedgerPath string `json:"ledger_path"`

	// Logging
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		NumTransactions: 4,
		BaseAmount:      100,
		LedgerPath:      "ledger.json",
		LogLevel:        "info",
	}
}

// LoadConfig loads configuration from file, creating the default on first
// run.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file.
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.NumTransactions <= 0 {
		return fmt.Errorf("num_transactions must be positive")
	}
	if c.BaseAmount <= 0 {
		return fmt.Errorf("base_amount must be positive")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger_path must be set")
	}
	return nil
}
