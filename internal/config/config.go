package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	// Server configuration for the web UI daemon
	Server ServerConfig `json:"server"`

	// mDNS/Avahi configuration
	MDNS MDNSConfig `json:"mdns"`

	// Run history configuration
	History HistoryConfig `json:"history"`

	// Config package download configuration
	Fetch FetchConfig `json:"fetch"`

	// Injection pipeline configuration
	Inject InjectConfig `json:"inject"`

	// Flash pipeline configuration
	Flash FlashConfig `json:"flash"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	// Timeout settings in seconds
	ReadTimeout  int `json:"read_timeout"`
	WriteTimeout int `json:"write_timeout"`
	IdleTimeout  int `json:"idle_timeout"`

	// CORS settings
	CORS CORSConfig `json:"cors"`
}

// CORSConfig contains CORS settings
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// MDNSConfig contains mDNS/Avahi service discovery settings
type MDNSConfig struct {
	// Enable mDNS service advertisement
	Enabled bool `json:"enabled"`

	// Service name (e.g., "UFG Card Station")
	ServiceName string `json:"service_name"`

	// Use DBus API (more reliable than command-line)
	UseDBus bool `json:"use_dbus"`

	// Additional TXT records (key=value pairs)
	TXTRecords []string `json:"txt_records"`
}

// HistoryConfig contains run history settings
type HistoryConfig struct {
	// Path of the SQLite database recording inject/flash runs
	Path string `json:"path"`
}

// FetchConfig contains config package download settings
type FetchConfig struct {
	// Environment variable holding the bearer token for artifact downloads
	TokenEnv string `json:"token_env"`

	// Directory downloads land in ("" = current directory)
	Dir string `json:"dir"`
}

// InjectConfig contains injection pipeline settings
type InjectConfig struct {
	// Bounded retry for partition device nodes appearing after attach
	RetryAttempts     int `json:"retry_attempts"`
	RetryDelaySeconds int `json:"retry_delay_seconds"`
}

// FlashConfig contains flash pipeline settings
type FlashConfig struct {
	// Seconds between progress lines during the raw copy
	ProgressIntervalSeconds int `json:"progress_interval_seconds"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8777,
			ReadTimeout:  15,
			WriteTimeout: 15,
			IdleTimeout:  60,
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: true,
			},
		},
		MDNS: MDNSConfig{
			Enabled:     true,
			ServiceName: "UFG Card Station",
			UseDBus:     true,
			TXTRecords: []string{
				"path=/",
				"version=1.0",
			},
		},
		History: HistoryConfig{
			Path: "/var/lib/fwcard/history.db",
		},
		Fetch: FetchConfig{
			TokenEnv: "FWCARD_TOKEN",
		},
		Inject: InjectConfig{
			RetryAttempts:     5,
			RetryDelaySeconds: 1,
		},
		Flash: FlashConfig{
			ProgressIntervalSeconds: 1,
		},
	}
}

// Load loads configuration from a JSON file
// If the file doesn't exist, it returns the default configuration
func Load(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON
	config := Default() // Start with defaults
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Save writes the configuration to a JSON file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
