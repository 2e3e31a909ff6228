// Package config provides configuration management for bookkeeper.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Book   BookConfig
	Server ServerConfig
	Debug  bool
}

// BookConfig locates the book database and chart of accounts.
type BookConfig struct {
	DBPath    string
	ChartPath string
}

// ServerConfig configures the HTTP request layer.
type ServerConfig struct {
	Addr string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if
// available. You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	config := &Config{
		Book: BookConfig{
			DBPath:    getEnvOrDefault("BOOKKEEPER_DB_PATH", "./book.db"),
			ChartPath: os.Getenv("BOOKKEEPER_CHART"),
		},
		Server: ServerConfig{
			Addr: getEnvOrDefault("BOOKKEEPER_LISTEN_ADDR", ":8420"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks that the named fields are set.
func (c *Config) Validate(required ...string) error {
	var missing []string

	for _, field := range required {
		var value string
		switch field {
		case "book.dbPath":
			value = c.Book.DBPath
		case "book.chartPath":
			value = c.Book.ChartPath
		case "server.addr":
			value = c.Server.Addr
		}

		if value == "" {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a
// default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
