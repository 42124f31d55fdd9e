package app

import (
	"os"
	"strings"
	"time"

	"github.com/lockboxhq/grantstore/internal/auth/domain"
)

type Config struct {
	DatabaseFile         string          // Path to the SQLite database file (default: ./grantstore.db)
	Env                  string          // Environment (dev, staging, prod) (default: dev)
	LogLevel             string          // Log level (debug, info, warn, error) (default: info)
	LogFormat            string          // Log format (json, text) (default: json)
	HousekeepingInterval time.Duration   // Expired-authorization purge interval (default: 1h)
	Clients              []domain.Client // Registered clients as id:client_id:name entries (GRANTSTORE_CLIENTS)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile:         getEnvOrDefault("GRANTSTORE_DATABASE_FILE", "grantstore.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		Clients:              getEnvClients("GRANTSTORE_CLIENTS"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}

// getEnvClients parses a comma-separated list of id:client_id:name
// entries. Record loads fail with a data-integrity error when the
// registered client cannot be resolved, so the daemon has to be told
// about every client id that appears in its database.
func getEnvClients(key string) []domain.Client {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var clients []domain.Client
	for _, entry := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if parts[0] == "" {
			continue
		}

		c := domain.Client{ID: parts[0]}
		if len(parts) > 1 {
			c.ClientID = parts[1]
		}
		if len(parts) > 2 {
			c.Name = parts[2]
		}
		clients = append(clients, c)
	}
	return clients
}
