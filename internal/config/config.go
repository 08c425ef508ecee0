package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Database       DatabaseConfig
	Server         ServerConfig
	App            AppConfig
	Reconciliation ReconciliationConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ServerConfig struct {
	Port string
}

type AppConfig struct {
	LogLevel string
}

// ReconciliationConfig holds the confidence thresholds for the matching engine.
// AutoThreshold is the minimum score for hands-free reconciliation,
// SuggestionFloor the minimum score for a pair to be surfaced to an operator.
type ReconciliationConfig struct {
	AutoThreshold   int
	SuggestionFloor int
}

func Load() (*Config, error) {
	autoThreshold := getEnvInt("RECON_AUTO_THRESHOLD", 95)
	suggestionFloor := getEnvInt("RECON_SUGGESTION_FLOOR", 30)

	if suggestionFloor > autoThreshold {
		return nil, fmt.Errorf("RECON_SUGGESTION_FLOOR (%d) must not exceed RECON_AUTO_THRESHOLD (%d)", suggestionFloor, autoThreshold)
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cedeva_recon"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Reconciliation: ReconciliationConfig{
			AutoThreshold:   autoThreshold,
			SuggestionFloor: suggestionFloor,
		},
	}, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
