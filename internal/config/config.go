package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Generation GenerationConfig
	LogLevel   string
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	DBName         string
	SSLMode        string
	TestDBName     string // Separate database for testing
	MigrationsPath string
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// GenerationConfig holds the question-generation endpoint configuration.
// The endpoint is any OpenAI-compatible chat completions API.
type GenerationConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvAsInt("DB_PORT", 5432),
			Username:       getEnv("DB_USERNAME", "postgres"),
			Password:       getEnv("DB_PASSWORD", "password"),
			DBName:         getEnv("DB_NAME", "wisetower"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			TestDBName:     getEnv("TEST_DB_NAME", "wisetower_test"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "your-secret-key-here"),
		},
		Generation: GenerationConfig{
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Timeout: time.Duration(getEnvAsInt("GENERATION_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
