package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration for the document
// store.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// EngineConfig holds the query/aggregation engine settings.
type EngineConfig struct {
	// UTCOffsetHours is the fixed zone device readings are reconstructed in.
	UTCOffsetHours int
	// ComplianceWindowDays derives a ticket's due date from its capture time.
	ComplianceWindowDays int
	// RepeatMinViolations is the repeat-offender threshold.
	RepeatMinViolations int
	// MaxFetch caps the candidate records fetched per aggregation call.
	// Larger candidate sets are truncated, a documented approximation that
	// keeps worst-case memory and CPU bounded.
	MaxFetch int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables via viper, with
// development defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "citewatch")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("ENGINE_UTC_OFFSET_HOURS", 8)
	v.SetDefault("ENGINE_COMPLIANCE_WINDOW_DAYS", 7)
	v.SetDefault("ENGINE_REPEAT_MIN_VIOLATIONS", 3)
	v.SetDefault("ENGINE_MAX_FETCH", 5000)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Engine: EngineConfig{
			UTCOffsetHours:       v.GetInt("ENGINE_UTC_OFFSET_HOURS"),
			ComplianceWindowDays: v.GetInt("ENGINE_COMPLIANCE_WINDOW_DAYS"),
			RepeatMinViolations:  v.GetInt("ENGINE_REPEAT_MIN_VIOLATIONS"),
			MaxFetch:             v.GetInt("ENGINE_MAX_FETCH"),
		},
		CORS: CORSConfig{
			Origins: splitOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if c.Engine.UTCOffsetHours < -12 || c.Engine.UTCOffsetHours > 14 {
		return fmt.Errorf("ENGINE_UTC_OFFSET_HOURS must be a valid UTC offset")
	}
	if c.Engine.ComplianceWindowDays < 1 {
		return fmt.Errorf("ENGINE_COMPLIANCE_WINDOW_DAYS must be at least 1")
	}
	if c.Engine.RepeatMinViolations < 1 {
		return fmt.Errorf("ENGINE_REPEAT_MIN_VIOLATIONS must be at least 1")
	}
	if c.Engine.MaxFetch < 1 {
		return fmt.Errorf("ENGINE_MAX_FETCH must be at least 1")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// splitOrigins splits a comma-separated origins string into a slice.
func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
