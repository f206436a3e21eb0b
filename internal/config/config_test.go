package config

import (
	"os"
	"testing"
)

var configEnvVars = []string{
	"PORT", "ENV",
	"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"DB_POOL_MIN", "DB_POOL_MAX",
	"ENGINE_UTC_OFFSET_HOURS", "ENGINE_COMPLIANCE_WINDOW_DAYS",
	"ENGINE_REPEAT_MIN_VIOLATIONS", "ENGINE_MAX_FETCH",
	"CORS_ORIGINS",
}

func clearConfigEnvVars() {
	for _, key := range configEnvVars {
		os.Unsetenv(key)
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	clearConfigEnvVars()

	// Password has no default.
	os.Setenv("DB_PASSWORD", "testpass")
	defer os.Unsetenv("DB_PASSWORD")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Env != "development" {
		t.Errorf("Expected env development, got %s", cfg.Server.Env)
	}
	if cfg.Database.Name != "citewatch" {
		t.Errorf("Expected db name citewatch, got %s", cfg.Database.Name)
	}
	if cfg.Engine.UTCOffsetHours != 8 {
		t.Errorf("Expected UTC offset 8, got %d", cfg.Engine.UTCOffsetHours)
	}
	if cfg.Engine.ComplianceWindowDays != 7 {
		t.Errorf("Expected compliance window 7, got %d", cfg.Engine.ComplianceWindowDays)
	}
	if cfg.Engine.RepeatMinViolations != 3 {
		t.Errorf("Expected repeat threshold 3, got %d", cfg.Engine.RepeatMinViolations)
	}
	if cfg.Engine.MaxFetch != 5000 {
		t.Errorf("Expected max fetch 5000, got %d", cfg.Engine.MaxFetch)
	}
	if len(cfg.CORS.Origins) != 1 {
		t.Errorf("Expected 1 CORS origin, got %d", len(cfg.CORS.Origins))
	}
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("ENV", "production")
	os.Setenv("DB_HOST", "db.internal")
	os.Setenv("DB_PASSWORD", "secret")
	os.Setenv("ENGINE_UTC_OFFSET_HOURS", "9")
	os.Setenv("ENGINE_MAX_FETCH", "250")
	os.Setenv("CORS_ORIGINS", "http://example.com, https://app.example.com")
	defer clearConfigEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Expected host db.internal, got %s", cfg.Database.Host)
	}
	if cfg.Engine.UTCOffsetHours != 9 {
		t.Errorf("Expected UTC offset 9, got %d", cfg.Engine.UTCOffsetHours)
	}
	if cfg.Engine.MaxFetch != 250 {
		t.Errorf("Expected max fetch 250, got %d", cfg.Engine.MaxFetch)
	}
	if len(cfg.CORS.Origins) != 2 {
		t.Errorf("Expected 2 CORS origins, got %d", len(cfg.CORS.Origins))
	}
	if cfg.CORS.Origins[1] != "https://app.example.com" {
		t.Errorf("Expected trimmed origin, got %q", cfg.CORS.Origins[1])
	}
}

func TestLoad_MissingPassword(t *testing.T) {
	clearConfigEnvVars()

	if _, err := Load(); err == nil {
		t.Fatal("Expected error when DB_PASSWORD is missing")
	}
}

func TestValidate_EngineBounds(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080"},
			Database: DatabaseConfig{Host: "h", Port: "5432", Name: "n", User: "u", Password: "p", PoolMin: 1, PoolMax: 5},
			Engine:   EngineConfig{UTCOffsetHours: 8, ComplianceWindowDays: 7, RepeatMinViolations: 3, MaxFetch: 5000},
			CORS:     CORSConfig{Origins: []string{"http://localhost:3000"}},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("Expected valid base config, got %v", err)
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"offset too small", func(c *Config) { c.Engine.UTCOffsetHours = -13 }},
		{"offset too large", func(c *Config) { c.Engine.UTCOffsetHours = 15 }},
		{"zero compliance window", func(c *Config) { c.Engine.ComplianceWindowDays = 0 }},
		{"zero repeat threshold", func(c *Config) { c.Engine.RepeatMinViolations = 0 }},
		{"zero max fetch", func(c *Config) { c.Engine.MaxFetch = 0 }},
		{"pool min above max", func(c *Config) { c.Database.PoolMin = 10; c.Database.PoolMax = 5 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tc.name)
			}
		})
	}
}
