package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bengkel/internal/models"
)

func validConfig() Config {
	cfg := Config{
		Auth:     AuthConfig{JWTSecret: "0123456789abcdef0123"},
		Database: DatabaseConfig{Path: "test.db"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: bengkel-test
  environment: test
auth:
  jwt_secret: "${BENGKEL_TEST_SECRET}"
  token_ttl: 2h
database:
  path: "test.db"
booking:
  time_slots: ["08:00", "10:30"]
telegram:
  bot_token: "tg"
  admin_chat_ids: [111, 222]
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	t.Setenv("BENGKEL_TEST_SECRET", "super-secret-signing-key")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Auth.JWTSecret != "super-secret-signing-key" {
		t.Errorf("expected secret from env, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("expected token ttl 2h, got %s", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.Issuer != "bengkel-test" {
		t.Errorf("expected issuer to default to app name, got %q", cfg.Auth.Issuer)
	}
	if len(cfg.Booking.TimeSlots) != 2 || cfg.Booking.TimeSlots[1] != "10:30" {
		t.Errorf("unexpected time slots %v", cfg.Booking.TimeSlots)
	}
	if !cfg.Telegram.Enabled() {
		t.Errorf("expected telegram to be enabled")
	}
	if cfg.Google.Enabled() {
		t.Errorf("expected google sync to be disabled")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "short secret", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }, wantErr: true},
		{name: "missing db path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "file driver", mutate: func(c *Config) { c.Database.Driver = DriverFile }},
		{name: "bad timezone", mutate: func(c *Config) { c.App.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "bad slot", mutate: func(c *Config) { c.Booking.TimeSlots = []string{"8am"} }, wantErr: true},
		{name: "negative ttl", mutate: func(c *Config) { c.Auth.TokenTTL = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Auth.TokenTTL != models.DefaultTokenTTL {
		t.Errorf("expected default token ttl %s, got %s", models.DefaultTokenTTL, cfg.Auth.TokenTTL)
	}
	if cfg.Auth.BcryptCost != models.DefaultBcryptCost {
		t.Errorf("expected default bcrypt cost %d, got %d", models.DefaultBcryptCost, cfg.Auth.BcryptCost)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected sqlite driver by default, got %s", cfg.Database.Driver)
	}
	if len(cfg.Booking.TimeSlots) != len(models.DefaultTimeSlots) {
		t.Errorf("expected default time slots, got %v", cfg.Booking.TimeSlots)
	}
	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.App.Timezone != models.DefaultTimezone {
		t.Errorf("expected default timezone, got %s", cfg.App.Timezone)
	}
	if cfg.Location().String() != models.DefaultTimezone {
		t.Errorf("expected location %s, got %s", models.DefaultTimezone, cfg.Location())
	}
}

func TestValidateTimeSlots(t *testing.T) {
	tests := []struct {
		name    string
		slots   []string
		wantErr bool
	}{
		{name: "Valid slots", slots: []string{"08:00", "13:30"}},
		{name: "Empty", slots: nil, wantErr: true},
		{name: "Duplicate", slots: []string{"08:00", "08:00"}, wantErr: true},
		{name: "Malformed", slots: []string{"25:00"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimeSlots(tt.slots)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimeSlots() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
