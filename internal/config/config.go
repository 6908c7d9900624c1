package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"bengkel/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"

	minJWTSecretLength = 16
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Booking    BookingConfig    `yaml:"booking"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Backup     BackupConfig     `yaml:"backup"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AuthConfig struct {
	JWTSecret      string               `yaml:"jwt_secret"`
	Issuer         string               `yaml:"issuer"`
	TokenTTL       time.Duration        `yaml:"token_ttl"`
	BcryptCost     int                  `yaml:"bcrypt_cost"`
	LoginRateLimit LoginRateLimitConfig `yaml:"login_rate_limit"`
	Policy         PolicyConfig         `yaml:"policy"`
	BootstrapAdmin BootstrapAdminConfig `yaml:"bootstrap_admin"`
}

type LoginRateLimitConfig struct {
	Attempts int           `yaml:"attempts"`
	Window   time.Duration `yaml:"window"`
}

type PolicyConfig struct {
	ModelPath  string `yaml:"model_path"`
	PolicyPath string `yaml:"policy_path"`
}

type BootstrapAdminConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

func (b BootstrapAdminConfig) Enabled() bool {
	return b.Email != "" && b.Password != ""
}

type BookingConfig struct {
	TimeSlots      []string `yaml:"time_slots"`
	MaxAdvanceDays int      `yaml:"max_advance_days"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	CORS      APICORSConfig      `yaml:"cors"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Debug        bool    `yaml:"debug"`
	// Commands enables the admin command bot on the same token.
	Commands     bool    `yaml:"commands"`
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && len(t.AdminChatIDs) > 0
}

type GoogleConfig struct {
	CredentialsFile       string        `yaml:"credentials_file"`
	BookingsSpreadsheetID string        `yaml:"bookings_spreadsheet_id"`
	CacheRefresh          time.Duration `yaml:"cache_refresh"`
	ResyncOnStart         bool          `yaml:"resync_on_start"`
}

func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.BookingsSpreadsheetID != ""
}

type WorkerConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Load reads configPath, expands ${VAR} references from the environment
// (and an optional .env file) and validates the result.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minJWTSecretLength)
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverFile:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid app.timezone %q: %w", c.App.Timezone, err)
	}

	return ValidateTimeSlots(c.Booking.TimeSlots)
}

// ValidateTimeSlots checks that every slot is a unique HH:MM value.
func ValidateTimeSlots(slots []string) error {
	if len(slots) == 0 {
		return errors.New("at least one booking time slot is required")
	}
	seen := make(map[string]bool, len(slots))
	for _, slot := range slots {
		if _, err := time.Parse(models.SlotLayout, slot); err != nil {
			return fmt.Errorf("invalid time slot %q", slot)
		}
		if seen[slot] {
			return fmt.Errorf("duplicate time slot %q", slot)
		}
		seen[slot] = true
	}
	return nil
}

// Location returns the shop time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "bengkel"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = models.DefaultTimezone
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = c.App.Name
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = models.DefaultTokenTTL
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = models.DefaultBcryptCost
	}
	if c.Auth.LoginRateLimit.Attempts == 0 {
		c.Auth.LoginRateLimit.Attempts = 10
	}
	if c.Auth.LoginRateLimit.Window == 0 {
		c.Auth.LoginRateLimit.Window = 15 * time.Minute
	}
	if c.Auth.Policy.ModelPath == "" {
		c.Auth.Policy.ModelPath = "configs/rbac_model.conf"
	}
	if c.Auth.Policy.PolicyPath == "" {
		c.Auth.Policy.PolicyPath = "configs/policy.csv"
	}
	if c.Auth.BootstrapAdmin.Username == "" {
		c.Auth.BootstrapAdmin.Username = "admin"
	}

	if len(c.Booking.TimeSlots) == 0 {
		c.Booking.TimeSlots = append([]string(nil), models.DefaultTimeSlots...)
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if len(c.API.CORS.AllowedOrigins) == 0 {
		c.API.CORS.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	if c.Google.CacheRefresh == 0 {
		c.Google.CacheRefresh = 10 * time.Minute
	}

	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelay == 0 {
		c.Worker.InitialDelay = 2 * time.Second
	}
	if c.Worker.MaxDelay == 0 {
		c.Worker.MaxDelay = time.Minute
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2 * time.Second
	}
}
