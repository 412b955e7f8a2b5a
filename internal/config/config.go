package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/validation"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when AUTOROI_CONFIG_PATH is unset.
const DefaultPath = "config/autoroi.yaml"

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Auth     AuthConfig           `yaml:"auth"`
	Log      LogConfig            `yaml:"log"`
	Storage  StorageConfig        `yaml:"storage"`
	Engine   EngineConfig         `yaml:"engine"`
	Defaults types.GlobalDefaults `yaml:"defaults"`
	Backup   BackupConfig         `yaml:"backup"`
	Watch    WatchConfig          `yaml:"watch"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig points the session at a remote storage layer. When BaseURL
// is empty the local SQLite store serves sessions directly.
type StorageConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"-"` // env-only, never in YAML
	Timeout Duration `yaml:"timeout"`
}

// EngineConfig contains recalculation settings.
type EngineConfig struct {
	HorizonMonths int      `yaml:"horizon_months"`
	Debounce      Duration `yaml:"debounce"`
}

// BackupConfig contains dataset backup settings. An empty Bucket disables
// uploads.
type BackupConfig struct {
	Interval  Duration `yaml:"interval"`
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	UseSSL    *bool    `yaml:"use_ssl"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	URLExpiry Duration `yaml:"url_expiry"`
}

// WatchConfig names a dataset file whose changes are imported into
// Organization and trigger a recompute.
type WatchConfig struct {
	DatasetPath  string `yaml:"dataset_path"`
	Organization string `yaml:"organization"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Path returns the config file location: AUTOROI_CONFIG_PATH or DefaultPath.
func Path() string {
	return getEnv("AUTOROI_CONFIG_PATH", DefaultPath)
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, Path()); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOffline is Load for commands that never serve HTTP, so no API key
// is required.
func LoadOffline() (*Config, error) {
	cfg := newDefaults()
	if err := loadYAMLFile(cfg, Path()); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := cfg.validateEngine(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing, explicit config paths and hot reload.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	useSSL := true
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/autoroi.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Timeout: Duration(30 * time.Second),
		},
		Engine: EngineConfig{
			HorizonMonths: 36,
			Debounce:      Duration(0),
		},
		Defaults: types.StandardDefaults(),
		Backup: BackupConfig{
			Interval:  Duration(1 * time.Hour),
			Region:    "us-east-1",
			UseSSL:    &useSSL,
			URLExpiry: Duration(15 * time.Minute),
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("AUTOROI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("AUTOROI_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("AUTOROI_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("AUTOROI_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	if v := os.Getenv("AUTOROI_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth
	if v := os.Getenv("AUTOROI_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Log
	if v := os.Getenv("AUTOROI_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AUTOROI_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Storage
	if v := os.Getenv("AUTOROI_STORAGE_URL"); v != "" {
		cfg.Storage.BaseURL = v
	}
	if v := os.Getenv("AUTOROI_STORAGE_API_KEY"); v != "" {
		cfg.Storage.APIKey = v
	}
	envDuration("AUTOROI_STORAGE_TIMEOUT", &cfg.Storage.Timeout)

	// Engine
	if v := os.Getenv("AUTOROI_HORIZON_MONTHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.HorizonMonths = n
		}
	}
	envDuration("AUTOROI_DEBOUNCE", &cfg.Engine.Debounce)

	// Defaults
	envFloat("AUTOROI_AVERAGE_HOURLY_WAGE", &cfg.Defaults.AverageHourlyWage)
	envFloat("AUTOROI_DISCOUNT_RATE", &cfg.Defaults.Financial.DiscountRate)
	envFloat("AUTOROI_INFLATION_RATE", &cfg.Defaults.Financial.InflationRate)
	envFloat("AUTOROI_RISK_PREMIUM_FACTOR", &cfg.Defaults.Financial.RiskPremiumFactor)
	if v := os.Getenv("AUTOROI_GLOBAL_RISK_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Defaults.Financial.GlobalRiskFactor = &f
		}
	}

	// Backup
	envDuration("AUTOROI_BACKUP_INTERVAL", &cfg.Backup.Interval)
	if v := os.Getenv("AUTOROI_BACKUP_BUCKET"); v != "" {
		cfg.Backup.Bucket = v
	}
	if v := os.Getenv("AUTOROI_S3_ENDPOINT"); v != "" {
		cfg.Backup.Endpoint = v
	}
	if v := os.Getenv("AUTOROI_S3_REGION"); v != "" {
		cfg.Backup.Region = v
	}
	if v := os.Getenv("AUTOROI_S3_ACCESS_KEY"); v != "" {
		cfg.Backup.AccessKey = v
	}
	if v := os.Getenv("AUTOROI_S3_SECRET_KEY"); v != "" {
		cfg.Backup.SecretKey = v
	}
	if v := os.Getenv("AUTOROI_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Backup.UseSSL = &useSSL
	}
	envDuration("AUTOROI_S3_URL_EXPIRY", &cfg.Backup.URLExpiry)

	// Watch
	if v := os.Getenv("AUTOROI_WATCH_DATASET"); v != "" {
		cfg.Watch.DatasetPath = v
	}
	if v := os.Getenv("AUTOROI_WATCH_ORG"); v != "" {
		cfg.Watch.Organization = v
	}
}

// validate checks that configuration values are usable.
// In dev mode (AUTOROI_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if c.Backup.Bucket != "" && c.Backup.Endpoint == "" {
		return errors.New("backup.endpoint is required when backup.bucket is set")
	}
	if c.Watch.DatasetPath != "" {
		if verr := validation.ValidateOrganizationID("watch.organization", c.Watch.Organization); verr != nil {
			return verr
		}
	}

	if os.Getenv("AUTOROI_DEV_MODE") == "true" {
		return nil
	}
	if c.Auth.APIKey == "" {
		return errors.New("AUTOROI_API_KEY is required")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if verr := validation.ValidateHorizon("engine.horizon_months", c.Engine.HorizonMonths); verr != nil {
		return verr
	}
	if c.Engine.Debounce < 0 {
		return errors.New("engine.debounce must not be negative")
	}
	return nil
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
