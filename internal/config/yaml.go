package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength is the minimum HS256 key size in bytes (256 bits).
const MinJWTSecretLength = 32

// AppConfig represents the top-level loyalbridge configuration file. The
// same struct is filled from viper (file + LOYALBRIDGE_* env + flags) and
// written out by `config init`.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Redis   RedisConfig   `yaml:"redis" mapstructure:"redis"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// AuthConfig controls token issuance, two-factor and revocation settings.
type AuthConfig struct {
	JWTSecret          string          `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	AccessTTL          time.Duration   `yaml:"access_ttl" mapstructure:"access_ttl"`
	RefreshTTL         time.Duration   `yaml:"refresh_ttl" mapstructure:"refresh_ttl"`
	EmailDomain        string          `yaml:"email_domain" mapstructure:"email_domain"`
	BcryptCost         int             `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	LoginRatePerMinute int             `yaml:"login_rate_per_minute" mapstructure:"login_rate_per_minute"`
	BlacklistRetention time.Duration   `yaml:"blacklist_retention" mapstructure:"blacklist_retention"`
	PruneSchedule      string          `yaml:"prune_schedule" mapstructure:"prune_schedule"`
	TwoFactor          TwoFactorConfig `yaml:"two_factor" mapstructure:"two_factor"`
}

// TwoFactorConfig selects which logins must pass an OTP challenge.
type TwoFactorConfig struct {
	Mode        string        `yaml:"mode" mapstructure:"mode"` // off, always, roles
	Roles       []string      `yaml:"roles" mapstructure:"roles"`
	OTPTTL      time.Duration `yaml:"otp_ttl" mapstructure:"otp_ttl"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	ExposeCode  bool          `yaml:"expose_code" mapstructure:"expose_code"` // development only
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`
	DSN          string `yaml:"dsn" mapstructure:"dsn"`
	DataDir      string `yaml:"data_dir" mapstructure:"data_dir"`
	SeedDefaults bool   `yaml:"seed_defaults" mapstructure:"seed_defaults"`
}

// RedisConfig enables the shared challenge and revocation stores. Leave
// Addr empty to keep them in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultAppConfig returns an AppConfig pre-filled with sensible defaults.
// The JWT secret is left empty and must be configured.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:3001",
			},
		},
		Auth: AuthConfig{
			AccessTTL:          30 * time.Minute,
			RefreshTTL:         7 * 24 * time.Hour,
			EmailDomain:        "loyalbridge.io",
			BcryptCost:         10,
			LoginRatePerMinute: 20,
			BlacklistRetention: 24 * time.Hour,
			PruneSchedule:      "@every 10m",
			TwoFactor: TwoFactorConfig{
				Mode:   "off",
				OTPTTL: 5 * time.Minute,
			},
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
		},
		Redis: RedisConfig{
			Prefix: "loyalbridge",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadAppConfig overlays the values known to v onto the defaults.
func LoadAppConfig(v *viper.Viper) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// LoadYAMLConfig reads and parses a YAML configuration file on top of the
// defaults. Environment variables referenced as ${VAR_NAME} in the file are
// expanded before parsing.
func LoadYAMLConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultAppConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *AppConfig) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength))
	}
	if c.Auth.AccessTTL <= 0 {
		errs = append(errs, errors.New("auth.access_ttl must be positive"))
	}
	if c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("auth.refresh_ttl must be positive"))
	}
	if c.Auth.TwoFactor.OTPTTL <= 0 {
		errs = append(errs, errors.New("auth.two_factor.otp_ttl must be positive"))
	}
	switch c.Auth.TwoFactor.Mode {
	case "off", "always", "roles", "":
	default:
		errs = append(errs, fmt.Errorf("auth.two_factor.mode %q must be off, always or roles", c.Auth.TwoFactor.Mode))
	}
	if _, err := sqlDriverName(c.Store.Driver); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultAppConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
