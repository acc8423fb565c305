package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the CareNet settlement backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Name     string            `mapstructure:"name"`
	Options  map[string]string `mapstructure:"options"`
}

// AuthConfig captures access-token validation settings. Tokens are issued by
// the identity collaborator; this service only verifies them.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// BillingConfig bundles the settlement constants so tests and deployments can
// vary them without touching the services.
type BillingConfig struct {
	// CommissionRate is the platform's cut of a job's total price.
	CommissionRate float64 `mapstructure:"commission_rate"`
	// CaregiverShare is the fraction of post-commission revenue distributed
	// across caregiver assignments; the remainder is implicit agency margin.
	CaregiverShare float64 `mapstructure:"caregiver_share"`
	// EscrowFeeRate is the platform fee withheld on escrowed payments.
	EscrowFeeRate float64 `mapstructure:"escrow_fee_rate"`
	// InvoiceDueDays is the default payment window for new invoices.
	InvoiceDueDays int `mapstructure:"invoice_due_days"`
	// GracePeriodDays is the window after an invoice's due date before an
	// overdue invoice triggers an account lockout.
	GracePeriodDays int `mapstructure:"grace_period_days"`
}

// SweepConfig drives the overdue sweep scheduler.
type SweepConfig struct {
	Schedule string `mapstructure:"schedule"`
	// GuardFailOpen selects how the feature guard behaves when the lockout
	// lookup itself fails: true lets the request through, false denies it.
	GuardFailOpen bool `mapstructure:"guard_fail_open"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("CARENET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/carenet.sqlite")

	v.SetDefault("auth.jwt.issuer", "carenet")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("billing.commission_rate", 0.10)
	v.SetDefault("billing.caregiver_share", 0.80)
	v.SetDefault("billing.escrow_fee_rate", 0.05)
	v.SetDefault("billing.invoice_due_days", 7)
	v.SetDefault("billing.grace_period_days", 7)

	v.SetDefault("sweep.schedule", "@daily")
	v.SetDefault("sweep.guard_fail_open", true)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func validate(cfg *Config) error {
	b := cfg.Billing
	if b.CommissionRate < 0 || b.CommissionRate >= 1 {
		return fmt.Errorf("config: commission_rate %v out of range [0,1)", b.CommissionRate)
	}
	if b.CaregiverShare <= 0 || b.CaregiverShare > 1 {
		return fmt.Errorf("config: caregiver_share %v out of range (0,1]", b.CaregiverShare)
	}
	if b.EscrowFeeRate < 0 || b.EscrowFeeRate >= 1 {
		return fmt.Errorf("config: escrow_fee_rate %v out of range [0,1)", b.EscrowFeeRate)
	}
	if b.InvoiceDueDays <= 0 {
		return errors.New("config: invoice_due_days must be positive")
	}
	if b.GracePeriodDays < 0 {
		return errors.New("config: grace_period_days must not be negative")
	}
	return nil
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
