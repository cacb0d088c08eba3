package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	JWTSigningKey       string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer           string        `mapstructure:"JWT_ISSUER"`
	JWTAudience         string        `mapstructure:"JWT_AUDIENCE"`
	ClinicTimezone      string        `mapstructure:"CLINIC_TIMEZONE"`
	PastBookingGrace    time.Duration `mapstructure:"PAST_BOOKING_GRACE"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	FirebaseProjectID   string        `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseCredentials string        `mapstructure:"FIREBASE_CREDENTIALS"`
	DevEmployeeID       string        `mapstructure:"DEV_EMPLOYEE_ID"`
	DevClinicID         string        `mapstructure:"DEV_CLINIC_ID"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"JWT_SIGNING_KEY", "JWT_ISSUER", "JWT_AUDIENCE",
	"CLINIC_TIMEZONE", "PAST_BOOKING_GRACE", "CORS_ORIGINS", "RATE_LIMIT_RPS", "REQUEST_TIMEOUT",
	"FIREBASE_PROJECT_ID", "FIREBASE_CREDENTIALS", "DEV_EMPLOYEE_ID", "DEV_CLINIC_ID",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CLINIC_TIMEZONE", "Asia/Ho_Chi_Minh")
	v.SetDefault("PAST_BOOKING_GRACE", "2m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves CLINIC_TIMEZONE. All "same calendar day" and "today"
// rules are evaluated in this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// Level parses LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// FirebaseEnabled reports whether the Firebase identity provider is configured.
func (c *Config) FirebaseEnabled() bool {
	return c.FirebaseProjectID != ""
}

// Validate checks that the configuration is safe to run. Outside development
// JWT_SIGNING_KEY must be set so bearer tokens can be verified.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.JWTSigningKey != "" && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 bytes, got %d", len(c.JWTSigningKey))
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.PastBookingGrace < 0 {
		return fmt.Errorf("PAST_BOOKING_GRACE must not be negative, got %s", c.PastBookingGrace)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool size: DB_MIN_CONNS=%d DB_MAX_CONNS=%d", c.DBMinConns, c.DBMaxConns)
	}
	for name, raw := range map[string]string{"DEV_EMPLOYEE_ID": c.DevEmployeeID, "DEV_CLINIC_ID": c.DevClinicID} {
		if raw == "" {
			continue
		}
		if _, err := uuid.Parse(raw); err != nil {
			return fmt.Errorf("%s is not a valid uuid: %w", name, err)
		}
	}
	return nil
}
