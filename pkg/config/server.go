package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-2fa/pkg/ratelimit"
)

// PersistenceConfig selects the 2FA record store.
type PersistenceConfig struct {
	Type    string `env:"TWOFA_PERSISTENCE" env-default:"memory"` // memory, file or postgres
	DataDir string `env:"TWOFA_DATA_DIR" env-default:"./data"`
}

// TOTPConfig controls authenticator enrollment and delivered codes.
type TOTPConfig struct {
	Issuer     string `env:"TWOFA_TOTP_ISSUER" env-default:"simple-2fa"`
	CodePeriod string `env:"TWOFA_CODE_PERIOD" env-default:"PT5M"`
	QRSize     int    `env:"TWOFA_QR_SIZE" env-default:"200"`
}

// ParseCodePeriod returns how long a delivered code stays valid, in seconds.
func (t TOTPConfig) ParseCodePeriod() (uint, error) {
	return parsePeriodSeconds(t.CodePeriod)
}

// SendRateLimitConfig throttles code delivery per login and method.
type SendRateLimitConfig struct {
	Capacity int    `env:"TWOFA_SEND_LIMIT_CAPACITY" env-default:"3"`
	Interval string `env:"TWOFA_SEND_LIMIT_INTERVAL" env-default:"PT1M"`
}

// RefillRate is the number of sends regained per second.
func (s SendRateLimitConfig) RefillRate() (float64, error) {
	d, err := parseDurationISO8601(s.Interval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid send limit interval %q: must be positive", s.Interval)
	}
	return 1 / d.Seconds(), nil
}

// HTTPRateLimitConfig limits requests to the 2FA routes per client IP.
type HTTPRateLimitConfig struct {
	Enabled    bool    `env:"RATELIMIT_ENABLED" env-default:"true"`
	Capacity   int     `env:"RATELIMIT_CAPACITY" env-default:"60"`
	RefillRate float64 `env:"RATELIMIT_REFILL_RATE" env-default:"1.0"`
}

// ToRateLimitConfig converts the config to a ratelimit.Config
func (h HTTPRateLimitConfig) ToRateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Capacity:   h.Capacity,
		RefillRate: h.RefillRate,
		BucketTTL:  time.Hour,
	}
}

// ServerConfig is the configuration of the reference backend.
type ServerConfig struct {
	AppConfig     app.AppConfig
	Enabled       bool `env:"TWOFA_ENABLED" env-default:"true"`
	Persistence   PersistenceConfig
	Database      DatabaseConfig
	Email         EmailConfig
	Twilio        TwilioConfig
	JWT           JWTConfig
	TOTP          TOTPConfig
	SendRateLimit SendRateLimitConfig
	HTTPRateLimit HTTPRateLimitConfig
}

// LoadServerConfig reads ServerConfig from the environment and checks the
// values that cleanenv cannot.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to read server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate checks that periods parse and the persistence type is known.
func (c ServerConfig) Validate() error {
	switch c.Persistence.Type {
	case "memory", "file", "postgres", "postgresql":
	default:
		return fmt.Errorf("invalid TWOFA_PERSISTENCE %q: must be one of memory, file, postgres", c.Persistence.Type)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if _, err := c.TOTP.ParseCodePeriod(); err != nil {
		return fmt.Errorf("invalid TWOFA_CODE_PERIOD: %w", err)
	}
	if c.SendRateLimit.Capacity < 1 {
		return fmt.Errorf("invalid TWOFA_SEND_LIMIT_CAPACITY %d: must be at least 1", c.SendRateLimit.Capacity)
	}
	if _, err := c.SendRateLimit.RefillRate(); err != nil {
		return fmt.Errorf("invalid TWOFA_SEND_LIMIT_INTERVAL: %w", err)
	}
	return nil
}
