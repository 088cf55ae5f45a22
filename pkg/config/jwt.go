package config

import (
	"time"
)

// JWTConfig holds the settings for verifying and minting access tokens.
type JWTConfig struct {
	Secret      string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer      string `env:"JWT_ISSUER" env-default:"simple-2fa"`
	TokenExpiry string `env:"ACCESS_TOKEN_EXPIRY" env-default:"PT1H"`
}

// ParseTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(j.TokenExpiry)
}
