package config

import (
	"github.com/kelseyhightower/envconfig"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
)

// TokenConfig is the subset of settings needed to mint access tokens
// outside the server.
type TokenConfig struct {
	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"30"`
}

// LoadTokenConfig reads TokenConfig from the environment.
func LoadTokenConfig() (TokenConfig, error) {
	var c TokenConfig
	if err := envconfig.Process("", &c); err != nil {
		return TokenConfig{}, errs.Wrap(err, "failed to process token env config")
	}
	if c.JWTSecret == "" {
		return TokenConfig{}, errs.Validation("JWT_SECRET must not be empty")
	}
	if c.AccessTTLMin <= 0 {
		return TokenConfig{}, errs.Validation("ACCESS_TOKEN_TTL_MIN must be positive")
	}
	return c, nil
}
