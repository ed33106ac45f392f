// Package config loads application configuration from environment
// variables. A .env file, when present, is loaded by cmd/server first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-seat-booking/internal/database"
	"github.com/iliyamo/cinema-seat-booking/internal/errs"
)

// Config holds the server settings. Each field corresponds to an
// environment variable.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to verify customer access tokens
	AccessTTLMin int    // access token time-to-live in minutes, used by the token helper
}

// Load reads the server settings. Every missing or malformed required
// variable is reported in one error.
func Load() (Config, error) {
	var r required
	cfg := Config{
		Env:          r.must("APP_ENV"),
		Port:         r.must("APP_PORT"),
		DBUser:       r.must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       r.must("DB_HOST"),
		DBPort:       r.must("DB_PORT"),
		DBName:       r.must("DB_NAME"),
		JWTSecret:    r.must("JWT_SECRET"),
		AccessTTLMin: r.mustInt("ACCESS_TOKEN_TTL_MIN"),
	}
	return cfg, r.err()
}

// Database returns the connection options for database.Open.
func (c Config) Database() database.Options {
	return database.Options{User: c.DBUser, Password: c.DBPass, Host: c.DBHost, Port: c.DBPort, Name: c.DBName}
}

// required collects missing variables instead of exiting on the first one.
type required struct {
	missing []string
	invalid []string
}

func (r *required) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *required) mustInt(key string) int {
	s := r.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.invalid = append(r.invalid, fmt.Sprintf("%s=%q", key, s))
	}
	return n
}

func (r *required) err() error {
	var parts []string
	if len(r.missing) > 0 {
		parts = append(parts, "missing required env vars: "+strings.Join(r.missing, ", "))
	}
	if len(r.invalid) > 0 {
		parts = append(parts, "invalid int values: "+strings.Join(r.invalid, ", "))
	}
	if len(parts) == 0 {
		return nil
	}
	return errs.Newf("config: %s", strings.Join(parts, "; "))
}
