// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strings"
)

// Config holds all runtime configuration. Required variables are
// enforced by must(); everything else degrades gracefully when
// unset (no broker means no events, no database means no audit
// ledger, no secret means unsigned scan tokens).
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	// RequiredFields are the issuance form fields that must be
	// non-empty, beyond name and seatId which are always required.
	// The descriptive field set varies by deployment (a bus ticket
	// collects different fields than a train ticket); this is the
	// single knob replacing per-variant code paths.
	RequiredFields []string

	// SeatIDs seeds the seat map on boot; already existing seats
	// are left untouched.
	SeatIDs []string

	// TokenSecret enables HS256-signed scan tokens when non-empty.
	TokenSecret string

	// AMQPURL is the broker for gate events; empty disables
	// publishing and the consumer.
	AMQPURL string

	// MySQL audit ledger; audit is disabled when DBHost is empty.
	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string
}

// Load reads the environment into a Config. Missing required
// variables abort startup with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		RequiredFields: splitList(getenv("ISSUE_REQUIRED_FIELDS", "name,destination,date")),
		SeatIDs:        splitList(os.Getenv("SEAT_IDS")),
		TokenSecret:    os.Getenv("TOKEN_SIGNING_SECRET"),
		AMQPURL:        amqpURL(),
		DBUser:         os.Getenv("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         getenv("DB_PORT", "3306"),
		DBName:         getenv("DB_NAME", "rail_ticket_gate"),
	}
}

// AuditEnabled reports whether the MySQL ledger is configured.
func (c Config) AuditEnabled() bool { return c.DBHost != "" && c.DBUser != "" }

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitList parses a comma separated list, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
