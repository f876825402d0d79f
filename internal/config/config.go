// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // APP_ENV: dev, test or prod
	Port     string // APP_PORT
	LogLevel string // LOG_LEVEL: zerolog level name

	StoreDriver string // STORE_DRIVER: memory, mongo or mysql
	MongoURL    string // MONGO_URL
	MongoDB     string // MONGO_DB
	DBUser      string // DB_USER, mysql driver only
	DBPass      string // DB_PASS
	DBHost      string // DB_HOST
	DBPort      string // DB_PORT
	DBName      string // DB_NAME

	JWTSecret    string   // JWT_SECRET, required
	AllowedRoles []string // AUTH_ROLES: comma separated role claims; empty accepts any caller

	RabbitURL   string // RABBITMQ_URL, empty runs the worker in process
	OutboxQueue string // OUTBOX_QUEUE

	RequestTimeout time.Duration // REQUEST_TIMEOUT
}

// Load reads configuration values from the environment. A missing
// JWT_SECRET or an unknown store driver stops the program.
func Load() Config {
	cfg := Config{
		Env:      envStr("APP_ENV", "dev"),
		Port:     envStr("APP_PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", DriverMongo)),
		MongoURL:    envStr("MONGO_URL", "mongodb://localhost:27017"),
		MongoDB:     envStr("MONGO_DB", "venue"),
		DBUser:      envStr("DB_USER", "root"),
		DBPass:      os.Getenv("DB_PASS"),
		DBHost:      envStr("DB_HOST", "localhost"),
		DBPort:      envStr("DB_PORT", "3306"),
		DBName:      envStr("DB_NAME", "venue"),

		JWTSecret:    must("JWT_SECRET"),
		AllowedRoles: envList("AUTH_ROLES"),

		RabbitURL:   os.Getenv("RABBITMQ_URL"),
		OutboxQueue: envStr("OUTBOX_QUEUE", "reservation.mutations"),

		RequestTimeout: envDur("REQUEST_TIMEOUT", 15*time.Second),
	}
	switch cfg.StoreDriver {
	case DriverMemory, DriverMongo, DriverMySQL:
	default:
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("unknown STORE_DRIVER")
	}
	return cfg
}

// IsDev reports whether the process runs in a development environment.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development" || c.Env == "local"
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envList(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
