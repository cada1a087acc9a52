// Package config centralizes the environment variables read by the binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every parameter needed by the API and the sweeper.
type Config struct {
	HTTPAddress string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RollupKeyPrefix string

	ThrottleEnabled       bool
	ThrottleMaxJoins      int
	ThrottleWindowSeconds int
	ThrottleKeyPrefix     string

	AutoMigrate bool

	SweepInterval         time.Duration
	RetentionDays         int
	RetentionInterval     time.Duration
	SweeperMetricsAddress string

	// AdminUserIDs hold elevated actors allowed to draw/cancel lotteries they
	// did not create; in production the chat adapter supplies its own check.
	AdminUserIDs []int64
}

func Load() (Config, error) {
	// Defaults favor local runs; environment overrides cover Docker/K8s.
	cfg := Config{
		HTTPAddress:           getEnv("HTTP_ADDRESS", ":8080"),
		PostgresHost:          getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:          getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:          getEnv("POSTGRES_USER", "giveaway"),
		PostgresPassword:      getEnv("POSTGRES_PASSWORD", "giveaway"),
		PostgresDB:            getEnv("POSTGRES_DB", "giveaways"),
		PostgresSSLMode:       getEnv("POSTGRES_SSLMODE", "disable"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RollupKeyPrefix:       getEnv("REDIS_ROLLUP_PREFIX", "rollup"),
		ThrottleEnabled:       getEnvAsBool("JOIN_THROTTLE_ENABLED", true),
		ThrottleMaxJoins:      getEnvAsInt("JOIN_THROTTLE_MAX", 10),
		ThrottleWindowSeconds: getEnvAsInt("JOIN_THROTTLE_WINDOW", 60),
		ThrottleKeyPrefix:     getEnv("JOIN_THROTTLE_PREFIX", "throttle"),
		AutoMigrate:           getEnvAsBool("DB_AUTO_MIGRATE", true),
		SweepInterval:         time.Duration(getEnvAsInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		RetentionDays:         getEnvAsInt("RETENTION_DAYS", 90),
		RetentionInterval:     time.Duration(getEnvAsInt("RETENTION_INTERVAL_HOURS", 24)) * time.Hour,
		SweeperMetricsAddress: getEnv("SWEEPER_METRICS_ADDRESS", ":9090"),
	}

	dbStr := getEnv("REDIS_DB", "0")
	dbInt, err := strconv.Atoi(dbStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = dbInt

	admins, err := parseIDList(os.Getenv("ADMIN_USER_IDS"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid ADMIN_USER_IDS: %w", err)
	}
	cfg.AdminUserIDs = admins

	return cfg, nil
}

func (c Config) PostgresDSN() string {
	// DSN format stays compatible with GORM and migration tooling.
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch value {
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return true
	}
}
