package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "tunelink/pkg/platform/strings"
)

// Config gathers every process-level setting so main stays lean. Both the
// coordinator API and the checker worker read from the same struct; each uses
// the sections it needs.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Checker  CheckerConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// PostgresConfig points at the event-log database. An empty URL means the
// in-memory stores are used (local runs and unit tests).
type PostgresConfig struct {
	URL string
}

// RedisConfig configures the shared cache used for verification locks and
// challenge tokens.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the message bus carrying verification commands and
// results.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

// CheckerConfig configures the remote proof checker: where the platform APIs
// live and which API credentials may be used to call them.
type CheckerConfig struct {
	// Credentials is a comma separated list of id:secret pairs tried in order.
	Credentials []string
	APIBaseURL  string
	AuthURL     string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:            envOr("TUNELINK_ADDR", ":8080"),
			ShutdownTimeout: envDurationOr("TUNELINK_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("TUNELINK_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("TUNELINK_REDIS_URL"),
			PoolSize:     envIntOr("TUNELINK_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("TUNELINK_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("TUNELINK_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("TUNELINK_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("TUNELINK_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitNonEmpty(envOr("TUNELINK_KAFKA_BROKERS", "localhost:9092")),
			ConsumerGroup: envOr("TUNELINK_KAFKA_GROUP", "tunelink"),
		},
		Checker: CheckerConfig{
			Credentials: splitNonEmpty(os.Getenv("TUNELINK_CHECKER_CREDENTIALS")),
			APIBaseURL:  envOr("TUNELINK_CHECKER_API_URL", "https://api.spotify.com/v1"),
			AuthURL:     envOr("TUNELINK_CHECKER_AUTH_URL", "https://accounts.spotify.com/api/token"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	return pstrings.DedupeAndTrim(strings.Split(s, ","))
}
