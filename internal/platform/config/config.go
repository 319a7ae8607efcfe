// Package config reads the server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "kycbuster/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	SessionIdleTTL  time.Duration
	VideoMaxBytes   int
	AdminRecent     int
	RateLimit       RateLimit

	Analysis Analysis
	Database Database
	Redis    RedisConfig
	Mirror   Mirror
	Auth     Auth
}

// Analysis configures the external analysis capability. An empty APIKey
// leaves every analysis call Unconfigured; empty model and URL fields fall
// back to the client defaults.
type Analysis struct {
	APIKey     string
	BaseURL    string
	Model      string
	VideoModel string
	Timeout    time.Duration
}

// Database selects the record store. An empty URL keeps records in memory.
type Database struct {
	Driver string
	URL    string
}

// RedisConfig backs the idempotency middleware. An empty URL disables it.
type RedisConfig struct {
	URL            string
	PoolSize       int
	MinIdleConns   int
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdempotencyTTL time.Duration
}

// Mirror configures the optional Kafka summary sink. No brokers disables it.
type Mirror struct {
	Brokers []string
	Topic   string
}

// RateLimit bounds state-changing requests per user. A zero limit disables it.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
}

const (
	DefaultMirrorTopic = "kyc.records.finalized"
	devSigningKey      = "dev-secret-key-change-in-production"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		d, err := getDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return d
	}
	integer := func(key string, def int) int {
		n, err := getInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return n
	}

	cfg := Server{
		Addr:            getEnv("KYC_ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		SessionIdleTTL:  duration("SESSION_IDLE_TTL", 30*time.Minute),
		VideoMaxBytes:   integer("VIDEO_MAX_BYTES", 20<<20),
		AdminRecent:     integer("ADMIN_RECENT_LIMIT", 10),
		RateLimit: RateLimit{
			Limit:  integer("RATE_LIMIT_WRITES", 30),
			Window: duration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Analysis: Analysis{
			APIKey:     os.Getenv("ANALYSIS_API_KEY"),
			BaseURL:    os.Getenv("ANALYSIS_BASE_URL"),
			Model:      os.Getenv("ANALYSIS_MODEL"),
			VideoModel: os.Getenv("ANALYSIS_VIDEO_MODEL"),
			Timeout:    duration("ANALYSIS_TIMEOUT", 60*time.Second),
		},
		Database: Database{
			Driver: getEnv("DATABASE_DRIVER", "postgres"),
			URL:    os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:            os.Getenv("REDIS_URL"),
			PoolSize:       integer("REDIS_POOL_SIZE", 10),
			MinIdleConns:   integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:    duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:    duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:   duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			IdempotencyTTL: duration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Mirror: Mirror{
			Brokers: platformstrings.SplitList(os.Getenv("MIRROR_BROKERS"), ","),
			Topic:   getEnv("MIRROR_TOPIC", DefaultMirrorTopic),
		},
		Auth: Auth{
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:     getEnv("JWT_ISSUER", "kycbuster"),
		},
	}
	switch cfg.Database.Driver {
	case "postgres", "sqlite3":
	default:
		errs = append(errs, fmt.Sprintf("DATABASE_DRIVER must be postgres or sqlite3, got %q", cfg.Database.Driver))
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat))
	}
	if cfg.VideoMaxBytes <= 0 {
		errs = append(errs, "VIDEO_MAX_BYTES must be positive")
	}
	if cfg.RateLimit.Limit < 0 {
		errs = append(errs, "RATE_LIMIT_WRITES must not be negative")
	}
	if cfg.RateLimit.Window <= 0 {
		errs = append(errs, "RATE_LIMIT_WINDOW must be positive")
	}
	if cfg.Analysis.Timeout <= 0 {
		errs = append(errs, "ANALYSIS_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// UsingDevSigningKey reports whether JWT_SIGNING_KEY was left unset.
func (s Server) UsingDevSigningKey() bool {
	return s.Auth.JWTSigningKey == devSigningKey
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

