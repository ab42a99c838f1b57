// Package config loads abbreviation-service configuration from environment
// variables prefixed with CHAMICORE_ABBREV_.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr        = ":5000"
	defaultDBDriver          = "sqlite"
	defaultDSN               = "abbreviations.db"
	defaultCSRFTTL           = time.Hour
	defaultShutdownTimeout   = 15 * time.Second
	defaultNATSSubjectPrefix = "chamicore.abbrev"

	// DevSecretKey signs anti-forgery tokens when DevMode is on and no
	// secret was configured. Never use it in production.
	DevSecretKey = "chamicore-abbrev-dev-secret"
)

// Config holds service configuration values.
type Config struct {
	ListenAddr string
	DBDriver   string
	DBDSN      string
	SecretKey  string
	LogLevel   string

	DevMode        bool
	MetricsEnabled bool
	SeedOnStartup  bool
	SecureCookies  bool

	CSRFTTL         time.Duration
	ShutdownTimeout time.Duration

	// NATSURL enables change events when non-empty.
	NATSURL           string
	NATSSubjectPrefix string
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:        envOrDefault("CHAMICORE_ABBREV_LISTEN_ADDR", defaultListenAddr),
		DBDriver:          strings.ToLower(strings.TrimSpace(envOrDefault("CHAMICORE_ABBREV_DB_DRIVER", defaultDBDriver))),
		DBDSN:             strings.TrimSpace(envOrDefault("CHAMICORE_ABBREV_DB_DSN", defaultDSN)),
		SecretKey:         os.Getenv("CHAMICORE_ABBREV_SECRET_KEY"),
		LogLevel:          strings.ToLower(envOrDefault("CHAMICORE_ABBREV_LOG_LEVEL", "info")),
		DevMode:           envBool("CHAMICORE_ABBREV_DEV_MODE", false),
		MetricsEnabled:    envBool("CHAMICORE_ABBREV_METRICS_ENABLED", true),
		SeedOnStartup:     envBool("CHAMICORE_ABBREV_SEED_ON_STARTUP", false),
		SecureCookies:     envBool("CHAMICORE_ABBREV_SECURE_COOKIES", false),
		CSRFTTL:           envPositiveDuration("CHAMICORE_ABBREV_CSRF_TTL", defaultCSRFTTL),
		ShutdownTimeout:   envPositiveDuration("CHAMICORE_ABBREV_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		NATSURL:           strings.TrimSpace(os.Getenv("CHAMICORE_ABBREV_NATS_URL")),
		NATSSubjectPrefix: strings.Trim(strings.TrimSpace(envOrDefault("CHAMICORE_ABBREV_NATS_SUBJECT_PREFIX", defaultNATSSubjectPrefix)), "."),
	}

	switch cfg.DBDriver {
	case "sqlite", "sqlite3":
		cfg.DBDriver = "sqlite"
	case "postgres", "postgresql":
		cfg.DBDriver = "postgres"
	default:
		return Config{}, fmt.Errorf("CHAMICORE_ABBREV_DB_DRIVER: unsupported driver %q (want sqlite or postgres)", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("CHAMICORE_ABBREV_DB_DSN is required")
	}
	if cfg.SecretKey == "" {
		if !cfg.DevMode {
			return Config{}, fmt.Errorf("CHAMICORE_ABBREV_SECRET_KEY is required unless CHAMICORE_ABBREV_DEV_MODE is set")
		}
		cfg.SecretKey = DevSecretKey
	}
	if cfg.NATSSubjectPrefix == "" {
		cfg.NATSSubjectPrefix = defaultNATSSubjectPrefix
	}

	return cfg, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		switch strings.ToLower(v) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		default:
			return defaultVal
		}
	}
	return b
}

func envPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}
