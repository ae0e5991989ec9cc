package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minTokenSecretLen = 32

type RateLimits struct {
	Login    int
	Register int
	Payment  int
	General  int
}

type Config struct {
	Env         string
	Addr        string
	LogLevel    string
	DBDSN       string
	MetricsAddr string
	TrustProxy  bool

	TokenSecret string
	TokenTTL    time.Duration

	Argon2Time      uint32
	Argon2MemoryKiB uint32

	LockoutMaxAttempts int
	LockoutDuration    time.Duration

	RateLimits RateLimits

	OwnerBootstrapContact  string
	OwnerBootstrapPassword string
}

// Load merges the dotenv file named by APP_ENV_FILE (default .env) into the
// process environment and then reads the configuration from it.
func Load() (Config, error) {
	path := os.Getenv("APP_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := loadDotEnvFile(path, os.Setenv, os.Getenv); err != nil {
		return Config{}, err
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:         getenv("APP_ENV"),
		Addr:        getenv("APP_ADDR"),
		LogLevel:    strings.ToLower(strings.TrimSpace(getenv("APP_LOG_LEVEL"))),
		DBDSN:       getenv("APP_DB_DSN"),
		MetricsAddr: getenv("APP_METRICS_ADDR"),
		TokenSecret: getenv("APP_TOKEN_SECRET"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return Config{}, errors.New("APP_LOG_LEVEL: must be one of debug, info, warn, error")
	}

	var err error
	if raw := strings.TrimSpace(getenv("APP_TRUST_PROXY")); raw != "" {
		cfg.TrustProxy, err = strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_TRUST_PROXY: %w", err)
		}
	}

	if cfg.TokenTTL, err = durationVar(getenv, "APP_TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.LockoutDuration, err = durationVar(getenv, "APP_LOCKOUT_DURATION", 30*time.Minute); err != nil {
		return Config{}, err
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"APP_LOCKOUT_MAX_ATTEMPTS", 5, &cfg.LockoutMaxAttempts},
		{"APP_RATE_LIMIT_LOGIN", 5, &cfg.RateLimits.Login},
		{"APP_RATE_LIMIT_REGISTER", 3, &cfg.RateLimits.Register},
		{"APP_RATE_LIMIT_PAYMENT", 10, &cfg.RateLimits.Payment},
		{"APP_RATE_LIMIT_GENERAL", 60, &cfg.RateLimits.General},
	}
	for _, v := range ints {
		if *v.dst, err = positiveIntVar(getenv, v.key, v.def); err != nil {
			return Config{}, err
		}
	}

	argonTime, err := positiveIntVar(getenv, "APP_PASSWORD_ARGON2_TIME", 3)
	if err != nil {
		return Config{}, err
	}
	argonMem, err := positiveIntVar(getenv, "APP_PASSWORD_ARGON2_MEMORY_KIB", 64*1024)
	if err != nil {
		return Config{}, err
	}
	if argonMem < 8*1024 {
		return Config{}, errors.New("APP_PASSWORD_ARGON2_MEMORY_KIB: must be at least 8192")
	}
	cfg.Argon2Time = uint32(argonTime)
	cfg.Argon2MemoryKiB = uint32(argonMem)

	cfg.OwnerBootstrapContact = strings.TrimSpace(getenv("APP_OWNER_BOOTSTRAP_CONTACT"))
	cfg.OwnerBootstrapPassword = getenv("APP_OWNER_BOOTSTRAP_PASSWORD")
	if cfg.OwnerBootstrapPassword != "" && cfg.OwnerBootstrapContact == "" {
		return Config{}, errors.New("APP_OWNER_BOOTSTRAP_CONTACT: required when APP_OWNER_BOOTSTRAP_PASSWORD is set")
	}

	if cfg.TokenSecret != "" && len(cfg.TokenSecret) < minTokenSecretLen {
		return Config{}, fmt.Errorf("APP_TOKEN_SECRET: must be at least %d bytes", minTokenSecretLen)
	}

	if cfg.IsProd() {
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if cfg.TokenSecret == "" {
			return Config{}, errors.New("APP_TOKEN_SECRET: required in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func durationVar(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}

func positiveIntVar(getenv func(string) string, key string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return n, nil
}
