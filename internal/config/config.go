package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPAddr        string        `validate:"required"`
	Environment     string        `validate:"oneof=development test staging production"`
	LogLevel        string        `validate:"oneof=trace debug info warn error"`
	ServiceVersion  string
	Store           string        `validate:"oneof=postgres memory"`
	DatabaseURL     string        `validate:"required_if=Store postgres"`
	Workers         int           `validate:"gte=1,lte=64"`
	AllowlistPath   string
	AuthzModelPath  string
	AuthzPolicyPath string
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// Load reads an optional .env file (existing process env wins) and then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	workers, err := intFromEnv("PAYROLL_WORKERS", 4)
	if err != nil {
		return Config{}, err
	}
	shutdown, err := time.ParseDuration(getenvDefault("SHUTDOWN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("config: SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg := Config{
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		Environment:     strings.ToLower(getenvDefault("APP_ENV", "development")),
		LogLevel:        strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		ServiceVersion:  os.Getenv("SERVICE_VERSION"),
		Store:           strings.ToLower(getenvDefault("STORE", StorePostgres)),
		Workers:         workers,
		AllowlistPath:   os.Getenv("ALLOWLIST_PATH"),
		AuthzModelPath:  os.Getenv("AUTHZ_MODEL_PATH"),
		AuthzPolicyPath: os.Getenv("AUTHZ_POLICY_PATH"),
		ShutdownTimeout: shutdown,
	}
	if cfg.Store == StorePostgres {
		cfg.DatabaseURL = DatabaseDSNFromEnv()
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// DatabaseDSNFromEnv prefers DATABASE_URL and otherwise assembles a URL from DB_* variables.
func DatabaseDSNFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getenvDefault("DB_HOST", "127.0.0.1")
	port := getenvDefault("DB_PORT", "5432")
	user := getenvDefault("DB_USER", "app")
	pass := getenvDefault("DB_PASSWORD", "app")
	name := getenvDefault("DB_NAME", "payroll")
	sslmode := getenvDefault("DB_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

func intFromEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
