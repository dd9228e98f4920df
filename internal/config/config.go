package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"recipehub/internal/storage"
	"recipehub/internal/storage/s3"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultDatabaseURL    = "file:recipehub.db?_pragma=foreign_keys(1)"
	defaultJWTSecret      = "change-me-jwt-secret"
	defaultJWTTTL         = "24h"
	defaultUploadsDir     = "./uploads"
	defaultPublicPrefix   = "/uploads"
	defaultProcessTimeout = "30s"
	defaultConcurrency    = "1"
	defaultMaxPixels      = "50000000"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string
	JWTSecret   string
	JWTTTL      time.Duration
	LogLevel    string

	UploadsDir         string
	PublicPrefix       string
	TargetsFile        string
	ProcessTimeout     time.Duration
	ProcessConcurrency int
	MaxImagePixels     int
	EnforceDimensions  bool

	CORSAllowedOrigins []string
	MetricsEnabled     bool
	MetricsToken       string
	Storage            storage.Config
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadFromEnv()
}

// LoadFromEnv builds the config from environment variables only.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")
	cfg.UploadsDir = strings.TrimSpace(getEnv("UPLOADS_DIR", defaultUploadsDir))
	cfg.PublicPrefix = "/" + strings.Trim(getEnv("PUBLIC_PREFIX", defaultPublicPrefix), "/ ")
	cfg.TargetsFile = strings.TrimSpace(os.Getenv("UPLOAD_TARGETS_FILE"))
	cfg.EnforceDimensions = parseBoolEnv("ENFORCE_DIMENSIONS", "false")
	cfg.MetricsEnabled = parseBoolEnv("METRICS_ENABLED", "true")
	cfg.MetricsToken = strings.TrimSpace(os.Getenv("METRICS_TOKEN"))
	cfg.CORSAllowedOrigins = parseListEnv("CORS_ALLOWED_ORIGINS")

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.ProcessTimeout, err = parseDurationEnv("PROCESS_TIMEOUT", defaultProcessTimeout); err != nil {
		return nil, err
	}
	if cfg.ProcessConcurrency, err = parseIntEnv("PROCESS_CONCURRENCY", defaultConcurrency); err != nil {
		return nil, err
	}
	if cfg.MaxImagePixels, err = parseIntEnv("MAX_IMAGE_PIXELS", defaultMaxPixels); err != nil {
		return nil, err
	}

	cfg.Storage = storage.Config{
		Type: strings.ToLower(strings.TrimSpace(getEnv("STORAGE_TYPE", storage.TypeLocal))),
		S3: s3.Config{
			Endpoint:      strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			Region:        strings.TrimSpace(os.Getenv("S3_REGION")),
			Bucket:        strings.TrimSpace(os.Getenv("S3_BUCKET")),
			AccessKey:     strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
			SecretKey:     strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
			PathStyle:     parseBoolEnv("S3_PATH_STYLE", "false"),
			URLMode:       strings.TrimSpace(os.Getenv("S3_URL_MODE")),
			PublicBaseURL: strings.TrimSpace(os.Getenv("S3_PUBLIC_BASE_URL")),
		},
	}
	if cfg.Storage.S3.PresignExpiry, err = parseDurationEnv("S3_PRESIGN_EXPIRY", "168h"); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.UploadsDir == "" {
		return fmt.Errorf("UPLOADS_DIR must not be empty")
	}
	if cfg.PublicPrefix == "/" {
		return fmt.Errorf("PUBLIC_PREFIX must not be the site root")
	}
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.ProcessTimeout <= 0 {
		return fmt.Errorf("PROCESS_TIMEOUT must be > 0")
	}
	if cfg.ProcessConcurrency < 1 {
		return fmt.Errorf("PROCESS_CONCURRENCY must be >= 1")
	}
	if cfg.MaxImagePixels < 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be >= 0")
	}
	switch cfg.Storage.Type {
	case storage.TypeLocal:
	case storage.TypeS3:
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET must be set when STORAGE_TYPE=s3")
		}
	default:
		return fmt.Errorf("STORAGE_TYPE must be one of: local, s3")
	}

	if IsProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
	}
	return nil
}

func IsProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseListEnv(name string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
