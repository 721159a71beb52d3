package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	App     AppConfig
	Server  ServerConfig
	CORS    CORSConfig
	Static  StaticConfig
	Body    BodyConfig
	Drive   DriveConfig
	Redis   RedisConfig
	Metrics MetricsConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Version     string
	Environment string // development, staging, production
	LogLevel    slog.Level
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	TrustedProxies  []string
	TLSCertFile     string
	TLSKeyFile      string
}

// CORSConfig holds CORS middleware settings
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// StaticConfig holds static file serving settings
type StaticConfig struct {
	Dir       string
	URLPrefix string // empty disables the static route
	GzipLevel int
}

// BodyConfig holds request body parsing settings
type BodyConfig struct {
	MaxBytes int64
}

// DriveConfig holds the Google Drive index settings
type DriveConfig struct {
	RootID       string
	ClientID     string
	ClientSecret string
	RefreshToken string
	CacheTTL     time.Duration
}

// Enabled reports whether Drive credentials are present
func (d DriveConfig) Enabled() bool {
	return d.ClientID != "" && d.ClientSecret != "" && d.RefreshToken != ""
}

// RedisConfig holds Redis settings. An empty Addr runs the cache on memory only.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Path      string
}

// LoadConfig loads configuration from environment variables. Each env file
// is loaded first without overriding variables already set; with no files
// a missing .env is ignored.
func LoadConfig(logger *slog.Logger, envFiles ...string) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env files %v: %w", envFiles, err)
	}

	logger.Info("loading application configuration")

	config := &Config{}

	if err := loadAppConfig(&config.App, logger); err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}
	loadServerConfig(&config.Server, logger)
	loadCORSConfig(&config.CORS, logger)
	loadStaticConfig(&config.Static, logger)
	loadBodyConfig(&config.Body)
	loadDriveConfig(&config.Drive, logger)
	loadRedisConfig(&config.Redis, logger)
	loadMetricsConfig(&config.Metrics)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger.Info("configuration loaded successfully",
		"environment", config.App.Environment,
		"version", config.App.Version,
		"port", config.Server.Port,
		"drive", config.Drive.Enabled(),
		"redis", config.Redis.Addr != "",
	)

	return config, nil
}

func loadAppConfig(cfg *AppConfig, logger *slog.Logger) error {
	cfg.Version = getEnv("VERSION", "1.0.0")

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
		logger.Warn("ENV not set, using default", "default", env)
	}
	cfg.Environment = env

	level := getEnv("LOG_LEVEL", "info")
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	return nil
}

func loadServerConfig(cfg *ServerConfig, logger *slog.Logger) {
	cfg.Host = os.Getenv("HOST")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		logger.Warn("PORT not set, using default", "default", port)
	}
	cfg.Port = port

	cfg.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	cfg.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", 0)
	cfg.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	cfg.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	cfg.TrustedProxies = splitAndTrim(os.Getenv("TRUSTED_PROXIES"), ",")

	cfg.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	if cfg.TLSEnabled() {
		logger.Info("TLS enabled", "cert_file", cfg.TLSCertFile, "key_file", cfg.TLSKeyFile)
	}
}

// TLSEnabled reports whether both certificate and key are configured
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func loadCORSConfig(cfg *CORSConfig, logger *slog.Logger) {
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins, ",")
	} else {
		cfg.AllowedOrigins = []string{"*"}
		logger.Warn("CORS_ALLOWED_ORIGINS not set, allowing all origins (not recommended for production)")
	}

	cfg.AllowedMethods = splitAndTrim(os.Getenv("CORS_ALLOWED_METHODS"), ",")
	cfg.AllowedHeaders = splitAndTrim(os.Getenv("CORS_ALLOWED_HEADERS"), ",")
	cfg.ExposedHeaders = splitAndTrim(os.Getenv("CORS_EXPOSE_HEADERS"), ",")
	cfg.AllowCredentials = getEnvAsBool("CORS_ALLOW_CREDENTIALS", true)
	cfg.MaxAge = getEnvAsInt("CORS_MAX_AGE", 86400)

	logger.Debug("CORS config loaded", "origins_count", len(cfg.AllowedOrigins))
}

func loadStaticConfig(cfg *StaticConfig, logger *slog.Logger) {
	cfg.Dir = getEnv("STATIC_DIR", "web")
	cfg.URLPrefix = "/static"
	if prefix, ok := os.LookupEnv("STATIC_PREFIX"); ok {
		cfg.URLPrefix = prefix
	}
	cfg.GzipLevel = getEnvAsInt("STATIC_GZIP_LEVEL", -1)

	logger.Debug("static config loaded", "dir", cfg.Dir, "prefix", cfg.URLPrefix)
}

func loadBodyConfig(cfg *BodyConfig) {
	cfg.MaxBytes = int64(getEnvAsInt("BODY_MAX_BYTES", 10<<20))
}

func loadDriveConfig(cfg *DriveConfig, logger *slog.Logger) {
	cfg.RootID = getEnv("DRIVE_ROOT_ID", "root")
	cfg.ClientID = os.Getenv("DRIVE_CLIENT_ID")
	cfg.ClientSecret = os.Getenv("DRIVE_CLIENT_SECRET")
	cfg.RefreshToken = os.Getenv("DRIVE_REFRESH_TOKEN")
	cfg.CacheTTL = getEnvAsDuration("DRIVE_CACHE_TTL", 10*time.Minute)

	if !cfg.Enabled() {
		logger.Info("Drive credentials not set, drive index disabled")
	}
}

func loadRedisConfig(cfg *RedisConfig, logger *slog.Logger) {
	cfg.Addr = os.Getenv("REDIS_ADDR")
	cfg.Password = os.Getenv("REDIS_PASSWORD")
	cfg.DB = getEnvAsInt("REDIS_DB", 0)
	cfg.Prefix = getEnv("CACHE_PREFIX", "microspark:")

	if cfg.Addr != "" {
		logger.Debug("Redis config loaded", "addr", cfg.Addr, "db", cfg.DB)
	}
}

func loadMetricsConfig(cfg *MetricsConfig) {
	cfg.Enabled = getEnvAsBool("METRICS_ENABLED", true)
	cfg.Namespace = getEnv("METRICS_NAMESPACE", "microspark")
	cfg.Path = getEnv("METRICS_PATH", "/metrics")
}

// Helper functions

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// getEnvAsDuration accepts Go durations ("30s") or plain seconds
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

func splitAndTrim(s, sep string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("TLS requires both TLS_CERT_FILE and TLS_KEY_FILE")
	}
	if c.CORS.MaxAge < 0 {
		return fmt.Errorf("CORS max age cannot be negative")
	}
	if c.Body.MaxBytes <= 0 {
		return fmt.Errorf("body size limit must be positive")
	}
	if c.Static.GzipLevel < -1 || c.Static.GzipLevel > 9 {
		return fmt.Errorf("gzip level must be between -1 and 9, got %d", c.Static.GzipLevel)
	}
	if c.Static.URLPrefix != "" && !strings.HasPrefix(c.Static.URLPrefix, "/") {
		return fmt.Errorf("static prefix %q must start with /", c.Static.URLPrefix)
	}
	if c.IsProduction() && len(c.CORS.AllowedOrigins) == 1 && c.CORS.AllowedOrigins[0] == "*" {
		return fmt.Errorf("CORS wildcard origin (*) is not allowed in production")
	}
	return nil
}
