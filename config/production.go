// Package config loads and validates the service configuration from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Mongo      MongoConfig      `json:"mongo"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Storage    StorageConfig    `json:"storage"`
	Character  CharacterConfig  `json:"character"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost" json:"host"`
	Port            int           `env:"DB_PORT" envDefault:"5432" json:"port"`
	Name            string        `env:"DB_NAME" envDefault:"charmemo" json:"name"`
	User            string        `env:"DB_USER" envDefault:"postgres" json:"user"`
	Password        string        `env:"DB_PASSWORD" json:"-"`
	SSLMode         string        `env:"DB_SSL_MODE" envDefault:"disable" json:"ssl_mode"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"50" json:"max_open_conns"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"15m" json:"conn_max_idle_time"`
	SlowQueryLog    bool          `env:"DB_SLOW_QUERY_LOG" envDefault:"true" json:"slow_query_log"`
	SlowQueryTime   time.Duration `env:"DB_SLOW_QUERY_TIME" envDefault:"1s" json:"slow_query_time"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"false" json:"auto_migrate"`
}

// DSN builds the libpq-style connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type MongoConfig struct {
	URI            string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017" json:"-"`
	Database       string        `env:"MONGO_DATABASE" envDefault:"charmemo" json:"database"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s" json:"connect_timeout"`
	MaxPoolSize    uint64        `env:"MONGO_MAX_POOL_SIZE" envDefault:"100" json:"max_pool_size"`
}

type ServerConfig struct {
	Host              string        `env:"SERVER_HOST" envDefault:"0.0.0.0" json:"host"`
	Port              int           `env:"SERVER_PORT" envDefault:"3000" json:"port"`
	ReadTimeout       time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s" json:"read_timeout"`
	WriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s" json:"write_timeout"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s" json:"idle_timeout"`
	ShutdownTimeout   time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s" json:"shutdown_timeout"`
	RequestTimeout    time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"30s" json:"request_timeout"`
	BodyLimit         int           `env:"SERVER_BODY_LIMIT" envDefault:"1048576" json:"body_limit"`
	TrustedProxies    []string      `env:"SERVER_TRUSTED_PROXIES" envDefault:"127.0.0.1" json:"trusted_proxies"`
	ProxyHeader       string        `env:"SERVER_PROXY_HEADER" envDefault:"X-Real-IP" json:"proxy_header"`
	EnableCompression bool          `env:"SERVER_ENABLE_COMPRESSION" envDefault:"true" json:"enable_compression"`
	StaticDir         string        `env:"SERVER_STATIC_DIR" envDefault:"./assets" json:"static_dir"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" json:"allowed_origins"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envDefault:"GET,POST,DELETE,OPTIONS" json:"allowed_methods"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envDefault:"Origin,Content-Type,Accept,Authorization,X-Request-ID" json:"allowed_headers"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false" json:"allow_credentials"`
	CORSMaxAge       int      `env:"CORS_MAX_AGE" envDefault:"86400" json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `env:"GLOBAL_RATE_LIMIT" envDefault:"2000" json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m" json:"rate_limit_window"`

	// Content Security
	CSPPolicy      string `env:"CSP_POLICY" envDefault:"default-src 'self'; style-src 'self' 'unsafe-inline'" json:"csp_policy"`
	XFrameOptions  string `env:"X_FRAME_OPTIONS" envDefault:"DENY" json:"x_frame_options"`
	ReferrerPolicy string `env:"REFERRER_POLICY" envDefault:"strict-origin-when-cross-origin" json:"referrer_policy"`

	// Write routes (create/delete) require an operator token when set
	RequireWriteToken bool `env:"SECURITY_REQUIRE_WRITE_TOKEN" envDefault:"false" json:"require_write_token"`
}

type JWTConfig struct {
	SecretKey  string        `env:"JWT_SECRET_KEY" json:"-"`
	PrivateKey string        `env:"JWT_PRIVATE_KEY" json:"-"` // RSA private key in PEM format
	PublicKey  string        `env:"JWT_PUBLIC_KEY" json:"-"`  // RSA public key in PEM format
	UseRSAKeys bool          `env:"JWT_USE_RSA_KEYS" envDefault:"false" json:"use_rsa_keys"`
	TokenTTL   time.Duration `env:"JWT_TOKEN_TTL" envDefault:"24h" json:"token_ttl"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"charmemo" json:"issuer"`
	Audience   string        `env:"JWT_AUDIENCE" envDefault:"charmemo-api" json:"audience"`
}

type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info" json:"level"`     // debug, info, warn, error
	Output     string `env:"LOG_OUTPUT" envDefault:"stdout" json:"output"` // stdout, file, both
	FilePath   string `env:"LOG_FILE_PATH" envDefault:"logs/charmemo.log" json:"file_path"`
	MaxSize    int    `env:"LOG_MAX_SIZE" envDefault:"100" json:"max_size"` // MB
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5" json:"max_backups"`
	MaxAge     int    `env:"LOG_MAX_AGE" envDefault:"30" json:"max_age"` // days
	Compress   bool   `env:"LOG_COMPRESS" envDefault:"true" json:"compress"`

	EnableAccessLog bool `env:"LOG_ENABLE_ACCESS_LOG" envDefault:"true" json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled        bool   `env:"METRICS_ENABLED" envDefault:"true" json:"enabled"`
	PrometheusPath string `env:"METRICS_PROMETHEUS_PATH" envDefault:"/metrics" json:"prometheus_path"`
}

type CacheConfig struct {
	Enabled        bool          `env:"CACHE_ENABLED" envDefault:"false" json:"enabled"`
	RedisURL       string        `env:"CACHE_REDIS_URL" envDefault:"localhost:6379" json:"redis_url"`
	RedisPassword  string        `env:"CACHE_REDIS_PASSWORD" json:"-"`
	RedisDB        int           `env:"CACHE_REDIS_DB" envDefault:"0" json:"redis_db"`
	RedisPrefix    string        `env:"CACHE_REDIS_PREFIX" envDefault:"charmemo:" json:"redis_prefix"`
	HealthInterval time.Duration `env:"CACHE_HEALTH_INTERVAL" envDefault:"30s" json:"health_interval"`
}

// StorageConfig selects the persistence drivers. An empty SequenceDriver uses the storage driver.
type StorageConfig struct {
	Driver         string        `env:"STORAGE_DRIVER" envDefault:"postgres" json:"driver"`
	SequenceDriver string        `env:"SEQUENCE_DRIVER" json:"sequence_driver"`
	HealthTimeout  time.Duration `env:"STORAGE_HEALTH_TIMEOUT" envDefault:"2s" json:"health_timeout"`
}

// EffectiveSequenceDriver resolves the driver used for id allocation
func (c StorageConfig) EffectiveSequenceDriver() string {
	if c.SequenceDriver == "" {
		return c.Driver
	}
	return c.SequenceDriver
}

type CharacterConfig struct {
	CounterName   string `env:"CHARACTER_COUNTER_NAME" envDefault:"characterId" json:"counter_name"`
	DefaultHealth int64  `env:"CHARACTER_DEFAULT_HEALTH" envDefault:"500" json:"default_health"`
	DefaultPower  int64  `env:"CHARACTER_DEFAULT_POWER" envDefault:"100" json:"default_power"`
}

type DeploymentConfig struct {
	Environment string `env:"APP_ENV" envDefault:"production" json:"environment"`
	Version     string `env:"APP_VERSION" envDefault:"dev" json:"version"`
	CommitHash  string `env:"APP_COMMIT_HASH" envDefault:"unknown" json:"commit_hash"`
	BuildTime   string `env:"APP_BUILD_TIME" envDefault:"unknown" json:"build_time"`
}

// BuildInfo renders the deployment identity for the startup log line
func (d DeploymentConfig) BuildInfo() string {
	return fmt.Sprintf("version=%s commit=%s built=%s env=%s", d.Version, d.CommitHash, d.BuildTime, d.Environment)
}

// LoadProductionConfig loads .env (if present, without overriding the process environment),
// parses the environment and validates the result
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	return ParseProductionConfig(nil)
}

// ParseProductionConfig parses environment into a validated config. A nil environment means os.Environ.
func ParseProductionConfig(environment map[string]string) (*ProductionConfig, error) {
	cfg := &ProductionConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateProductionConfig collects every problem into a single error
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	validStorage := []string{DriverPostgres, DriverMongo, DriverMemory}
	if !slices.Contains(validStorage, cfg.Storage.Driver) {
		errs = append(errs, fmt.Sprintf("STORAGE_DRIVER must be one of: %v", validStorage))
	}
	validSequence := []string{"", DriverPostgres, DriverMongo, DriverMemory, DriverRedis}
	if !slices.Contains(validSequence, cfg.Storage.SequenceDriver) {
		errs = append(errs, fmt.Sprintf("SEQUENCE_DRIVER must be empty or one of: %v", validSequence[1:]))
	}

	if cfg.Storage.EffectiveSequenceDriver() == DriverMemory && cfg.Storage.Driver != DriverMemory {
		errs = append(errs, "SEQUENCE_DRIVER=memory requires STORAGE_DRIVER=memory; the memory counter restarts at 1 while stored ids persist")
	}

	usesPostgres := cfg.Storage.Driver == DriverPostgres || cfg.Storage.EffectiveSequenceDriver() == DriverPostgres
	if usesPostgres {
		if cfg.Database.Host == "" {
			errs = append(errs, "DB_HOST is required")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			errs = append(errs, "DB_NAME is required")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "DB_USER is required")
		}
		if cfg.Database.Password == "" {
			errs = append(errs, "DB_PASSWORD is required")
		}
	}

	usesMongo := cfg.Storage.Driver == DriverMongo || cfg.Storage.EffectiveSequenceDriver() == DriverMongo
	if usesMongo {
		if cfg.Mongo.URI == "" {
			errs = append(errs, "MONGO_URI is required")
		}
		if cfg.Mongo.Database == "" {
			errs = append(errs, "MONGO_DATABASE is required")
		}
	}

	if cfg.Storage.EffectiveSequenceDriver() == DriverRedis && cfg.Cache.RedisURL == "" {
		errs = append(errs, "CACHE_REDIS_URL is required when SEQUENCE_DRIVER is redis")
	}
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errs = append(errs, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	if cfg.Security.AllowCredentials && slices.Contains(cfg.Security.AllowedOrigins, "*") {
		errs = append(errs, "CORS_ALLOW_CREDENTIALS cannot be combined with a wildcard CORS_ALLOWED_ORIGINS")
	}

	if cfg.Security.RequireWriteToken {
		if cfg.JWT.UseRSAKeys {
			if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
				errs = append(errs, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
			}
		} else if len(cfg.JWT.SecretKey) < 32 {
			errs = append(errs, "JWT_SECRET_KEY must be at least 32 characters long when SECURITY_REQUIRE_WRITE_TOKEN is set")
		}
		if cfg.JWT.TokenTTL <= 0 {
			errs = append(errs, "JWT_TOKEN_TTL must be positive")
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(validLevels, cfg.Logging.Level) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}
	validOutputs := []string{"stdout", "file", "both"}
	if !slices.Contains(validOutputs, cfg.Logging.Output) {
		errs = append(errs, fmt.Sprintf("LOG_OUTPUT must be one of: %v", validOutputs))
	}
	if cfg.Logging.Output != "stdout" && strings.TrimSpace(cfg.Logging.FilePath) == "" {
		errs = append(errs, "LOG_FILE_PATH is required when LOG_OUTPUT writes to a file")
	}

	if strings.TrimSpace(cfg.Character.CounterName) == "" {
		errs = append(errs, "CHARACTER_COUNTER_NAME is required")
	}
	if cfg.Character.DefaultHealth < 0 {
		errs = append(errs, "CHARACTER_DEFAULT_HEALTH must not be negative")
	}
	if cfg.Character.DefaultPower < 0 {
		errs = append(errs, "CHARACTER_DEFAULT_POWER must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment reports whether the service runs outside production
func (c *ProductionConfig) IsDevelopment() bool {
	return c.Deployment.Environment == "development" || c.Deployment.Environment == "dev"
}
