package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Auth        AuthConfig
	Billing     BillingConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
	CLI         CLIConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnablePprof   bool
	EnableMetrics bool
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthConfig tunes session resolution and the trial gate.
type AuthConfig struct {
	SuperAdminEmails []string
	TrialDays        int
	SessionTimeout   time.Duration
	ProfileTimeout   time.Duration
	OfficeTimeout    time.Duration
	BillingTimeout   time.Duration
	FreshWindow      time.Duration
	SessionChannel   string
	LegacyCacheKeys  []string
}

const (
	BillingProviderDatabase = "database"
	BillingProviderStripe   = "stripe"
)

type BillingConfig struct {
	Provider        string
	StripeSecretKey string
}

type BufferConfig struct {
	Path           string
	RetentionHours int
	SyncInterval   time.Duration
	BatchSize      int
	MaxRetry       int
	HealthInterval time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// CLIConfig locates the officectl credentials file.
type CLIConfig struct {
	CredentialsPath string
	Account         string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "officeauth"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", "8080"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnablePprof:   getBool("SERVER_ENABLE_PPROF", false),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", false),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "officeauth"),
			User:            getString("DB_USER", "officeauth"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			Issuer:     getString("JWT_ISSUER", "officeauth"),
			AccessTTL:  getDuration("JWT_ACCESS_TTL", time.Hour),
			RefreshTTL: getDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		},
		Auth: AuthConfig{
			SuperAdminEmails: getList("SUPER_ADMIN_EMAILS", nil),
			TrialDays:        getInt("TRIAL_DAYS", 7),
			SessionTimeout:   getDuration("AUTH_SESSION_TIMEOUT", 3*time.Second),
			ProfileTimeout:   getDuration("AUTH_PROFILE_TIMEOUT", 5*time.Second),
			OfficeTimeout:    getDuration("AUTH_OFFICE_TIMEOUT", 5*time.Second),
			BillingTimeout:   getDuration("AUTH_BILLING_TIMEOUT", 5*time.Second),
			FreshWindow:      getDuration("AUTH_FRESH_WINDOW", 60*time.Second),
			SessionChannel:   getString("AUTH_SESSION_CHANNEL", "auth:session-events"),
			LegacyCacheKeys:  getList("AUTH_LEGACY_CACHE_KEYS", []string{"sb-*-auth-token", "legacy:user:*", "legacy:profile:*"}),
		},
		Billing: BillingConfig{
			Provider:        strings.ToLower(getString("BILLING_PROVIDER", "database")),
			StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		},
		Buffer: BufferConfig{
			Path:           getString("BOLTDB_PATH", "./data/buffer.db"),
			RetentionHours: getInt("BUFFER_RETENTION_HOURS", 24),
			SyncInterval:   getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			BatchSize:      getInt("BUFFER_BATCH_SIZE", 50),
			MaxRetry:       getInt("MAX_RETRY_ATTEMPTS", 5),
			HealthInterval: getDuration("HEALTH_CHECK_INTERVAL", 10*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
		CLI: CLIConfig{
			CredentialsPath: getString("OFFICECTL_CREDENTIALS", "./data/credentials.db"),
			Account:         getString("OFFICECTL_ACCOUNT", "default"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.DSN()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.TrialDays <= 0 {
		return fmt.Errorf("config: TRIAL_DAYS must be positive, got %d", c.Auth.TrialDays)
	}
	switch c.Billing.Provider {
	case BillingProviderDatabase:
	case BillingProviderStripe:
		if c.Billing.StripeSecretKey == "" {
			return fmt.Errorf("config: STRIPE_SECRET_KEY is required when BILLING_PROVIDER=stripe")
		}
	default:
		return fmt.Errorf("config: unsupported BILLING_PROVIDER %q", c.Billing.Provider)
	}
	return nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// DSN returns URL when set, otherwise a postgres:// URL assembled from the
// discrete DB_* settings.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
