package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Discord   DiscordConfig
	Lifecycle LifecycleConfig
	Assets    AssetsConfig
}

// AppConfig controls the admin HTTP server.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" (default) or "console".
	Format string
}

// AuthConfig defines admin API authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminAPIKeyHash       string
	ViewerAPIKeyHash      string
}

// DiscordConfig holds gateway credentials.
type DiscordConfig struct {
	Token string
}

// LifecycleConfig holds the ticket timing policy.
type LifecycleConfig struct {
	ActionDelay            time.Duration
	InactivityTimeout      time.Duration
	ClosedRetention        time.Duration
	PingCooldown           time.Duration
	ConfigRefreshInterval  time.Duration
	OrphanSweepInterval    time.Duration
	InactiveSweepInterval  time.Duration
	RetentionSweepInterval time.Duration
	BootstrapDelay         time.Duration
	InteractionDedupeTTL   time.Duration
	SweepRatePerSecond     float64
}

// AssetsConfig holds static image URLs used in embeds.
type AssetsConfig struct {
	IconURL   string
	BannerURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	lifecycle, err := loadLifecycle()
	if err != nil {
		return nil, err
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "guild-ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminAPIKeyHash:       os.Getenv("AUTH_ADMIN_API_KEY_HASH"),
			ViewerAPIKeyHash:      os.Getenv("AUTH_VIEWER_API_KEY_HASH"),
		},
		Discord: DiscordConfig{
			Token: os.Getenv("DISCORD_TOKEN"),
		},
		Lifecycle: lifecycle,
		Assets: AssetsConfig{
			IconURL:   getEnv("TICKET_ICON_URL", ""),
			BannerURL: getEnv("TICKET_BANNER_URL", ""),
		},
	}

	return cfg, nil
}

func loadLifecycle() (LifecycleConfig, error) {
	var (
		lc   LifecycleConfig
		errs []error
	)
	dur := func(key string, fallback time.Duration) time.Duration {
		d, err := getEnvAsDuration(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	lc.ActionDelay = dur("TICKET_ACTION_DELAY", 5*time.Second)
	lc.InactivityTimeout = dur("TICKET_INACTIVITY_TIMEOUT", 72*time.Hour)
	lc.ClosedRetention = dur("TICKET_CLOSED_RETENTION", 24*time.Hour)
	lc.PingCooldown = dur("TICKET_PING_COOLDOWN", 6*time.Hour)
	lc.ConfigRefreshInterval = dur("TICKET_CONFIG_REFRESH_INTERVAL", time.Minute)
	lc.OrphanSweepInterval = dur("TICKET_ORPHAN_SWEEP_INTERVAL", 15*time.Minute)
	lc.InactiveSweepInterval = dur("TICKET_INACTIVE_SWEEP_INTERVAL", time.Hour)
	lc.RetentionSweepInterval = dur("TICKET_RETENTION_SWEEP_INTERVAL", time.Hour)
	lc.BootstrapDelay = dur("TICKET_BOOTSTRAP_DELAY", 5*time.Second)
	lc.InteractionDedupeTTL = dur("TICKET_INTERACTION_DEDUPE_TTL", 3*time.Second)

	rate, err := strconv.ParseFloat(getEnv("TICKET_SWEEP_RATE_PER_SECOND", "5"), 64)
	if err != nil || rate <= 0 {
		errs = append(errs, fmt.Errorf("invalid TICKET_SWEEP_RATE_PER_SECOND"))
	}
	lc.SweepRatePerSecond = rate

	if len(errs) > 0 {
		return LifecycleConfig{}, errs[0]
	}
	return lc, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the admin token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return fallback, fmt.Errorf("invalid %s: must be positive", key)
	}
	return parsed, nil
}
