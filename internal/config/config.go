package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Leave        LeaveConfig
	Worker       WorkerConfig
	HTTP         HTTPConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
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
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	BootstrapAdmin        BootstrapAdminConfig
}

// BootstrapAdminConfig describes the admin account created on startup when
// no employee with that e-mail exists. An empty e-mail disables it.
type BootstrapAdminConfig struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// NotificationConfig selects the outbound mail transport.
type NotificationConfig struct {
	EmailFrom       string
	AdminRecipients []string
	Transport       string
	RedisQueue      string
	KafkaBrokers    []string
	KafkaTopic      string
}

// LeaveConfig holds leave policy values.
type LeaveConfig struct {
	AnnualAllowance int
}

// WorkerConfig tunes the outbox worker.
type WorkerConfig struct {
	PollInterval      time.Duration
	BatchSize         int
	MaxAttempts       int
	PurgeSchedule     string
	RetentionDuration time.Duration
}

// HTTPConfig holds edge protection settings.
type HTTPConfig struct {
	LoginRatePerSecond float64
	LoginBurst         int
	IdempotencyTTL     time.Duration
}

// Transport names accepted by NOTIFY_TRANSPORT.
const (
	TransportLog   = "log"
	TransportRedis = "redis"
	TransportKafka = "kafka"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "leave-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdmin: BootstrapAdminConfig{
				Email:     os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
				Password:  os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
				FirstName: getEnv("BOOTSTRAP_ADMIN_FIRST_NAME", "Portal"),
				LastName:  getEnv("BOOTSTRAP_ADMIN_LAST_NAME", "Admin"),
			},
		},
		Notification: NotificationConfig{
			EmailFrom:       getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			AdminRecipients: getEnvAsList("NOTIFY_ADMIN_RECIPIENTS", nil),
			Transport:       strings.ToLower(getEnv("NOTIFY_TRANSPORT", TransportLog)),
			RedisQueue:      getEnv("NOTIFY_REDIS_QUEUE", "leave:mail:outbound"),
			KafkaBrokers:    getEnvAsList("NOTIFY_KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
			KafkaTopic:      getEnv("NOTIFY_KAFKA_TOPIC", "leave.notifications"),
		},
		Leave: LeaveConfig{
			AnnualAllowance: getEnvAsInt("LEAVE_ANNUAL_ALLOWANCE", 10),
		},
		Worker: WorkerConfig{
			PollInterval:      getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:         getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
			MaxAttempts:       getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 8),
			PurgeSchedule:     getEnv("OUTBOX_PURGE_SCHEDULE", "@every 1h"),
			RetentionDuration: getEnvAsDuration("OUTBOX_RETENTION", 72*time.Hour),
		},
		HTTP: HTTPConfig{
			LoginRatePerSecond: getEnvAsFloat("LOGIN_RATE_PER_SECOND", 1),
			LoginBurst:         getEnvAsInt("LOGIN_RATE_BURST", 5),
			IdempotencyTTL:     getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
	}

	switch cfg.Notification.Transport {
	case TransportLog, TransportRedis, TransportKafka:
	default:
		return nil, fmt.Errorf("invalid NOTIFY_TRANSPORT %q", cfg.Notification.Transport)
	}
	if cfg.Leave.AnnualAllowance < 0 {
		return nil, fmt.Errorf("invalid LEAVE_ANNUAL_ALLOWANCE: %d", cfg.Leave.AnnualAllowance)
	}

	return cfg, nil
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

// AccessTokenTTL returns the lifetime of issued tokens.
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
