package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Log       LogConfig
	Tracing   TracingConfig
	RateLimit RateLimitConfig
	Schedule  ScheduleConfig
	Kafka     KafkaConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s Timezone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// JWTConfig covers token validation only: tokens are issued by the
// external identity service, this API just verifies them.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

type RateLimitConfig struct {
	// Global rate limit per IP
	RequestsPerSecond float64
	BurstSize         int
}

// ScheduleConfig carries the booking policy knobs.
type ScheduleConfig struct {
	Timezone    string
	OpeningTime string // wall-clock "15:04"
	ClosingTime string

	SlotDurationMins int

	// InitialStatus is "confirmed" or "pending".
	InitialStatus string
	// RescheduleReconfirm moves a rescheduled appointment back through
	// reconfirmation instead of silently keeping its status.
	RescheduleReconfirm bool

	// Alternative-slot suggestions after a conflict.
	SuggestionDays  int
	SuggestionLimit int

	ReminderInterval time.Duration
	ReminderWindow   time.Duration
}

func (s ScheduleConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "scheduler-api"),
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "0.0.0"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "scheduler"),
			User:            getEnv("DB_USER", "scheduler"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", ""),
			Issuer:         getEnv("JWT_ISSUER", "medicab-identity"),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", true),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "scheduler-api"),
			Endpoint:    getEnv("OTLP_ENDPOINT", "jaeger-collector:4318"),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 0.1),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 100),
			BurstSize:         getEnvInt("RATE_LIMIT_BURST", 200),
		},
		Schedule: ScheduleConfig{
			Timezone:            getEnv("SCHEDULE_TIMEZONE", "Local"),
			OpeningTime:         getEnv("SCHEDULE_OPENING_TIME", "08:00"),
			ClosingTime:         getEnv("SCHEDULE_CLOSING_TIME", "18:00"),
			SlotDurationMins:    getEnvInt("SCHEDULE_SLOT_DURATION_MINS", 30),
			InitialStatus:       getEnv("SCHEDULE_INITIAL_STATUS", "confirmed"),
			RescheduleReconfirm: getEnvBool("SCHEDULE_RESCHEDULE_RECONFIRM", false),
			SuggestionDays:      getEnvInt("SCHEDULE_SUGGESTION_DAYS", 14),
			SuggestionLimit:     getEnvInt("SCHEDULE_SUGGESTION_LIMIT", 5),
			ReminderInterval:    getEnvDuration("SCHEDULE_REMINDER_INTERVAL", 15*time.Minute),
			ReminderWindow:      getEnvDuration("SCHEDULE_REMINDER_WINDOW", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_NOTIFICATIONS_TOPIC", "appointment-events"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces production security requirements.
func validate(cfg *Config) error {
	var errs []string

	if cfg.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWT.Secret) < 32 && cfg.App.Environment == "production" {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}

	if cfg.Database.Password == "" && cfg.App.Environment != "development" {
		errs = append(errs, "DB_PASSWORD is required in non-development environments")
	}

	if cfg.Database.SSLMode == "disable" && cfg.App.Environment == "production" {
		errs = append(errs, "DB_SSLMODE=disable is not allowed in production")
	}

	if _, err := cfg.Schedule.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("SCHEDULE_TIMEZONE %q is not a valid location", cfg.Schedule.Timezone))
	}

	switch cfg.Schedule.InitialStatus {
	case "confirmed", "pending":
	default:
		errs = append(errs, "SCHEDULE_INITIAL_STATUS must be confirmed or pending")
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, "KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
