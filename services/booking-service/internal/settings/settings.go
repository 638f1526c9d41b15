// Package settings loads the booking-service configuration from the environment.
package settings

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/policy"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Settings struct {
	ServiceName string
	Port        string
	GRPCPort    string
	LogLevel    string

	StoreBackend   string
	DatabaseURL    string
	MigrateOnStart bool

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	KafkaBrokers       string
	KafkaGroupID       string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	Location            *time.Location
	DefaultSlotMinutes  int
	AvailabilityMaxDays int
	ReminderOffsets     []time.Duration

	JWTSecret string
	JWKSURL   string

	CORSOrigins        []string
	RateLimitPerMinute int
	RateLimitFailOpen  bool
}

// Load reads every key and reports all problems at once.
func Load() (Settings, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	s := Settings{
		ServiceName:    config.String("SERVICE_NAME", "booking-service"),
		LogLevel:       config.String("LOG_LEVEL", "info"),
		StoreBackend:   config.String("STORE_BACKEND", BackendPostgres),
		DatabaseURL:    config.String("DATABASE_URL", ""),
		MigrateOnStart: config.Bool("MIGRATE_ON_START", true),
		RedisAddr:      config.String("REDIS_ADDR", ""),
		RedisPassword:  config.String("REDIS_PASSWORD", ""),
		KafkaBrokers:   config.String("KAFKA_BROKERS", ""),
		KafkaGroupID:   config.String("KAFKA_GROUP_ID", "booking-service"),
		JWTSecret:      config.String("AUTH_JWT_SECRET", ""),
		JWKSURL:        config.String("AUTH_JWKS_URL", ""),
		CORSOrigins:    config.CSV("CORS_ALLOWED_ORIGINS", ""),

		RateLimitFailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
	}

	var err error
	s.Port, err = config.Port("PORT", "8083")
	collect(err)
	s.GRPCPort, err = config.Port("GRPC_PORT", "9083")
	collect(err)
	s.CacheTTL, err = config.Duration("CACHE_TTL", 5*time.Minute)
	collect(err)
	s.OutboxPollInterval, err = config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	collect(err)
	s.OutboxBatchSize, err = config.Int("OUTBOX_BATCH_SIZE", 50, 1, 1000)
	collect(err)
	s.Location, err = config.Location("CLINIC_TIMEZONE", "UTC")
	collect(err)
	s.DefaultSlotMinutes, err = config.Int("DEFAULT_SLOT_MINUTES", 30, 1, 24*60)
	collect(err)
	s.AvailabilityMaxDays, err = config.Int("AVAILABILITY_MAX_DAYS", 62, 1, 366)
	collect(err)
	s.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120, 0, 100000)
	collect(err)
	s.ReminderOffsets, err = policy.ParseOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"))
	if err != nil {
		collect(fmt.Errorf("REMINDER_OFFSETS_MINUTES: %w", err))
	}

	switch s.StoreBackend {
	case BackendPostgres:
		if s.DatabaseURL == "" {
			collect(errors.New("DATABASE_URL is required when STORE_BACKEND=postgres"))
		}
	case BackendMemory:
	default:
		collect(fmt.Errorf("STORE_BACKEND must be %q or %q (got %q)", BackendPostgres, BackendMemory, s.StoreBackend))
	}
	if s.JWTSecret == "" && s.JWKSURL == "" {
		collect(errors.New("AUTH_JWT_SECRET or AUTH_JWKS_URL is required"))
	}

	if len(errs) > 0 {
		return Settings{}, errors.Join(errs...)
	}
	return s, nil
}
