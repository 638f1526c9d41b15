package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/settings"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "dotenv:", err)
	}
	s, err := settings.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:\n"+err.Error())
		os.Exit(2)
	}
	logger := runtime.NewLogger(s.ServiceName, s.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := runtime.SignalContext(context.Background())
	err = run(ctx, s, logger)
	stop()
	if err != nil {
		logger.Error("booking-service stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, s settings.Settings, logger *slog.Logger) error {
	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(s.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	b, err := openBackend(ctx, s, logger)
	if err != nil {
		return err
	}
	defer b.close()
	checks := b.checks

	var (
		scheduleReader storage.ScheduleSource = b.schedule
		patientStore   storage.PatientStore   = b.patients
		invalidator    booking.Invalidator
		rdb            *redis.Client
	)
	if s.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: s.RedisAddr, Password: s.RedisPassword})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		scheduleCache := cache.NewScheduleCache(b.schedule, rdb, s.CacheTTL, logger)
		scheduleReader = scheduleCache
		invalidator = scheduleCache
		patientStore = cache.NewPatientCache(b.patients, rdb, s.CacheTTL, logger)
	}

	m := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	clk := clock.System()

	availabilitySvc := availability.NewService(scheduleReader, b.appointments, b.directory, clk, availability.Config{
		Location: s.Location,
		MaxDays:  s.AvailabilityMaxDays,
	})
	bookingSvc := booking.NewService(booking.Deps{
		Schedule:     scheduleReader,
		Appointments: b.appointments,
		Directory:    b.directory,
		Policy:       policy.NewStaticProvider(s.ReminderOffsets),
		Clock:        clk,
		Metrics:      m,
		Logger:       logger,
		Location:     s.Location,
	})
	schedules := booking.NewSchedules(b.schedule, scheduleReader, b.directory, invalidator, clk, logger)
	patients := booking.NewPatients(patientStore)

	if s.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(s.KafkaBrokers)})
		brokers := kafkax.SplitBrokers(s.KafkaBrokers)
		if b.pool != nil {
			publisher := outbox.NewPublisher(b.pool, b.outboxRepo, kafkax.NewWriter(brokers), logger, outbox.PublisherConfig{
				PollEvery: s.OutboxPollInterval,
				BatchSize: s.OutboxBatchSize,
			})
			go publisher.Run(ctx)
		} else {
			logger.Warn("memory backend keeps outbox events in process; kafka publishing disabled")
		}
		if invalidator != nil {
			c := consumer.New(logger, b.inbox, consumer.Config{
				Brokers: s.KafkaBrokers,
				GroupID: s.KafkaGroupID,
				Topic:   booking.TopicWorkingHoursChanged,
			}, consumer.InvalidateSchedule(invalidator, logger))
			go c.Run(ctx)
		}
	}

	var jwks *auth.JWKSClient
	if s.JWKSURL != "" {
		jwks = auth.NewJWKSClient(s.JWKSURL, 10*time.Minute)
	}

	public := []httpx.Middleware{httpx.WithCORS(httpx.PublicBookingCORS(s.CORSOrigins))}
	if s.RateLimitPerMinute > 0 {
		if rdb != nil {
			rl := httpx.NewRedisRateLimiter(rdb, s.RateLimitPerMinute, time.Minute, "clinicbook:rl")
			public = append(public, rl.Middleware(logger, s.RateLimitFailOpen))
		} else {
			public = append(public, httpx.NewRateLimiter(s.RateLimitPerMinute, time.Minute).Middleware())
		}
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.Handler())
	handlers.Routes{
		Availability: handlers.NewAvailabilityHandler(availabilitySvc, s.DefaultSlotMinutes, m, logger),
		Bookings:     handlers.NewBookingHandler(bookingSvc, s.Location, logger),
		Schedule:     handlers.NewScheduleHandler(schedules, logger),
		Patients:     handlers.NewPatientHandler(patients, logger),
		Verifier:     auth.NewVerifier(s.JWTSecret, jwks),
		Public:       public,
	}.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, healthSrv := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+s.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go grpcx.ReportHealth(ctx, healthSrv, 5*time.Second, []string{"", "clinicbook.booking"}, checks...)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc health server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "backend", s.StoreBackend, "timezone", s.Location.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("booking-service stopped")
	return runErr
}
