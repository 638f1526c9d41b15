package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/settings"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/memstore"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/migrations"
)

// backend bundles the storage contracts of the selected STORE_BACKEND.
type backend struct {
	schedule     storage.ScheduleStore
	appointments storage.AppointmentStore
	directory    storage.Directory
	patients     storage.PatientStore
	inbox        inbox.Store
	checks       []runtime.ReadyCheck

	// postgres only
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func (b *backend) close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func openBackend(ctx context.Context, s settings.Settings, logger *slog.Logger) (*backend, error) {
	if s.StoreBackend == settings.BackendMemory {
		mem := memstore.New()
		mem.SeedDemo()
		logger.Info("using in-memory store with demo data")
		return &backend{
			schedule:     mem,
			appointments: mem,
			directory:    mem,
			patients:     mem,
			inbox:        inbox.NewMemory(),
		}, nil
	}

	if s.MigrateOnStart {
		version, err := db.Migrate(s.DatabaseURL, migrations.FS)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", "version", version)
	}
	pool, err := db.Open(ctx, s.DatabaseURL, db.PoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}
	outboxRepo := outbox.NewRepository()
	pg := storage.NewPostgres(pool, outboxRepo)
	return &backend{
		schedule:     pg,
		appointments: pg,
		directory:    pg,
		patients:     pg,
		inbox:        inbox.NewRepository(pool),
		checks:       []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
		pool:         pool,
		outboxRepo:   outboxRepo,
	}, nil
}
