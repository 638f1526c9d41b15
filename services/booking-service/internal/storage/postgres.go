package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
)

// Postgres implements every storage contract on one connection pool.
type Postgres struct {
	conn   db.Conn
	outbox *outbox.Repository
}

func NewPostgres(conn db.Conn, outboxRepo *outbox.Repository) *Postgres {
	return &Postgres{conn: conn, outbox: outboxRepo}
}

var (
	_ ScheduleStore    = (*Postgres)(nil)
	_ AppointmentStore = (*Postgres)(nil)
	_ Directory        = (*Postgres)(nil)
	_ PatientStore     = (*Postgres)(nil)
)

// inTx runs fn in a transaction and commits when it returns nil.
func (s *Postgres) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func (s *Postgres) exists(ctx context.Context, query, id string) (bool, error) {
	var ok bool
	if err := s.conn.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("storage: exists: %w", err)
	}
	return ok, nil
}

func (s *Postgres) PractitionerExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM practitioners WHERE id = $1 AND is_active)`, id)
}

func (s *Postgres) PatientExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id)
}

func (s *Postgres) LocationExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM locations WHERE id = $1)`, id)
}
