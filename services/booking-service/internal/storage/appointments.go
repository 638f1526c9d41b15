package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
)

const appointmentColumns = `id, practitioner_id, patient_id, location_id, scheduled_start, scheduled_end,
	status, COALESCE(notes, ''), cancelled_at, COALESCE(cancel_reason, ''), created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (model.Appointment, error) {
	var (
		appt   model.Appointment
		status string
	)
	err := row.Scan(
		&appt.ID,
		&appt.PractitionerID,
		&appt.PatientID,
		&appt.LocationID,
		&appt.ScheduledStart,
		&appt.ScheduledEnd,
		&status,
		&appt.Notes,
		&appt.CancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	appt.Status = model.Status(status)
	return appt, err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

func (s *Postgres) ListScheduled(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
			AND status = 'scheduled'
			AND scheduled_start < $3
			AND scheduled_end > $2
		ORDER BY scheduled_start
	`, practitionerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("storage: list scheduled: %w", err)
	}
	appts, err := collectAppointments(rows)
	if err != nil {
		return nil, fmt.Errorf("storage: list scheduled: %w", err)
	}
	return appts, nil
}

// InsertIfFree serializes bookings per practitioner with a transaction scoped
// advisory lock, re-reads overlapping rows and inserts. The appointments_no_overlap
// exclusion constraint catches anything that bypasses the lock.
func (s *Postgres) InsertIfFree(ctx context.Context, appt model.Appointment, events []outbox.Event) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, appt.PractitionerID); err != nil {
			return fmt.Errorf("storage: practitioner lock: %w", err)
		}

		var taken bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE practitioner_id = $1
					AND status = 'scheduled'
					AND scheduled_start < $3
					AND scheduled_end > $2
			)
		`, appt.PractitionerID, appt.ScheduledStart, appt.ScheduledEnd).Scan(&taken)
		if err != nil {
			return fmt.Errorf("storage: overlap check: %w", err)
		}
		if taken {
			return ErrSlotTaken
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO appointments
				(id, practitioner_id, patient_id, location_id, scheduled_start, scheduled_end, status, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		`, appt.ID, appt.PractitionerID, appt.PatientID, appt.LocationID,
			appt.ScheduledStart, appt.ScheduledEnd, string(appt.Status), appt.Notes, appt.CreatedAt)
		switch {
		case err == nil:
		case db.IsExclusionViolation(err):
			return ErrSlotTaken
		case db.IsForeignKeyViolation(err):
			return ErrNotFound
		default:
			return fmt.Errorf("storage: insert appointment: %w", err)
		}

		if err := s.outbox.Insert(ctx, tx, events...); err != nil {
			return fmt.Errorf("storage: outbox: %w", err)
		}
		return nil
	})
}

func (s *Postgres) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(s.conn.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("storage: get appointment: %w", err)
	}
	return appt, nil
}

func (s *Postgres) Transition(ctx context.Context, id string, fn TransitionFunc) (model.Appointment, error) {
	var out model.Appointment
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("storage: lock appointment: %w", err)
		}

		next, events, err := fn(cur)
		if err != nil {
			return err
		}
		if next.Status != cur.Status {
			_, err := tx.Exec(ctx, `
				UPDATE appointments
				SET status = $2,
					cancelled_at = $3,
					cancel_reason = NULLIF($4, ''),
					updated_at = now()
				WHERE id = $1
			`, id, string(next.Status), next.CancelledAt, next.CancelReason)
			if err != nil {
				return fmt.Errorf("storage: update appointment: %w", err)
			}
		}
		if err := s.outbox.Insert(ctx, tx, events...); err != nil {
			return fmt.Errorf("storage: outbox: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

func (s *Postgres) ListByPractitioner(ctx context.Context, practitionerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		ORDER BY scheduled_start DESC
		LIMIT $2
	`, practitionerID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list appointments: %w", err)
	}
	appts, err := collectAppointments(rows)
	if err != nil {
		return nil, fmt.Errorf("storage: list appointments: %w", err)
	}
	return appts, nil
}
