package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
)

func (s *Postgres) WorkingHours(ctx context.Context, practitionerID string) ([]model.WorkingHours, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT practitioner_id, weekday, start_minute, end_minute, slot_minutes
		FROM working_hours
		WHERE practitioner_id = $1
		ORDER BY weekday, start_minute
	`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("storage: list working hours: %w", err)
	}
	defer rows.Close()

	var out []model.WorkingHours
	for rows.Next() {
		var (
			wh                  model.WorkingHours
			weekday, start, end int
		)
		if err := rows.Scan(&wh.PractitionerID, &weekday, &start, &end, &wh.SlotMinutes); err != nil {
			return nil, fmt.Errorf("storage: scan working hours: %w", err)
		}
		wh.Weekday = time.Weekday(weekday)
		wh.Start = model.TimeOfDay(start)
		wh.End = model.TimeOfDay(end)
		out = append(out, wh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list working hours: %w", err)
	}
	return out, nil
}

func (s *Postgres) Blackouts(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Blackout, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT practitioner_id, start_time, end_time, reason
		FROM blackouts
		WHERE practitioner_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, practitionerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("storage: list blackouts: %w", err)
	}
	defer rows.Close()

	var out []model.Blackout
	for rows.Next() {
		var b model.Blackout
		if err := rows.Scan(&b.PractitionerID, &b.Start, &b.End, &b.Reason); err != nil {
			return nil, fmt.Errorf("storage: scan blackout: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list blackouts: %w", err)
	}
	return out, nil
}

// ReplaceWorkingHours swaps the whole weekly template in one transaction.
func (s *Postgres) ReplaceWorkingHours(ctx context.Context, practitionerID string, hours []model.WorkingHours, events []outbox.Event) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var ok bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM practitioners WHERE id = $1)`, practitionerID).Scan(&ok); err != nil {
			return fmt.Errorf("storage: practitioner lookup: %w", err)
		}
		if !ok {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM working_hours WHERE practitioner_id = $1`, practitionerID); err != nil {
			return fmt.Errorf("storage: clear working hours: %w", err)
		}
		for _, wh := range hours {
			_, err := tx.Exec(ctx, `
				INSERT INTO working_hours (practitioner_id, weekday, start_minute, end_minute, slot_minutes)
				VALUES ($1, $2, $3, $4, $5)
			`, practitionerID, int(wh.Weekday), int(wh.Start), int(wh.End), wh.SlotMinutes)
			if err != nil {
				return fmt.Errorf("storage: insert working hours: %w", err)
			}
		}
		if err := s.outbox.Insert(ctx, tx, events...); err != nil {
			return fmt.Errorf("storage: outbox: %w", err)
		}
		return nil
	})
}

func (s *Postgres) AddBlackout(ctx context.Context, b model.Blackout, events []outbox.Event) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO blackouts (practitioner_id, start_time, end_time, reason)
			VALUES ($1, $2, $3, $4)
		`, b.PractitionerID, b.Start, b.End, b.Reason)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("storage: insert blackout: %w", err)
		}
		if err := s.outbox.Insert(ctx, tx, events...); err != nil {
			return fmt.Errorf("storage: outbox: %w", err)
		}
		return nil
	})
}
