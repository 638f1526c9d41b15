package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

const patientColumns = `id, first_name, last_name, COALESCE(phone, ''), COALESCE(email, ''), row_version, updated_at`

func scanPatient(row scanner) (model.Patient, error) {
	var p model.Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Phone, &p.Email, &p.RowVersion, &p.UpdatedAt)
	return p, err
}

func (s *Postgres) GetPatient(ctx context.Context, id string) (model.Patient, error) {
	p, err := scanPatient(s.conn.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Patient{}, ErrNotFound
	}
	if err != nil {
		return model.Patient{}, fmt.Errorf("storage: get patient: %w", err)
	}
	return p, nil
}

// UpdatePatient bumps row_version only when the caller's version still matches.
func (s *Postgres) UpdatePatient(ctx context.Context, id string, u model.PatientUpdate) (model.Patient, error) {
	p, err := scanPatient(s.conn.QueryRow(ctx, `
		UPDATE patients
		SET first_name = COALESCE($3, first_name),
			last_name = COALESCE($4, last_name),
			phone = COALESCE($5, phone),
			email = COALESCE($6, email),
			row_version = row_version + 1,
			updated_at = now()
		WHERE id = $1 AND row_version = $2
		RETURNING `+patientColumns,
		id, u.RowVersion, u.FirstName, u.LastName, u.Phone, u.Email))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Patient{}, fmt.Errorf("storage: update patient: %w", err)
	}

	ok, err := s.PatientExists(ctx, id)
	if err != nil {
		return model.Patient{}, err
	}
	if !ok {
		return model.Patient{}, ErrNotFound
	}
	return model.Patient{}, ErrStaleVersion
}
