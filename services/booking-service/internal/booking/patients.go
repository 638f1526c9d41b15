package booking

import (
	"context"
	"net/mail"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

// Patients guards contact updates with the row version the caller read.
type Patients struct {
	store storage.PatientStore
}

func NewPatients(store storage.PatientStore) *Patients {
	return &Patients{store: store}
}

func (p *Patients) Get(ctx context.Context, id string) (model.Patient, error) {
	if strings.TrimSpace(id) == "" {
		return model.Patient{}, apperr.New(apperr.InvalidRequest, "patient id is required")
	}
	pt, err := p.store.GetPatient(ctx, id)
	if err != nil {
		return model.Patient{}, apperr.FromStore(err, "patient "+id)
	}
	return pt, nil
}

func (p *Patients) Update(ctx context.Context, id string, u model.PatientUpdate) (model.Patient, error) {
	if strings.TrimSpace(id) == "" {
		return model.Patient{}, apperr.New(apperr.InvalidRequest, "patient id is required")
	}
	if u.Empty() {
		return model.Patient{}, apperr.New(apperr.InvalidRequest, "nothing to update")
	}
	if u.RowVersion <= 0 {
		return model.Patient{}, apperr.New(apperr.InvalidRequest, "row_version is required")
	}
	for _, f := range []*string{u.FirstName, u.LastName, u.Phone, u.Email} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if u.FirstName != nil && *u.FirstName == "" {
		return model.Patient{}, apperr.New(apperr.InvalidRequest, "first_name cannot be empty")
	}
	if u.Email != nil && *u.Email != "" {
		if _, err := mail.ParseAddress(*u.Email); err != nil {
			return model.Patient{}, apperr.New(apperr.InvalidRequest, "invalid email %q", *u.Email)
		}
	}
	pt, err := p.store.UpdatePatient(ctx, id, u)
	if err != nil {
		return model.Patient{}, apperr.FromStore(err, "patient "+id)
	}
	return pt, nil
}
