package model

import "time"

// Patient contact record. RowVersion increases on every write; updates must
// carry the version they read.
type Patient struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	RowVersion int64     `json:"row_version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PatientUpdate is a partial contact update. Nil fields are left unchanged.
type PatientUpdate struct {
	FirstName  *string
	LastName   *string
	Phone      *string
	Email      *string
	RowVersion int64
}

// Apply returns p with the non-nil fields of u applied.
func (u PatientUpdate) Apply(p Patient) Patient {
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Email != nil {
		p.Email = *u.Email
	}
	return p
}

func (u PatientUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Phone == nil && u.Email == nil
}
