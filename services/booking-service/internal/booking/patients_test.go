package booking

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestPatientUpdateOptimisticLocking(t *testing.T) {
	store := memstore.New()
	store.SeedDemo()
	p := NewPatients(store)
	ctx := context.Background()

	read, err := p.Get(ctx, "pat-1")
	require.NoError(t, err)

	updated, err := p.Update(ctx, "pat-1", model.PatientUpdate{Phone: strptr(" +8801711999999 "), RowVersion: read.RowVersion})
	require.NoError(t, err)
	assert.Equal(t, "+8801711999999", updated.Phone)
	assert.Equal(t, read.RowVersion+1, updated.RowVersion)

	// A second writer still holding the old version loses.
	_, err = p.Update(ctx, "pat-1", model.PatientUpdate{Email: strptr("f@example.com"), RowVersion: read.RowVersion})
	assert.Equal(t, apperr.VersionConflict, apperr.KindOf(err))
}

func TestPatientUpdateValidation(t *testing.T) {
	store := memstore.New()
	store.SeedDemo()
	p := NewPatients(store)
	ctx := context.Background()

	_, err := p.Update(ctx, "pat-1", model.PatientUpdate{RowVersion: 1})
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = p.Update(ctx, "pat-1", model.PatientUpdate{Email: strptr("not-an-email"), RowVersion: 1})
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = p.Update(ctx, "pat-1", model.PatientUpdate{FirstName: strptr("  "), RowVersion: 1})
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = p.Update(ctx, "pat-1", model.PatientUpdate{Phone: strptr("1")})
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = p.Update(ctx, "nobody", model.PatientUpdate{Phone: strptr("1"), RowVersion: 1})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = p.Get(ctx, "nobody")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
