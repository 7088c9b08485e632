package repository

import (
	"context"
	"fmt"

	"github.com/otworld/assembly-bookings/internal/model"
)

// RegistrationRepo reads registration records.  Registrations are created
// by the external registration form; this service never writes them.
type RegistrationRepo struct {
	store RecordStore
	table string
}

// NewRegistrationRepo returns a RegistrationRepo bound to the given store
// and table.
func NewRegistrationRepo(store RecordStore, table string) *RegistrationRepo {
	return &RegistrationRepo{store: store, table: table}
}

// Find fetches one registration by id.  Records that carry booking
// columns are rejected as not found, so a booking id smuggled into a
// registration link cannot resolve.
func (r *RegistrationRepo) Find(ctx context.Context, id string) (model.Registration, error) {
	rec, err := r.store.Find(ctx, r.table, id)
	if err != nil {
		return model.Registration{}, notFound(err)
	}
	if model.LooksLikeBooking(*rec) {
		return model.Registration{}, ErrNotFound
	}
	return model.MapRegistration(*rec), nil
}

// FindByEmail returns the first registration with the given email.
func (r *RegistrationRepo) FindByEmail(ctx context.Context, email string) (model.Registration, error) {
	recs, err := r.store.All(ctx, r.table, listByFormula(
		fmt.Sprintf("{Email}='%s'", escapeFormula(email)), 1))
	if err != nil {
		return model.Registration{}, err
	}
	if len(recs) == 0 {
		return model.Registration{}, ErrNotFound
	}
	return model.MapRegistration(recs[0]), nil
}
