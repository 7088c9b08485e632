package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/otworld/assembly-bookings/internal/model"
)

// CheckInRepo records session check-ins performed by staff.
type CheckInRepo struct {
	store RecordStore
	table string
}

// NewCheckInRepo returns a CheckInRepo bound to the given store and table.
func NewCheckInRepo(store RecordStore, table string) *CheckInRepo {
	return &CheckInRepo{store: store, table: table}
}

// FindBySession returns an existing check-in for the (session,
// registration) pair, or ErrNotFound when the attendee has not been
// checked in yet.
func (r *CheckInRepo) FindBySession(ctx context.Context, session, regID string) (model.CheckIn, error) {
	formula := fmt.Sprintf("AND({Session}='%s', FIND('%s', ARRAYJOIN({Registrations}))>0)",
		escapeFormula(session), escapeFormula(regID))
	recs, err := r.store.All(ctx, r.table, listByFormula(formula, 1))
	if err != nil {
		return model.CheckIn{}, err
	}
	if len(recs) == 0 {
		return model.CheckIn{}, ErrNotFound
	}
	return model.MapCheckIn(recs[0]), nil
}

// Create records a fresh check-in stamped with the current UTC time.
func (r *CheckInRepo) Create(ctx context.Context, session, regID, user string) (model.CheckIn, error) {
	rec, err := r.store.Create(ctx, r.table, map[string]any{
		"Session":       session,
		"Check In Date": time.Now().UTC().Format(time.RFC3339),
		"Registrations": []string{regID},
		"Check In By":   user,
	})
	if err != nil {
		return model.CheckIn{}, err
	}
	return model.MapCheckIn(*rec), nil
}

// ListForRegistration returns every check-in of a registration.
func (r *CheckInRepo) ListForRegistration(ctx context.Context, regID string) ([]model.CheckIn, error) {
	recs, err := r.store.All(ctx, r.table, listByFormula(
		fmt.Sprintf("ARRAYJOIN({Registrations})='%s'", escapeFormula(regID)), 0))
	if err != nil {
		return nil, err
	}
	out := make([]model.CheckIn, 0, len(recs))
	for _, rec := range recs {
		out = append(out, model.MapCheckIn(rec))
	}
	return out, nil
}
