package repository

import (
	"context"
	"fmt"

	"github.com/otworld/assembly-bookings/internal/model"
)

// BookingRepo reads and writes booking records.  A booking is created
// lazily the first time a registration's booking page is opened.
type BookingRepo struct {
	store RecordStore
	table string
}

// NewBookingRepo returns a BookingRepo bound to the given store and table.
func NewBookingRepo(store RecordStore, table string) *BookingRepo {
	return &BookingRepo{store: store, table: table}
}

// Find fetches one booking by id.
func (r *BookingRepo) Find(ctx context.Context, id string) (model.Booking, error) {
	rec, err := r.store.Find(ctx, r.table, id)
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	return model.MapBooking(*rec), nil
}

// FindByRegistration returns the booking linked to a registration, or
// ErrNotFound when none exists yet.
func (r *BookingRepo) FindByRegistration(ctx context.Context, regID string) (model.Booking, error) {
	recs, err := r.store.All(ctx, r.table, listByFormula(
		fmt.Sprintf("ARRAYJOIN({Registration})='%s'", escapeFormula(regID)), 1))
	if err != nil {
		return model.Booking{}, err
	}
	if len(recs) == 0 {
		return model.Booking{}, ErrNotFound
	}
	return model.MapBooking(recs[0]), nil
}

// CreateForRegistration inserts a fresh Pending/Pending booking linked to
// the registration.
func (r *BookingRepo) CreateForRegistration(ctx context.Context, regID string) (model.Booking, error) {
	rec, err := r.store.Create(ctx, r.table, map[string]any{
		"Registration":   []string{regID},
		"Status":         string(model.StatusPending),
		"Payment Status": string(model.PaymentPending),
	})
	if err != nil {
		return model.Booking{}, err
	}
	return model.MapBooking(*rec), nil
}

// AttachConfirmationPDF uploads the rendered confirmation document into
// the booking's attachment field, replacing any previous copy.
func (r *BookingRepo) AttachConfirmationPDF(ctx context.Context, id, filename string, content []byte) error {
	return notFound(r.store.UploadAttachment(ctx, r.table, id, "Confirmation PDF", filename, content))
}

// Update applies a partial field update to a booking.
func (r *BookingRepo) Update(ctx context.Context, id string, fields map[string]any) (model.Booking, error) {
	rec, err := r.store.Update(ctx, r.table, id, fields)
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	return model.MapBooking(*rec), nil
}
