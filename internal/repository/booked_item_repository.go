package repository

import (
	"context"
	"fmt"

	"github.com/otworld/assembly-bookings/internal/model"
)

// BookedItemRepo manages the line-item snapshots owned by a booking.
// Every save replaces the full set: the previous line items are deleted
// and new ones created from the submitted selection.  The replacement is
// not transactional; a store failure mid-way can leave the booking with
// fewer items than submitted, and the client-driven resubmission path is
// the recovery mechanism.
type BookedItemRepo struct {
	store RecordStore
	table string
}

// NewBookedItemRepo returns a BookedItemRepo bound to the given store and
// table.
func NewBookedItemRepo(store RecordStore, table string) *BookedItemRepo {
	return &BookedItemRepo{store: store, table: table}
}

// Find fetches one booked item by id.
func (r *BookedItemRepo) Find(ctx context.Context, id string) (model.BookedItem, error) {
	rec, err := r.store.Find(ctx, r.table, id)
	if err != nil {
		return model.BookedItem{}, notFound(err)
	}
	return model.MapBookedItem(*rec), nil
}

// ListByBooking returns every line item linked to the booking.
func (r *BookedItemRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.BookedItem, error) {
	recs, err := r.store.All(ctx, r.table, listByFormula(
		fmt.Sprintf("{Booking}='%s'", escapeFormula(bookingID)), 0))
	if err != nil {
		return nil, err
	}
	items := make([]model.BookedItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, model.MapBookedItem(rec))
	}
	return items, nil
}

// DeleteAllForBooking removes every existing line item of the booking.
// Called before recreating the set on save, which keeps repeated
// submissions from accruing duplicates.
func (r *BookedItemRepo) DeleteAllForBooking(ctx context.Context, bookingID string) error {
	recs, err := r.store.All(ctx, r.table, listByFormula(
		fmt.Sprintf("{Booking}='%s'", escapeFormula(bookingID)), 0))
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	return r.store.DeleteBatch(ctx, r.table, ids)
}

// CreateSnapshot inserts a line item copying name, type and cost from the
// catalog item at this moment.
func (r *BookedItemRepo) CreateSnapshot(ctx context.Context, bookingID string, item model.BookableItem) (model.BookedItem, error) {
	rec, err := r.store.Create(ctx, r.table, map[string]any{
		"Item":             item.Name,
		"Type":             item.Type,
		"Item Total":       item.Cost,
		"Booking":          []string{bookingID},
		"Bookable Item ID": item.ID,
	})
	if err != nil {
		return model.BookedItem{}, err
	}
	return model.MapBookedItem(*rec), nil
}

// FindByBookingAndItem locates the line item of a booking that snapshots
// a given catalog item, used by redemption.
func (r *BookedItemRepo) FindByBookingAndItem(ctx context.Context, bookingID, bookableItemID string) (model.BookedItem, error) {
	formula := fmt.Sprintf("AND({Booking}='%s',{Bookable Item ID}='%s')",
		escapeFormula(bookingID), escapeFormula(bookableItemID))
	recs, err := r.store.All(ctx, r.table, listByFormula(formula, 1))
	if err != nil {
		return model.BookedItem{}, err
	}
	if len(recs) == 0 {
		return model.BookedItem{}, ErrNotFound
	}
	return model.MapBookedItem(recs[0]), nil
}

// MarkRedeemed records who redeemed the line item.
func (r *BookedItemRepo) MarkRedeemed(ctx context.Context, id, user string) error {
	_, err := r.store.Update(ctx, r.table, id, map[string]any{
		"Redeemed":    true,
		"Redeemed By": user,
	})
	return notFound(err)
}
