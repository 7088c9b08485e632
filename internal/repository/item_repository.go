package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/otworld/assembly-bookings/internal/model"
)

// ItemRepo reads the bookable-item catalog.
type ItemRepo struct {
	store RecordStore
	table string
}

// NewItemRepo returns an ItemRepo bound to the given store and table.
func NewItemRepo(store RecordStore, table string) *ItemRepo {
	return &ItemRepo{store: store, table: table}
}

// Find fetches one catalog item by id.
func (r *ItemRepo) Find(ctx context.Context, id string) (model.BookableItem, error) {
	rec, err := r.store.Find(ctx, r.table, id)
	if err != nil {
		return model.BookableItem{}, notFound(err)
	}
	return model.MapBookableItem(*rec), nil
}

// ListForMeeting returns the catalog slice a role may book from for one
// meeting, sorted by type then name.
func (r *ItemRepo) ListForMeeting(ctx context.Context, meetingID string, role model.Role) ([]model.BookableItem, error) {
	formula := fmt.Sprintf("AND({Meeting ID}='%s', FIND('%s',{Available To})>0)",
		escapeFormula(meetingID), role.AvailabilityScope())
	recs, err := r.store.All(ctx, r.table, listByFormula(formula, 0))
	if err != nil {
		return nil, err
	}
	items := make([]model.BookableItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, model.MapBookableItem(rec))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type < items[j].Type
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}
