package repository

import "context"

// MemberOrgRepo resolves member-organisation names for observer profiles.
type MemberOrgRepo struct {
	store RecordStore
	table string
}

// NewMemberOrgRepo returns a MemberOrgRepo bound to the given store and
// table.
func NewMemberOrgRepo(store RecordStore, table string) *MemberOrgRepo {
	return &MemberOrgRepo{store: store, table: table}
}

// FindName returns the organisation's display name, or "" when the
// record is missing or unnamed.  Lookups are best-effort; profile
// responses fall back to the registration's own organisation field.
func (r *MemberOrgRepo) FindName(ctx context.Context, id string) string {
	rec, err := r.store.Find(ctx, r.table, id)
	if err != nil {
		return ""
	}
	return rec.Str("Name")
}
