package model

import "github.com/otworld/assembly-bookings/internal/airtable"

// BookableItem is a catalog entry attendees can add to a booking.  The
// catalog is read-only from this service's point of view.
type BookableItem struct {
	ID          string
	Name        string
	Type        string
	Cost        float64
	AvailableTo string // "Key Person" or "Observer"
	MeetingID   string
}

// MapBookableItem converts a raw record into a typed BookableItem.
func MapBookableItem(rec airtable.Record) BookableItem {
	return BookableItem{
		ID:          rec.ID,
		Name:        rec.Str("Name"),
		Type:        rec.Str("Type"),
		Cost:        rec.Float("Cost"),
		AvailableTo: rec.Str("Available To"),
		MeetingID:   rec.Str("Meeting ID"),
	}
}

// BookedItem is a line-item snapshot created per selected catalog item at
// save time.  Name, type and cost are copied so later catalog edits do
// not rewrite history.  All booked items of a booking are deleted and
// recreated on every save.
type BookedItem struct {
	ID             string
	Name           string
	Type           string
	Cost           float64
	BookingID      string
	BookableItemID string
	Redeemed       bool
	RedeemedBy     string
}

// MapBookedItem converts a raw record into a typed BookedItem.
func MapBookedItem(rec airtable.Record) BookedItem {
	return BookedItem{
		ID:             rec.ID,
		Name:           rec.Str("Item"),
		Type:           rec.Str("Type"),
		Cost:           rec.Float("Item Total"),
		BookingID:      rec.FirstString("Booking"),
		BookableItemID: rec.Str("Bookable Item ID"),
		Redeemed:       rec.Bool("Redeemed"),
		RedeemedBy:     rec.Str("Redeemed By"),
	}
}
