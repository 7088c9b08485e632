package model

import "github.com/otworld/assembly-bookings/internal/airtable"

// CheckIn records one registration being checked in to one session by a
// member of staff.  A (session, registration) pair is checked in at most
// once; repeats are answered with the existing record.
type CheckIn struct {
	ID              string
	Session         string
	RegistrationIDs []string
	CheckInDate     string
	CheckInBy       string
	FirstName       string
	LastName        string
}

// MapCheckIn converts a raw record into a typed CheckIn.
func MapCheckIn(rec airtable.Record) CheckIn {
	return CheckIn{
		ID:              rec.ID,
		Session:         rec.Str("Session"),
		RegistrationIDs: rec.Strings("Registrations"),
		CheckInDate:     rec.Str("Check In Date"),
		CheckInBy:       rec.Str("Check In By"),
		FirstName:       rec.Str("First Name"),
		LastName:        rec.Str("Last Name"),
	}
}

// AttendeeName joins the check-in's denormalised name fields.
func (c CheckIn) AttendeeName() string {
	n := c.FirstName
	if c.LastName != "" {
		if n != "" {
			n += " "
		}
		n += c.LastName
	}
	return n
}
