package model

import (
	"strings"

	"github.com/otworld/assembly-bookings/internal/airtable"
)

// Role is the capacity in which a person attends the meeting.  Roles
// other than Observer entitle the holder to the Key Person item catalog.
type Role string

const (
	RoleDelegate        Role = "Delegate"
	RoleFirstAlternate  Role = "1st Alternate"
	RoleSecondAlternate Role = "2nd Alternate"
	RoleActingDelegate  Role = "Acting Delegate"
	RoleRegionalRep     Role = "Regional Group Representative"
	RoleObserver        Role = "Observer"
)

// AvailabilityScope names the catalog slice a role may book from.
func (r Role) AvailabilityScope() string {
	switch r {
	case RoleDelegate, RoleFirstAlternate, RoleSecondAlternate, RoleActingDelegate, RoleRegionalRep:
		return "Key Person"
	}
	return "Observer"
}

// IsObserver reports whether the role is Observer, case-insensitively,
// matching how the record store stores it.
func (r Role) IsObserver() bool {
	return strings.EqualFold(string(r), string(RoleObserver))
}

// Registration is a person's record of intent to attend a meeting.
// Created by the external registration form; this service only reads it
// and links a booking to it.
type Registration struct {
	ID             string
	MeetingID      string
	FirstName      string
	LastName       string
	Email          string
	Role           Role
	Attending      bool
	Completed      bool
	MemberOrgIDs   []string
	BookingIDs     []string

	Raw airtable.Record
}

// Name joins first and last name, tolerating either being empty.
func (reg Registration) Name() string {
	return strings.TrimSpace(reg.FirstName + " " + reg.LastName)
}

// MapRegistration converts a raw record into a typed Registration.
func MapRegistration(rec airtable.Record) Registration {
	return Registration{
		ID:           rec.ID,
		MeetingID:    rec.Str("Meeting ID"),
		FirstName:    rec.Str("First Name"),
		LastName:     rec.Str("Last Name"),
		Email:        rec.Str("Email"),
		Role:         Role(rec.Str("Role")),
		Attending:    rec.Bool("Attending"),
		Completed:    rec.Bool("Completed"),
		MemberOrgIDs: rec.Strings("Observer Member Organisation"),
		BookingIDs:   rec.Strings("Bookings"),
		Raw:          rec,
	}
}

// LooksLikeBooking reports whether a record fetched as a registration is
// actually a booking row.  Bookings carry a Payment Status column and
// registrations never do; the original flow used this to reject booking
// ids passed in the registration slot of a signed link.
func LooksLikeBooking(rec airtable.Record) bool {
	_, ok := rec.Fields["Payment Status"]
	return ok
}
