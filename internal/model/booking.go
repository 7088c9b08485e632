package model

import "github.com/otworld/assembly-bookings/internal/airtable"

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusComplete  Status = "Complete"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// PaymentStatus tracks where the money is.  It is only ever written
// together with Status so the pair stays consistent.
type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "Pending"
	PaymentUnpaid      PaymentStatus = "Unpaid"
	PaymentPaid        PaymentStatus = "Paid"
	PaymentNotRequired PaymentStatus = "Not Required"
	PaymentError       PaymentStatus = "Error"
	PaymentRefunded    PaymentStatus = "Refunded"
	PaymentVoid        PaymentStatus = "Void"
)

// PaymentMethod is how the attendee chose to pay.  Empty means none,
// which is forced whenever the total is zero.
type PaymentMethod string

const (
	MethodNone   PaymentMethod = ""
	MethodCash   PaymentMethod = "Cash"
	MethodStripe PaymentMethod = "Stripe"
	MethodPayPal PaymentMethod = "Paypal"
)

// ValidMethod reports whether m is a payment method a save request may
// submit.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodStripe, MethodPayPal:
		return true
	}
	return false
}

// MaxDietaryLen caps the free-text dietary requirements field.
const MaxDietaryLen = 500

// Booking is the payable record linked 1:1 to a registration.  It is
// populated from the record store by MapBooking; missing fields map to
// zero values, never to placeholder strings.
type Booking struct {
	ID                  string
	RegistrationID      string
	Status              Status
	PaymentMethod       PaymentMethod
	PaymentStatus       PaymentStatus
	PaymentReference    string
	Subtotal            float64
	Discount            float64
	Total               float64
	DietaryRequirements string
	BookedItemIDs       []string
	ConfirmationURL     string

	// Raw keeps the source record for fields with deployment-specific
	// names, such as the last-modified marker the confirmation cache
	// sniffs for.
	Raw airtable.Record
}

// TotalAfterDiscount applies the invariant total = max(0, subtotal - discount).
func TotalAfterDiscount(subtotal, discount float64) float64 {
	t := subtotal - discount
	if t < 0 {
		return 0
	}
	return t
}

// MapBooking converts a raw record into a typed Booking.
func MapBooking(rec airtable.Record) Booking {
	return Booking{
		ID:                  rec.ID,
		RegistrationID:      rec.FirstString("Registration"),
		Status:              Status(rec.Str("Status")),
		PaymentMethod:       PaymentMethod(rec.Str("Payment Method")),
		PaymentStatus:       PaymentStatus(rec.Str("Payment Status")),
		PaymentReference:    rec.Str("Payment Reference"),
		Subtotal:            rec.Float("Subtotal"),
		Discount:            rec.Float("Discounts"),
		Total:               rec.Float("Total"),
		DietaryRequirements: rec.Str("Dietary Requirements"),
		BookedItemIDs:       rec.Strings("Booked Items"),
		ConfirmationURL:     rec.Str("Confirmation"),
		Raw:                 rec,
	}
}
