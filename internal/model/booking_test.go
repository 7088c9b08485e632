package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/otworld/assembly-bookings/internal/airtable"
)

func TestTotalAfterDiscount(t *testing.T) {
	assert.Equal(t, 20.0, TotalAfterDiscount(25, 5))
	assert.Equal(t, 25.0, TotalAfterDiscount(25, 0))
	assert.Equal(t, 0.0, TotalAfterDiscount(0, 0))
	// A discount larger than the subtotal clamps to zero, never negative.
	assert.Equal(t, 0.0, TotalAfterDiscount(10, 25))
}

func TestValidMethod(t *testing.T) {
	assert.True(t, ValidMethod(MethodCash))
	assert.True(t, ValidMethod(MethodStripe))
	assert.True(t, ValidMethod(MethodPayPal))
	assert.False(t, ValidMethod(MethodNone))
	assert.False(t, ValidMethod(PaymentMethod("Barter")))
	assert.False(t, ValidMethod(PaymentMethod("cash")))
}

func TestMapBookingMissingFieldsAreZero(t *testing.T) {
	bkg := MapBooking(airtable.Record{ID: "recEmpty", Fields: map[string]any{}})

	assert.Equal(t, "recEmpty", bkg.ID)
	assert.Empty(t, bkg.RegistrationID)
	assert.Equal(t, Status(""), bkg.Status)
	assert.Equal(t, MethodNone, bkg.PaymentMethod)
	assert.Zero(t, bkg.Subtotal)
	assert.Zero(t, bkg.Total)
	assert.Nil(t, bkg.BookedItemIDs)
}

func TestMapBooking(t *testing.T) {
	bkg := MapBooking(airtable.Record{ID: "recB1", Fields: map[string]any{
		"Registration":         []any{"recR1"},
		"Status":               "Pending",
		"Payment Method":       "Cash",
		"Payment Status":       "Unpaid",
		"Subtotal":             25.0,
		"Discounts":            5.0,
		"Total":                20.0,
		"Dietary Requirements": "vegetarian",
		"Booked Items":         []any{"recI1", "recI2"},
	}})

	assert.Equal(t, "recR1", bkg.RegistrationID)
	assert.Equal(t, StatusPending, bkg.Status)
	assert.Equal(t, MethodCash, bkg.PaymentMethod)
	assert.Equal(t, PaymentUnpaid, bkg.PaymentStatus)
	assert.Equal(t, 20.0, bkg.Total)
	assert.Equal(t, []string{"recI1", "recI2"}, bkg.BookedItemIDs)
}
