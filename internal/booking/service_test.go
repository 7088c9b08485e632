package booking

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otworld/assembly-bookings/internal/model"
	"github.com/otworld/assembly-bookings/internal/payment"
	"github.com/otworld/assembly-bookings/internal/repository"
)

type fakeBookings struct {
	bookings map[string]model.Booking
	updates  []map[string]any
}

func (f *fakeBookings) Find(_ context.Context, id string) (model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookings) Update(_ context.Context, id string, fields map[string]any) (model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	f.updates = append(f.updates, fields)
	if v, ok := fields["Status"].(string); ok {
		b.Status = model.Status(v)
	}
	if v, ok := fields["Payment Status"].(string); ok {
		b.PaymentStatus = model.PaymentStatus(v)
	}
	if v, ok := fields["Payment Method"]; ok {
		if s, isStr := v.(string); isStr {
			b.PaymentMethod = model.PaymentMethod(s)
		} else {
			b.PaymentMethod = model.MethodNone
		}
	}
	if v, ok := fields["Subtotal"].(float64); ok {
		b.Subtotal = v
	}
	if v, ok := fields["Total"].(float64); ok {
		b.Total = v
	}
	f.bookings[id] = b
	return b, nil
}

func (f *fakeBookings) lastUpdate() map[string]any {
	if len(f.updates) == 0 {
		return nil
	}
	return f.updates[len(f.updates)-1]
}

type fakeCatalog struct {
	items map[string]model.BookableItem
}

func (f *fakeCatalog) Find(_ context.Context, id string) (model.BookableItem, error) {
	it, ok := f.items[id]
	if !ok {
		return model.BookableItem{}, repository.ErrNotFound
	}
	return it, nil
}

type fakeLineItems struct {
	deletes int
	created []model.BookableItem
}

func (f *fakeLineItems) DeleteAllForBooking(_ context.Context, _ string) error {
	f.deletes++
	return nil
}

func (f *fakeLineItems) CreateSnapshot(_ context.Context, _ string, item model.BookableItem) (model.BookedItem, error) {
	f.created = append(f.created, item)
	return model.BookedItem{ID: "snap_" + item.ID, Name: item.Name, Cost: item.Cost}, nil
}

type fakeGenerator struct {
	calls int
}

func (f *fakeGenerator) EnsureFresh(_ context.Context, _ string, _ bool) (string, error) {
	f.calls++
	return "confirmation.pdf", nil
}

type fakeGateway struct {
	name        string
	createCalls int
	createErr   error
	capture     payment.Capture
	captureErr  error
}

func (f *fakeGateway) Name() string { return f.name }

func (f *fakeGateway) CreatePayment(_ context.Context, amount float64, currency, bookingID string) (payment.Order, error) {
	f.createCalls++
	if f.createErr != nil {
		return payment.Order{}, f.createErr
	}
	return payment.Order{ID: "order_1", ClientToken: "secret_1"}, nil
}

func (f *fakeGateway) CapturePayment(_ context.Context, _ string) (payment.Capture, error) {
	return f.capture, f.captureErr
}

func (f *fakeGateway) VerifyWebhook(_ context.Context, _ http.Header, _ []byte) error { return nil }

func (f *fakeGateway) ParseWebhookEvent(_ []byte) (payment.WebhookEvent, error) {
	return payment.WebhookEvent{}, nil
}

type fakeEvents struct {
	payments    int
	completions int
}

func (f *fakeEvents) PublishPaymentRecorded(_ context.Context, _ string, _ model.PaymentMethod, _ float64, _ string) error {
	f.payments++
	return nil
}

func (f *fakeEvents) PublishBookingCompleted(_ context.Context, _ string) error {
	f.completions++
	return nil
}

type fixture struct {
	svc       *Service
	bookings  *fakeBookings
	lineItems *fakeLineItems
	gen       *fakeGenerator
	stripe    *fakeGateway
	events    *fakeEvents
}

func newFixture(bkg model.Booking, items map[string]model.BookableItem) *fixture {
	f := &fixture{
		bookings:  &fakeBookings{bookings: map[string]model.Booking{bkg.ID: bkg}},
		lineItems: &fakeLineItems{},
		gen:       &fakeGenerator{},
		stripe:    &fakeGateway{name: "Stripe"},
		events:    &fakeEvents{},
	}
	gateways := map[model.PaymentMethod]payment.Gateway{model.MethodStripe: f.stripe}
	f.svc = NewService(f.bookings, &fakeCatalog{items: items}, f.lineItems, f.gen, gateways, f.events, "USD")
	return f
}

func TestSaveCashWithDiscount(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending, Discount: 5},
		map[string]model.BookableItem{"itm1": {ID: "itm1", Name: "Gala Dinner", Cost: 25}},
	)

	res, err := f.svc.Save(context.Background(), SaveRequest{
		BookingID: "rec1",
		ItemIDs:   []string{"itm1"},
		Method:    model.MethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "Cash", res.Payment)
	assert.Equal(t, 20.0, res.Total)

	got := f.bookings.bookings["rec1"]
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, model.PaymentUnpaid, got.PaymentStatus)
	assert.Equal(t, model.MethodCash, got.PaymentMethod)
	assert.Equal(t, 25.0, got.Subtotal)
	assert.Equal(t, 20.0, got.Total)
}

func TestSaveEmptySelectionCompletesFree(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending, PaymentMethod: model.MethodStripe},
		nil,
	)

	res, err := f.svc.Save(context.Background(), SaveRequest{BookingID: "rec1", Method: model.MethodStripe})
	require.NoError(t, err)
	assert.Equal(t, "None", res.Payment)
	assert.Zero(t, res.Total)

	got := f.bookings.bookings["rec1"]
	assert.Equal(t, model.StatusComplete, got.Status)
	assert.Equal(t, model.PaymentNotRequired, got.PaymentStatus)
	assert.Equal(t, model.MethodNone, got.PaymentMethod)
	assert.Equal(t, 0, f.stripe.createCalls)
}

func TestSaveReplacesSelectionWholesale(t *testing.T) {
	items := map[string]model.BookableItem{
		"y": {ID: "y", Name: "Workshop", Cost: 10},
		"z": {ID: "z", Name: "Tour", Cost: 15},
	}
	f := newFixture(model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending}, items)

	_, err := f.svc.Save(context.Background(), SaveRequest{
		BookingID: "rec1",
		ItemIDs:   []string{"y", "z"},
		Method:    model.MethodCash,
	})
	require.NoError(t, err)

	// Previous line items are always deleted first; the new snapshots
	// are exactly the requested selection.
	assert.Equal(t, 1, f.lineItems.deletes)
	require.Len(t, f.lineItems.created, 2)
	assert.Equal(t, "y", f.lineItems.created[0].ID)
	assert.Equal(t, "z", f.lineItems.created[1].ID)

	update := f.bookings.lastUpdate()
	assert.Equal(t, []string{"snap_y", "snap_z"}, update["Booked Items"])
}

func TestSaveSkipsUnknownItems(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending},
		map[string]model.BookableItem{"real": {ID: "real", Cost: 30}},
	)

	res, err := f.svc.Save(context.Background(), SaveRequest{
		BookingID: "rec1",
		ItemIDs:   []string{"ghost", "real"},
		Method:    model.MethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.Total)
	require.Len(t, f.lineItems.created, 1)
	assert.Equal(t, "real", f.lineItems.created[0].ID)
}

func TestSaveStripeCreatesOrder(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending},
		map[string]model.BookableItem{"itm1": {ID: "itm1", Cost: 40}},
	)

	res, err := f.svc.Save(context.Background(), SaveRequest{
		BookingID: "rec1",
		ItemIDs:   []string{"itm1"},
		Method:    model.MethodStripe,
	})
	require.NoError(t, err)
	assert.Equal(t, "Stripe", res.Payment)
	assert.Equal(t, "order_1", res.OrderID)
	assert.Equal(t, "secret_1", res.ClientToken)
	assert.Equal(t, 1, f.stripe.createCalls)

	got := f.bookings.bookings["rec1"]
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, model.PaymentPending, got.PaymentStatus)
}

func TestSaveGatewayFailureIsRetryable(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending},
		map[string]model.BookableItem{"itm1": {ID: "itm1", Cost: 40}},
	)
	f.stripe.createErr = errors.New("gateway down")

	_, err := f.svc.Save(context.Background(), SaveRequest{
		BookingID: "rec1",
		ItemIDs:   []string{"itm1"},
		Method:    model.MethodStripe,
	})
	require.Error(t, err)

	// The booking stays at Pending/Pending so the attendee can retry.
	got := f.bookings.bookings["rec1"]
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, model.PaymentPending, got.PaymentStatus)
}

func TestSaveValidation(t *testing.T) {
	f := newFixture(model.Booking{ID: "rec1"}, nil)

	_, err := f.svc.Save(context.Background(), SaveRequest{BookingID: "rec1", Method: "Barter"})
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, err = f.svc.Save(context.Background(), SaveRequest{
		BookingID: "rec1",
		Method:    model.MethodCash,
		Dietary:   strings.Repeat("x", model.MaxDietaryLen+1),
	})
	assert.ErrorIs(t, err, ErrDietaryTooLong)

	_, err = f.svc.Save(context.Background(), SaveRequest{BookingID: "nope", Method: model.MethodCash})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Empty(t, f.bookings.updates)
}

func TestRecordCapture(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending, PaymentMethod: model.MethodStripe},
		nil,
	)

	already, err := f.svc.RecordCapture(context.Background(), "rec1", payment.Capture{
		Completed: true,
		Reference: "pi_123",
		Amount:    20,
	})
	require.NoError(t, err)
	assert.False(t, already)

	got := f.bookings.bookings["rec1"]
	assert.Equal(t, model.StatusComplete, got.Status)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 1, f.gen.calls)
	assert.Equal(t, 1, f.events.payments)

	update := f.bookings.lastUpdate()
	assert.Equal(t, "pi_123", update["Payment Reference"])
	assert.Contains(t, update, "Payment Date")
}

func TestRecordCaptureDuplicateIsNoOp(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending},
		nil,
	)

	_, err := f.svc.RecordCapture(context.Background(), "rec1", payment.Capture{Completed: true, Reference: "pi_1"})
	require.NoError(t, err)

	already, err := f.svc.RecordCapture(context.Background(), "rec1", payment.Capture{Completed: true, Reference: "pi_1"})
	require.NoError(t, err)
	assert.True(t, already)

	// One confirmation, one event, one persisted capture.
	assert.Equal(t, 1, f.gen.calls)
	assert.Equal(t, 1, f.events.payments)
	assert.Len(t, f.bookings.updates, 1)
}

func TestRecordOrderApproved(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending},
		nil,
	)

	require.NoError(t, f.svc.RecordOrderApproved(context.Background(), "rec1", "order_7"))
	update := f.bookings.lastUpdate()
	assert.Equal(t, "order_7", update["Order ID"])
	assert.Equal(t, string(model.StatusPending), update["Status"])
	assert.Equal(t, string(model.PaymentPending), update["Payment Status"])
}

func TestRecordOrderApprovedAfterCaptureIsNoOp(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusComplete, PaymentStatus: model.PaymentPaid},
		nil,
	)

	require.NoError(t, f.svc.RecordOrderApproved(context.Background(), "rec1", "order_7"))
	assert.Empty(t, f.bookings.updates)

	got := f.bookings.bookings["rec1"]
	assert.Equal(t, model.StatusComplete, got.Status)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
}

func TestRecordFailureVariants(t *testing.T) {
	tests := []struct {
		ev   EventType
		want model.PaymentStatus
	}{
		{EventCaptureFailed, model.PaymentError},
		{EventRefunded, model.PaymentRefunded},
		{EventReversed, model.PaymentVoid},
	}
	for _, tc := range tests {
		f := newFixture(model.Booking{ID: "rec1", Status: model.StatusComplete, PaymentStatus: model.PaymentPaid}, nil)
		require.NoError(t, f.svc.RecordFailure(context.Background(), "rec1", tc.ev, "ref_9"))

		got := f.bookings.bookings["rec1"]
		assert.Equal(t, model.StatusFailed, got.Status)
		assert.Equal(t, tc.want, got.PaymentStatus)
		assert.Equal(t, "ref_9", f.bookings.lastUpdate()["Payment Reference"])
	}
}

func TestCaptureNotCompletedRecordsFailure(t *testing.T) {
	f := newFixture(
		model.Booking{ID: "rec1", Status: model.StatusPending, PaymentStatus: model.PaymentPending},
		nil,
	)
	f.stripe.capture = payment.Capture{Completed: false, Status: "requires_payment_method"}

	_, err := f.svc.Capture(context.Background(), model.MethodStripe, "rec1", "pi_1")
	require.Error(t, err)

	got := f.bookings.bookings["rec1"]
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, model.PaymentError, got.PaymentStatus)
}
