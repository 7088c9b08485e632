package webhook

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otworld/assembly-bookings/internal/booking"
	"github.com/otworld/assembly-bookings/internal/model"
	"github.com/otworld/assembly-bookings/internal/payment"
)

type scriptedGateway struct {
	verifyErr error
	event     payment.WebhookEvent
	parseErr  error
}

func (g *scriptedGateway) Name() string { return "Scripted" }

func (g *scriptedGateway) CreatePayment(_ context.Context, _ float64, _, _ string) (payment.Order, error) {
	return payment.Order{}, nil
}

func (g *scriptedGateway) CapturePayment(_ context.Context, _ string) (payment.Capture, error) {
	return payment.Capture{}, nil
}

func (g *scriptedGateway) VerifyWebhook(_ context.Context, _ http.Header, _ []byte) error {
	return g.verifyErr
}

func (g *scriptedGateway) ParseWebhookEvent(_ []byte) (payment.WebhookEvent, error) {
	return g.event, g.parseErr
}

type recorderSpy struct {
	captures    []payment.Capture
	captureIDs  []string
	alreadyPaid bool
	failures    []booking.EventType
	approvals   []string
}

func (r *recorderSpy) RecordCapture(_ context.Context, bookingID string, captured payment.Capture) (bool, error) {
	r.captureIDs = append(r.captureIDs, bookingID)
	r.captures = append(r.captures, captured)
	return r.alreadyPaid, nil
}

func (r *recorderSpy) RecordFailure(_ context.Context, _ string, evType booking.EventType, _ string) error {
	r.failures = append(r.failures, evType)
	return nil
}

func (r *recorderSpy) RecordOrderApproved(_ context.Context, _ string, orderID string) error {
	r.approvals = append(r.approvals, orderID)
	return nil
}

func (r *recorderSpy) mutations() int {
	return len(r.captures) + len(r.failures) + len(r.approvals)
}

func newProcessor(gw payment.Gateway, spy BookingRecorder) *Processor {
	return NewProcessor(map[model.PaymentMethod]payment.Gateway{model.MethodStripe: gw}, spy)
}

func TestProcessRejectsBadSignatureBeforeAnything(t *testing.T) {
	spy := &recorderSpy{}
	gw := &scriptedGateway{
		verifyErr: payment.ErrVerificationFailed,
		event: payment.WebhookEvent{
			Kind:     payment.EventCaptureCompleted,
			Resource: map[string]any{"custom_id": "rec1"},
		},
	}

	_, err := newProcessor(gw, spy).Process(context.Background(), model.MethodStripe, http.Header{}, []byte("{}"))
	assert.ErrorIs(t, err, payment.ErrVerificationFailed)
	assert.Zero(t, spy.mutations())
}

func TestProcessCaptureCompleted(t *testing.T) {
	spy := &recorderSpy{}
	gw := &scriptedGateway{event: payment.WebhookEvent{
		Type: "PAYMENT.CAPTURE.COMPLETED",
		Kind: payment.EventCaptureCompleted,
		Resource: map[string]any{
			"id":        "cap_9",
			"status":    "COMPLETED",
			"custom_id": "rec1",
			"amount":    map[string]any{"value": "20.00", "currency_code": "USD"},
			"payer": map[string]any{
				"email_address": "ada@example.org",
				"name":          map[string]any{"given_name": "Ada", "surname": "Lovelace"},
			},
		},
	}}

	outcome, err := newProcessor(gw, spy).Process(context.Background(), model.MethodStripe, http.Header{}, []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, outcome.Status)

	require.Len(t, spy.captures, 1)
	assert.Equal(t, []string{"rec1"}, spy.captureIDs)
	got := spy.captures[0]
	assert.Equal(t, "cap_9", got.Reference)
	assert.Equal(t, 20.0, got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "ada@example.org", got.PayerEmail)
	assert.Equal(t, "Ada Lovelace", got.PayerName)
}

func TestProcessDuplicateDelivery(t *testing.T) {
	spy := &recorderSpy{alreadyPaid: true}
	gw := &scriptedGateway{event: payment.WebhookEvent{
		Kind:     payment.EventCaptureCompleted,
		Resource: map[string]any{"custom_id": "rec1"},
	}}

	outcome, err := newProcessor(gw, spy).Process(context.Background(), model.MethodStripe, http.Header{}, []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyProcessed, outcome.Status)
}

func TestProcessFailureKinds(t *testing.T) {
	tests := []struct {
		kind payment.Kind
		want booking.EventType
	}{
		{payment.EventCaptureDenied, booking.EventCaptureFailed},
		{payment.EventRefunded, booking.EventRefunded},
		{payment.EventReversed, booking.EventReversed},
	}
	for _, tc := range tests {
		spy := &recorderSpy{}
		gw := &scriptedGateway{event: payment.WebhookEvent{
			Kind:     tc.kind,
			Resource: map[string]any{"id": "evt_1", "custom_id": "rec1"},
		}}
		outcome, err := newProcessor(gw, spy).Process(context.Background(), model.MethodStripe, http.Header{}, []byte("{}"))
		require.NoError(t, err)
		assert.Equal(t, StatusProcessed, outcome.Status)
		assert.Equal(t, []booking.EventType{tc.want}, spy.failures)
	}
}

func TestProcessIgnoredAndUncorrelated(t *testing.T) {
	spy := &recorderSpy{}

	gw := &scriptedGateway{event: payment.WebhookEvent{Type: "invoice.created", Kind: payment.EventIgnored}}
	outcome, err := newProcessor(gw, spy).Process(context.Background(), model.MethodStripe, http.Header{}, []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, outcome.Status)

	// A known event with no booking reference is acknowledged too.
	gw.event = payment.WebhookEvent{Kind: payment.EventCaptureCompleted, Resource: map[string]any{"id": "cap_1"}}
	outcome, err = newProcessor(gw, spy).Process(context.Background(), model.MethodStripe, http.Header{}, []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, outcome.Status)
	assert.Zero(t, spy.mutations())
}

func TestExtractBookingIDPriority(t *testing.T) {
	tests := []struct {
		name     string
		resource map[string]any
		want     string
	}{
		{
			name:     "stripe metadata",
			resource: map[string]any{"metadata": map[string]any{"booking_id": "recMeta"}},
			want:     "recMeta",
		},
		{
			name: "metadata beats custom_id",
			resource: map[string]any{
				"metadata":  map[string]any{"booking_id": "recMeta"},
				"custom_id": "recCustom",
			},
			want: "recMeta",
		},
		{
			name:     "top-level custom_id",
			resource: map[string]any{"custom_id": "recCustom"},
			want:     "recCustom",
		},
		{
			name: "purchase unit custom_id",
			resource: map[string]any{
				"purchase_units": []any{map[string]any{"custom_id": "recUnit"}},
			},
			want: "recUnit",
		},
		{
			name: "prefixed reference id",
			resource: map[string]any{
				"purchase_units": []any{map[string]any{"reference_id": "booking_recRef"}},
			},
			want: "recRef",
		},
		{
			name:     "unprefixed reference id is not trusted",
			resource: map[string]any{"reference_id": "default", "invoice_id": "recInv"},
			want:     "recInv",
		},
		{
			name: "link fallback",
			resource: map[string]any{
				"links": []any{
					map[string]any{"href": "https://api.example.com/v2/payments/captures/cap_1"},
					map[string]any{"href": "https://example.org/v1/bookings/recLink?tok=x"},
				},
			},
			want: "recLink",
		},
		{
			name:     "nothing to extract",
			resource: map[string]any{"id": "cap_1"},
			want:     "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractBookingID(tc.resource))
		})
	}
}

func TestCaptureFromResourceStripeCents(t *testing.T) {
	got := captureFromResource(map[string]any{
		"id":           "cs_1",
		"amount_total": 2500.0,
		"currency":     "usd",
		"customer_details": map[string]any{
			"email": "grace@example.org",
			"name":  "Grace Hopper",
		},
	})
	assert.Equal(t, 25.0, got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "grace@example.org", got.PayerEmail)
	assert.Equal(t, "Grace Hopper", got.PayerName)
}

func TestCaptureFromResourcePaymentIntentCents(t *testing.T) {
	got := captureFromResource(map[string]any{
		"id":            "pi_1",
		"status":        "succeeded",
		"amount":        4250.0,
		"currency":      "eur",
		"receipt_email": "ada@example.org",
		"metadata":      map[string]any{"booking_id": "recBK1"},
	})
	assert.Equal(t, 42.5, got.Amount)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "pi_1", got.Reference)
	assert.Equal(t, "ada@example.org", got.PayerEmail)
}
