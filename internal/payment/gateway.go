// Package payment adapts the two supported payment processors behind one
// contract.  The adapters are deliberately thin: they speak each
// processor's REST API, verify webhook authenticity, and normalise the
// handful of fields the booking flow cares about.  Everything else in the
// gateway payloads is opaque to this service.
package payment

import (
	"context"
	"errors"
	"net/http"
)

// ErrVerificationFailed is returned by VerifyWebhook when a payload's
// signature cannot be authenticated.  Handlers answer 401 and must not
// interpret the payload any further.
var ErrVerificationFailed = errors.New("payment: webhook verification failed")

// Order is a created-but-not-captured payment on the gateway side.
// ClientToken is what the browser needs to continue: a Stripe client
// secret or a PayPal order id.
type Order struct {
	ID          string
	ClientToken string
}

// Capture is the normalised outcome of a capture call.
type Capture struct {
	Completed  bool
	Status     string
	Reference  string
	Amount     float64
	Currency   string
	PayerEmail string
	PayerName  string
}

// Kind names the concrete webhook event categories the booking flow
// reacts to.  Anything else is EventIgnored and acknowledged untouched.
type Kind string

const (
	EventCaptureCompleted Kind = "capture_completed"
	EventCaptureDenied    Kind = "capture_denied"
	EventRefunded         Kind = "refunded"
	EventReversed         Kind = "reversed"
	EventOrderApproved    Kind = "order_approved"
	EventIgnored          Kind = "ignored"
)

// WebhookEvent is a verified, parsed webhook delivery.  Resource holds
// the raw event object for the correlation-id extractors.
type WebhookEvent struct {
	Type     string // gateway-native event type, for logging
	Kind     Kind
	Resource map[string]any
}

// Gateway is the contract both processors implement.
type Gateway interface {
	// Name returns the payment-method label stored on bookings.
	Name() string
	// CreatePayment initiates an order/intent for the amount, tagging it
	// with the booking id so webhooks can be correlated back.
	CreatePayment(ctx context.Context, amount float64, currency, bookingID string) (Order, error)
	// CapturePayment captures a previously created payment.
	CapturePayment(ctx context.Context, paymentID string) (Capture, error)
	// VerifyWebhook authenticates a raw delivery.  It must be called
	// before ParseWebhookEvent; unverified payloads are never parsed.
	VerifyWebhook(ctx context.Context, header http.Header, body []byte) error
	// ParseWebhookEvent decodes a verified delivery.
	ParseWebhookEvent(body []byte) (WebhookEvent, error)
}
