// Package webhook turns verified gateway notifications into booking state
// changes.  Verification always comes first: a delivery that fails its
// signature check is rejected before anything in the body is trusted, and
// everything after authentication is acknowledged with 200 so the gateway
// stops retrying, even when the event is unknown or uncorrelatable.
package webhook

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/otworld/assembly-bookings/internal/booking"
	"github.com/otworld/assembly-bookings/internal/model"
	"github.com/otworld/assembly-bookings/internal/payment"
)

// BookingRecorder is the slice of the booking service the processor
// drives.  Every mutation is funneled through it so webhook handling
// shares the same idempotence guard as browser-initiated captures.
type BookingRecorder interface {
	RecordCapture(ctx context.Context, bookingID string, captured payment.Capture) (alreadyDone bool, err error)
	RecordFailure(ctx context.Context, bookingID string, evType booking.EventType, reference string) error
	RecordOrderApproved(ctx context.Context, bookingID, orderID string) error
}

// Outcome is what the handler reports back to the gateway.  All outcomes
// except a verification failure answer 200.
type Outcome struct {
	Status  string
	Message string
}

const (
	StatusProcessed        = "processed"
	StatusAlreadyProcessed = "already_processed"
	StatusIgnored          = "ignored"
)

// Processor authenticates, decodes and applies webhook deliveries.
type Processor struct {
	gateways map[model.PaymentMethod]payment.Gateway
	bookings BookingRecorder
}

// NewProcessor wires a Processor.
func NewProcessor(gateways map[model.PaymentMethod]payment.Gateway, bookings BookingRecorder) *Processor {
	return &Processor{gateways: gateways, bookings: bookings}
}

// Process handles one delivery for the given gateway.  It returns
// payment.ErrVerificationFailed when the signature check fails; the
// handler maps that to 401.  Any other problem after authentication is
// folded into the Outcome so the gateway sees a 200 and does not retry a
// delivery this service has already understood.
func (p *Processor) Process(ctx context.Context, method model.PaymentMethod, header http.Header, body []byte) (Outcome, error) {
	gw, ok := p.gateways[method]
	if !ok {
		return Outcome{}, fmt.Errorf("webhook: no gateway for method %q", method)
	}
	if err := gw.VerifyWebhook(ctx, header, body); err != nil {
		log.Printf("[WEBHOOK] %s verification failed: %v", gw.Name(), err)
		return Outcome{}, err
	}
	ev, err := gw.ParseWebhookEvent(body)
	if err != nil {
		log.Printf("[WEBHOOK] %s unparseable payload: %v", gw.Name(), err)
		return Outcome{Status: StatusIgnored, Message: "unparseable payload"}, nil
	}
	if ev.Kind == payment.EventIgnored {
		return Outcome{Status: StatusIgnored, Message: "event type " + ev.Type}, nil
	}

	bookingID := ExtractBookingID(ev.Resource)
	if bookingID == "" {
		log.Printf("[WEBHOOK] %s event %s carried no booking reference", gw.Name(), ev.Type)
		return Outcome{Status: StatusIgnored, Message: "no booking reference"}, nil
	}

	switch ev.Kind {
	case payment.EventCaptureCompleted:
		done, err := p.bookings.RecordCapture(ctx, bookingID, captureFromResource(ev.Resource))
		if err != nil {
			return Outcome{}, err
		}
		if done {
			return Outcome{Status: StatusAlreadyProcessed, Message: "booking already paid"}, nil
		}
		return Outcome{Status: StatusProcessed, Message: "payment recorded"}, nil

	case payment.EventCaptureDenied:
		if err := p.bookings.RecordFailure(ctx, bookingID, booking.EventCaptureFailed, resourceString(ev.Resource, "id")); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusProcessed, Message: "capture denial recorded"}, nil

	case payment.EventRefunded:
		if err := p.bookings.RecordFailure(ctx, bookingID, booking.EventRefunded, resourceString(ev.Resource, "id")); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusProcessed, Message: "refund recorded"}, nil

	case payment.EventReversed:
		if err := p.bookings.RecordFailure(ctx, bookingID, booking.EventReversed, resourceString(ev.Resource, "id")); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusProcessed, Message: "reversal recorded"}, nil

	case payment.EventOrderApproved:
		if err := p.bookings.RecordOrderApproved(ctx, bookingID, resourceString(ev.Resource, "id")); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusProcessed, Message: "order approval recorded"}, nil
	}

	return Outcome{Status: StatusIgnored, Message: "unhandled event kind"}, nil
}

var bookingLinkRe = regexp.MustCompile(`/bookings/([a-zA-Z0-9]+)`)

// extractors try the known correlation-id locations in priority order.
// Direct tags (metadata, custom_id) beat structural fallbacks (invoice
// ids, resource links).
var extractors = []func(map[string]any) string{
	func(r map[string]any) string { // Stripe metadata tag
		if md, ok := r["metadata"].(map[string]any); ok {
			if id, ok := md["booking_id"].(string); ok {
				return id
			}
		}
		return ""
	},
	func(r map[string]any) string { // top-level custom_id
		return resourceString(r, "custom_id")
	},
	func(r map[string]any) string { // purchase unit custom_id
		for _, pu := range resourceSlice(r, "purchase_units") {
			if id := resourceString(pu, "custom_id"); id != "" {
				return id
			}
		}
		return ""
	},
	func(r map[string]any) string { // prefixed reference_id
		if id := strippedReference(resourceString(r, "reference_id")); id != "" {
			return id
		}
		for _, pu := range resourceSlice(r, "purchase_units") {
			if id := strippedReference(resourceString(pu, "reference_id")); id != "" {
				return id
			}
		}
		return ""
	},
	func(r map[string]any) string { // invoice id reused as booking id
		return resourceString(r, "invoice_id")
	},
	func(r map[string]any) string { // HATEOAS link back to the order
		for _, ln := range resourceSlice(r, "links") {
			if m := bookingLinkRe.FindStringSubmatch(resourceString(ln, "href")); m != nil {
				return m[1]
			}
		}
		return ""
	},
}

// ExtractBookingID walks the correlation-id locations and returns the
// first hit, or "" when the resource carries no booking reference.
func ExtractBookingID(resource map[string]any) string {
	for _, ex := range extractors {
		if id := ex(resource); id != "" {
			return id
		}
	}
	return ""
}

func strippedReference(ref string) string {
	if len(ref) > len(payment.BookingReferencePrefix) && ref[:len(payment.BookingReferencePrefix)] == payment.BookingReferencePrefix {
		return ref[len(payment.BookingReferencePrefix):]
	}
	return ""
}

// captureFromResource normalises the capture details a completed-payment
// webhook carries.  Stripe reports integer cents (amount_total on a
// checkout session, amount on a payment intent), PayPal a decimal
// string; all end up as the major-unit amount stored on the booking.
func captureFromResource(r map[string]any) payment.Capture {
	c := payment.Capture{
		Completed: true,
		Status:    resourceString(r, "status"),
		Reference: resourceString(r, "id"),
	}
	switch {
	case hasFloat(r, "amount_total"):
		c.Amount = r["amount_total"].(float64) / 100
		c.Currency = strings.ToUpper(resourceString(r, "currency"))
	case hasFloat(r, "amount"):
		c.Amount = r["amount"].(float64) / 100
		c.Currency = strings.ToUpper(resourceString(r, "currency"))
	default:
		if amt, ok := r["amount"].(map[string]any); ok {
			if v, err := strconv.ParseFloat(resourceString(amt, "value"), 64); err == nil {
				c.Amount = v
			}
			c.Currency = resourceString(amt, "currency_code")
		}
	}
	if payer, ok := r["payer"].(map[string]any); ok {
		c.PayerEmail = resourceString(payer, "email_address")
		if name, ok := payer["name"].(map[string]any); ok {
			c.PayerName = joinName(resourceString(name, "given_name"), resourceString(name, "surname"))
		}
	} else if details, ok := r["customer_details"].(map[string]any); ok {
		c.PayerEmail = resourceString(details, "email")
		c.PayerName = resourceString(details, "name")
	}
	if c.PayerEmail == "" {
		c.PayerEmail = resourceString(r, "receipt_email")
	}
	return c
}

func hasFloat(r map[string]any, key string) bool {
	_, ok := r[key].(float64)
	return ok
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

func resourceString(r map[string]any, key string) string {
	s, _ := r[key].(string)
	return s
}

func resourceSlice(r map[string]any, key string) []map[string]any {
	raw, _ := r[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
