package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/otworld/assembly-bookings/internal/model"
	"github.com/otworld/assembly-bookings/internal/payment"
)

var (
	// ErrInvalidMethod rejects a save naming an unsupported payment method.
	ErrInvalidMethod = errors.New("booking: invalid payment method")
	// ErrDietaryTooLong rejects dietary requirements over the field cap.
	ErrDietaryTooLong = fmt.Errorf("booking: dietary requirements exceed %d characters", model.MaxDietaryLen)
	// ErrNoGateway means the selected method has no configured gateway.
	ErrNoGateway = errors.New("booking: payment gateway not configured")
)

// BookingStore is the slice of the booking repository the service uses.
type BookingStore interface {
	Find(ctx context.Context, id string) (model.Booking, error)
	Update(ctx context.Context, id string, fields map[string]any) (model.Booking, error)
}

// ItemCatalog resolves bookable item ids to their catalog rows.
type ItemCatalog interface {
	Find(ctx context.Context, id string) (model.BookableItem, error)
}

// LineItemStore manages the per-booking line-item snapshots.
type LineItemStore interface {
	DeleteAllForBooking(ctx context.Context, bookingID string) error
	CreateSnapshot(ctx context.Context, bookingID string, item model.BookableItem) (model.BookedItem, error)
}

// ConfirmationGenerator regenerates the attendee's confirmation document.
type ConfirmationGenerator interface {
	EnsureFresh(ctx context.Context, bookingID string, force bool) (string, error)
}

// EventPublisher fans booking lifecycle events out to the message broker.
// Publishing is best effort; the service logs failures and moves on.
type EventPublisher interface {
	PublishPaymentRecorded(ctx context.Context, bookingID string, method model.PaymentMethod, amount float64, reference string) error
	PublishBookingCompleted(ctx context.Context, bookingID string) error
}

// Service orchestrates booking saves and payment state changes.  All
// writes go through Transition so the status pair rules live in exactly
// one place.
type Service struct {
	bookings      BookingStore
	catalog       ItemCatalog
	lineItems     LineItemStore
	confirmations ConfirmationGenerator
	gateways      map[model.PaymentMethod]payment.Gateway
	events        EventPublisher
	currency      string
}

// NewService wires a Service.  confirmations and events may be nil, in
// which case those side effects are skipped.
func NewService(bookings BookingStore, catalog ItemCatalog, lineItems LineItemStore, confirmations ConfirmationGenerator, gateways map[model.PaymentMethod]payment.Gateway, events EventPublisher, currency string) *Service {
	return &Service{
		bookings:      bookings,
		catalog:       catalog,
		lineItems:     lineItems,
		confirmations: confirmations,
		gateways:      gateways,
		events:        events,
		currency:      currency,
	}
}

// SaveRequest is a form submission: the full desired item selection plus
// the chosen payment method.  The selection replaces whatever was booked
// before; it is not a delta.
type SaveRequest struct {
	BookingID string
	ItemIDs   []string
	Dietary   string
	Method    model.PaymentMethod
}

// SaveResult tells the caller how to proceed.  Payment is "None" when
// nothing is owed, "Cash" for offline settlement, or the gateway name
// with OrderID/ClientToken set for an online payment the browser must
// now complete.
type SaveResult struct {
	Payment     string
	BookingID   string
	OrderID     string
	ClientToken string
	Total       float64
}

// Save replaces the booking's line items with the requested selection,
// recomputes totals and advances the state machine.  Item ids that no
// longer exist in the catalog are skipped silently so a stale form cannot
// fail the whole save.
func (s *Service) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	if req.Method != model.MethodNone && !model.ValidMethod(req.Method) {
		return SaveResult{}, ErrInvalidMethod
	}
	if len(req.Dietary) > model.MaxDietaryLen {
		return SaveResult{}, ErrDietaryTooLong
	}

	bkg, err := s.bookings.Find(ctx, req.BookingID)
	if err != nil {
		return SaveResult{}, err
	}

	// Replace the selection wholesale: delete every existing snapshot,
	// then recreate one per requested item.
	if err := s.lineItems.DeleteAllForBooking(ctx, bkg.ID); err != nil {
		return SaveResult{}, fmt.Errorf("booking: clear line items: %w", err)
	}

	var (
		snapshotIDs []string
		subtotal    float64
	)
	for _, itemID := range req.ItemIDs {
		item, err := s.catalog.Find(ctx, itemID)
		if err != nil {
			log.Printf("[BOOKING] save %s: skipping unknown item %s: %v", bkg.ID, itemID, err)
			continue
		}
		snap, err := s.lineItems.CreateSnapshot(ctx, bkg.ID, item)
		if err != nil {
			return SaveResult{}, fmt.Errorf("booking: snapshot item %s: %w", itemID, err)
		}
		snapshotIDs = append(snapshotIDs, snap.ID)
		subtotal += item.Cost
	}

	total := model.TotalAfterDiscount(subtotal, bkg.Discount)

	ev := Event{Type: EventSave, Method: req.Method, Total: total}
	res, err := Transition(State{bkg.Status, bkg.PaymentStatus}, ev)
	if err != nil {
		return SaveResult{}, err
	}

	fields := map[string]any{
		"Dietary Requirements": req.Dietary,
		"Booked Items":         snapshotIDs,
		"Subtotal":             subtotal,
		"Total":                total,
		"Status":               string(res.Next.Status),
		"Payment Status":       string(res.Next.PaymentStatus),
	}
	if res.Has(EffectClearPaymentMethod) {
		fields["Payment Method"] = nil
	} else {
		fields["Payment Method"] = string(req.Method)
	}
	if _, err := s.bookings.Update(ctx, bkg.ID, fields); err != nil {
		return SaveResult{}, fmt.Errorf("booking: persist save: %w", err)
	}

	out := SaveResult{BookingID: bkg.ID, Total: total}
	switch {
	case res.Has(EffectClearPaymentMethod):
		out.Payment = "None"
	case !res.Has(EffectCreateGatewayOrder):
		out.Payment = string(req.Method)
	default:
		gw, ok := s.gateways[req.Method]
		if !ok {
			return SaveResult{}, ErrNoGateway
		}
		// The booking already sits at Pending/Pending, so a gateway
		// outage here is retryable: the attendee can submit again.
		order, err := gw.CreatePayment(ctx, total, s.currency, bkg.ID)
		if err != nil {
			return SaveResult{}, fmt.Errorf("booking: create %s order: %w", gw.Name(), err)
		}
		out.Payment = gw.Name()
		out.OrderID = order.ID
		out.ClientToken = order.ClientToken
	}
	return out, nil
}

// RecordCapture applies a successful payment capture.  It is idempotent:
// a booking already marked Paid is left untouched and reported as
// alreadyDone, so duplicate webhook deliveries and a webhook racing the
// browser's capture call cannot double-process.
func (s *Service) RecordCapture(ctx context.Context, bookingID string, captured payment.Capture) (alreadyDone bool, err error) {
	bkg, err := s.bookings.Find(ctx, bookingID)
	if err != nil {
		return false, err
	}

	res, err := Transition(State{bkg.Status, bkg.PaymentStatus}, Event{Type: EventCaptureSucceeded})
	if err != nil {
		return false, err
	}
	if res.AlreadyDone {
		log.Printf("[BOOKING] capture for %s already recorded, skipping", bookingID)
		return true, nil
	}

	fields := map[string]any{
		"Status":            string(res.Next.Status),
		"Payment Status":    string(res.Next.PaymentStatus),
		"Payment Reference": captured.Reference,
		"Payment Date":      time.Now().UTC().Format("2006-01-02"),
		"Payment Amount":    captured.Amount,
	}
	if captured.PayerEmail != "" {
		fields["Payer Email"] = captured.PayerEmail
	}
	if captured.PayerName != "" {
		fields["Payer Name"] = captured.PayerName
	}
	if _, err := s.bookings.Update(ctx, bookingID, fields); err != nil {
		return false, fmt.Errorf("booking: persist capture: %w", err)
	}

	if res.Has(EffectGenerateConfirmation) && s.confirmations != nil {
		if _, err := s.confirmations.EnsureFresh(ctx, bookingID, true); err != nil {
			log.Printf("[BOOKING] confirmation for %s: %v", bookingID, err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishPaymentRecorded(ctx, bookingID, bkg.PaymentMethod, captured.Amount, captured.Reference); err != nil {
			log.Printf("[BOOKING] publish payment event for %s: %v", bookingID, err)
		}
		if err := s.events.PublishBookingCompleted(ctx, bookingID); err != nil {
			log.Printf("[BOOKING] publish completion event for %s: %v", bookingID, err)
		}
	}
	return false, nil
}

// RecordFailure moves a booking to Failed with the payment status the
// event type dictates: Error for a denied capture, Refunded for a
// refund, Void for a reversal.
func (s *Service) RecordFailure(ctx context.Context, bookingID string, evType EventType, reference string) error {
	bkg, err := s.bookings.Find(ctx, bookingID)
	if err != nil {
		return err
	}
	res, err := Transition(State{bkg.Status, bkg.PaymentStatus}, Event{Type: evType})
	if err != nil {
		return err
	}
	fields := map[string]any{
		"Status":         string(res.Next.Status),
		"Payment Status": string(res.Next.PaymentStatus),
	}
	if reference != "" {
		fields["Payment Reference"] = reference
	}
	if _, err := s.bookings.Update(ctx, bookingID, fields); err != nil {
		return fmt.Errorf("booking: persist failure: %w", err)
	}
	return nil
}

// RecordOrderApproved stores the gateway order id on a booking after the
// payer approved the order but before capture.  Informational only; the
// state stays Pending/Pending.  A late approval arriving after the
// capture leaves the paid booking untouched.
func (s *Service) RecordOrderApproved(ctx context.Context, bookingID, orderID string) error {
	bkg, err := s.bookings.Find(ctx, bookingID)
	if err != nil {
		return err
	}
	res, err := Transition(State{bkg.Status, bkg.PaymentStatus}, Event{Type: EventOrderApproved})
	if err != nil {
		return err
	}
	if res.AlreadyDone {
		log.Printf("[BOOKING] ignoring late order approval %s for paid booking %s", orderID, bookingID)
		return nil
	}
	_, err = s.bookings.Update(ctx, bookingID, map[string]any{
		"Status":         string(res.Next.Status),
		"Payment Status": string(res.Next.PaymentStatus),
		"Order ID":       orderID,
	})
	if err != nil {
		return fmt.Errorf("booking: persist order approval: %w", err)
	}
	return nil
}

// Capture drives the browser-initiated capture path: capture at the
// gateway, then record the outcome.  A capture the gateway reports as
// not completed records a failure instead.
func (s *Service) Capture(ctx context.Context, method model.PaymentMethod, bookingID, paymentID string) (alreadyDone bool, err error) {
	gw, ok := s.gateways[method]
	if !ok {
		return false, ErrNoGateway
	}
	captured, err := gw.CapturePayment(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("booking: capture via %s: %w", gw.Name(), err)
	}
	if !captured.Completed {
		if err := s.RecordFailure(ctx, bookingID, EventCaptureFailed, captured.Reference); err != nil {
			return false, err
		}
		return false, fmt.Errorf("booking: capture not completed (status %s)", captured.Status)
	}
	return s.RecordCapture(ctx, bookingID, captured)
}
