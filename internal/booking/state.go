// Package booking holds the booking state machine and the service that
// orchestrates saves and payment captures around it.  The machine itself
// is a pure function from (current state, event) to (next state, side
// effects) so the transition rules can be tested without any I/O.
package booking

import (
	"fmt"

	"github.com/otworld/assembly-bookings/internal/model"
)

// State is the (status, payment status) pair.  The two are only ever
// written together; no transition leaves a half-updated pair behind.
type State struct {
	Status        model.Status
	PaymentStatus model.PaymentStatus
}

// EventType enumerates the inputs that can move a booking.
type EventType string

const (
	// EventSave is a form submission: item selection plus payment method.
	EventSave EventType = "save"
	// EventCaptureSucceeded is a successful gateway capture, whether from
	// an explicit capture call or a webhook.
	EventCaptureSucceeded EventType = "capture_succeeded"
	// EventCaptureFailed is a failed or denied capture/charge.
	EventCaptureFailed EventType = "capture_failed"
	// EventRefunded is a refund webhook for a previously captured payment.
	EventRefunded EventType = "refunded"
	// EventReversed is a chargeback/reversal webhook.
	EventReversed EventType = "reversed"
	// EventOrderApproved is the informational pre-capture approval.
	EventOrderApproved EventType = "order_approved"
)

// Event carries the input to a transition.  Total and Method are only
// meaningful for EventSave.
type Event struct {
	Type   EventType
	Method model.PaymentMethod
	Total  float64
}

// SideEffect names work the caller must perform after persisting the next
// state.  The machine decides, the service executes.
type SideEffect string

const (
	// EffectCreateGatewayOrder means an online payment must be initiated
	// with the selected gateway.
	EffectCreateGatewayOrder SideEffect = "create_gateway_order"
	// EffectGenerateConfirmation means the confirmation document must be
	// (re)generated and emailed.
	EffectGenerateConfirmation SideEffect = "generate_confirmation"
	// EffectClearPaymentMethod means the stored payment method must be
	// nulled; set when a zero total makes payment irrelevant.
	EffectClearPaymentMethod SideEffect = "clear_payment_method"
)

// Result is the outcome of a transition.
type Result struct {
	Next    State
	Effects []SideEffect
	// AlreadyDone marks a duplicate delivery recognised as a no-op, such
	// as a second capture-succeeded event for an already-paid booking.
	// The caller answers success-shaped without mutating anything.
	AlreadyDone bool
}

// Transition computes the next state for an event.  The zero-total
// short-circuit on save takes priority over the selected payment method.
// Unknown event types are an error; callers decide whether that is fatal
// (API calls) or acknowledged (webhooks).
func Transition(current State, ev Event) (Result, error) {
	switch ev.Type {
	case EventSave:
		if ev.Total == 0 {
			return Result{
				Next:    State{model.StatusComplete, model.PaymentNotRequired},
				Effects: []SideEffect{EffectClearPaymentMethod},
			}, nil
		}
		if ev.Method == model.MethodCash {
			return Result{Next: State{model.StatusPending, model.PaymentUnpaid}}, nil
		}
		return Result{
			Next:    State{model.StatusPending, model.PaymentPending},
			Effects: []SideEffect{EffectCreateGatewayOrder},
		}, nil

	case EventCaptureSucceeded:
		if current.PaymentStatus == model.PaymentPaid {
			return Result{Next: current, AlreadyDone: true}, nil
		}
		return Result{
			Next:    State{model.StatusComplete, model.PaymentPaid},
			Effects: []SideEffect{EffectGenerateConfirmation},
		}, nil

	case EventCaptureFailed:
		return Result{Next: State{model.StatusFailed, model.PaymentError}}, nil

	case EventRefunded:
		return Result{Next: State{model.StatusFailed, model.PaymentRefunded}}, nil

	case EventReversed:
		return Result{Next: State{model.StatusFailed, model.PaymentVoid}}, nil

	case EventOrderApproved:
		// An approval delivered after the capture already landed must not
		// knock a paid booking back to pending.
		if current.PaymentStatus == model.PaymentPaid {
			return Result{Next: current, AlreadyDone: true}, nil
		}
		return Result{Next: State{model.StatusPending, model.PaymentPending}}, nil
	}
	return Result{}, fmt.Errorf("booking: unknown event type %q", ev.Type)
}

// Has reports whether the effect list contains e.
func (r Result) Has(e SideEffect) bool {
	for _, eff := range r.Effects {
		if eff == e {
			return true
		}
	}
	return false
}
