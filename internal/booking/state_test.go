package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otworld/assembly-bookings/internal/model"
)

func TestTransitionSave(t *testing.T) {
	tests := []struct {
		name        string
		ev          Event
		wantState   State
		wantEffects []SideEffect
	}{
		{
			name:        "zero total completes without payment",
			ev:          Event{Type: EventSave, Method: model.MethodStripe, Total: 0},
			wantState:   State{model.StatusComplete, model.PaymentNotRequired},
			wantEffects: []SideEffect{EffectClearPaymentMethod},
		},
		{
			name:      "cash waits for the desk",
			ev:        Event{Type: EventSave, Method: model.MethodCash, Total: 25},
			wantState: State{model.StatusPending, model.PaymentUnpaid},
		},
		{
			name:        "stripe needs a gateway order",
			ev:          Event{Type: EventSave, Method: model.MethodStripe, Total: 25},
			wantState:   State{model.StatusPending, model.PaymentPending},
			wantEffects: []SideEffect{EffectCreateGatewayOrder},
		},
		{
			name:        "paypal needs a gateway order",
			ev:          Event{Type: EventSave, Method: model.MethodPayPal, Total: 99.5},
			wantState:   State{model.StatusPending, model.PaymentPending},
			wantEffects: []SideEffect{EffectCreateGatewayOrder},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Transition(State{model.StatusPending, model.PaymentPending}, tc.ev)
			require.NoError(t, err)
			assert.Equal(t, tc.wantState, res.Next)
			assert.Equal(t, tc.wantEffects, res.Effects)
			assert.False(t, res.AlreadyDone)
		})
	}
}

func TestTransitionZeroTotalBeatsCash(t *testing.T) {
	// A zero total wins over every selected method, cash included.
	res, err := Transition(State{}, Event{Type: EventSave, Method: model.MethodCash, Total: 0})
	require.NoError(t, err)
	assert.Equal(t, State{model.StatusComplete, model.PaymentNotRequired}, res.Next)
	assert.True(t, res.Has(EffectClearPaymentMethod))
}

func TestTransitionCaptureSucceeded(t *testing.T) {
	res, err := Transition(State{model.StatusPending, model.PaymentPending}, Event{Type: EventCaptureSucceeded})
	require.NoError(t, err)
	assert.Equal(t, State{model.StatusComplete, model.PaymentPaid}, res.Next)
	assert.True(t, res.Has(EffectGenerateConfirmation))
	assert.False(t, res.AlreadyDone)
}

func TestTransitionCaptureSucceededAlreadyPaid(t *testing.T) {
	current := State{model.StatusComplete, model.PaymentPaid}
	res, err := Transition(current, Event{Type: EventCaptureSucceeded})
	require.NoError(t, err)
	assert.True(t, res.AlreadyDone)
	assert.Equal(t, current, res.Next)
	assert.Empty(t, res.Effects)
}

func TestTransitionFailureEvents(t *testing.T) {
	tests := []struct {
		ev   EventType
		want model.PaymentStatus
	}{
		{EventCaptureFailed, model.PaymentError},
		{EventRefunded, model.PaymentRefunded},
		{EventReversed, model.PaymentVoid},
	}
	for _, tc := range tests {
		res, err := Transition(State{model.StatusPending, model.PaymentPending}, Event{Type: tc.ev})
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, res.Next.Status)
		assert.Equal(t, tc.want, res.Next.PaymentStatus)
	}
}

func TestTransitionOrderApproved(t *testing.T) {
	res, err := Transition(State{model.StatusPending, model.PaymentPending}, Event{Type: EventOrderApproved})
	require.NoError(t, err)
	assert.Equal(t, State{model.StatusPending, model.PaymentPending}, res.Next)
	assert.False(t, res.AlreadyDone)
}

func TestTransitionOrderApprovedAfterCapture(t *testing.T) {
	// Gateways do not guarantee delivery order; an approval landing after
	// the capture must not reopen the booking.
	current := State{model.StatusComplete, model.PaymentPaid}
	res, err := Transition(current, Event{Type: EventOrderApproved})
	require.NoError(t, err)
	assert.True(t, res.AlreadyDone)
	assert.Equal(t, current, res.Next)
	assert.Empty(t, res.Effects)
}

func TestTransitionUnknownEvent(t *testing.T) {
	_, err := Transition(State{}, Event{Type: "telepathy"})
	assert.Error(t, err)
}
