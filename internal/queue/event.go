// Package queue defines message payloads exchanged over the message
// broker and the publisher that sends them.
package queue

// PaymentRecordedEvent is published when a payment capture is recorded
// against a booking. It contains enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// record store.
type PaymentRecordedEvent struct {
	BookingID  string  `json:"booking_id"`
	Method     string  `json:"method"`
	Amount     float64 `json:"amount"`
	Reference  string  `json:"reference"`
	RecordedAt string  `json:"recorded_at"`
}

// BookingCompletedEvent is published when a booking reaches the Complete
// status, whether through a paid capture or a zero-total save.
type BookingCompletedEvent struct {
	BookingID   string `json:"booking_id"`
	CompletedAt string `json:"completed_at"`
}
