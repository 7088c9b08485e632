package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/otworld/assembly-bookings/internal/model"
)

const (
	paymentRecordedQueue  = "booking.payment_recorded"
	bookingCompletedQueue = "booking.completed"
)

// Publisher sends booking lifecycle events to RabbitMQ. It dials per
// publish so a broker restart between events never leaves it holding a
// dead connection. Any error is logged and returned so callers can
// choose to ignore it; messages are marked persistent.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher for the given AMQP URL. An empty URL
// disables publishing: every call becomes a logged no-op.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// PublishPaymentRecorded announces a recorded payment capture.
func (p *Publisher) PublishPaymentRecorded(ctx context.Context, bookingID string, method model.PaymentMethod, amount float64, reference string) error {
	return p.publish(ctx, paymentRecordedQueue, PaymentRecordedEvent{
		BookingID:  bookingID,
		Method:     string(method),
		Amount:     amount,
		Reference:  reference,
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishBookingCompleted announces a booking reaching Complete.
func (p *Publisher) PublishBookingCompleted(ctx context.Context, bookingID string) error {
	return p.publish(ctx, bookingCompletedQueue, BookingCompletedEvent{
		BookingID:   bookingID,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) publish(ctx context.Context, queueName string, event any) error {
	if p.url == "" {
		log.Printf("rabbitmq: no broker configured, dropping %s event", queueName)
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive
	// broker restarts.
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
