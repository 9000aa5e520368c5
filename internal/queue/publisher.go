package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/hotel-booking-engine/internal/config"
)

// Publisher sends booking events to the broker.
type Publisher interface {
    Publish(ctx context.Context, ev BookingEvent) error
}

// NopPublisher drops every event.  It is used when the queue is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error { return nil }

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange with the event type as routing key.  Each publish opens its own
// connection so a broker outage never leaves a broken channel behind.
type AMQPPublisher struct {
    url      string
    exchange string
    log      *zap.Logger
}

// NewAMQPPublisher returns a publisher for cfg.
func NewAMQPPublisher(cfg config.QueueConfig, log *zap.Logger) *AMQPPublisher {
    return &AMQPPublisher{url: cfg.URL, exchange: cfg.Exchange, log: log}
}

// Publish delivers ev.  Failures are logged and returned so the caller can
// decide to ignore them; the booking itself is already committed.
func (p *AMQPPublisher) Publish(ctx context.Context, ev BookingEvent) error {
    err := p.publish(ctx, ev)
    if err != nil {
        p.log.Warn("publish booking event failed",
            zap.String("event_id", ev.ID), zap.String("type", ev.Type),
            zap.Uint64("booking_id", ev.BookingID), zap.Error(err))
    }
    return err
}

func (p *AMQPPublisher) publish(ctx context.Context, ev BookingEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := declareExchange(ch, p.exchange); err != nil {
        return err
    }

    return ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.ID,
        Type:         ev.Type,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
}

func declareExchange(ch *amqp.Channel, name string) error {
    if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
        return fmt.Errorf("exchange declare %s: %w", name, err)
    }
    return nil
}
