package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/hotel-booking-engine/internal/config"
)

const maxBackoff = 30 * time.Second

// AuditConsumer binds a durable queue to every booking event and appends
// one line per event to an audit log file.
type AuditConsumer struct {
    url      string
    exchange string
    queue    string
    path     string
    log      *zap.Logger
}

// NewAuditConsumer returns a consumer for cfg.
func NewAuditConsumer(cfg config.QueueConfig, log *zap.Logger) *AuditConsumer {
    return &AuditConsumer{
        url:      cfg.URL,
        exchange: cfg.Exchange,
        queue:    cfg.AuditQueue,
        path:     cfg.AuditLogPath,
        log:      log,
    }
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker connection drops.
func (a *AuditConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(a.url)
        if err == nil {
            backoff = time.Second
            err = a.consume(ctx, conn)
            _ = conn.Close()
        }
        if ctx.Err() != nil {
            return ctx.Err()
        }
        a.log.Warn("audit consumer disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(backoff):
        }
        if backoff < maxBackoff {
            backoff *= 2
        }
    }
}

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        a.log.Warn("audit consumer: set QoS failed", zap.Error(err))
    }
    if err := declareExchange(ch, a.exchange); err != nil {
        return err
    }
    if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(a.queue, "booking.#", a.exchange, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }
    msgs, err := ch.Consume(a.queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := a.handle(d.Body); err != nil {
                a.log.Error("audit consumer: handle message failed", zap.String("message_id", d.MessageId), zap.Error(err))
                // rejected without requeue to avoid a poison-message loop
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (a *AuditConsumer) handle(body []byte) error {
    var ev BookingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
        return fmt.Errorf("mkdir: %w", err)
    }
    f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open audit log: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(AuditLine(ev)); err != nil {
        return fmt.Errorf("write audit log: %w", err)
    }
    return nil
}

// AuditLine renders ev as a single newline-terminated log line.
func AuditLine(ev BookingEvent) string {
    items := make([]string, 0, len(ev.Items))
    for _, it := range ev.Items {
        items = append(items, fmt.Sprintf("%dx%d@%s", it.Quantity, it.RoomTypeID, it.PricePerNight.StringFixed(2)))
    }
    return fmt.Sprintf("[%s] %s | event_id=%s | booking_id=%d | customer_id=%d | stay=%s..%s | rooms=%d | total=%s | status=%s | items=[%s]\n",
        ev.OccurredAt, ev.Type, ev.ID, ev.BookingID, ev.CustomerID, ev.CheckIn, ev.CheckOut,
        ev.NumRooms, ev.TotalAmount.StringFixed(2), ev.Status, strings.Join(items, ","))
}
