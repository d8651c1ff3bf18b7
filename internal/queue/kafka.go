// myxl-gateway/internal/queue/kafka.go
package queue

import (
    "context"
    "encoding/json"
    "time"

    "github.com/google/uuid"
    "github.com/segmentio/kafka-go"
)

// PurchaseEvent is published once a settlement returned a transaction id.
type PurchaseEvent struct {
    EventID       string    `json:"event_id"`
    TransactionID string    `json:"transaction_id"`
    Method        string    `json:"method"` // QRIS / DANA / OVO / ...
    PackageCode   string    `json:"package_code"`
    Price         int64     `json:"price"`
    WalletNumber  string    `json:"wallet_number,omitempty"`
    Subscriber    int64     `json:"subscriber"`
    CreatedAt     time.Time `json:"created_at"`
}

func NewPurchaseEvent(txID, method, code string, price int64, wallet string, subscriber int64) PurchaseEvent {
    return PurchaseEvent{
        EventID:       uuid.NewString(),
        TransactionID: txID,
        Method:        method,
        PackageCode:   code,
        Price:         price,
        WalletNumber:  wallet,
        Subscriber:    subscriber,
        CreatedAt:     time.Now().UTC(),
    }
}

type Publisher interface {
    PublishPurchase(ctx context.Context, ev PurchaseEvent) error
    Close() error
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
    WriteMessages(ctx context.Context, msgs ...kafka.Message) error
    Close() error
}

type Bus struct {
    Brokers []string
    Topic   string
    w       messageWriter
}

// New keeps one writer for the process; kafka.Writer is safe for concurrent use.
func New(brokers []string, topic string) *Bus {
    return &Bus{
        Brokers: brokers,
        Topic:   topic,
        w: &kafka.Writer{
            Addr:                   kafka.TCP(brokers...),
            Topic:                  topic,
            Balancer:               &kafka.Hash{},
            RequiredAcks:           kafka.RequireOne,
            AllowAutoTopicCreation: true,
            BatchTimeout:           10 * time.Millisecond,
        },
    }
}

func (b *Bus) Publish(ctx context.Context, key, payload []byte) error {
    return b.w.WriteMessages(ctx, kafka.Message{Key: key, Value: payload, Time: time.Now()})
}

// PublishPurchase keys by transaction id so all events of one transaction land on one partition.
func (b *Bus) PublishPurchase(ctx context.Context, ev PurchaseEvent) error {
    payload, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    return b.Publish(ctx, []byte(ev.TransactionID), payload)
}

func (b *Bus) Close() error { return b.w.Close() }

// Nop drops events; used when no brokers are configured.
type Nop struct{}

func (Nop) PublishPurchase(context.Context, PurchaseEvent) error { return nil }
func (Nop) Close() error                                         { return nil }
