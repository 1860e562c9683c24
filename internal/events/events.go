// Package events carries domain events from the database outbox to a broker.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/models"
)

// Event types.
const (
	InvoiceCreated       = "invoice.created"
	InvoiceUpdated       = "invoice.updated"
	InvoiceDeleted       = "invoice.deleted"
	InvoiceStatusChanged = "invoice.status_changed"
	PaymentRecorded      = "payment.recorded"
	PaymentDeleted       = "payment.deleted"
)

// Envelope is the JSON body published for every event.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	UserID     uint            `json:"user_id"`
	InvoiceID  uint            `json:"invoice_id"`
	Data       json.RawMessage `json:"data"`
}

// Publisher sends one event to the outside world.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

// Enqueue writes an event into the outbox using tx, so it commits or rolls
// back together with the change it describes. Events are keyed by invoice
// to keep per-invoice ordering on the broker.
func Enqueue(tx *gorm.DB, eventType string, userID, invoiceID uint, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		UserID:     userID,
		InvoiceID:  invoiceID,
		Data:       raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return tx.Create(&models.OutboxEvent{
		EventID:      env.EventID,
		EventType:    eventType,
		AggregateID:  invoiceID,
		PartitionKey: "invoice-" + strconv.FormatUint(uint64(invoiceID), 10),
		Payload:      string(body),
	}).Error
}

// LoggingPublisher writes events to the log. It is used when no broker is configured.
type LoggingPublisher struct {
	logger *zap.Logger
}

func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger.Named("events")}
}

func (p *LoggingPublisher) Publish(_ context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.Info("event",
		zap.String("event_type", eventType),
		zap.String("partition_key", partitionKey),
		zap.ByteString("payload", payload),
	)
	return nil
}

// Message is an event captured by MemoryPublisher.
type Message struct {
	EventType    string
	Payload      []byte
	PartitionKey string
}

// MemoryPublisher keeps published events in memory.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
	// Fail, when set, is returned by Publish instead of recording.
	Fail error
}

func (p *MemoryPublisher) Publish(_ context.Context, eventType string, payload []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail != nil {
		return p.Fail
	}
	p.messages = append(p.messages, Message{EventType: eventType, Payload: append([]byte(nil), payload...), PartitionKey: partitionKey})
	return nil
}

// Messages returns a copy of everything published so far.
func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}
