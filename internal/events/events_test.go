package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.OutboxEvent{}))
	return db
}

func TestEnqueueWritesEnvelope(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Enqueue(db, PaymentRecorded, 3, 42, map[string]string{"amount": "10.00"}))

	var ev models.OutboxEvent
	require.NoError(t, db.First(&ev).Error)
	assert.Equal(t, PaymentRecorded, ev.EventType)
	assert.Equal(t, uint(42), ev.AggregateID)
	assert.Equal(t, "invoice-42", ev.PartitionKey)
	assert.Nil(t, ev.PublishedAt)

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(ev.Payload), &env))
	assert.Equal(t, ev.EventID, env.EventID)
	assert.Equal(t, uint(3), env.UserID)
	assert.JSONEq(t, `{"amount":"10.00"}`, string(env.Data))
}

func TestEnqueueRollsBackWithTransaction(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := Enqueue(tx, InvoiceCreated, 1, 1, nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int64
	db.Model(&models.OutboxEvent{}).Count(&n)
	assert.Zero(t, n)
}

func TestRelayPublishesInOrder(t *testing.T) {
	db := openTestDB(t)
	for i := uint(1); i <= 3; i++ {
		require.NoError(t, Enqueue(db, InvoiceStatusChanged, 1, i, nil))
	}
	pub := &MemoryPublisher{}
	relay := NewRelay(db, pub, nil, 0, 2)

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs := pub.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"invoice-1", "invoice-2", "invoice-3"},
		[]string{msgs[0].PartitionKey, msgs[1].PartitionKey, msgs[2].PartitionKey})

	var pending int64
	db.Model(&models.OutboxEvent{}).Where("published_at IS NULL").Count(&pending)
	assert.Zero(t, pending)
}

func TestRelayRecordsFailures(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Enqueue(db, PaymentDeleted, 1, 9, nil))
	pub := &MemoryPublisher{Fail: errors.New("broker down")}
	relay := NewRelay(db, pub, nil, 0, 10)

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	var ev models.OutboxEvent
	require.NoError(t, db.First(&ev).Error)
	assert.Equal(t, 1, ev.Attempts)
	assert.Equal(t, "broker down", ev.LastError)
	assert.Nil(t, ev.PublishedAt)

	pub.Fail = nil
	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// dropOnPublish fails every publish after removing the outbox table, so the
// relay cannot record the attempt.
type dropOnPublish struct{ db *gorm.DB }

func (p dropOnPublish) Publish(context.Context, string, []byte, string) error {
	if err := p.db.Migrator().DropTable(&models.OutboxEvent{}); err != nil {
		return err
	}
	return errors.New("broker down")
}

func TestRelayReportsUnrecordedFailure(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Enqueue(db, PaymentDeleted, 1, 9, nil))
	core, logs := observer.New(zap.ErrorLevel)

	n, err := NewRelay(db, dropOnPublish{db: db}, zap.New(core), 0, 10).ProcessOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	entries := logs.FilterMessage("recording publish failure").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "outbox", entries[0].LoggerName)
}

func TestRelayStopsOnCancel(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewRelay(db, &MemoryPublisher{}, nil, 0, 0).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKafkaTopic(t *testing.T) {
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "invoicehub.", map[string]string{PaymentRecorded: "payments"})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "payments", p.Topic(PaymentRecorded))
	assert.Equal(t, "invoicehub.invoice.created", p.Topic(InvoiceCreated))

	_, err = NewKafkaPublisher(nil, "", nil)
	assert.Error(t, err)
}
