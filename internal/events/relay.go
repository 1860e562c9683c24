package events

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/models"
)

// MaxAttempts after which an outbox row is left for manual inspection.
const MaxAttempts = 10

// Relay polls the outbox and hands unpublished events to a Publisher.
type Relay struct {
	db        *gorm.DB
	publisher Publisher
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

func NewRelay(db *gorm.DB, publisher Publisher, logger *zap.Logger, interval time.Duration, batchSize int) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{db: db, publisher: publisher, logger: logger.Named("outbox"), interval: interval, batchSize: batchSize}
}

// Run loops until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("outbox iteration failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce publishes one batch in insertion order and returns how many
// events were published.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	var batch []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND attempts < ?", MaxAttempts).
		Order("id").
		Limit(r.batchSize).
		Find(&batch).Error
	if err != nil {
		return 0, err
	}
	published := 0
	for _, ev := range batch {
		if err := r.publisher.Publish(ctx, ev.EventType, []byte(ev.Payload), ev.PartitionKey); err != nil {
			r.logger.Warn("publish failed",
				zap.String("event_id", ev.EventID),
				zap.String("event_type", ev.EventType),
				zap.Int("attempt", ev.Attempts+1),
				zap.Error(err),
			)
			if uerr := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).
				Updates(map[string]any{"attempts": gorm.Expr("attempts + 1"), "last_error": err.Error()}).Error; uerr != nil {
				r.logger.Error("recording publish failure",
					zap.String("event_id", ev.EventID),
					zap.Error(uerr),
				)
				return published, uerr
			}
			continue
		}
		now := time.Now().UTC()
		if err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).
			Updates(map[string]any{"published_at": now, "attempts": gorm.Expr("attempts + 1"), "last_error": ""}).Error; err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}
