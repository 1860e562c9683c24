package models

import "time"

// OutboxEvent is a domain event written in the same transaction as the
// change it describes and relayed to the broker afterwards.
type OutboxEvent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EventID      string     `gorm:"size:36;uniqueIndex;not null" json:"event_id"`
	EventType    string     `gorm:"size:100;not null;index" json:"event_type"`
	AggregateID  uint       `gorm:"index" json:"aggregate_id"`
	PartitionKey string     `gorm:"size:100" json:"partition_key"`
	Payload      string     `gorm:"type:text;not null" json:"payload"`
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`
	LastError    string     `gorm:"type:text" json:"last_error,omitempty"`
	PublishedAt  *time.Time `gorm:"index" json:"published_at,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

// FeatureFlag toggles features globally or for a share of users.
type FeatureFlag struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Key            string    `gorm:"size:100;uniqueIndex;not null" json:"key"`
	Description    string    `gorm:"size:500" json:"description,omitempty"`
	Enabled        bool      `gorm:"not null;default:false" json:"enabled"`
	RolloutPercent int       `gorm:"not null" json:"rollout_percent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuditLog records invoice status changes and payment operations.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Action    string    `gorm:"size:50;not null" json:"action"`
	Entity    string    `gorm:"size:50;not null;index:idx_audit_entity,priority:1" json:"entity"`
	EntityID  uint      `gorm:"not null;index:idx_audit_entity,priority:2" json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// All lists every model for AutoMigrate, in dependency order.
func All() []any {
	return []any{
		&User{}, &CompanySettings{}, &Client{}, &Service{}, &Invoice{}, &InvoiceItem{},
		&Payment{}, &Expense{}, &BankAccount{}, &OutboxEvent{}, &FeatureFlag{}, &AuditLog{},
	}
}
