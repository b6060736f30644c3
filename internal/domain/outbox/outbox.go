package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the delivery state of an outbox event.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// OutboxEvent is an audit record waiting to be published to the broker.
type OutboxEvent struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventType     string    `gorm:"type:varchar(50);not null"`
	AggregateType string    `gorm:"type:varchar(50);not null"`
	AggregateID   string    `gorm:"type:varchar(128);not null"`
	ActorID       string    `gorm:"type:varchar(128)"`
	Payload       string    `gorm:"type:text;not null"`
	Status        Status    `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_outbox_status_created"`
	RetryCount    int       `gorm:"not null;default:0"`
	Error         string    `gorm:"type:text"`
	OccurredAt    time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null;index:idx_outbox_status_created"`
	UpdatedAt     time.Time `gorm:"not null"`
	ProcessedAt   *time.Time
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
