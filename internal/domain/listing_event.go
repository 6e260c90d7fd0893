package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing event types, written in the same transaction as the mutation they
// describe.
const (
	EventListingCreated   = "CREATED"
	EventBidPlaced        = "BID"
	EventListingSold      = "SOLD"
	EventListingCancelled = "CANCELLED"
	EventListingExpired   = "EXPIRED"
)

// ListingEvent is the audit trail for a listing's lifecycle.
type ListingEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	ListingID uuid.UUID      `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	ActorID   *uuid.UUID     `gorm:"column:actor_id;type:uuid" json:"actor_id"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (ListingEvent) TableName() string {
	return "listing_events"
}

func (e *ListingEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
