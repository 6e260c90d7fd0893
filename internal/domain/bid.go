package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid is a recorded offer on an auction listing. Bids are immutable once
// created; they are never updated or deleted.
type Bid struct {
	BidID     uuid.UUID `gorm:"column:bid_id;type:uuid;primaryKey" json:"bid_id"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	BidderID  uuid.UUID `gorm:"column:bidder_id;type:uuid;not null;index" json:"bidder_id"`
	Amount    int64     `gorm:"column:amount;not null" json:"amount"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Bid) TableName() string {
	return "bids"
}

func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.BidID == uuid.Nil {
		b.BidID = uuid.New()
	}
	return nil
}
