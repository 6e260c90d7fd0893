package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListingStatus is the lifecycle state of a listing. Active is the only
// non-terminal state; sold, cancelled and expired listings never change again.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
	ListingStatusExpired   ListingStatus = "expired"
)

// Terminal reports whether the status is one of the end states.
func (s ListingStatus) Terminal() bool {
	return s == ListingStatusSold || s == ListingStatusCancelled || s == ListingStatusExpired
}

// ValidListingStatus reports whether s is a known status value.
func ValidListingStatus(s ListingStatus) bool {
	switch s {
	case ListingStatusActive, ListingStatusSold, ListingStatusCancelled, ListingStatusExpired:
		return true
	}
	return false
}

// ListingType distinguishes fixed-price sales from timed auctions.
type ListingType string

const (
	ListingTypeFixedPrice ListingType = "fixed_price"
	ListingTypeAuction    ListingType = "auction"
)

// ValidListingType reports whether t is a known listing type.
func ValidListingType(t ListingType) bool {
	return t == ListingTypeFixedPrice || t == ListingTypeAuction
}

// ListingDuration is the seller-chosen lifetime of a listing. Values are the
// display strings the clients send.
type ListingDuration string

const (
	Duration1Hour   ListingDuration = "1 Hour"
	Duration6Hours  ListingDuration = "6 Hours"
	Duration12Hours ListingDuration = "12 Hours"
	Duration24Hours ListingDuration = "24 Hours"
	Duration3Days   ListingDuration = "3 Days"
	Duration7Days   ListingDuration = "7 Days"
)

var durationOffsets = map[ListingDuration]time.Duration{
	Duration1Hour:   time.Hour,
	Duration6Hours:  6 * time.Hour,
	Duration12Hours: 12 * time.Hour,
	Duration24Hours: 24 * time.Hour,
	Duration3Days:   3 * 24 * time.Hour,
	Duration7Days:   7 * 24 * time.Hour,
}

// Offset returns the fixed time offset added to created_at, and whether the
// duration is one of the enumerated values.
func (d ListingDuration) Offset() (time.Duration, bool) {
	off, ok := durationOffsets[d]
	return off, ok
}

// Listing is an offer to sell a card, fixed price or auction, with a bounded
// lifetime. card_id, seller_id, listing_type, duration and expires_at are
// immutable after creation; current_price and bid_count mutate only for
// auctions.
type Listing struct {
	ListingID    uuid.UUID       `gorm:"column:listing_id;type:uuid;primaryKey" json:"listing_id"`
	CardID       uuid.UUID       `gorm:"column:card_id;type:uuid;not null;index" json:"card_id"`
	SellerID     uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	BuyerID      *uuid.UUID      `gorm:"column:buyer_id;type:uuid" json:"buyer_id"`
	ListingType  ListingType     `gorm:"column:listing_type;type:varchar(20);not null" json:"listing_type"`
	Price        int64           `gorm:"column:price;not null" json:"price"`
	CurrentPrice int64           `gorm:"column:current_price;not null" json:"current_price"`
	BidCount     int             `gorm:"column:bid_count;not null;default:0" json:"bid_count"`
	Status       ListingStatus   `gorm:"column:status;type:varchar(20);not null;default:'active';index" json:"status"`
	Duration     ListingDuration `gorm:"column:duration;type:varchar(20);not null" json:"duration"`
	ExpiresAt    time.Time       `gorm:"column:expires_at;not null;index" json:"expires_at"`
	SoldAt       *time.Time      `gorm:"column:sold_at" json:"sold_at"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeCreate sets listing_id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	return nil
}

// ExpiredAt reports whether the listing deadline has passed at the given time.
func (l *Listing) ExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// TimeLeft returns the remaining lifetime as a display string, "Expired" once
// the deadline has passed. Derived on read; never persisted.
func (l *Listing) TimeLeft(now time.Time) string {
	if l.Status != ListingStatusActive || l.ExpiredAt(now) {
		if l.Status == ListingStatusActive || l.Status == ListingStatusExpired {
			return "Expired"
		}
		return ""
	}
	return l.ExpiresAt.Sub(now).Truncate(time.Second).String()
}
