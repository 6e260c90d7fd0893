package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rarity values mirror the card generator's enumeration.
const (
	RarityCommon     = "Common"
	RarityUncommon   = "Uncommon"
	RarityRare       = "Rare"
	RarityMythicRare = "Mythic Rare"
)

// Card is a collectible owned by exactly one user at a time. Descriptive
// attributes are immutable; only owner_id changes, and only through
// settlement.
type Card struct {
	CardID     uuid.UUID `gorm:"column:card_id;type:uuid;primaryKey" json:"card_id"`
	OwnerID    uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Name       string    `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Rarity     string    `gorm:"column:rarity;type:varchar(20);not null" json:"rarity"`
	Type       string    `gorm:"column:type;type:varchar(100)" json:"type"`
	ManaCost   string    `gorm:"column:mana_cost;type:varchar(50)" json:"mana_cost"`
	Abilities  string    `gorm:"column:abilities;type:text" json:"abilities"`
	FlavorText string    `gorm:"column:flavor_text;type:text" json:"flavor_text"`
	ImageURL   string    `gorm:"column:image_url;type:varchar(500)" json:"image_url"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Card) TableName() string {
	return "cards"
}

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.CardID == uuid.Nil {
		c.CardID = uuid.New()
	}
	return nil
}
