package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User carries the in-system credit balance. Credits never go negative; the
// ledger enforces this with a conditional debit.
type User struct {
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	DisplayName string    `gorm:"column:display_name;type:varchar(100)" json:"display_name"`
	Credits     int64     `gorm:"column:credits;not null;default:0" json:"credits"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}
