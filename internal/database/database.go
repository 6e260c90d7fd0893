package database

import (
	"arcana-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from a Postgres DSN. PreferSimpleProtocol disables
// prepared statement caching to avoid 42P05 ("prepared statement already
// exists") when using connection poolers (e.g. PgBouncer, Supabase, Render).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// AutoMigrate runs migrations for the marketplace models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Card{},
		&domain.Listing{},
		&domain.Bid{},
		&domain.ListingEvent{},
	); err != nil {
		return err
	}
	// Partial unique index backing the one-active-listing-per-card rule. The
	// application pre-checks for the friendly error, but only the index holds
	// under concurrent creates.
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_listings_active_card ON listings (card_id) WHERE status = 'active'`,
	).Error
}
