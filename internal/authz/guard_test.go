package authz

import (
	"testing"
	"time"

	"arcana-backend/internal/domain"
	"arcana-backend/internal/marketplace"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeAuction() *domain.Listing {
	return &domain.Listing{
		ListingID:    uuid.New(),
		CardID:       uuid.New(),
		SellerID:     uuid.New(),
		ListingType:  domain.ListingTypeAuction,
		Price:        10,
		CurrentPrice: 10,
		Status:       domain.ListingStatusActive,
		Duration:     domain.Duration24Hours,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}
}

func requirePermissionError(t *testing.T, err error) {
	t.Helper()
	var permission *marketplace.PermissionError
	require.ErrorAs(t, err, &permission)
}

func TestImmutableFieldsDeniedForEveryone(t *testing.T) {
	guard := FieldRules{}
	old := activeAuction()

	mutations := map[string]func(l *domain.Listing){
		"card_id":      func(l *domain.Listing) { l.CardID = uuid.New() },
		"seller_id":    func(l *domain.Listing) { l.SellerID = uuid.New() },
		"listing_type": func(l *domain.Listing) { l.ListingType = domain.ListingTypeFixedPrice },
		"duration":     func(l *domain.Listing) { l.Duration = domain.Duration1Hour },
		"expires_at":   func(l *domain.Listing) { l.ExpiresAt = l.ExpiresAt.Add(time.Hour) },
		"price":        func(l *domain.Listing) { l.Price = 99 },
	}

	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			updated := *old
			mutate(&updated)
			requirePermissionError(t, guard.AuthorizeListingWrite(System(), old, &updated))
			requirePermissionError(t, guard.AuthorizeListingWrite(User(old.SellerID), old, &updated))
			requirePermissionError(t, guard.AuthorizeListingWrite(User(uuid.New()), old, &updated))
		})
	}
}

func TestSystemPrincipalCapabilities(t *testing.T) {
	guard := FieldRules{}
	old := activeAuction()

	t.Run("may advance price and bid count", func(t *testing.T) {
		updated := *old
		updated.CurrentPrice = 15
		updated.BidCount = 1
		assert.NoError(t, guard.AuthorizeListingWrite(System(), old, &updated))
	})

	t.Run("may expire", func(t *testing.T) {
		updated := *old
		updated.Status = domain.ListingStatusExpired
		assert.NoError(t, guard.AuthorizeListingWrite(System(), old, &updated))
	})

	t.Run("may not mark sold", func(t *testing.T) {
		updated := *old
		updated.Status = domain.ListingStatusSold
		buyer := uuid.New()
		updated.BuyerID = &buyer
		requirePermissionError(t, guard.AuthorizeListingWrite(System(), old, &updated))
	})

	t.Run("may not decrease price", func(t *testing.T) {
		updated := *old
		updated.CurrentPrice = 5
		requirePermissionError(t, guard.AuthorizeListingWrite(System(), old, &updated))
	})

	t.Run("may not advance price on fixed listings", func(t *testing.T) {
		fixed := activeAuction()
		fixed.ListingType = domain.ListingTypeFixedPrice
		updated := *fixed
		updated.CurrentPrice = 20
		requirePermissionError(t, guard.AuthorizeListingWrite(System(), fixed, &updated))
	})
}

func TestSellerCapabilities(t *testing.T) {
	guard := FieldRules{}
	old := activeAuction()

	t.Run("may cancel", func(t *testing.T) {
		updated := *old
		updated.Status = domain.ListingStatusCancelled
		assert.NoError(t, guard.AuthorizeListingWrite(User(old.SellerID), old, &updated))
	})

	t.Run("may not sell to themselves", func(t *testing.T) {
		updated := *old
		updated.Status = domain.ListingStatusSold
		seller := old.SellerID
		updated.BuyerID = &seller
		requirePermissionError(t, guard.AuthorizeListingWrite(User(old.SellerID), old, &updated))
	})

	t.Run("may not touch the price", func(t *testing.T) {
		updated := *old
		updated.CurrentPrice = 20
		updated.BidCount = 1
		requirePermissionError(t, guard.AuthorizeListingWrite(User(old.SellerID), old, &updated))
	})
}

func TestBuyerCapabilities(t *testing.T) {
	guard := FieldRules{}
	old := activeAuction()
	buyer := uuid.New()

	t.Run("may complete a sale naming themselves", func(t *testing.T) {
		updated := *old
		updated.Status = domain.ListingStatusSold
		updated.BuyerID = &buyer
		now := time.Now()
		updated.SoldAt = &now
		assert.NoError(t, guard.AuthorizeListingWrite(User(buyer), old, &updated))
	})

	t.Run("may not name someone else as buyer", func(t *testing.T) {
		updated := *old
		updated.Status = domain.ListingStatusSold
		other := uuid.New()
		updated.BuyerID = &other
		requirePermissionError(t, guard.AuthorizeListingWrite(User(buyer), old, &updated))
	})

	t.Run("may not cancel", func(t *testing.T) {
		updated := *old
		updated.Status = domain.ListingStatusCancelled
		requirePermissionError(t, guard.AuthorizeListingWrite(User(buyer), old, &updated))
	})
}

func TestTerminalListingsAreReadOnly(t *testing.T) {
	guard := FieldRules{}
	old := activeAuction()
	old.Status = domain.ListingStatusSold

	updated := *old
	updated.Status = domain.ListingStatusExpired
	requirePermissionError(t, guard.AuthorizeListingWrite(System(), old, &updated))
	requirePermissionError(t, guard.AuthorizeListingWrite(User(old.SellerID), old, &updated))
}
