package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"arcana-backend/internal/authz"
	"arcana-backend/internal/domain"
	"arcana-backend/internal/marketplace"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupSettlementTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Card{}, &domain.Listing{}, &domain.Bid{}, &domain.ListingEvent{}))
	return &Service{DB: db, Guard: authz.FieldRules{}}, db
}

type fixture struct {
	seller  *domain.User
	card    *domain.Card
	listing *domain.Listing
}

func seedListing(t *testing.T, db *gorm.DB, listingType domain.ListingType, price int64) fixture {
	t.Helper()
	seller := &domain.User{DisplayName: "seller", Credits: 100}
	require.NoError(t, db.Create(seller).Error)
	card := &domain.Card{OwnerID: seller.UserID, Name: "Gilded Phoenix", Rarity: domain.RarityRare}
	require.NoError(t, db.Create(card).Error)
	listing := &domain.Listing{
		CardID:       card.CardID,
		SellerID:     seller.UserID,
		ListingType:  listingType,
		Price:        price,
		CurrentPrice: price,
		Status:       domain.ListingStatusActive,
		Duration:     domain.Duration24Hours,
		ExpiresAt:    time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(listing).Error)
	return fixture{seller: seller, card: card, listing: listing}
}

func seedBuyer(t *testing.T, db *gorm.DB, credits int64) *domain.User {
	t.Helper()
	buyer := &domain.User{DisplayName: "buyer", Credits: credits}
	require.NoError(t, db.Create(buyer).Error)
	return buyer
}

func forceExpiry(t *testing.T, db *gorm.DB, listingID uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Model(&domain.Listing{}).
		Where("listing_id = ?", listingID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)
}

func credits(t *testing.T, db *gorm.DB, userID uuid.UUID) int64 {
	t.Helper()
	var u domain.User
	require.NoError(t, db.Where("user_id = ?", userID).First(&u).Error)
	return u.Credits
}

func cardOwner(t *testing.T, db *gorm.DB, cardID uuid.UUID) uuid.UUID {
	t.Helper()
	var c domain.Card
	require.NoError(t, db.Where("card_id = ?", cardID).First(&c).Error)
	return c.OwnerID
}

func TestPurchaseTransfersCreditsAndCard(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeFixedPrice, 40)
	buyer := seedBuyer(t, db, 100)

	sold, err := svc.Purchase(context.Background(), fx.listing.ListingID, buyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusSold, sold.Status)
	require.NotNil(t, sold.BuyerID)
	assert.Equal(t, buyer.UserID, *sold.BuyerID)
	require.NotNil(t, sold.SoldAt)

	assert.Equal(t, int64(60), credits(t, db, buyer.UserID))
	assert.Equal(t, int64(140), credits(t, db, fx.seller.UserID))
	assert.Equal(t, buyer.UserID, cardOwner(t, db, fx.card.CardID))

	var event domain.ListingEvent
	require.NoError(t, db.Where("listing_id = ? AND event_type = ?", fx.listing.ListingID, domain.EventListingSold).First(&event).Error)
}

func TestPurchaseInsufficientCreditsChangesNothing(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeFixedPrice, 40)
	buyer := seedBuyer(t, db, 10)

	_, err := svc.Purchase(context.Background(), fx.listing.ListingID, buyer.UserID)
	var insufficient *marketplace.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(40), insufficient.Required)
	assert.Equal(t, int64(10), insufficient.Available)

	assert.Equal(t, int64(10), credits(t, db, buyer.UserID))
	assert.Equal(t, int64(100), credits(t, db, fx.seller.UserID))
	assert.Equal(t, fx.seller.UserID, cardOwner(t, db, fx.card.CardID))

	var got domain.Listing
	require.NoError(t, db.Where("listing_id = ?", fx.listing.ListingID).First(&got).Error)
	assert.Equal(t, domain.ListingStatusActive, got.Status)
}

func TestPurchaseRejections(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeFixedPrice, 40)
	buyer := seedBuyer(t, db, 100)

	t.Run("seller cannot buy own listing", func(t *testing.T) {
		_, err := svc.Purchase(context.Background(), fx.listing.ListingID, fx.seller.UserID)
		var permission *marketplace.PermissionError
		assert.ErrorAs(t, err, &permission)
	})

	t.Run("auction cannot be bought outright", func(t *testing.T) {
		auction := seedListing(t, db, domain.ListingTypeAuction, 40)
		_, err := svc.Purchase(context.Background(), auction.listing.ListingID, buyer.UserID)
		var validation *marketplace.ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("unknown listing", func(t *testing.T) {
		_, err := svc.Purchase(context.Background(), uuid.New(), buyer.UserID)
		var notFound *marketplace.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("past deadline", func(t *testing.T) {
		forceExpiry(t, db, fx.listing.ListingID)
		_, err := svc.Purchase(context.Background(), fx.listing.ListingID, buyer.UserID)
		var conflict *marketplace.StateConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, marketplace.ConflictExpired, conflict.Reason)
	})
}

func TestPurchaseCardNoLongerOwnedRollsBack(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeFixedPrice, 40)
	buyer := seedBuyer(t, db, 100)

	// The card leaves the seller's collection while the listing stays active.
	stranger := seedBuyer(t, db, 0)
	require.NoError(t, db.Model(&domain.Card{}).
		Where("card_id = ?", fx.card.CardID).
		Update("owner_id", stranger.UserID).Error)

	_, err := svc.Purchase(context.Background(), fx.listing.ListingID, buyer.UserID)
	var conflict *marketplace.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, marketplace.ConflictCardUnavailable, conflict.Reason)

	// The whole transaction rolled back: no credits moved, no claim stuck.
	assert.Equal(t, int64(100), credits(t, db, buyer.UserID))
	assert.Equal(t, int64(100), credits(t, db, fx.seller.UserID))
	var got domain.Listing
	require.NoError(t, db.Where("listing_id = ?", fx.listing.ListingID).First(&got).Error)
	assert.Equal(t, domain.ListingStatusActive, got.Status)
	assert.Nil(t, got.BuyerID)
}

func TestConcurrentPurchasesExactlyOneWinner(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeFixedPrice, 40)

	const buyers = 4
	users := make([]*domain.User, buyers)
	for i := range users {
		users[i] = seedBuyer(t, db, 100)
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Purchase(context.Background(), fx.listing.ListingID, users[i].UserID)
		}(i)
	}
	wg.Wait()

	winners := 0
	var winnerID uuid.UUID
	for i, err := range errs {
		if err == nil {
			winners++
			winnerID = users[i].UserID
			continue
		}
		var conflict *marketplace.StateConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, marketplace.ConflictAlreadySold, conflict.Reason)
	}
	require.Equal(t, 1, winners)

	// Conservation: exactly one debit of 40 and one matching credit.
	assert.Equal(t, int64(60), credits(t, db, winnerID))
	assert.Equal(t, int64(140), credits(t, db, fx.seller.UserID))
	for _, u := range users {
		if u.UserID != winnerID {
			assert.Equal(t, int64(100), credits(t, db, u.UserID))
		}
	}
	assert.Equal(t, winnerID, cardOwner(t, db, fx.card.CardID))
}

func TestSettleAuctionPaysHighestBidder(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeAuction, 10)
	low := seedBuyer(t, db, 100)
	high := seedBuyer(t, db, 100)

	require.NoError(t, db.Create(&domain.Bid{ListingID: fx.listing.ListingID, BidderID: low.UserID, Amount: 15}).Error)
	require.NoError(t, db.Create(&domain.Bid{ListingID: fx.listing.ListingID, BidderID: high.UserID, Amount: 25}).Error)
	require.NoError(t, db.Model(&domain.Listing{}).
		Where("listing_id = ?", fx.listing.ListingID).
		Updates(map[string]interface{}{"current_price": 25, "bid_count": 2}).Error)
	forceExpiry(t, db, fx.listing.ListingID)

	sold, err := svc.SettleAuction(context.Background(), fx.listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusSold, sold.Status)
	require.NotNil(t, sold.BuyerID)
	assert.Equal(t, high.UserID, *sold.BuyerID)

	assert.Equal(t, int64(75), credits(t, db, high.UserID))
	assert.Equal(t, int64(100), credits(t, db, low.UserID))
	assert.Equal(t, int64(125), credits(t, db, fx.seller.UserID))
	assert.Equal(t, high.UserID, cardOwner(t, db, fx.card.CardID))
}

func TestSettleAuctionWithoutBidsExpires(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeAuction, 10)
	forceExpiry(t, db, fx.listing.ListingID)

	expired, err := svc.SettleAuction(context.Background(), fx.listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusExpired, expired.Status)
	assert.Nil(t, expired.BuyerID)

	assert.Equal(t, int64(100), credits(t, db, fx.seller.UserID))
	assert.Equal(t, fx.seller.UserID, cardOwner(t, db, fx.card.CardID))

	var event domain.ListingEvent
	require.NoError(t, db.Where("listing_id = ? AND event_type = ?", fx.listing.ListingID, domain.EventListingExpired).First(&event).Error)
}

func TestSettleAuctionWinnerCannotPayExpires(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeAuction, 10)
	winner := seedBuyer(t, db, 100)

	require.NoError(t, db.Create(&domain.Bid{ListingID: fx.listing.ListingID, BidderID: winner.UserID, Amount: 60}).Error)
	require.NoError(t, db.Model(&domain.Listing{}).
		Where("listing_id = ?", fx.listing.ListingID).
		Updates(map[string]interface{}{"current_price": 60, "bid_count": 1}).Error)
	// Balance drops below the winning amount after the bid was placed.
	require.NoError(t, db.Model(&domain.User{}).
		Where("user_id = ?", winner.UserID).
		Update("credits", 30).Error)
	forceExpiry(t, db, fx.listing.ListingID)

	expired, err := svc.SettleAuction(context.Background(), fx.listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusExpired, expired.Status)

	assert.Equal(t, int64(30), credits(t, db, winner.UserID))
	assert.Equal(t, int64(100), credits(t, db, fx.seller.UserID))
	assert.Equal(t, fx.seller.UserID, cardOwner(t, db, fx.card.CardID))
}

func TestSettleAuctionBeforeDeadlineRefused(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeAuction, 10)

	_, err := svc.SettleAuction(context.Background(), fx.listing.ListingID)
	var conflict *marketplace.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, marketplace.ConflictNotExpired, conflict.Reason)
}

func TestSettleAuctionIdempotent(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeAuction, 10)
	winner := seedBuyer(t, db, 100)

	require.NoError(t, db.Create(&domain.Bid{ListingID: fx.listing.ListingID, BidderID: winner.UserID, Amount: 20}).Error)
	require.NoError(t, db.Model(&domain.Listing{}).
		Where("listing_id = ?", fx.listing.ListingID).
		Updates(map[string]interface{}{"current_price": 20, "bid_count": 1}).Error)
	forceExpiry(t, db, fx.listing.ListingID)

	first, err := svc.SettleAuction(context.Background(), fx.listing.ListingID)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatusSold, first.Status)

	second, err := svc.SettleAuction(context.Background(), fx.listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusSold, second.Status)

	// The second call moved nothing.
	assert.Equal(t, int64(80), credits(t, db, winner.UserID))
	assert.Equal(t, int64(120), credits(t, db, fx.seller.UserID))
}

func TestExpireFixedPrice(t *testing.T) {
	svc, db := setupSettlementTest(t)
	fx := seedListing(t, db, domain.ListingTypeFixedPrice, 40)

	_, err := svc.ExpireFixedPrice(context.Background(), fx.listing.ListingID)
	var conflict *marketplace.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, marketplace.ConflictNotExpired, conflict.Reason)

	forceExpiry(t, db, fx.listing.ListingID)

	expired, err := svc.ExpireFixedPrice(context.Background(), fx.listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusExpired, expired.Status)

	// Re-expiring is a no-op.
	again, err := svc.ExpireFixedPrice(context.Background(), fx.listing.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusExpired, again.Status)
}
