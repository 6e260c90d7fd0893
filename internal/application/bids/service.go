// Package bids implements the bid processor. Accepting a bid appends the bid
// record and advances the listing's current_price and bid_count in one atomic
// step; concurrent bids on the same listing are serialized through a
// compare-and-swap on current_price, so the second of two simultaneous bids
// is always evaluated against the price the first one committed.
package bids

import (
	"context"
	"fmt"
	"time"

	"arcana-backend/internal/application/ledger"
	"arcana-backend/internal/authz"
	"arcana-backend/internal/domain"
	"arcana-backend/internal/marketplace"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB    *gorm.DB
	Guard authz.Guard
}

// PlaceBid validates and records a bid on an active auction.
func (s *Service) PlaceBid(ctx context.Context, listingID, bidderID uuid.UUID, amount int64) (*domain.Bid, error) {
	if amount <= 0 {
		return nil, marketplace.Validationf("bid amount must be positive, got %d", amount)
	}

	bid := &domain.Bid{
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
	}

	err := marketplace.InTx(s.DB.WithContext(ctx), func(tx *gorm.DB) error {
		var listing domain.Listing
		if err := tx.Where("listing_id = ?", listingID).First(&listing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &marketplace.NotFoundError{Entity: "listing", ID: listingID}
			}
			return fmt.Errorf("load listing %s: %w", listingID, err)
		}

		if err := validateBid(&listing, bidderID, amount); err != nil {
			return err
		}

		// Bidders must be able to cover the bid at the time they place it;
		// the actual debit happens at settlement.
		balance, err := ledger.BalanceTx(tx, bidderID)
		if err != nil {
			return err
		}
		if balance < amount {
			return &marketplace.InsufficientCreditsError{UserID: bidderID, Required: amount, Available: balance}
		}

		updated := listing
		updated.CurrentPrice = amount
		updated.BidCount = listing.BidCount + 1
		if err := s.Guard.AuthorizeListingWrite(authz.System(), &listing, &updated); err != nil {
			return err
		}

		// Serialization point: the update only matches while the listing is
		// still active and our amount still beats the committed price. A
		// zero-row result means another bid or a settlement won the race; the
		// retry re-reads and produces the precise rejection.
		res := tx.Model(&domain.Listing{}).
			Where("listing_id = ? AND status = ? AND current_price < ?",
				listingID, domain.ListingStatusActive, amount).
			Updates(map[string]interface{}{
				"current_price": amount,
				"bid_count":     gorm.Expr("bid_count + 1"),
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("advance price for listing %s: %w", listingID, res.Error)
		}
		if res.RowsAffected == 0 {
			return marketplace.ErrTxConflict
		}

		bid.BidID = uuid.Nil
		if err := tx.Create(bid).Error; err != nil {
			return fmt.Errorf("record bid: %w", err)
		}
		return marketplace.WriteListingEvent(tx, listingID, domain.EventBidPlaced, &bidderID, map[string]interface{}{
			"amount":    amount,
			"bid_count": listing.BidCount + 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

func validateBid(listing *domain.Listing, bidderID uuid.UUID, amount int64) error {
	if listing.ListingType != domain.ListingTypeAuction {
		return &marketplace.InvalidBidError{Reason: marketplace.BidReasonWrongType, Msg: "listing is not an auction"}
	}
	if listing.Status != domain.ListingStatusActive {
		return &marketplace.InvalidBidError{Reason: marketplace.BidReasonNotActive, Msg: fmt.Sprintf("listing is %s", listing.Status)}
	}
	if listing.ExpiredAt(time.Now().UTC()) {
		return &marketplace.InvalidBidError{Reason: marketplace.BidReasonExpired, Msg: "auction has ended"}
	}
	if bidderID == listing.SellerID {
		return &marketplace.InvalidBidError{Reason: marketplace.BidReasonSelfBid, Msg: "cannot bid on your own auction"}
	}
	if amount <= listing.CurrentPrice {
		return &marketplace.InvalidBidError{
			Reason: marketplace.BidReasonTooLow,
			Msg:    fmt.Sprintf("bid must exceed current price %d", listing.CurrentPrice),
		}
	}
	return nil
}

// ListForListing returns a listing's bids, highest first.
func (s *Service) ListForListing(ctx context.Context, listingID uuid.UUID) ([]domain.Bid, error) {
	var bids []domain.Bid
	if err := s.DB.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("amount DESC").
		Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("list bids for listing %s: %w", listingID, err)
	}
	return bids, nil
}

// UserBidView pairs a bid with its listing for the per-user views.
type UserBidView struct {
	domain.Bid
	Listing domain.Listing `json:"listing"`
}

// ActiveForUser returns a user's bids on listings that are still active and
// unexpired.
func (s *Service) ActiveForUser(ctx context.Context, bidderID uuid.UUID) ([]UserBidView, error) {
	views, err := s.historyForUser(ctx, bidderID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	active := make([]UserBidView, 0, len(views))
	for _, v := range views {
		if v.Listing.Status == domain.ListingStatusActive && !v.Listing.ExpiredAt(now) {
			active = append(active, v)
		}
	}
	return active, nil
}

// HistoryForUser returns a user's complete bid history, most recent listing
// deadline first.
func (s *Service) HistoryForUser(ctx context.Context, bidderID uuid.UUID) ([]UserBidView, error) {
	return s.historyForUser(ctx, bidderID)
}

func (s *Service) historyForUser(ctx context.Context, bidderID uuid.UUID) ([]UserBidView, error) {
	var bids []domain.Bid
	if err := s.DB.WithContext(ctx).
		Where("bidder_id = ?", bidderID).
		Order("created_at DESC").
		Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("list bids for user %s: %w", bidderID, err)
	}
	if len(bids) == 0 {
		return []UserBidView{}, nil
	}

	ids := make([]uuid.UUID, 0, len(bids))
	for _, b := range bids {
		ids = append(ids, b.ListingID)
	}
	var listings []domain.Listing
	if err := s.DB.WithContext(ctx).Where("listing_id IN ?", ids).Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("load listings for user %s bids: %w", bidderID, err)
	}
	byID := make(map[uuid.UUID]domain.Listing, len(listings))
	for _, l := range listings {
		byID[l.ListingID] = l
	}

	views := make([]UserBidView, 0, len(bids))
	for _, b := range bids {
		l, ok := byID[b.ListingID]
		if !ok {
			continue
		}
		views = append(views, UserBidView{Bid: b, Listing: l})
	}
	return views, nil
}
