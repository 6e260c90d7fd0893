// Package settlement closes sales. A settlement debits the buyer, credits
// the seller, transfers card ownership and marks the listing sold in a single
// transaction; either every step commits or none do.
package settlement

import (
	"context"
	"errors"
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

// Purchase buys a fixed-price listing outright. Under concurrent attempts on
// the same listing exactly one caller wins; the rest get
// StateConflictError(AlreadySold).
func (s *Service) Purchase(ctx context.Context, listingID, buyerID uuid.UUID) (*domain.Listing, error) {
	var result *domain.Listing
	err := marketplace.InTx(s.DB.WithContext(ctx), func(tx *gorm.DB) error {
		listing, err := loadListing(tx, listingID)
		if err != nil {
			return err
		}

		if listing.ListingType != domain.ListingTypeFixedPrice {
			return marketplace.Validationf("listing %s is not fixed price", listingID)
		}
		if listing.Status.Terminal() {
			return &marketplace.StateConflictError{Reason: conflictReason(listing.Status)}
		}
		now := time.Now().UTC()
		if listing.ExpiredAt(now) {
			// Past-deadline listings are closed by the sweeper only.
			return &marketplace.StateConflictError{Reason: marketplace.ConflictExpired}
		}
		if buyerID == listing.SellerID {
			return &marketplace.PermissionError{Msg: "cannot purchase your own listing"}
		}

		sold, err := s.close(tx, listing, buyerID, listing.Price, now)
		if err != nil {
			return err
		}
		result = sold
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SettleAuction finalizes an expired auction: with bids, the highest bidder
// wins at the final current_price; with none, the listing expires with no
// transfer. Re-settling an already-terminal listing is a no-op.
func (s *Service) SettleAuction(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	var result *domain.Listing
	err := marketplace.InTx(s.DB.WithContext(ctx), func(tx *gorm.DB) error {
		listing, err := loadListing(tx, listingID)
		if err != nil {
			return err
		}
		if listing.ListingType != domain.ListingTypeAuction {
			return marketplace.Validationf("listing %s is not an auction", listingID)
		}
		if listing.Status.Terminal() {
			result = listing
			return nil
		}
		now := time.Now().UTC()
		if !listing.ExpiredAt(now) {
			return &marketplace.StateConflictError{Reason: marketplace.ConflictNotExpired}
		}

		winner, err := highestBid(tx, listingID)
		if err != nil {
			return err
		}
		if winner == nil {
			expired, err := s.expire(tx, listing, now, map[string]interface{}{"bid_count": listing.BidCount})
			if err != nil {
				return err
			}
			result = expired
			return nil
		}

		sold, err := s.close(tx, listing, winner.BidderID, listing.CurrentPrice, now)
		if err != nil {
			// The winner's balance may have dropped below the final price
			// since the bid. The sale cannot complete; the listing expires
			// with no transfer.
			var insufficient *marketplace.InsufficientCreditsError
			if errors.As(err, &insufficient) {
				expired, expireErr := s.expire(tx, listing, now, map[string]interface{}{
					"winning_bidder": winner.BidderID,
					"reason":         "winner could not cover final price",
				})
				if expireErr != nil {
					return expireErr
				}
				result = expired
				return nil
			}
			return err
		}
		result = sold
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExpireFixedPrice marks an expired fixed-price listing as expired. Invoked
// by the sweeper; a no-op on already-terminal listings.
func (s *Service) ExpireFixedPrice(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	var result *domain.Listing
	err := marketplace.InTx(s.DB.WithContext(ctx), func(tx *gorm.DB) error {
		listing, err := loadListing(tx, listingID)
		if err != nil {
			return err
		}
		if listing.ListingType != domain.ListingTypeFixedPrice {
			return marketplace.Validationf("listing %s is not fixed price", listingID)
		}
		if listing.Status.Terminal() {
			result = listing
			return nil
		}
		now := time.Now().UTC()
		if !listing.ExpiredAt(now) {
			return &marketplace.StateConflictError{Reason: marketplace.ConflictNotExpired}
		}
		expired, err := s.expire(tx, listing, now, nil)
		if err != nil {
			return err
		}
		result = expired
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// close performs the atomic sale: claim the listing row, move credits, move
// the card. The claim is a conditional update on status, so of N concurrent
// settlements exactly one claims the row; the rest roll back untouched.
func (s *Service) close(tx *gorm.DB, listing *domain.Listing, buyerID uuid.UUID, price int64, now time.Time) (*domain.Listing, error) {
	updated := *listing
	updated.Status = domain.ListingStatusSold
	updated.BuyerID = &buyerID
	updated.SoldAt = &now
	if err := s.Guard.AuthorizeListingWrite(authz.User(buyerID), listing, &updated); err != nil {
		return nil, err
	}

	// Debit before the claim: a failed debit leaves the listing row untouched
	// so an auction settlement can still expire it in this transaction.
	if err := ledger.Debit(tx, buyerID, price); err != nil {
		return nil, err
	}
	if err := ledger.Credit(tx, listing.SellerID, price); err != nil {
		return nil, err
	}

	res := tx.Model(&domain.Listing{}).
		Where("listing_id = ? AND status = ?", listing.ListingID, domain.ListingStatusActive).
		Updates(map[string]interface{}{
			"status":     domain.ListingStatusSold,
			"buyer_id":   buyerID,
			"sold_at":    now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("claim listing %s: %w", listing.ListingID, res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race; rolling back undoes the credit moves.
		return nil, &marketplace.StateConflictError{Reason: marketplace.ConflictAlreadySold}
	}

	transfer := tx.Model(&domain.Card{}).
		Where("card_id = ? AND owner_id = ?", listing.CardID, listing.SellerID).
		Updates(map[string]interface{}{"owner_id": buyerID, "updated_at": now})
	if transfer.Error != nil {
		return nil, fmt.Errorf("transfer card %s: %w", listing.CardID, transfer.Error)
	}
	if transfer.RowsAffected == 0 {
		// The card left the seller's collection while the listing stayed
		// active. Rolling back undoes the claim and the credit moves.
		return nil, &marketplace.StateConflictError{Reason: marketplace.ConflictCardUnavailable}
	}

	if err := marketplace.WriteListingEvent(tx, listing.ListingID, domain.EventListingSold, &buyerID, map[string]interface{}{
		"price":    price,
		"buyer_id": buyerID,
	}); err != nil {
		return nil, err
	}

	return &updated, nil
}

func (s *Service) expire(tx *gorm.DB, listing *domain.Listing, now time.Time, detail map[string]interface{}) (*domain.Listing, error) {
	updated := *listing
	updated.Status = domain.ListingStatusExpired
	if err := s.Guard.AuthorizeListingWrite(authz.System(), listing, &updated); err != nil {
		return nil, err
	}

	res := tx.Model(&domain.Listing{}).
		Where("listing_id = ? AND status = ?", listing.ListingID, domain.ListingStatusActive).
		Updates(map[string]interface{}{
			"status":     domain.ListingStatusExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("expire listing %s: %w", listing.ListingID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &marketplace.StateConflictError{Reason: marketplace.ConflictAlreadyTerminal}
	}

	if detail == nil {
		detail = map[string]interface{}{}
	}
	if err := marketplace.WriteListingEvent(tx, listing.ListingID, domain.EventListingExpired, nil, detail); err != nil {
		return nil, err
	}
	return &updated, nil
}

func loadListing(tx *gorm.DB, listingID uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	if err := tx.Where("listing_id = ?", listingID).First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &marketplace.NotFoundError{Entity: "listing", ID: listingID}
		}
		return nil, fmt.Errorf("load listing %s: %w", listingID, err)
	}
	return &listing, nil
}

func highestBid(tx *gorm.DB, listingID uuid.UUID) (*domain.Bid, error) {
	var bid domain.Bid
	err := tx.Where("listing_id = ?", listingID).
		Order("amount DESC, created_at ASC").
		First(&bid).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load highest bid for %s: %w", listingID, err)
	}
	return &bid, nil
}

func conflictReason(status domain.ListingStatus) string {
	switch status {
	case domain.ListingStatusSold:
		return marketplace.ConflictAlreadySold
	case domain.ListingStatusExpired:
		return marketplace.ConflictExpired
	default:
		return marketplace.ConflictAlreadyTerminal
	}
}
