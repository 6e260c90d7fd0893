// Package listings implements the listing store: creation, cancellation and
// the read views (single listing, browse, per-user history). Terminal
// listings persist as history and are never hard-deleted.
package listings

import (
	"context"
	"fmt"
	"time"

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

// browseLimit caps ListActive results to one browse page.
const browseLimit = 20

type CreateListingInput struct {
	CardID      uuid.UUID
	SellerID    uuid.UUID
	ListingType domain.ListingType
	Price       int64
	Duration    domain.ListingDuration
}

// ListingView is a listing plus read-time derived fields.
type ListingView struct {
	domain.Listing
	TimeLeft string       `json:"time_left,omitempty"`
	Bids     []domain.Bid `json:"bids,omitempty"`
}

// Create validates ownership and uniqueness, then persists a new active
// listing. Auctions start bidding at the asking price.
func (s *Service) Create(ctx context.Context, in CreateListingInput) (*domain.Listing, error) {
	if !domain.ValidListingType(in.ListingType) {
		return nil, marketplace.Validationf("unknown listing type %q", in.ListingType)
	}
	if in.Price <= 0 {
		return nil, marketplace.Validationf("price must be positive, got %d", in.Price)
	}
	offset, ok := in.Duration.Offset()
	if !ok {
		return nil, marketplace.Validationf("unknown duration %q", in.Duration)
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		CardID:       in.CardID,
		SellerID:     in.SellerID,
		ListingType:  in.ListingType,
		Price:        in.Price,
		CurrentPrice: in.Price,
		Status:       domain.ListingStatusActive,
		Duration:     in.Duration,
		ExpiresAt:    now.Add(offset),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card domain.Card
		if err := tx.Where("card_id = ?", in.CardID).First(&card).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &marketplace.NotFoundError{Entity: "card", ID: in.CardID}
			}
			return fmt.Errorf("load card %s: %w", in.CardID, err)
		}
		if card.OwnerID != in.SellerID {
			return &marketplace.OwnershipError{ActorID: in.SellerID, CardID: in.CardID}
		}

		var active int64
		if err := tx.Model(&domain.Listing{}).
			Where("card_id = ? AND status = ?", in.CardID, domain.ListingStatusActive).
			Count(&active).Error; err != nil {
			return fmt.Errorf("count active listings for card %s: %w", in.CardID, err)
		}
		if active > 0 {
			return &marketplace.DuplicateListingError{CardID: in.CardID}
		}

		if err := tx.Create(listing).Error; err != nil {
			// The count above is a friendly pre-check; two concurrent creates
			// for the same card both pass it, and the partial unique index on
			// active listings rejects the second insert here.
			if marketplace.IsUniqueViolation(err) {
				return &marketplace.DuplicateListingError{CardID: in.CardID}
			}
			return fmt.Errorf("create listing: %w", err)
		}
		return marketplace.WriteListingEvent(tx, listing.ListingID, domain.EventListingCreated, &in.SellerID, map[string]interface{}{
			"listing_type": listing.ListingType,
			"price":        listing.Price,
			"duration":     listing.Duration,
			"expires_at":   listing.ExpiresAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Cancel transitions an active, unexpired listing to cancelled. Only the
// seller may cancel; an expired listing belongs to the sweeper.
func (s *Service) Cancel(ctx context.Context, listingID, actorID uuid.UUID) error {
	return marketplace.InTx(s.DB.WithContext(ctx), func(tx *gorm.DB) error {
		var listing domain.Listing
		if err := tx.Where("listing_id = ?", listingID).First(&listing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &marketplace.NotFoundError{Entity: "listing", ID: listingID}
			}
			return fmt.Errorf("load listing %s: %w", listingID, err)
		}

		if listing.Status.Terminal() {
			return &marketplace.StateConflictError{Reason: marketplace.ConflictAlreadyTerminal}
		}
		if actorID != listing.SellerID {
			return &marketplace.PermissionError{Msg: "only the seller can cancel a listing"}
		}
		now := time.Now().UTC()
		if listing.ExpiredAt(now) {
			return &marketplace.StateConflictError{Reason: marketplace.ConflictExpired}
		}

		updated := listing
		updated.Status = domain.ListingStatusCancelled
		if err := s.Guard.AuthorizeListingWrite(authz.User(actorID), &listing, &updated); err != nil {
			return err
		}

		res := tx.Model(&domain.Listing{}).
			Where("listing_id = ? AND status = ?", listingID, domain.ListingStatusActive).
			Updates(map[string]interface{}{
				"status":     domain.ListingStatusCancelled,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("cancel listing %s: %w", listingID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race against a purchase or the sweeper.
			return &marketplace.StateConflictError{Reason: marketplace.ConflictAlreadyTerminal}
		}
		return marketplace.WriteListingEvent(tx, listingID, domain.EventListingCancelled, &actorID, map[string]interface{}{
			"previous_status": listing.Status,
		})
	})
}

// Get returns a single listing with derived time-left and, for auctions, its
// bid history (highest first). Reads are lock-free and never mutate state.
func (s *Service) Get(ctx context.Context, listingID uuid.UUID) (*ListingView, error) {
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &marketplace.NotFoundError{Entity: "listing", ID: listingID}
		}
		return nil, fmt.Errorf("load listing %s: %w", listingID, err)
	}

	view := &ListingView{Listing: listing, TimeLeft: listing.TimeLeft(time.Now().UTC())}
	if listing.ListingType == domain.ListingTypeAuction {
		if err := s.DB.WithContext(ctx).
			Where("listing_id = ?", listingID).
			Order("amount DESC").
			Find(&view.Bids).Error; err != nil {
			return nil, fmt.Errorf("load bids for listing %s: %w", listingID, err)
		}
	}
	return view, nil
}

// ListActive returns active, unexpired listings, newest first, optionally
// filtered by type.
func (s *Service) ListActive(ctx context.Context, filter *domain.ListingType) ([]ListingView, error) {
	now := time.Now().UTC()
	q := s.DB.WithContext(ctx).
		Where("status = ? AND expires_at > ?", domain.ListingStatusActive, now)
	if filter != nil {
		if !domain.ValidListingType(*filter) {
			return nil, marketplace.Validationf("unknown listing type %q", *filter)
		}
		q = q.Where("listing_type = ?", *filter)
	}

	var rows []domain.Listing
	if err := q.Order("created_at DESC").Limit(browseLimit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	return toViews(rows, now), nil
}

// SellerListings returns a seller's listings, optionally filtered by status.
func (s *Service) SellerListings(ctx context.Context, sellerID uuid.UUID, status *domain.ListingStatus) ([]ListingView, error) {
	q := s.DB.WithContext(ctx).Where("seller_id = ?", sellerID)
	if status != nil {
		if !domain.ValidListingStatus(*status) {
			return nil, marketplace.Validationf("unknown listing status %q", *status)
		}
		q = q.Where("status = ?", *status)
	}

	var rows []domain.Listing
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list listings for seller %s: %w", sellerID, err)
	}
	return toViews(rows, time.Now().UTC()), nil
}

// Purchases returns the listings a user has bought.
func (s *Service) Purchases(ctx context.Context, buyerID uuid.UUID) ([]ListingView, error) {
	var rows []domain.Listing
	if err := s.DB.WithContext(ctx).
		Where("buyer_id = ? AND status = ?", buyerID, domain.ListingStatusSold).
		Order("sold_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list purchases for %s: %w", buyerID, err)
	}
	return toViews(rows, time.Now().UTC()), nil
}

func toViews(rows []domain.Listing, now time.Time) []ListingView {
	views := make([]ListingView, len(rows))
	for i, l := range rows {
		views[i] = ListingView{Listing: l, TimeLeft: l.TimeLeft(now)}
	}
	return views
}
