// Package authz implements the field-diff authorization guard consulted at
// the storage boundary. It is a secondary defense: it blocks malformed field
// writes per principal, while the services independently enforce every
// business rule and race check.
package authz

import (
	"fmt"

	"arcana-backend/internal/domain"
	"arcana-backend/internal/marketplace"

	"github.com/google/uuid"
)

// PrincipalKind separates end users from the internal service identity.
type PrincipalKind string

const (
	KindUser   PrincipalKind = "user"
	KindSystem PrincipalKind = "system"
)

// Principal identifies who is attempting a write.
type Principal struct {
	ID   uuid.UUID
	Kind PrincipalKind
}

// User builds an end-user principal.
func User(id uuid.UUID) Principal {
	return Principal{ID: id, Kind: KindUser}
}

// System is the internal service principal. Its capability set is narrow:
// advance current_price/bid_count and transition active listings to expired.
// It can never mark a listing sold or touch buyer_id.
func System() Principal {
	return Principal{Kind: KindSystem}
}

// Guard answers "may principal P write this field-level diff from old to
// new?" for listing records.
type Guard interface {
	AuthorizeListingWrite(p Principal, old, updated *domain.Listing) error
}

// FieldRules is the default Guard. Rules, per principal:
//
//   - nobody may alter card_id, seller_id, listing_type, duration, expires_at,
//     created_at or price
//   - the seller may only transition active -> cancelled
//   - any other user may only transition active -> sold with buyer_id set to
//     themselves (this is how auction settlement is attributed: the sweeper
//     acts on the winning bidder's behalf)
//   - the system principal may only advance current_price/bid_count on an
//     active auction or transition active -> expired
type FieldRules struct{}

// AuthorizeListingWrite implements Guard.
func (FieldRules) AuthorizeListingWrite(p Principal, old, updated *domain.Listing) error {
	if err := checkImmutable(old, updated); err != nil {
		return err
	}
	if old.Status.Terminal() {
		return deny("terminal listings are read-only")
	}

	switch {
	case p.Kind == KindSystem:
		return authorizeSystem(old, updated)
	case p.ID == old.SellerID:
		return authorizeSeller(old, updated)
	default:
		return authorizeBuyer(p, old, updated)
	}
}

func checkImmutable(old, updated *domain.Listing) error {
	switch {
	case old.ListingID != updated.ListingID:
		return deny("listing_id is immutable")
	case old.CardID != updated.CardID:
		return deny("card_id is immutable")
	case old.SellerID != updated.SellerID:
		return deny("seller_id is immutable")
	case old.ListingType != updated.ListingType:
		return deny("listing_type is immutable")
	case old.Duration != updated.Duration:
		return deny("duration is immutable")
	case !old.ExpiresAt.Equal(updated.ExpiresAt):
		return deny("expires_at is immutable")
	case old.Price != updated.Price:
		return deny("price is immutable")
	}
	return nil
}

func authorizeSystem(old, updated *domain.Listing) error {
	if updated.Status == domain.ListingStatusSold || updated.BuyerID != nil {
		return deny("system principal cannot mark listings sold")
	}
	if updated.Status != old.Status && updated.Status != domain.ListingStatusExpired {
		return deny(fmt.Sprintf("system principal cannot set status %q", updated.Status))
	}
	if priceAdvanced(old, updated) && old.ListingType != domain.ListingTypeAuction {
		return deny("current_price mutates only for auctions")
	}
	if updated.CurrentPrice < old.CurrentPrice {
		return deny("current_price may not decrease")
	}
	return nil
}

func authorizeSeller(old, updated *domain.Listing) error {
	if priceAdvanced(old, updated) {
		return deny("sellers cannot update current_price or bid_count")
	}
	if updated.Status != domain.ListingStatusCancelled {
		return deny(fmt.Sprintf("sellers may only cancel; got status %q", updated.Status))
	}
	if updated.BuyerID != nil {
		return deny("sellers cannot set buyer_id")
	}
	return nil
}

func authorizeBuyer(p Principal, old, updated *domain.Listing) error {
	if priceAdvanced(old, updated) {
		return deny("buyers cannot update current_price or bid_count")
	}
	if updated.Status != domain.ListingStatusSold {
		return deny(fmt.Sprintf("buyers may only complete a sale; got status %q", updated.Status))
	}
	if updated.BuyerID == nil || *updated.BuyerID != p.ID {
		return deny("buyer_id must be the acting principal")
	}
	if p.ID == old.SellerID {
		return deny("sellers cannot buy their own listing")
	}
	return nil
}

func priceAdvanced(old, updated *domain.Listing) bool {
	return old.CurrentPrice != updated.CurrentPrice || old.BidCount != updated.BidCount
}

func deny(msg string) error {
	return &marketplace.PermissionError{Msg: "write denied: " + msg}
}
