// Package marketplace serves the per-user history views: a user's own
// listings, purchases and bids.
package marketplace

import (
	bidsvc "arcana-backend/internal/application/bids"
	listsvc "arcana-backend/internal/application/listings"
	"arcana-backend/internal/domain"
	mkterrors "arcana-backend/internal/marketplace"
	"arcana-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Listings *listsvc.Service
	Bids     *bidsvc.Service
}

// GET /api/v1/marketplace/users/:user_id/listings?status=sold
func (h *Handlers) UserListings(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return mkterrors.Validationf("user_id must be a valid UUID")
	}
	var status *domain.ListingStatus
	if s := c.Query("status"); s != "" {
		st := domain.ListingStatus(s)
		status = &st
	}
	views, err := h.Listings.SellerListings(c.Context(), userID, status)
	if err != nil {
		return err
	}
	return response.Success(c, "Listings fetched successfully", fiber.Map{
		"listings": views,
		"total":    len(views),
	})
}

// GET /api/v1/marketplace/users/:user_id/purchases
func (h *Handlers) UserPurchases(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return mkterrors.Validationf("user_id must be a valid UUID")
	}
	views, err := h.Listings.Purchases(c.Context(), userID)
	if err != nil {
		return err
	}
	return response.Success(c, "Purchases fetched successfully", fiber.Map{
		"purchases": views,
		"total":     len(views),
	})
}

// GET /api/v1/marketplace/users/:user_id/bids/active
func (h *Handlers) UserActiveBids(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return mkterrors.Validationf("user_id must be a valid UUID")
	}
	views, err := h.Bids.ActiveForUser(c.Context(), userID)
	if err != nil {
		return err
	}
	return response.Success(c, "Active bids fetched successfully", fiber.Map{
		"bids":  views,
		"total": len(views),
	})
}

// GET /api/v1/marketplace/users/:user_id/bids/history
func (h *Handlers) UserBidHistory(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return mkterrors.Validationf("user_id must be a valid UUID")
	}
	views, err := h.Bids.HistoryForUser(c.Context(), userID)
	if err != nil {
		return err
	}
	return response.Success(c, "Bid history fetched successfully", fiber.Map{
		"bids":  views,
		"total": len(views),
	})
}
