package bids

import (
	bidsvc "arcana-backend/internal/application/bids"
	"arcana-backend/internal/marketplace"
	"arcana-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Bids *bidsvc.Service
}

type placeBidBody struct {
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
}

// POST /api/v1/listings/:listing_id/bids
func (h *Handlers) PlaceBid(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return marketplace.Validationf("listing_id must be a valid UUID")
	}
	var body placeBidBody
	if err := c.BodyParser(&body); err != nil {
		return marketplace.Validationf("Invalid request body")
	}
	bidderID, err := uuid.Parse(body.BidderID)
	if err != nil {
		return marketplace.Validationf("bidder_id must be a valid UUID")
	}

	bid, err := h.Bids.PlaceBid(c.Context(), listingID, bidderID, body.Amount)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Bid placed successfully", bid)
}

// GET /api/v1/listings/:listing_id/bids
func (h *Handlers) ListBids(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return marketplace.Validationf("listing_id must be a valid UUID")
	}
	bids, err := h.Bids.ListForListing(c.Context(), listingID)
	if err != nil {
		return err
	}
	return response.Success(c, "Bids fetched successfully", fiber.Map{
		"bids":  bids,
		"total": len(bids),
	})
}
