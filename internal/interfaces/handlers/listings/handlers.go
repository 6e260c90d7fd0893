package listings

import (
	listsvc "arcana-backend/internal/application/listings"
	settlesvc "arcana-backend/internal/application/settlement"
	"arcana-backend/internal/domain"
	"arcana-backend/internal/marketplace"
	"arcana-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Listings   *listsvc.Service
	Settlement *settlesvc.Service
}

type createListingBody struct {
	CardID      string `json:"card_id"`
	SellerID    string `json:"seller_id"`
	ListingType string `json:"listing_type"`
	Price       int64  `json:"price"`
	Duration    string `json:"duration"`
}

// POST /api/v1/listings
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	var body createListingBody
	if err := c.BodyParser(&body); err != nil {
		return marketplace.Validationf("Invalid request body")
	}
	cardID, err := uuid.Parse(body.CardID)
	if err != nil {
		return marketplace.Validationf("card_id must be a valid UUID")
	}
	sellerID, err := uuid.Parse(body.SellerID)
	if err != nil {
		return marketplace.Validationf("seller_id must be a valid UUID")
	}

	listing, err := h.Listings.Create(c.Context(), listsvc.CreateListingInput{
		CardID:      cardID,
		SellerID:    sellerID,
		ListingType: domain.ListingType(body.ListingType),
		Price:       body.Price,
		Duration:    domain.ListingDuration(body.Duration),
	})
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Listing created successfully", listing)
}

type cancelListingBody struct {
	ActorID string `json:"actor_id"`
}

// POST /api/v1/listings/:listing_id/cancel
func (h *Handlers) CancelListing(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return marketplace.Validationf("listing_id must be a valid UUID")
	}
	var body cancelListingBody
	if err := c.BodyParser(&body); err != nil {
		return marketplace.Validationf("Invalid request body")
	}
	actorID, err := uuid.Parse(body.ActorID)
	if err != nil {
		return marketplace.Validationf("actor_id must be a valid UUID")
	}

	if err := h.Listings.Cancel(c.Context(), listingID, actorID); err != nil {
		return err
	}
	return response.Success(c, "Listing cancelled successfully", fiber.Map{"listing_id": listingID})
}

// GET /api/v1/listings/:listing_id
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return marketplace.Validationf("listing_id must be a valid UUID")
	}
	view, err := h.Listings.Get(c.Context(), listingID)
	if err != nil {
		return err
	}
	return response.Success(c, "Listing fetched successfully", view)
}

// GET /api/v1/listings?type=auction
func (h *Handlers) ListListings(c *fiber.Ctx) error {
	var filter *domain.ListingType
	if t := c.Query("type"); t != "" {
		lt := domain.ListingType(t)
		filter = &lt
	}
	views, err := h.Listings.ListActive(c.Context(), filter)
	if err != nil {
		return err
	}
	return response.Success(c, "Listings fetched successfully", fiber.Map{
		"listings": views,
		"total":    len(views),
	})
}

type purchaseBody struct {
	BuyerID string `json:"buyer_id"`
}

// POST /api/v1/listings/:listing_id/purchase
func (h *Handlers) PurchaseListing(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return marketplace.Validationf("listing_id must be a valid UUID")
	}
	var body purchaseBody
	if err := c.BodyParser(&body); err != nil {
		return marketplace.Validationf("Invalid request body")
	}
	buyerID, err := uuid.Parse(body.BuyerID)
	if err != nil {
		return marketplace.Validationf("buyer_id must be a valid UUID")
	}

	listing, err := h.Settlement.Purchase(c.Context(), listingID, buyerID)
	if err != nil {
		return err
	}
	return response.Success(c, "Purchase completed successfully", listing)
}
