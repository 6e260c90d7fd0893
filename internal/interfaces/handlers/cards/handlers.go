package cards

import (
	cardsvc "arcana-backend/internal/application/cards"
	"arcana-backend/internal/marketplace"
	"arcana-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Cards *cardsvc.Service
}

type createCardBody struct {
	OwnerID    string `json:"owner_id"`
	Name       string `json:"name"`
	Rarity     string `json:"rarity"`
	Type       string `json:"type"`
	ManaCost   string `json:"mana_cost"`
	Abilities  string `json:"abilities"`
	FlavorText string `json:"flavor_text"`
	ImageURL   string `json:"image_url"`
}

// POST /api/v1/cards registers an already-generated card under its owner.
func (h *Handlers) CreateCard(c *fiber.Ctx) error {
	var body createCardBody
	if err := c.BodyParser(&body); err != nil {
		return marketplace.Validationf("Invalid request body")
	}
	ownerID, err := uuid.Parse(body.OwnerID)
	if err != nil {
		return marketplace.Validationf("owner_id must be a valid UUID")
	}

	card, err := h.Cards.Create(c.Context(), cardsvc.CreateCardInput{
		OwnerID:    ownerID,
		Name:       body.Name,
		Rarity:     body.Rarity,
		Type:       body.Type,
		ManaCost:   body.ManaCost,
		Abilities:  body.Abilities,
		FlavorText: body.FlavorText,
		ImageURL:   body.ImageURL,
	})
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Card created successfully", card)
}

// GET /api/v1/cards/:card_id
func (h *Handlers) GetCard(c *fiber.Ctx) error {
	cardID, err := uuid.Parse(c.Params("card_id"))
	if err != nil {
		return marketplace.Validationf("card_id must be a valid UUID")
	}
	card, err := h.Cards.Get(c.Context(), cardID)
	if err != nil {
		return err
	}
	return response.Success(c, "Card fetched successfully", card)
}
