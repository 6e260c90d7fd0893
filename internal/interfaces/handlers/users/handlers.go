package users

import (
	cardsvc "arcana-backend/internal/application/cards"
	usersvc "arcana-backend/internal/application/users"
	"arcana-backend/internal/marketplace"
	"arcana-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Users *usersvc.Service
	Cards *cardsvc.Service
}

type registerBody struct {
	DisplayName string `json:"display_name"`
}

// POST /api/v1/users
func (h *Handlers) Register(c *fiber.Ctx) error {
	var body registerBody
	if err := c.BodyParser(&body); err != nil {
		return marketplace.Validationf("Invalid request body")
	}
	user, err := h.Users.Register(c.Context(), body.DisplayName)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "User created successfully", user)
}

// GET /api/v1/users/:user_id
func (h *Handlers) GetUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return marketplace.Validationf("user_id must be a valid UUID")
	}
	user, err := h.Users.Get(c.Context(), userID)
	if err != nil {
		return err
	}
	return response.Success(c, "User fetched successfully", user)
}

// GET /api/v1/users/:user_id/cards
func (h *Handlers) GetUserCards(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return marketplace.Validationf("user_id must be a valid UUID")
	}
	cards, err := h.Cards.ForOwner(c.Context(), userID)
	if err != nil {
		return err
	}
	return response.Success(c, "Cards fetched successfully", fiber.Map{
		"cards": cards,
		"total": len(cards),
	})
}
