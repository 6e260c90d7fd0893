package middleware

import (
	"errors"

	"arcana-backend/internal/marketplace"
	"arcana-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler. Business errors from the
// marketplace taxonomy map to their HTTP status; everything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		validation   *marketplace.ValidationError
		ownership    *marketplace.OwnershipError
		permission   *marketplace.PermissionError
		duplicate    *marketplace.DuplicateListingError
		conflict     *marketplace.StateConflictError
		insufficient *marketplace.InsufficientCreditsError
		notFound     *marketplace.NotFoundError
		invalidBid   *marketplace.InvalidBidError
	)

	switch {
	case errors.As(err, &validation):
		return response.Error(c, validation.Msg, fiber.StatusBadRequest, nil)
	case errors.As(err, &invalidBid):
		return response.Error(c, invalidBid.Error(), fiber.StatusBadRequest, map[string]interface{}{
			"reason": invalidBid.Reason,
		})
	case errors.As(err, &insufficient):
		return response.Error(c, "Insufficient credits", fiber.StatusPaymentRequired, map[string]interface{}{
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.As(err, &ownership):
		return response.Error(c, ownership.Error(), fiber.StatusForbidden, nil)
	case errors.As(err, &permission):
		return response.Error(c, permission.Msg, fiber.StatusForbidden, nil)
	case errors.As(err, &notFound):
		return response.Error(c, notFound.Error(), fiber.StatusNotFound, nil)
	case errors.As(err, &duplicate):
		return response.Error(c, duplicate.Error(), fiber.StatusConflict, nil)
	case errors.As(err, &conflict):
		return response.Error(c, conflict.Error(), fiber.StatusConflict, map[string]interface{}{
			"reason": conflict.Reason,
		})
	}

	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return response.Error(c, message, code, nil)
}
