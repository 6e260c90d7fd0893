package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Handlers struct {
	DB  *gorm.DB
	RDB *redis.Client
}

// GET /health reports liveness plus dependency status.
func (h *Handlers) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if h.DB != nil {
		sqlDB, err := h.DB.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "unreachable"
		}
	} else {
		dbStatus = "not configured"
	}

	redisStatus := "ok"
	if h.RDB != nil {
		if err := h.RDB.Ping(ctx).Err(); err != nil {
			redisStatus = "unreachable"
		}
	} else {
		redisStatus = "not configured"
	}

	status := fiber.StatusOK
	if dbStatus == "unreachable" || redisStatus == "unreachable" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status": "up",
		"db":     dbStatus,
		"redis":  redisStatus,
		"time":   time.Now().UTC(),
	})
}
