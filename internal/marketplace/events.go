package marketplace

import (
	"encoding/json"
	"fmt"

	"arcana-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WriteListingEvent appends an audit row for a listing inside the caller's
// transaction.
func WriteListingEvent(tx *gorm.DB, listingID uuid.UUID, eventType string, actorID *uuid.UUID, data map[string]interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event data: %w", eventType, err)
	}
	event := &domain.ListingEvent{
		ListingID: listingID,
		EventType: eventType,
		EventData: datatypes.JSON(payload),
		ActorID:   actorID,
	}
	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	return nil
}
