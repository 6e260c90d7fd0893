// Package cards is the card store surface the marketplace consumes: ownership
// lookup and per-user collections. Card generation happens upstream; records
// arrive here already drawn.
package cards

import (
	"context"
	"fmt"

	"arcana-backend/internal/domain"
	"arcana-backend/internal/marketplace"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

type CreateCardInput struct {
	OwnerID    uuid.UUID
	Name       string
	Rarity     string
	Type       string
	ManaCost   string
	Abilities  string
	FlavorText string
	ImageURL   string
}

// Create registers a card under its owner.
func (s *Service) Create(ctx context.Context, in CreateCardInput) (*domain.Card, error) {
	if in.Name == "" {
		return nil, marketplace.Validationf("card name is required")
	}
	switch in.Rarity {
	case domain.RarityCommon, domain.RarityUncommon, domain.RarityRare, domain.RarityMythicRare:
	default:
		return nil, marketplace.Validationf("unknown rarity %q", in.Rarity)
	}

	card := &domain.Card{
		OwnerID:    in.OwnerID,
		Name:       in.Name,
		Rarity:     in.Rarity,
		Type:       in.Type,
		ManaCost:   in.ManaCost,
		Abilities:  in.Abilities,
		FlavorText: in.FlavorText,
		ImageURL:   in.ImageURL,
	}
	if err := s.DB.WithContext(ctx).Create(card).Error; err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	return card, nil
}

// Get returns a card by ID.
func (s *Service) Get(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	var card domain.Card
	if err := s.DB.WithContext(ctx).Where("card_id = ?", cardID).First(&card).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &marketplace.NotFoundError{Entity: "card", ID: cardID}
		}
		return nil, fmt.Errorf("load card %s: %w", cardID, err)
	}
	return &card, nil
}

// ForOwner returns all cards a user owns.
func (s *Service) ForOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Card, error) {
	var cards []domain.Card
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("list cards for %s: %w", ownerID, err)
	}
	return cards, nil
}
