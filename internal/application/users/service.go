// Package users manages user records and the starting credit grant. Identity
// and sessions live upstream; this service only keeps the marketplace-facing
// profile and balance.
package users

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
	// StartingCredits is granted once at registration.
	StartingCredits int64
}

// Register creates a user with the starting balance.
func (s *Service) Register(ctx context.Context, displayName string) (*domain.User, error) {
	if displayName == "" {
		return nil, marketplace.Validationf("display_name is required")
	}
	user := &domain.User{
		DisplayName: displayName,
		Credits:     s.StartingCredits,
	}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &marketplace.NotFoundError{Entity: "user", ID: userID}
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return &user, nil
}
