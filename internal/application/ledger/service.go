// Package ledger implements the per-user credit balance with the
// no-negative-balance invariant. Debit and Credit take the caller's
// transaction handle so that settlement debits, credits and ownership
// transfers commit together or not at all.
package ledger

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

// Balance returns the user's current credit balance.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return BalanceTx(s.DB.WithContext(ctx), userID)
}

// BalanceTx reads the balance through an existing transaction handle.
func BalanceTx(tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var user domain.User
	if err := tx.Select("user_id, credits").Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, &marketplace.NotFoundError{Entity: "user", ID: userID}
		}
		return 0, fmt.Errorf("ledger: read balance for %s: %w", userID, err)
	}
	return user.Credits, nil
}

// Debit decreases the balance by amount inside tx. The update is conditional
// on credits >= amount, so a concurrent debit can never drive the balance
// negative; when the condition fails the caller's transaction rolls back with
// InsufficientCreditsError.
func Debit(tx *gorm.DB, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return marketplace.Validationf("debit amount must be positive, got %d", amount)
	}
	res := tx.Model(&domain.User{}).
		Where("user_id = ? AND credits >= ?", userID, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("ledger: debit %d from %s: %w", amount, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		balance, err := BalanceTx(tx, userID)
		if err != nil {
			return err
		}
		return &marketplace.InsufficientCreditsError{UserID: userID, Required: amount, Available: balance}
	}
	return nil
}

// Credit unconditionally increases the balance by amount inside tx.
func Credit(tx *gorm.DB, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return marketplace.Validationf("credit amount must be positive, got %d", amount)
	}
	res := tx.Model(&domain.User{}).
		Where("user_id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("ledger: credit %d to %s: %w", amount, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &marketplace.NotFoundError{Entity: "user", ID: userID}
	}
	return nil
}
