package ledger

import (
	"context"
	"testing"

	"arcana-backend/internal/domain"
	"arcana-backend/internal/marketplace"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLedgerTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}))
	return &Service{DB: db}, db
}

func seedUser(t *testing.T, db *gorm.DB, credits int64) *domain.User {
	t.Helper()
	user := &domain.User{DisplayName: "tester", Credits: credits}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestDebitAndCredit(t *testing.T) {
	svc, db := setupLedgerTest(t)
	payer := seedUser(t, db, 100)
	payee := seedUser(t, db, 10)

	require.NoError(t, Debit(db, payer.UserID, 40))
	require.NoError(t, Credit(db, payee.UserID, 40))

	payerBalance, err := svc.Balance(context.Background(), payer.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), payerBalance)

	payeeBalance, err := svc.Balance(context.Background(), payee.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), payeeBalance)
}

func TestDebitInsufficientLeavesBalanceUntouched(t *testing.T) {
	svc, db := setupLedgerTest(t)
	user := seedUser(t, db, 30)

	err := Debit(db, user.UserID, 31)
	var insufficient *marketplace.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(31), insufficient.Required)
	assert.Equal(t, int64(30), insufficient.Available)

	balance, err := svc.Balance(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)
}

func TestDebitExactBalance(t *testing.T) {
	svc, db := setupLedgerTest(t)
	user := seedUser(t, db, 50)

	require.NoError(t, Debit(db, user.UserID, 50))

	balance, err := svc.Balance(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestDebitNonPositiveAmount(t *testing.T) {
	_, db := setupLedgerTest(t)
	user := seedUser(t, db, 50)

	var validation *marketplace.ValidationError
	assert.ErrorAs(t, Debit(db, user.UserID, 0), &validation)
	assert.ErrorAs(t, Debit(db, user.UserID, -5), &validation)
	assert.ErrorAs(t, Credit(db, user.UserID, 0), &validation)
}

func TestCreditUnknownUser(t *testing.T) {
	_, db := setupLedgerTest(t)

	err := Credit(db, uuid.New(), 10)
	var notFound *marketplace.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestBalanceUnknownUser(t *testing.T) {
	svc, _ := setupLedgerTest(t)

	_, err := svc.Balance(context.Background(), uuid.New())
	var notFound *marketplace.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
