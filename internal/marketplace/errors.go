// Package marketplace holds the business-error taxonomy and transaction
// helpers shared by the listing, bid, ledger and settlement services.
package marketplace

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError reports malformed parameters.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError.
func Validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// OwnershipError reports that the actor does not own the referenced card.
type OwnershipError struct {
	ActorID uuid.UUID
	CardID  uuid.UUID
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("user %s does not own card %s", e.ActorID, e.CardID)
}

// PermissionError reports that the actor is not entitled to the action,
// e.g. a seller bidding on their own listing.
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string {
	return e.Msg
}

// DuplicateListingError reports that the card already has an active listing.
type DuplicateListingError struct {
	CardID uuid.UUID
}

func (e *DuplicateListingError) Error() string {
	return fmt.Sprintf("card %s is already listed", e.CardID)
}

// StateConflictError reasons.
const (
	ConflictAlreadySold     = "AlreadySold"
	ConflictAlreadyTerminal = "AlreadyTerminal"
	ConflictExpired         = "Expired"
	ConflictNotExpired      = "NotExpired"
	ConflictContention      = "Contention"
	ConflictCardUnavailable = "CardUnavailable"
)

// StateConflictError reports that the listing is not in the required state,
// including lost races.
type StateConflictError struct {
	Reason string
}

func (e *StateConflictError) Error() string {
	return "listing state conflict: " + e.Reason
}

// InsufficientCreditsError reports a debit larger than the available balance.
type InsufficientCreditsError struct {
	UserID    uuid.UUID
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("user %s has %d credits, needs %d", e.UserID, e.Available, e.Required)
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Bid rejection reason codes.
const (
	BidReasonExpired   = "expired"
	BidReasonWrongType = "wrong-type"
	BidReasonSelfBid   = "self-bid"
	BidReasonTooLow    = "amount-too-low"
	BidReasonNotActive = "not-active"
)

// InvalidBidError reports a rejected bid with a machine-readable reason code.
type InvalidBidError struct {
	Reason string
	Msg    string
}

func (e *InvalidBidError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("invalid bid (%s): %s", e.Reason, e.Msg)
	}
	return "invalid bid: " + e.Reason
}
