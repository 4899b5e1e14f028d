// Package settlement tracks payments against obligations.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitevent/internal/apperr"
	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/storage"
)

// Tracker locates payable obligations and records payments against them.
type Tracker struct {
	store storage.ExpenseStore
	now   func() time.Time
}

// NewTracker returns a Tracker backed by store.
func NewTracker(store storage.ExpenseStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// FindPayableObligation returns the obligation of participantID on expenseID
// if it can absorb amount. A missing obligation is NotFound; an amount above
// what remains is a Conflict.
func (t *Tracker) FindPayableObligation(ctx context.Context, expenseID, participantID string, amount decimal.Decimal) (*models.ExpenseParticipant, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than 0")
	}

	ob, err := t.store.FindObligation(ctx, expenseID, participantID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("Expense participant")
	}
	if err != nil {
		return nil, apperr.Persistence("failed to find expense participant", err)
	}

	if ob.Remaining().LessThan(amount) {
		return nil, apperr.Conflict("Amount exceeds remaining balance (%s)", ob.Remaining())
	}
	return ob, nil
}

// RecordPayment decrements the obligation by amount and attaches proofURLs in
// one transaction. If a concurrent payment drained the balance first, the
// payment fails with a Conflict and nothing changes.
func (t *Tracker) RecordPayment(ctx context.Context, obligationID string, amount decimal.Decimal, proofURLs []string) (*models.ExpenseParticipant, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than 0")
	}

	ob, err := t.store.RecordPayment(ctx, storage.Payment{
		ObligationID: obligationID,
		Amount:       amount,
		PaidAt:       t.now().UTC(),
		ProofPaths:   proofURLs,
	})
	switch {
	case errors.Is(err, storage.ErrInsufficientBalance):
		return nil, apperr.Conflict("Amount exceeds remaining balance")
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperr.NotFound("Expense participant")
	case err != nil:
		return nil, apperr.Persistence("failed to record payment", err)
	}
	return ob, nil
}
