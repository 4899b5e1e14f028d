// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitevent/internal/models"
)

// Sentinel errors returned by every Store implementation.
var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEventSlugTaken and ErrParticipantSlugTaken are returned when an insert
	// collides with an existing slug. Callers regenerate the slug and retry.
	ErrEventSlugTaken       = errors.New("event slug already taken")
	ErrParticipantSlugTaken = errors.New("participant slug already taken")

	// ErrInsufficientBalance is returned when a payment exceeds what remains
	// of an obligation at write time.
	ErrInsufficientBalance = errors.New("payment exceeds remaining balance")
)

// ListOptions describes one page of a listing. SortBy is a logical column
// name; implementations map it onto their schema and ignore unknown values.
// A Limit of zero or less returns every row from Offset on.
type ListOptions struct {
	Offset int
	Limit  int
	SortBy string
	Desc   bool
}

// Payment is a payment against one obligation.
type Payment struct {
	ObligationID string
	Amount       decimal.Decimal
	PaidAt       time.Time

	// ProofPaths are object URLs attached to the obligation in the same transaction.
	ProofPaths []string
}

// EventStore persists events, participants and memberships.
type EventStore interface {
	EventSlugExists(ctx context.Context, slug string) (bool, error)
	ParticipantSlugExists(ctx context.Context, slug string) (bool, error)

	// CreateEvent inserts the event, its creator and the creator's membership
	// in one transaction. IDs and timestamps are populated by the store.
	CreateEvent(ctx context.Context, event *models.Event, creator *models.Participant) error

	GetEventByID(ctx context.Context, eventID string) (*models.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*models.Event, error)

	// UpdateEvent overwrites name, description and dates of an existing event.
	UpdateEvent(ctx context.Context, event *models.Event) error

	// JoinEvent inserts the participant and its membership in one transaction.
	JoinEvent(ctx context.Context, eventID string, participant *models.Participant) error

	CountEventParticipants(ctx context.Context, eventID string) (int, error)
	ListEventParticipants(ctx context.Context, eventID string, opts ListOptions) ([]models.EventParticipant, error)

	// MissingEventMembers returns the ids in participantIDs that are not members of the event.
	MissingEventMembers(ctx context.Context, eventID string, participantIDs []string) ([]string, error)
}

// ExpenseStore persists expenses, obligations and payment proofs.
type ExpenseStore interface {
	// CreateExpense inserts the expense and all of expense.Participants in one
	// transaction. Nothing is written if any insert fails.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense returns the expense with its obligations and proofs.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// UpdateExpense overwrites name, description and dates of an existing expense.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes the expense, its obligations and all proof rows,
	// and returns the paths of the removed proofs.
	DeleteExpense(ctx context.Context, expenseID string) ([]string, error)

	CountExpensesByEvent(ctx context.Context, eventID string) (int, error)
	ListExpensesByEvent(ctx context.Context, eventID string, opts ListOptions) ([]models.Expense, error)

	// ListEventLedger returns every expense of the event with its obligations.
	ListEventLedger(ctx context.Context, eventID string) ([]models.Expense, error)

	CountObligations(ctx context.Context, expenseID string) (int, error)
	ListObligations(ctx context.Context, expenseID string, opts ListOptions) ([]models.ExpenseParticipant, error)
	FindObligation(ctx context.Context, expenseID, participantID string) (*models.ExpenseParticipant, error)

	// RecordPayment decrements the obligation only if enough remains, stamps the
	// payment and inserts the proofs atomically. It returns ErrInsufficientBalance
	// when the conditional update matches nothing.
	RecordPayment(ctx context.Context, payment Payment) (*models.ExpenseParticipant, error)

	// AddPaymentProofs attaches general proofs to an expense.
	AddPaymentProofs(ctx context.Context, expenseID string, paths []string) ([]models.PaymentProof, error)

	// DeletePaymentProofs removes proofs of the expense (general or attached to one
	// of its obligations) and returns them. It returns ErrNotFound, deleting
	// nothing, unless every id belongs to the expense.
	DeletePaymentProofs(ctx context.Context, expenseID string, proofIDs []string) ([]models.PaymentProof, error)
}

// Store defines the interface for all storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	EventStore
	ExpenseStore

	// Close releases any resources held by the store.
	Close() error
}
