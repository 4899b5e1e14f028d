package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplittingMethod is the rule used to convert an expense total into obligations.
type SplittingMethod string

const (
	SplitEqual        SplittingMethod = "EQUAL"
	SplitPercentage   SplittingMethod = "PERCENTAGE"
	SplitCustomAmount SplittingMethod = "CUSTOM_AMOUNT"
)

// Valid reports whether m is one of the recognized splitting methods.
func (m SplittingMethod) Valid() bool {
	switch m {
	case SplitEqual, SplitPercentage, SplitCustomAmount:
		return true
	}
	return false
}

// ParticipantTag classifies a participant's role on an expense.
type ParticipantTag string

const (
	// TagPayer marks a participant who fronted the expense. Payers owe nothing.
	TagPayer ParticipantTag = "PAYER"
	// TagParticipant marks a participant who owes a share of the expense.
	TagParticipant ParticipantTag = "PARTICIPANT"
)

// Valid reports whether t is one of the recognized tags.
func (t ParticipantTag) Valid() bool {
	return t == TagPayer || t == TagParticipant
}

// Expense represents a cost logged against an event.
// Amount, Tax, ServiceFee and Discount are fixed at creation; only the name,
// description and dates may be updated afterwards.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	// EventID is the event this expense belongs to.
	EventID string `json:"event_id"`

	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`

	// Amount is the pre-tax amount; always positive.
	Amount decimal.Decimal `json:"amount"`

	// Tax, ServiceFee and Discount default to zero and are never negative.
	Tax        decimal.Decimal `json:"tax"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Discount   decimal.Decimal `json:"discount"`

	SplittingMethod SplittingMethod `json:"splitting_method"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Participants are the obligations of this expense. Populated on detail reads only.
	Participants []ExpenseParticipant `json:"participants,omitempty"`

	// PaymentProofs are the general proofs attached to the expense (not to an obligation).
	PaymentProofs []PaymentProof `json:"payment_proofs,omitempty"`
}

// Total returns amount + tax + service_fee - discount.
func (e *Expense) Total() decimal.Decimal {
	return e.Amount.Add(e.Tax).Add(e.ServiceFee).Sub(e.Discount)
}

// ExpenseParticipant is one participant's obligation on an expense.
type ExpenseParticipant struct {
	// ID is the unique identifier for the obligation (UUID format).
	ID string `json:"id"`

	ExpenseID     string `json:"expense_id"`
	ParticipantID string `json:"participant_id"`

	// Name and Slug are copied from the participant on reads.
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`

	Tag ParticipantTag `json:"tag"`

	// Share is the amount computed at allocation time. It never changes.
	Share decimal.Decimal `json:"share"`

	// AmountToPay is the remaining obligation. It starts at Share and only decreases.
	AmountToPay decimal.Decimal `json:"amount_to_pay"`

	// PaidAmount is the amount of the most recent payment, not a running total.
	PaidAmount decimal.Decimal `json:"paid_amount"`

	// PaidAt is the time of the most recent payment; nil until the first payment.
	PaidAt *time.Time `json:"paid_at"`

	CreatedAt time.Time `json:"created_at"`

	PaymentProofs []PaymentProof `json:"payment_proofs,omitempty"`
}

// Remaining returns the outstanding balance of the obligation.
func (ep *ExpenseParticipant) Remaining() decimal.Decimal {
	return ep.AmountToPay
}

// IsSettled reports whether nothing remains to be paid.
func (ep *ExpenseParticipant) IsSettled() bool {
	return !ep.AmountToPay.IsPositive()
}

// PaymentProof is an uploaded file proving a payment. It belongs either to an
// expense (general proof) or to an obligation (payment-specific proof).
type PaymentProof struct {
	ID                   string    `json:"id"`
	ExpenseID            *string   `json:"expense_id,omitempty"`
	ExpenseParticipantID *string   `json:"expense_participant_id,omitempty"`
	Path                 string    `json:"path"`
	CreatedAt            time.Time `json:"created_at"`
}
