package models

import "github.com/shopspring/decimal"

// CreateEventRequest is the payload for creating an event together with its creator.
type CreateEventRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	CreatorName string `json:"creator_name"`
}

// CreateEventResponse returns the event, its creator and a participant token for the creator.
type CreateEventResponse struct {
	Event       Event       `json:"event"`
	Participant Participant `json:"participant"`
	Token       string      `json:"token"`
}

// GetEventRequest looks an event up by slug.
type GetEventRequest struct {
	Slug string `json:"slug"`
}

// UpdateEventRequest updates name, description and dates of an event.
// Nil fields are left untouched; dates must be given together.
type UpdateEventRequest struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
}

// JoinEventRequest creates a participant and joins it to the event identified by slug.
type JoinEventRequest struct {
	Slug            string `json:"slug"`
	ParticipantName string `json:"participant_name"`
}

// JoinEventResponse returns the new participant and a token for it.
type JoinEventResponse struct {
	Participant Participant `json:"participant"`
	Token       string      `json:"token"`
}

// ListEventParticipantsRequest lists the members of an event.
type ListEventParticipantsRequest struct {
	Slug string `json:"slug"`
	PageQuery
}

// ListEventParticipantsResponse is one page of event members.
type ListEventParticipantsResponse struct {
	Data       []EventParticipant `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// GetEventBalancesRequest asks for the balances of an event.
type GetEventBalancesRequest struct {
	Slug string `json:"slug"`
}

// MemberBalance is the balance of one event member across all expenses.
type MemberBalance struct {
	ParticipantID string          `json:"participant_id"`
	Name          string          `json:"name"`
	TotalFronted  decimal.Decimal `json:"total_fronted"`
	TotalShare    decimal.Decimal `json:"total_share"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	NetBalance    decimal.Decimal `json:"net_balance"`
}

// DebtEdge is a suggested transfer from a debtor to a creditor.
type DebtEdge struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// GetEventBalancesResponse carries member balances and simplified debts.
type GetEventBalancesResponse struct {
	Balances []MemberBalance `json:"balances"`
	Debts    []DebtEdge      `json:"debts"`
}

// ExpenseParticipantInput is one tagged participant of a new expense.
// Percentage is read for PERCENTAGE splits and Nominal for CUSTOM_AMOUNT splits.
type ExpenseParticipantInput struct {
	ID                    string           `json:"id"`
	Tag                   ParticipantTag   `json:"tag"`
	AmountToPayPercentage *decimal.Decimal `json:"amount_to_pay_percentage,omitempty"`
	AmountToPayNominal    *decimal.Decimal `json:"amount_to_pay_nominal,omitempty"`
}

// CreateExpenseRequest is the payload for creating an expense with its obligations.
type CreateExpenseRequest struct {
	EventID         string                    `json:"event_id"`
	Name            string                    `json:"name"`
	Description     string                    `json:"description"`
	StartDate       string                    `json:"start_date"`
	EndDate         string                    `json:"end_date"`
	Amount          decimal.Decimal           `json:"amount"`
	Tax             decimal.Decimal           `json:"tax"`
	ServiceFee      decimal.Decimal           `json:"service_fee"`
	Discount        decimal.Decimal           `json:"discount"`
	SplittingMethod SplittingMethod           `json:"splitting_method"`
	Participants    []ExpenseParticipantInput `json:"participants"`
}

// ExpenseRequest identifies an expense by id.
type ExpenseRequest struct {
	ID string `json:"id"`
}

// UpdateExpenseRequest updates name, description and dates of an expense.
type UpdateExpenseRequest struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
}

// DeleteExpenseResponse confirms a deletion and reports proof files that could not be removed.
type DeleteExpenseResponse struct {
	Message       string   `json:"message"`
	FailedDeletes []string `json:"failed_deletes,omitempty"`
}

// ListExpensesRequest lists the expenses of an event.
type ListExpensesRequest struct {
	EventSlug string `json:"event_slug"`
	PageQuery
}

// ListExpensesResponse is one page of expenses.
type ListExpensesResponse struct {
	Data       []Expense  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ListExpenseParticipantsRequest lists the obligations of an expense.
type ListExpenseParticipantsRequest struct {
	ExpenseID string `json:"expense_id"`
	PageQuery
}

// ListExpenseParticipantsResponse is one page of obligations.
type ListExpenseParticipantsResponse struct {
	Data       []ExpenseParticipant `json:"data"`
	Pagination Pagination           `json:"pagination"`
}

// File is an uploaded file carried in a request body. Data is base64 in JSON.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// UploadResult is the outcome of uploading one file. Exactly one of URL and Error is set.
type UploadResult struct {
	FileName string `json:"file_name"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PayExpenseRequest records a payment by a participant against an expense.
// ParticipantID may be omitted when the request carries a participant token.
type PayExpenseRequest struct {
	ExpenseID     string          `json:"expense_id"`
	ParticipantID string          `json:"participant_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentProofs []File          `json:"payment_proofs"`
}

// PayExpenseResponse returns the updated obligation and the per-file upload results.
type PayExpenseResponse struct {
	Obligation ExpenseParticipant `json:"obligation"`
	Uploads    []UploadResult     `json:"uploads"`
}

// UploadPaymentProofsRequest attaches general proofs to an expense.
type UploadPaymentProofsRequest struct {
	ExpenseID     string `json:"expense_id"`
	PaymentProofs []File `json:"payment_proofs"`
}

// UploadPaymentProofsResponse returns all proofs of the expense and the per-file results.
type UploadPaymentProofsResponse struct {
	PaymentProofs []PaymentProof `json:"payment_proofs"`
	Uploads       []UploadResult `json:"uploads"`
}

// DeletePaymentProofsRequest removes general proofs from an expense.
type DeletePaymentProofsRequest struct {
	ExpenseID       string   `json:"expense_id"`
	PaymentProofIDs []string `json:"payment_proofs_ids"`
}

// DeletePaymentProofsResponse confirms a deletion.
type DeletePaymentProofsResponse struct {
	Message       string   `json:"message"`
	FailedDeletes []string `json:"failed_deletes,omitempty"`
}
