package calculator

import (
	"errors"
	"testing"

	"github.com/mmynk/splitevent/internal/apperr"
	"github.com/mmynk/splitevent/internal/models"
)

func validRequest() *models.CreateExpenseRequest {
	return &models.CreateExpenseRequest{
		EventID:         "event-1",
		Name:            "Dinner",
		StartDate:       "2024-05-01T18:00:00Z",
		EndDate:         "2024-05-01T21:00:00Z",
		Amount:          d("300"),
		SplittingMethod: models.SplitEqual,
		Participants:    []models.ExpenseParticipantInput{payer("alice"), debtor("bob"), debtor("carol")},
	}
}

func TestValidateCreateExpense(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.CreateExpenseRequest)
		wantMsg string
	}{
		{
			name:   "valid request",
			mutate: func(r *models.CreateExpenseRequest) {},
		},
		{
			name: "missing fields are listed in order",
			mutate: func(r *models.CreateExpenseRequest) {
				r.Name = " "
				r.EndDate = ""
				r.Participants = nil
			},
			wantMsg: "Missing required fields (name, end_date, participants)",
		},
		{
			name:    "zero amount counts as missing",
			mutate:  func(r *models.CreateExpenseRequest) { r.Amount = d("0") },
			wantMsg: "Missing required fields (amount)",
		},
		{
			name:    "negative amount",
			mutate:  func(r *models.CreateExpenseRequest) { r.Amount = d("-1") },
			wantMsg: "amount must be greater than 0",
		},
		{
			name:    "negative service fee",
			mutate:  func(r *models.CreateExpenseRequest) { r.ServiceFee = d("-0.5") },
			wantMsg: "service_fee cannot be negative",
		},
		{
			name:    "malformed date",
			mutate:  func(r *models.CreateExpenseRequest) { r.StartDate = "2024-05-01" },
			wantMsg: "Date must be in RFC3339 format (YYYY-MM-DDTHH:mm:ssZ)",
		},
		{
			name:    "start after end",
			mutate:  func(r *models.CreateExpenseRequest) { r.StartDate = "2024-05-02T00:00:00Z" },
			wantMsg: "Start date cannot be after end date",
		},
		{
			name: "duplicate participant",
			mutate: func(r *models.CreateExpenseRequest) {
				r.Participants = append(r.Participants, debtor("bob"))
			},
			wantMsg: "participants.id must be unique",
		},
		{
			name: "unknown tag",
			mutate: func(r *models.CreateExpenseRequest) {
				r.Participants[1].Tag = "GUEST"
			},
			wantMsg: "participants.tag must be either PAYER or PARTICIPANT",
		},
		{
			name: "no payer",
			mutate: func(r *models.CreateExpenseRequest) {
				r.Participants = []models.ExpenseParticipantInput{debtor("bob"), debtor("carol")}
			},
			wantMsg: "There must be at least one payer",
		},
		{
			name:    "unknown splitting method",
			mutate:  func(r *models.CreateExpenseRequest) { r.SplittingMethod = "RANDOM" },
			wantMsg: "Invalid splitting_method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := ValidateCreateExpense(req)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("ValidateCreateExpense() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateCreateExpense() = nil, want %q", tt.wantMsg)
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("ValidateCreateExpense() error kind = %v, want validation", err)
			}
			if got := apperr.Message(err); got != tt.wantMsg {
				t.Errorf("ValidateCreateExpense() message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestParseDateRange(t *testing.T) {
	start, end, err := ParseDateRange("2024-05-01T00:00:00Z", "2024-05-01T00:00:00Z")
	if err != nil {
		t.Fatalf("ParseDateRange() error = %v", err)
	}
	if !start.Equal(end) {
		t.Errorf("ParseDateRange() = %v, %v; want equal instants", start, end)
	}

	if _, _, err := ParseDateRange("2024-05-01T10:00:00+07:00", "2024-05-01T04:00:00Z"); err != nil {
		t.Errorf("ParseDateRange() with offsets error = %v", err)
	}
}
