package calculator

import (
	"strings"
	"time"

	"github.com/mmynk/splitevent/internal/apperr"
	"github.com/mmynk/splitevent/internal/models"
)

// ParseDateRange parses two RFC3339 timestamps and checks start <= end.
func ParseDateRange(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.Parse(time.RFC3339, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("Date must be in RFC3339 format (YYYY-MM-DDTHH:mm:ssZ)")
	}
	endDate, err := time.Parse(time.RFC3339, strings.TrimSpace(end))
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("Date must be in RFC3339 format (YYYY-MM-DDTHH:mm:ssZ)")
	}
	if startDate.After(endDate) {
		return time.Time{}, time.Time{}, apperr.Validation("Start date cannot be after end date")
	}
	return startDate, endDate, nil
}

// ValidateCreateExpense checks the preconditions of a new expense, in order,
// and returns the first failure. It does not check that the split reconciles;
// see Reconcile.
func ValidateCreateExpense(req *models.CreateExpenseRequest) error {
	if req == nil {
		return apperr.Validation("Missing request body")
	}

	var missing []string
	if strings.TrimSpace(req.EventID) == "" {
		missing = append(missing, "event_id")
	}
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if req.Amount.IsZero() {
		missing = append(missing, "amount")
	}
	if strings.TrimSpace(req.StartDate) == "" {
		missing = append(missing, "start_date")
	}
	if strings.TrimSpace(req.EndDate) == "" {
		missing = append(missing, "end_date")
	}
	if strings.TrimSpace(string(req.SplittingMethod)) == "" {
		missing = append(missing, "splitting_method")
	}
	if len(req.Participants) == 0 {
		missing = append(missing, "participants")
	}
	if len(missing) > 0 {
		return apperr.Validation("Missing required fields (%s)", strings.Join(missing, ", "))
	}

	if !req.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than 0")
	}
	for _, f := range []struct {
		name     string
		negative bool
	}{
		{"tax", req.Tax.IsNegative()},
		{"service_fee", req.ServiceFee.IsNegative()},
		{"discount", req.Discount.IsNegative()},
	} {
		if f.negative {
			return apperr.Validation("%s cannot be negative", f.name)
		}
	}

	if _, _, err := ParseDateRange(req.StartDate, req.EndDate); err != nil {
		return err
	}

	seen := make(map[string]bool, len(req.Participants))
	for i, p := range req.Participants {
		if strings.TrimSpace(p.ID) == "" {
			return apperr.Validation("participants[%d].id is required", i)
		}
		if seen[p.ID] {
			return apperr.Validation("participants.id must be unique")
		}
		seen[p.ID] = true
	}

	hasPayer := false
	for _, p := range req.Participants {
		if !p.Tag.Valid() {
			return apperr.Validation("participants.tag must be either PAYER or PARTICIPANT")
		}
		if p.Tag == models.TagPayer {
			hasPayer = true
		}
	}
	if !hasPayer {
		return apperr.Validation("There must be at least one payer")
	}

	if !req.SplittingMethod.Valid() {
		return apperr.Validation("Invalid splitting_method")
	}
	return nil
}

// ParticipantIDs returns the ids of the request's participants in order.
func ParticipantIDs(req *models.CreateExpenseRequest) []string {
	ids := make([]string, len(req.Participants))
	for i, p := range req.Participants {
		ids[i] = p.ID
	}
	return ids
}
