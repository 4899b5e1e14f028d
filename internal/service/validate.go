package service

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/splitevent/internal/apperr"
	"github.com/mmynk/splitevent/internal/calculator"
	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/storage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Sortable columns per listing, as validator oneof lists.
const (
	participantSortBy = "name created_at"
	expenseSortBy     = "created_at name start_date end_date"
	obligationSortBy  = "created_at amount_to_pay paid_at"
)

func validateListQuery(q models.PageQuery, sortBy string) error {
	if err := validate.Var(q.OrderBy, "omitempty,oneof="+models.OrderAsc+" "+models.OrderDesc); err != nil {
		return apperr.Validation("Invalid order_by query parameter in request")
	}
	if err := validate.Var(q.SortBy, "omitempty,oneof="+sortBy); err != nil {
		return apperr.Validation("Invalid sort_by query parameter in request")
	}
	return nil
}

func listOptions(q models.PageQuery) storage.ListOptions {
	return storage.ListOptions{
		Offset: q.Offset(),
		Limit:  q.Limit,
		SortBy: q.SortBy,
		Desc:   q.OrderBy == models.OrderDesc,
	}
}

// requireFields returns a validation error naming every blank field, in order.
func requireFields(fields ...[2]string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("Missing required fields (%s)", strings.Join(missing, ", "))
	}
	return nil
}

func validateCreateEvent(req *models.CreateEventRequest) (time.Time, time.Time, error) {
	if err := requireFields(
		[2]string{"name", req.Name},
		[2]string{"start_date", req.StartDate},
		[2]string{"end_date", req.EndDate},
		[2]string{"creator_name", req.CreatorName},
	); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return calculator.ParseDateRange(req.StartDate, req.EndDate)
}

// dateUpdate is the parsed date pair of an update request. ok is false when
// neither date was given.
type dateUpdate struct {
	start, end time.Time
	ok         bool
}

// parseDateUpdate accepts both dates or neither.
func parseDateUpdate(start, end *string) (dateUpdate, error) {
	if start == nil && end == nil {
		return dateUpdate{}, nil
	}
	if start == nil || end == nil {
		return dateUpdate{}, apperr.Validation("Both start_date and end_date must be present")
	}
	s, e, err := calculator.ParseDateRange(*start, *end)
	if err != nil {
		return dateUpdate{}, err
	}
	return dateUpdate{start: s, end: e, ok: true}, nil
}

func validateName(name *string) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return apperr.Validation("name cannot be empty")
	}
	return nil
}
