// Package calculator implements the allocation engine: it validates a new
// expense and converts its total into one obligation per tagged participant.
// Everything in this package is pure; persistence is the caller's job.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitevent/internal/apperr"
	"github.com/mmynk/splitevent/internal/models"
)

// Scale is the number of decimal places computed shares are rounded to.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// Totals are the monetary components of an expense.
type Totals struct {
	Amount     decimal.Decimal
	Tax        decimal.Decimal
	ServiceFee decimal.Decimal
	Discount   decimal.Decimal
}

// TotalsOf extracts the totals of a create request.
func TotalsOf(req *models.CreateExpenseRequest) Totals {
	return Totals{
		Amount:     req.Amount,
		Tax:        req.Tax,
		ServiceFee: req.ServiceFee,
		Discount:   req.Discount,
	}
}

// Total returns amount + tax + service_fee - discount.
func (t Totals) Total() decimal.Decimal {
	return t.Amount.Add(t.Tax).Add(t.ServiceFee).Sub(t.Discount)
}

// Allocation is the computed obligation of one participant.
type Allocation struct {
	ParticipantID string
	Tag           models.ParticipantTag
	AmountToPay   decimal.Decimal
}

// Reconcile checks that the participants' split balances against the total.
// Percentages and nominal amounts are compared exactly; no tolerance is granted.
func Reconcile(totals Totals, participants []models.ExpenseParticipantInput, method models.SplittingMethod) error {
	total := totals.Total()
	if total.IsNegative() {
		return apperr.Reconciliation("Total amount (amount + tax + service_fee - discount) cannot be negative")
	}

	debtors := nonPayers(participants)
	if len(debtors) == 0 {
		return apperr.Reconciliation("There must be at least one participant tagged PARTICIPANT")
	}

	switch method {
	case models.SplitEqual:
		return nil

	case models.SplitPercentage:
		sum := decimal.Zero
		for _, p := range debtors {
			if p.AmountToPayPercentage == nil {
				return apperr.Reconciliation("Missing amount_to_pay_percentage for participant %s", p.ID)
			}
			if p.AmountToPayPercentage.IsNegative() {
				return apperr.Reconciliation("amount_to_pay_percentage of participant %s cannot be negative", p.ID)
			}
			sum = sum.Add(*p.AmountToPayPercentage)
		}
		if !sum.Equal(hundred) {
			return apperr.Reconciliation("Total percentage of amount_to_pay_percentage must be 100 (got %s)", sum)
		}
		return nil

	case models.SplitCustomAmount:
		sum := decimal.Zero
		for _, p := range debtors {
			if p.AmountToPayNominal == nil {
				return apperr.Reconciliation("Missing amount_to_pay_nominal for participant %s", p.ID)
			}
			if p.AmountToPayNominal.IsNegative() {
				return apperr.Reconciliation("amount_to_pay_nominal of participant %s cannot be negative", p.ID)
			}
			sum = sum.Add(*p.AmountToPayNominal)
		}
		if !sum.Equal(total) {
			return apperr.Reconciliation(
				"Total nominal of amount_to_pay_nominal must be equal to total amount (amount + tax + service_fee - discount): got %s, want %s",
				sum, total)
		}
		return nil
	}

	return apperr.Validation("Invalid splitting_method")
}

// Allocate computes one obligation per participant, in input order.
// Payers always get zero regardless of the fields they carry. EQUAL and
// PERCENTAGE shares are rounded to Scale places and the rounding residue is
// handed out in input order, so the shares always sum to the total exactly.
func Allocate(totals Totals, participants []models.ExpenseParticipantInput, method models.SplittingMethod) ([]Allocation, error) {
	if err := Reconcile(totals, participants, method); err != nil {
		return nil, err
	}

	total := totals.Total()
	debtors := nonPayers(participants)

	shares := make([]decimal.Decimal, len(debtors))
	switch method {
	case models.SplitEqual:
		shares = distribute(total, ones(len(debtors)))
	case models.SplitPercentage:
		weights := make([]decimal.Decimal, len(debtors))
		for i, p := range debtors {
			weights[i] = *p.AmountToPayPercentage
		}
		shares = distribute(total, weights)
	case models.SplitCustomAmount:
		for i, p := range debtors {
			shares[i] = *p.AmountToPayNominal
		}
	}

	allocations := make([]Allocation, 0, len(participants))
	next := 0
	for _, p := range participants {
		a := Allocation{ParticipantID: p.ID, Tag: p.Tag, AmountToPay: decimal.Zero}
		if p.Tag == models.TagParticipant {
			a.AmountToPay = shares[next]
			next++
		}
		allocations = append(allocations, a)
	}
	return allocations, nil
}

// distribute splits total proportionally to weights. Each share is truncated
// to Scale places, then whole units of 10^-Scale go to positive-weight shares
// in order until the residue is used up; a sub-unit remainder goes to the
// first positive-weight share.
func distribute(total decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	sumWeights := decimal.Zero
	for _, w := range weights {
		sumWeights = sumWeights.Add(w)
	}
	if !sumWeights.IsPositive() {
		for i := range shares {
			shares[i] = decimal.Zero
		}
		return shares
	}

	var eligible []int
	allocated := decimal.Zero
	for i, w := range weights {
		shares[i] = total.Mul(w).Div(sumWeights).Truncate(Scale)
		allocated = allocated.Add(shares[i])
		if w.IsPositive() {
			eligible = append(eligible, i)
		}
	}

	unit := decimal.New(1, -Scale)
	residue := total.Sub(allocated)
	for k := 0; residue.GreaterThanOrEqual(unit); k++ {
		i := eligible[k%len(eligible)]
		shares[i] = shares[i].Add(unit)
		residue = residue.Sub(unit)
	}
	if residue.IsPositive() {
		shares[eligible[0]] = shares[eligible[0]].Add(residue)
	}
	return shares
}

func nonPayers(participants []models.ExpenseParticipantInput) []models.ExpenseParticipantInput {
	var out []models.ExpenseParticipantInput
	for _, p := range participants {
		if p.Tag == models.TagParticipant {
			out = append(out, p)
		}
	}
	return out
}
