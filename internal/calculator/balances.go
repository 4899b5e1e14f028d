package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitevent/internal/models"
)

// CalculateEventBalances aggregates the obligations of an event's expenses
// into per-member balances and a simplified list of suggested transfers.
// Expenses must carry their Participants.
//
// Algorithm:
// - Each payer fronted total / number of payers of the expense
// - Each remaining obligation is owed to the payers of its expense, split evenly
// - net_balance = credit still owed to the member - member's outstanding debt
// - Debt list: greedy matching of the largest debtor with the largest creditor
//
// names maps participant ids to display names; members with no obligations
// are included with zero balances.
func CalculateEventBalances(expenses []models.Expense, names map[string]string) ([]models.MemberBalance, []models.DebtEdge) {
	balances := make(map[string]*models.MemberBalance)
	credit := make(map[string]decimal.Decimal)

	get := func(id string) *models.MemberBalance {
		if b, ok := balances[id]; ok {
			return b
		}
		b := &models.MemberBalance{ParticipantID: id, Name: names[id]}
		balances[id] = b
		return b
	}
	for id := range names {
		get(id)
	}

	for _, expense := range expenses {
		var payers []string
		for _, ob := range expense.Participants {
			if ob.Tag == models.TagPayer {
				payers = append(payers, ob.ParticipantID)
			}
		}
		// Skip expenses without payer (nobody to owe)
		if len(payers) == 0 {
			continue
		}

		fronted := distribute(expense.Total(), ones(len(payers)))
		for i, id := range payers {
			b := get(id)
			b.TotalFronted = b.TotalFronted.Add(fronted[i])
		}

		for _, ob := range expense.Participants {
			if ob.Tag != models.TagParticipant {
				continue
			}
			b := get(ob.ParticipantID)
			b.TotalShare = b.TotalShare.Add(ob.Share)
			b.TotalPaid = b.TotalPaid.Add(ob.Share.Sub(ob.AmountToPay))
			b.Outstanding = b.Outstanding.Add(ob.AmountToPay)

			for i, portion := range distribute(ob.AmountToPay, ones(len(payers))) {
				credit[payers[i]] = credit[payers[i]].Add(portion)
			}
		}
	}

	ids := make([]string, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	memberBalances := make([]models.MemberBalance, 0, len(ids))
	type party struct {
		id     string
		amount decimal.Decimal
	}
	var creditors, debtors []party
	for _, id := range ids {
		b := balances[id]
		b.NetBalance = credit[id].Sub(b.Outstanding)
		memberBalances = append(memberBalances, *b)

		switch {
		case b.NetBalance.IsPositive():
			creditors = append(creditors, party{id, b.NetBalance})
		case b.NetBalance.IsNegative():
			debtors = append(debtors, party{id, b.NetBalance.Neg()})
		}
	}

	// Largest amounts first; ties broken by id so the output is stable
	byAmount := func(ps []party) func(i, j int) bool {
		return func(i, j int) bool {
			if c := ps[i].amount.Cmp(ps[j].amount); c != 0 {
				return c > 0
			}
			return ps[i].id < ps[j].id
		}
	}
	sort.SliceStable(creditors, byAmount(creditors))
	sort.SliceStable(debtors, byAmount(debtors))

	var debtEdges []models.DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := decimal.Min(debtors[i].amount, creditors[j].amount)
		if amount.IsPositive() {
			debtEdges = append(debtEdges, models.DebtEdge{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: amount,
			})
		}

		debtors[i].amount = debtors[i].amount.Sub(amount)
		creditors[j].amount = creditors[j].amount.Sub(amount)

		if !debtors[i].amount.IsPositive() {
			i++
		}
		if !creditors[j].amount.IsPositive() {
			j++
		}
	}

	return memberBalances, debtEdges
}

func ones(n int) []decimal.Decimal {
	w := make([]decimal.Decimal, n)
	for i := range w {
		w[i] = decimal.NewFromInt(1)
	}
	return w
}
