package service

import (
	"context"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitevent/internal/models"
)

type trip struct {
	event             models.Event
	alice, bob, carol models.Participant
	bobToken          string
}

// setupTrip creates "Weekend Trip" by Alice and has Bob and Carol join it.
func setupTrip(t *testing.T, ts *testServer) trip {
	t.Helper()
	created := ts.createEvent(t, "Weekend Trip", "Alice")
	bob := ts.join(t, created.Event.Slug, "Bob")
	carol := ts.join(t, created.Event.Slug, "Carol")
	return trip{
		event:    created.Event,
		alice:    created.Participant,
		bob:      bob.Participant,
		carol:    carol.Participant,
		bobToken: bob.Token,
	}
}

func equalSplit(tr trip, amount int64) *models.CreateExpenseRequest {
	return &models.CreateExpenseRequest{
		EventID:         tr.event.ID,
		Name:            "Cabin",
		StartDate:       "2024-01-01T00:00:00Z",
		EndDate:         "2024-01-02T00:00:00Z",
		Amount:          decimal.NewFromInt(amount),
		SplittingMethod: models.SplitEqual,
		Participants: []models.ExpenseParticipantInput{
			{ID: tr.alice.ID, Tag: models.TagPayer},
			{ID: tr.bob.ID, Tag: models.TagParticipant},
			{ID: tr.carol.ID, Tag: models.TagParticipant},
		},
	}
}

func (ts *testServer) createExpense(t *testing.T, req *models.CreateExpenseRequest) *models.Expense {
	t.Helper()
	resp, err := ts.expenses.CreateExpense(context.Background(), connect.NewRequest(req))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return resp.Msg
}

func obligationOf(t *testing.T, expense *models.Expense, participantID string) models.ExpenseParticipant {
	t.Helper()
	for _, ob := range expense.Participants {
		if ob.ParticipantID == participantID {
			return ob
		}
	}
	t.Fatalf("no obligation for participant %s on expense %s", participantID, expense.ID)
	return models.ExpenseParticipant{}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestExpense_EqualSplitAndSettlement(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	tr := setupTrip(t, ts)

	expense := ts.createExpense(t, equalSplit(tr, 300))

	if len(expense.Participants) != 3 {
		t.Fatalf("expected 3 obligations, got %d", len(expense.Participants))
	}
	wantOwed := map[string]string{tr.alice.ID: "0", tr.bob.ID: "150", tr.carol.ID: "150"}
	for id, want := range wantOwed {
		ob := obligationOf(t, expense, id)
		if !ob.AmountToPay.Equal(dec(want)) || !ob.Share.Equal(dec(want)) {
			t.Errorf("participant %s: expected %s, got amount_to_pay=%s share=%s", ob.Name, want, ob.AmountToPay, ob.Share)
		}
	}

	// Bob pays his whole share with one proof; the participant comes from his token
	payReq := connect.NewRequest(&models.PayExpenseRequest{
		ExpenseID:     expense.ID,
		Amount:        dec("150"),
		PaymentProofs: []models.File{{Name: "transfer.png", Data: []byte("png bytes")}},
	})
	payReq.Header().Set("Authorization", "Bearer "+tr.bobToken)
	paid, err := ts.expenses.PayExpense(ctx, payReq)
	if err != nil {
		t.Fatalf("PayExpense failed: %v", err)
	}

	ob := paid.Msg.Obligation
	if ob.ParticipantID != tr.bob.ID {
		t.Errorf("expected Bob's obligation, got %s", ob.ParticipantID)
	}
	if !ob.AmountToPay.IsZero() || !ob.IsSettled() {
		t.Errorf("expected amount_to_pay 0, got %s", ob.AmountToPay)
	}
	if !ob.PaidAmount.Equal(dec("150")) || ob.PaidAt == nil {
		t.Errorf("expected paid_amount 150 with paid_at set, got %s / %v", ob.PaidAmount, ob.PaidAt)
	}
	if len(ob.PaymentProofs) != 1 || !strings.HasPrefix(ob.PaymentProofs[0].Path, "mem://bucket/expense_participant/") {
		t.Errorf("expected one proof in expense_participant, got %+v", ob.PaymentProofs)
	}
	if len(paid.Msg.Uploads) != 1 || paid.Msg.Uploads[0].Error != "" {
		t.Errorf("unexpected upload results: %+v", paid.Msg.Uploads)
	}

	// Nothing remains, so any further payment conflicts
	_, err = ts.expenses.PayExpense(ctx, connect.NewRequest(&models.PayExpenseRequest{
		ExpenseID:     expense.ID,
		ParticipantID: tr.bob.ID,
		Amount:        dec("0.01"),
	}))
	assertCode(t, err, connect.CodeAborted)

	// Balances: Carol still owes Alice her share
	balances, err := ts.events.GetEventBalances(ctx, connect.NewRequest(&models.GetEventBalancesRequest{Slug: tr.event.Slug}))
	if err != nil {
		t.Fatalf("GetEventBalances failed: %v", err)
	}
	if len(balances.Msg.Balances) != 3 {
		t.Fatalf("expected 3 balances, got %d", len(balances.Msg.Balances))
	}
	for _, b := range balances.Msg.Balances {
		switch b.ParticipantID {
		case tr.alice.ID:
			if !b.TotalFronted.Equal(dec("300")) || !b.NetBalance.Equal(dec("150")) {
				t.Errorf("Alice: expected fronted 300 net 150, got %+v", b)
			}
		case tr.bob.ID:
			if !b.TotalPaid.Equal(dec("150")) || !b.NetBalance.IsZero() {
				t.Errorf("Bob: expected paid 150 net 0, got %+v", b)
			}
		case tr.carol.ID:
			if !b.Outstanding.Equal(dec("150")) || !b.NetBalance.Equal(dec("-150")) {
				t.Errorf("Carol: expected outstanding 150 net -150, got %+v", b)
			}
		}
	}
	debts := balances.Msg.Debts
	if len(debts) != 1 || debts[0].From != tr.carol.ID || debts[0].To != tr.alice.ID || !debts[0].Amount.Equal(dec("150")) {
		t.Errorf("expected Carol -> Alice 150, got %+v", debts)
	}
}

func TestPayExpense_Boundary(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	tr := setupTrip(t, ts)

	expense := ts.createExpense(t, equalSplit(tr, 100))
	// 100 / 2 leaves 50 each
	pay := func(amount string) (*connect.Response[models.PayExpenseResponse], error) {
		return ts.expenses.PayExpense(ctx, connect.NewRequest(&models.PayExpenseRequest{
			ExpenseID:     expense.ID,
			ParticipantID: tr.carol.ID,
			Amount:        dec(amount),
		}))
	}

	_, err := pay("50.01")
	assertCode(t, err, connect.CodeAborted)

	got, err := ts.expenses.GetExpense(ctx, connect.NewRequest(&models.ExpenseRequest{ID: expense.ID}))
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if ob := obligationOf(t, got.Msg, tr.carol.ID); !ob.AmountToPay.Equal(dec("50")) || ob.PaidAt != nil {
		t.Errorf("rejected payment mutated the obligation: %+v", ob)
	}

	_, err = pay("20")
	if err != nil {
		t.Fatalf("partial payment failed: %v", err)
	}
	resp, err := pay("30")
	if err != nil {
		t.Fatalf("exact payment failed: %v", err)
	}
	if !resp.Msg.Obligation.AmountToPay.IsZero() {
		t.Errorf("expected amount_to_pay 0, got %s", resp.Msg.Obligation.AmountToPay)
	}
	if !resp.Msg.Obligation.PaidAmount.Equal(dec("30")) {
		t.Errorf("expected paid_amount to hold the last payment (30), got %s", resp.Msg.Obligation.PaidAmount)
	}
}

func TestPayExpense_Errors(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	tr := setupTrip(t, ts)
	expense := ts.createExpense(t, equalSplit(tr, 300))

	tests := []struct {
		name     string
		req      *models.PayExpenseRequest
		wantCode connect.Code
	}{
		{
			name:     "no participant and no token",
			req:      &models.PayExpenseRequest{ExpenseID: expense.ID, Amount: dec("10")},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name:     "non-positive amount",
			req:      &models.PayExpenseRequest{ExpenseID: expense.ID, ParticipantID: tr.bob.ID, Amount: dec("0")},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "unsupported file type",
			req: &models.PayExpenseRequest{
				ExpenseID: expense.ID, ParticipantID: tr.bob.ID, Amount: dec("10"),
				PaymentProofs: []models.File{{Name: "receipt.gif", Data: []byte("gif")}},
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name:     "unknown expense",
			req:      &models.PayExpenseRequest{ExpenseID: "missing", ParticipantID: tr.bob.ID, Amount: dec("10")},
			wantCode: connect.CodeNotFound,
		},
		{
			name:     "participant without obligation",
			req:      &models.PayExpenseRequest{ExpenseID: expense.ID, ParticipantID: "stranger", Amount: dec("10")},
			wantCode: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.expenses.PayExpense(ctx, connect.NewRequest(tt.req))
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestCreateExpense_Rejections(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	tr := setupTrip(t, ts)

	pct := func(s string) *decimal.Decimal { d := dec(s); return &d }

	tests := []struct {
		name     string
		mutate   func(req *models.CreateExpenseRequest)
		wantCode connect.Code
	}{
		{
			name:     "missing name",
			mutate:   func(req *models.CreateExpenseRequest) { req.Name = "" },
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "percentages do not sum to 100",
			mutate: func(req *models.CreateExpenseRequest) {
				req.SplittingMethod = models.SplitPercentage
				req.Participants[1].AmountToPayPercentage = pct("50")
				req.Participants[2].AmountToPayPercentage = pct("49")
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "nominals do not sum to total",
			mutate: func(req *models.CreateExpenseRequest) {
				req.SplittingMethod = models.SplitCustomAmount
				req.Participants[1].AmountToPayNominal = pct("100")
				req.Participants[2].AmountToPayNominal = pct("100")
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name:     "unknown event",
			mutate:   func(req *models.CreateExpenseRequest) { req.EventID = "missing" },
			wantCode: connect.CodeNotFound,
		},
		{
			name:     "participant outside the event",
			mutate:   func(req *models.CreateExpenseRequest) { req.Participants[2].ID = "stranger" },
			wantCode: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := equalSplit(tr, 300)
			tt.mutate(req)
			_, err := ts.expenses.CreateExpense(ctx, connect.NewRequest(req))
			assertCode(t, err, tt.wantCode)
		})
	}

	// Nothing was written by the rejected requests
	list, err := ts.expenses.ListExpenses(ctx, connect.NewRequest(&models.ListExpensesRequest{EventSlug: tr.event.Slug}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if list.Msg.Pagination.TotalData != 0 {
		t.Errorf("expected no expenses, got %d", list.Msg.Pagination.TotalData)
	}
}

func TestCreateExpense_PercentageSplit(t *testing.T) {
	ts := setupTestServer(t)
	tr := setupTrip(t, ts)

	req := equalSplit(tr, 100)
	req.Tax = dec("10")
	req.Discount = dec("10")
	req.SplittingMethod = models.SplitPercentage
	third := dec("33.33")
	rest := dec("66.67")
	req.Participants[1].AmountToPayPercentage = &third
	req.Participants[2].AmountToPayPercentage = &rest

	expense := ts.createExpense(t, req)

	bob := obligationOf(t, expense, tr.bob.ID)
	carol := obligationOf(t, expense, tr.carol.ID)
	if !bob.AmountToPay.Equal(dec("33.33")) || !carol.AmountToPay.Equal(dec("66.67")) {
		t.Errorf("expected 33.33 / 66.67, got %s / %s", bob.AmountToPay, carol.AmountToPay)
	}
	if !bob.AmountToPay.Add(carol.AmountToPay).Equal(expense.Total()) {
		t.Errorf("shares do not sum to total %s", expense.Total())
	}
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	tr := setupTrip(t, ts)
	expense := ts.createExpense(t, equalSplit(tr, 300))

	name := "Cabin rental"
	updated, err := ts.expenses.UpdateExpense(ctx, connect.NewRequest(&models.UpdateExpenseRequest{ID: expense.ID, Name: &name}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	if updated.Msg.Name != name || !updated.Msg.Amount.Equal(dec("300")) {
		t.Errorf("unexpected expense after update: %+v", updated.Msg)
	}

	end := "2024-01-03T00:00:00Z"
	_, err = ts.expenses.UpdateExpense(ctx, connect.NewRequest(&models.UpdateExpenseRequest{ID: expense.ID, EndDate: &end}))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = ts.expenses.UploadPaymentProofs(ctx, connect.NewRequest(&models.UploadPaymentProofsRequest{
		ExpenseID:     expense.ID,
		PaymentProofs: []models.File{{Name: "bill.pdf", Data: []byte("%PDF")}},
	}))
	if err != nil {
		t.Fatalf("UploadPaymentProofs failed: %v", err)
	}

	deleted, err := ts.expenses.DeleteExpense(ctx, connect.NewRequest(&models.ExpenseRequest{ID: expense.ID}))
	if err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	if deleted.Msg.Message != "Expense deleted" || len(deleted.Msg.FailedDeletes) != 0 {
		t.Errorf("unexpected delete response: %+v", deleted.Msg)
	}

	_, err = ts.expenses.GetExpense(ctx, connect.NewRequest(&models.ExpenseRequest{ID: expense.ID}))
	assertCode(t, err, connect.CodeNotFound)
	_, err = ts.expenses.DeleteExpense(ctx, connect.NewRequest(&models.ExpenseRequest{ID: expense.ID}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestPaymentProofs(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	tr := setupTrip(t, ts)
	expense := ts.createExpense(t, equalSplit(tr, 300))

	uploaded, err := ts.expenses.UploadPaymentProofs(ctx, connect.NewRequest(&models.UploadPaymentProofsRequest{
		ExpenseID: expense.ID,
		PaymentProofs: []models.File{
			{Name: "a.jpg", Data: []byte("jpg")},
			{Name: "b.jpeg", Data: []byte("jpeg")},
		},
	}))
	if err != nil {
		t.Fatalf("UploadPaymentProofs failed: %v", err)
	}
	proofs := uploaded.Msg.PaymentProofs
	if len(proofs) != 2 {
		t.Fatalf("expected 2 proofs, got %d", len(proofs))
	}
	for _, p := range proofs {
		if !strings.HasPrefix(p.Path, "mem://bucket/expenses/") {
			t.Errorf("expected proof in expenses folder, got %s", p.Path)
		}
	}

	_, err = ts.expenses.DeletePaymentProofs(ctx, connect.NewRequest(&models.DeletePaymentProofsRequest{
		ExpenseID:       expense.ID,
		PaymentProofIDs: []string{"missing"},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = ts.expenses.DeletePaymentProofs(ctx, connect.NewRequest(&models.DeletePaymentProofsRequest{ExpenseID: expense.ID}))
	assertCode(t, err, connect.CodeInvalidArgument)

	resp, err := ts.expenses.DeletePaymentProofs(ctx, connect.NewRequest(&models.DeletePaymentProofsRequest{
		ExpenseID:       expense.ID,
		PaymentProofIDs: []string{proofs[0].ID},
	}))
	if err != nil {
		t.Fatalf("DeletePaymentProofs failed: %v", err)
	}
	if resp.Msg.Message != "Payment proofs deleted" {
		t.Errorf("unexpected message %q", resp.Msg.Message)
	}

	got, err := ts.expenses.GetExpense(ctx, connect.NewRequest(&models.ExpenseRequest{ID: expense.ID}))
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if len(got.Msg.PaymentProofs) != 1 || got.Msg.PaymentProofs[0].ID != proofs[1].ID {
		t.Errorf("expected only the second proof to remain, got %+v", got.Msg.PaymentProofs)
	}

	tooMany := make([]models.File, 11)
	for i := range tooMany {
		tooMany[i] = models.File{Name: "x.png", Data: []byte("x")}
	}
	_, err = ts.expenses.UploadPaymentProofs(ctx, connect.NewRequest(&models.UploadPaymentProofsRequest{
		ExpenseID:     expense.ID,
		PaymentProofs: tooMany,
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestListExpensesAndParticipants(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	tr := setupTrip(t, ts)

	var last *models.Expense
	for _, name := range []string{"Cabin", "Groceries", "Fuel"} {
		req := equalSplit(tr, 90)
		req.Name = name
		last = ts.createExpense(t, req)
	}

	_, err := ts.expenses.ListExpenses(ctx, connect.NewRequest(&models.ListExpensesRequest{}))
	assertCode(t, err, connect.CodeInvalidArgument)

	resp, err := ts.expenses.ListExpenses(ctx, connect.NewRequest(&models.ListExpensesRequest{
		EventSlug: tr.event.Slug,
		PageQuery: models.PageQuery{Limit: 2, SortBy: "name", OrderBy: "asc"},
	}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if resp.Msg.Pagination.TotalData != 3 || resp.Msg.Pagination.TotalPage != 2 {
		t.Errorf("unexpected pagination %+v", resp.Msg.Pagination)
	}
	if len(resp.Msg.Data) != 2 || resp.Msg.Data[0].Name != "Cabin" || resp.Msg.Data[1].Name != "Fuel" {
		t.Errorf("unexpected first page %+v", resp.Msg.Data)
	}

	_, err = ts.expenses.ListExpenses(ctx, connect.NewRequest(&models.ListExpensesRequest{
		EventSlug: "missing-1234567",
	}))
	assertCode(t, err, connect.CodeNotFound)

	obs, err := ts.expenses.ListExpenseParticipants(ctx, connect.NewRequest(&models.ListExpenseParticipantsRequest{
		ExpenseID: last.ID,
		PageQuery: models.PageQuery{SortBy: "amount_to_pay", OrderBy: "desc"},
	}))
	if err != nil {
		t.Fatalf("ListExpenseParticipants failed: %v", err)
	}
	if obs.Msg.Pagination.TotalData != 3 || len(obs.Msg.Data) != 3 {
		t.Fatalf("expected 3 obligations, got %+v", obs.Msg.Pagination)
	}
	if !obs.Msg.Data[0].AmountToPay.Equal(dec("45")) || !obs.Msg.Data[2].AmountToPay.IsZero() {
		t.Errorf("expected obligations by amount desc, got %s .. %s", obs.Msg.Data[0].AmountToPay, obs.Msg.Data[2].AmountToPay)
	}

	_, err = ts.expenses.ListExpenseParticipants(ctx, connect.NewRequest(&models.ListExpenseParticipantsRequest{
		ExpenseID: last.ID,
		PageQuery: models.PageQuery{SortBy: "name"},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
}
