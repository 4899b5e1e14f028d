package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func createEvent(t *testing.T, store *SQLiteStore, slug, creatorSlug string) (*models.Event, *models.Participant) {
	t.Helper()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	event := &models.Event{Slug: slug, Name: "Weekend Trip", StartDate: start, EndDate: start.Add(48 * time.Hour)}
	creator := &models.Participant{Slug: creatorSlug, Name: "Alice"}
	if err := store.CreateEvent(context.Background(), event, creator); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	return event, creator
}

func join(t *testing.T, store *SQLiteStore, eventID, slug, name string) *models.Participant {
	t.Helper()
	p := &models.Participant{Slug: slug, Name: name}
	if err := store.JoinEvent(context.Background(), eventID, p); err != nil {
		t.Fatalf("JoinEvent failed: %v", err)
	}
	return p
}

func createExpense(t *testing.T, store *SQLiteStore, eventID, payerID string, debtors ...string) *models.Expense {
	t.Helper()
	expense := &models.Expense{
		EventID:         eventID,
		Name:            "Dinner",
		StartDate:       time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC),
		Amount:          d("300"),
		SplittingMethod: models.SplitEqual,
		Participants: []models.ExpenseParticipant{
			{ParticipantID: payerID, Tag: models.TagPayer},
		},
	}
	share := d("300").Div(decimal.NewFromInt(int64(len(debtors))))
	for _, id := range debtors {
		expense.Participants = append(expense.Participants, models.ExpenseParticipant{
			ParticipantID: id, Tag: models.TagParticipant, Share: share, AmountToPay: share,
		})
	}
	if err := store.CreateExpense(context.Background(), expense); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return expense
}

func TestEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	event, creator := createEvent(t, store, "weekend-trip-abc1234", "alice-abc1234")

	t.Run("CreateEvent populates ids and timestamps", func(t *testing.T) {
		if event.ID == "" || creator.ID == "" {
			t.Fatal("Expected ids to be generated")
		}
		if event.CreatedAt.IsZero() || creator.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("GetEventBySlug and GetEventByID", func(t *testing.T) {
		bySlug, err := store.GetEventBySlug(ctx, event.Slug)
		if err != nil {
			t.Fatalf("GetEventBySlug failed: %v", err)
		}
		byID, err := store.GetEventByID(ctx, event.ID)
		if err != nil {
			t.Fatalf("GetEventByID failed: %v", err)
		}
		if bySlug.ID != event.ID || byID.Slug != event.Slug {
			t.Errorf("Lookups disagree: %+v vs %+v", bySlug, byID)
		}
		if !byID.StartDate.Equal(event.StartDate) || !byID.EndDate.Equal(event.EndDate) {
			t.Errorf("Dates mismatch: got %v-%v, want %v-%v", byID.StartDate, byID.EndDate, event.StartDate, event.EndDate)
		}
	})

	t.Run("missing event returns ErrNotFound", func(t *testing.T) {
		if _, err := store.GetEventBySlug(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetEventBySlug error = %v, want ErrNotFound", err)
		}
		if err := store.JoinEvent(ctx, "nope", &models.Participant{Slug: "x", Name: "X"}); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("JoinEvent error = %v, want ErrNotFound", err)
		}
	})

	t.Run("slug collisions are reported", func(t *testing.T) {
		dup := &models.Event{Slug: event.Slug, Name: "Other"}
		err := store.CreateEvent(ctx, dup, &models.Participant{Slug: "fresh-slug", Name: "Zed"})
		if !errors.Is(err, storage.ErrEventSlugTaken) {
			t.Errorf("CreateEvent error = %v, want ErrEventSlugTaken", err)
		}

		err = store.JoinEvent(ctx, event.ID, &models.Participant{Slug: creator.Slug, Name: "Bob"})
		if !errors.Is(err, storage.ErrParticipantSlugTaken) {
			t.Errorf("JoinEvent error = %v, want ErrParticipantSlugTaken", err)
		}

		exists, err := store.EventSlugExists(ctx, event.Slug)
		if err != nil || !exists {
			t.Errorf("EventSlugExists = %v, %v; want true", exists, err)
		}
		exists, err = store.ParticipantSlugExists(ctx, "fresh-slug")
		if err != nil || exists {
			t.Errorf("ParticipantSlugExists = %v, %v; want false after rollback", exists, err)
		}
	})

	t.Run("UpdateEvent", func(t *testing.T) {
		event.Name = "Long Weekend"
		if err := store.UpdateEvent(ctx, event); err != nil {
			t.Fatalf("UpdateEvent failed: %v", err)
		}
		got, _ := store.GetEventByID(ctx, event.ID)
		if got.Name != "Long Weekend" {
			t.Errorf("Name = %q, want %q", got.Name, "Long Weekend")
		}
		if err := store.UpdateEvent(ctx, &models.Event{ID: "nope"}); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("UpdateEvent error = %v, want ErrNotFound", err)
		}
	})

	t.Run("participants are listed with paging and sorting", func(t *testing.T) {
		join(t, store, event.ID, "carol-abc1234", "Carol")
		join(t, store, event.ID, "bob-abc1234", "Bob")

		count, err := store.CountEventParticipants(ctx, event.ID)
		if err != nil || count != 3 {
			t.Fatalf("CountEventParticipants = %d, %v; want 3", count, err)
		}

		page, err := store.ListEventParticipants(ctx, event.ID, storage.ListOptions{Limit: 2, SortBy: "name"})
		if err != nil {
			t.Fatalf("ListEventParticipants failed: %v", err)
		}
		if len(page) != 2 || page[0].Participant.Name != "Alice" || page[1].Participant.Name != "Bob" {
			t.Errorf("Unexpected first page: %+v", page)
		}
		if !page[0].IsEventCreator || page[1].IsEventCreator {
			t.Errorf("Only Alice should be the creator: %+v", page)
		}

		page, err = store.ListEventParticipants(ctx, event.ID, storage.ListOptions{Offset: 2, Limit: 2, SortBy: "name"})
		if err != nil {
			t.Fatalf("ListEventParticipants failed: %v", err)
		}
		if len(page) != 1 || page[0].Participant.Name != "Carol" {
			t.Errorf("Unexpected second page: %+v", page)
		}

		all, err := store.ListEventParticipants(ctx, event.ID, storage.ListOptions{SortBy: "name"})
		if err != nil {
			t.Fatalf("ListEventParticipants failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("Zero limit listed %d members, want 3", len(all))
		}
	})

	t.Run("MissingEventMembers", func(t *testing.T) {
		missing, err := store.MissingEventMembers(ctx, event.ID, []string{creator.ID, "ghost", "ghost"})
		if err != nil {
			t.Fatalf("MissingEventMembers failed: %v", err)
		}
		if len(missing) != 1 || missing[0] != "ghost" {
			t.Errorf("MissingEventMembers = %v, want [ghost]", missing)
		}
	})
}

func TestExpenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	event, alice := createEvent(t, store, "trip-abc1234", "alice-abc1234")
	bob := join(t, store, event.ID, "bob-abc1234", "Bob")
	carol := join(t, store, event.ID, "carol-abc1234", "Carol")

	expense := createExpense(t, store, event.ID, alice.ID, bob.ID, carol.ID)

	t.Run("GetExpense returns obligations", func(t *testing.T) {
		got, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if !got.Amount.Equal(d("300")) || got.SplittingMethod != models.SplitEqual {
			t.Errorf("Unexpected expense: %+v", got)
		}
		if len(got.Participants) != 3 {
			t.Fatalf("Expected 3 obligations, got %d", len(got.Participants))
		}
		for _, ob := range got.Participants {
			want := d("150")
			if ob.Tag == models.TagPayer {
				want = decimal.Zero
			}
			if !ob.AmountToPay.Equal(want) || !ob.Share.Equal(want) {
				t.Errorf("%s amount_to_pay = %s, want %s", ob.Name, ob.AmountToPay, want)
			}
			if ob.Name == "" || ob.Slug == "" {
				t.Errorf("Expected participant name and slug on obligation %+v", ob)
			}
		}
	})

	t.Run("CreateExpense is atomic", func(t *testing.T) {
		bad := &models.Expense{
			EventID: event.ID, Name: "Broken", Amount: d("10"), SplittingMethod: models.SplitEqual,
			Participants: []models.ExpenseParticipant{
				{ParticipantID: alice.ID, Tag: models.TagPayer},
				{ParticipantID: "ghost", Tag: models.TagParticipant, Share: d("10"), AmountToPay: d("10")},
			},
		}
		if err := store.CreateExpense(ctx, bad); err == nil {
			t.Fatal("Expected foreign key failure")
		}
		if _, err := store.GetExpense(ctx, bad.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetExpense error = %v, want ErrNotFound", err)
		}
	})

	t.Run("RecordPayment decrements and stamps", func(t *testing.T) {
		ob, err := store.FindObligation(ctx, expense.ID, bob.ID)
		if err != nil {
			t.Fatalf("FindObligation failed: %v", err)
		}

		updated, err := store.RecordPayment(ctx, storage.Payment{
			ObligationID: ob.ID,
			Amount:       d("100"),
			ProofPaths:   []string{"mem://proofs/expense_participant/a.png"},
		})
		if err != nil {
			t.Fatalf("RecordPayment failed: %v", err)
		}
		if !updated.AmountToPay.Equal(d("50")) || !updated.PaidAmount.Equal(d("100")) {
			t.Errorf("After payment: amount_to_pay=%s paid_amount=%s", updated.AmountToPay, updated.PaidAmount)
		}
		if updated.PaidAt == nil {
			t.Error("Expected PaidAt to be set")
		}
		if len(updated.PaymentProofs) != 1 {
			t.Errorf("Expected 1 proof, got %d", len(updated.PaymentProofs))
		}

		// paid_amount keeps the last payment only
		updated, err = store.RecordPayment(ctx, storage.Payment{ObligationID: ob.ID, Amount: d("50")})
		if err != nil {
			t.Fatalf("RecordPayment failed: %v", err)
		}
		if !updated.AmountToPay.IsZero() || !updated.PaidAmount.Equal(d("50")) || !updated.IsSettled() {
			t.Errorf("After second payment: amount_to_pay=%s paid_amount=%s", updated.AmountToPay, updated.PaidAmount)
		}

		_, err = store.RecordPayment(ctx, storage.Payment{ObligationID: ob.ID, Amount: d("0.01")})
		if !errors.Is(err, storage.ErrInsufficientBalance) {
			t.Errorf("RecordPayment on settled obligation error = %v, want ErrInsufficientBalance", err)
		}
		_, err = store.RecordPayment(ctx, storage.Payment{ObligationID: "nope", Amount: d("1")})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("RecordPayment on missing obligation error = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent payments never overdraw", func(t *testing.T) {
		ob, err := store.FindObligation(ctx, expense.ID, carol.ID)
		if err != nil {
			t.Fatalf("FindObligation failed: %v", err)
		}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.RecordPayment(ctx, storage.Payment{ObligationID: ob.ID, Amount: d("100")})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if succeeded != 1 {
			t.Errorf("Expected exactly 1 payment of 100 out of 150 to succeed, got %d", succeeded)
		}
		got, _ := store.FindObligation(ctx, expense.ID, carol.ID)
		if !got.AmountToPay.Equal(d("50")) {
			t.Errorf("amount_to_pay = %s, want 50", got.AmountToPay)
		}
	})

	t.Run("listing obligations sorts by amount", func(t *testing.T) {
		page, err := store.ListObligations(ctx, expense.ID, storage.ListOptions{Limit: 10, SortBy: "amount_to_pay", Desc: true})
		if err != nil {
			t.Fatalf("ListObligations failed: %v", err)
		}
		if len(page) != 3 || !page[0].AmountToPay.Equal(d("50")) || !page[2].AmountToPay.IsZero() {
			t.Errorf("Unexpected order: %+v", page)
		}
	})

	t.Run("payment proofs", func(t *testing.T) {
		proofs, err := store.AddPaymentProofs(ctx, expense.ID, []string{"mem://proofs/expenses/receipt.pdf"})
		if err != nil {
			t.Fatalf("AddPaymentProofs failed: %v", err)
		}
		if len(proofs) != 1 || proofs[0].ExpenseID == nil || proofs[0].ExpenseParticipantID != nil {
			t.Fatalf("Unexpected proofs: %+v", proofs)
		}

		if _, err := store.DeletePaymentProofs(ctx, expense.ID, []string{proofs[0].ID, "ghost"}); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("DeletePaymentProofs error = %v, want ErrNotFound", err)
		}

		deleted, err := store.DeletePaymentProofs(ctx, expense.ID, []string{proofs[0].ID})
		if err != nil {
			t.Fatalf("DeletePaymentProofs failed: %v", err)
		}
		if len(deleted) != 1 || deleted[0].Path != proofs[0].Path {
			t.Errorf("Unexpected deleted proofs: %+v", deleted)
		}
	})

	t.Run("ledger and listing", func(t *testing.T) {
		createExpense(t, store, event.ID, bob.ID, alice.ID)

		count, err := store.CountExpensesByEvent(ctx, event.ID)
		if err != nil || count != 2 {
			t.Fatalf("CountExpensesByEvent = %d, %v; want 2", count, err)
		}
		page, err := store.ListExpensesByEvent(ctx, event.ID, storage.ListOptions{Limit: 1, SortBy: "created_at", Desc: true})
		if err != nil || len(page) != 1 {
			t.Fatalf("ListExpensesByEvent = %v, %v", page, err)
		}

		ledger, err := store.ListEventLedger(ctx, event.ID)
		if err != nil {
			t.Fatalf("ListEventLedger failed: %v", err)
		}
		if len(ledger) != 2 {
			t.Fatalf("Expected 2 ledger entries, got %d", len(ledger))
		}
		if n := len(ledger[0].Participants) + len(ledger[1].Participants); n != 5 {
			t.Errorf("Expected 5 obligations across the ledger, got %d", n)
		}
	})

	t.Run("DeleteExpense cascades and returns proof paths", func(t *testing.T) {
		paths, err := store.DeleteExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}
		if len(paths) != 1 || paths[0] != "mem://proofs/expense_participant/a.png" {
			t.Errorf("DeleteExpense paths = %v", paths)
		}
		if _, err := store.GetExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetExpense error = %v, want ErrNotFound", err)
		}
		if count, _ := store.CountObligations(ctx, expense.ID); count != 0 {
			t.Errorf("Expected obligations to cascade, %d left", count)
		}
		if _, err := store.DeleteExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("DeleteExpense error = %v, want ErrNotFound", err)
		}
	})
}
