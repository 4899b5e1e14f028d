package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitevent/internal/apperr"
	"github.com/mmynk/splitevent/internal/calculator"
	"github.com/mmynk/splitevent/internal/middleware"
	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/objectstore"
	"github.com/mmynk/splitevent/internal/settlement"
	"github.com/mmynk/splitevent/internal/storage"
)

// ExpenseService implements the Connect ExpenseService: expenses, obligations,
// payments and payment proofs.
type ExpenseService struct {
	store   storage.Store
	tracker *settlement.Tracker
	blobs   objectstore.Gateway
}

// NewExpenseService creates a new ExpenseService with the given storage backend and object store.
func NewExpenseService(store storage.Store, blobs objectstore.Gateway) *ExpenseService {
	return &ExpenseService{
		store:   store,
		tracker: settlement.NewTracker(store),
		blobs:   blobs,
	}
}

// CreateExpense validates, allocates and persists an expense with its obligations.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[models.CreateExpenseRequest]) (*connect.Response[models.Expense], error) {
	slog.Info("CreateExpense request received",
		"event_id", req.Msg.EventID,
		"name", req.Msg.Name,
		"amount", req.Msg.Amount,
		"splitting_method", req.Msg.SplittingMethod,
		"participants_count", len(req.Msg.Participants),
	)

	if err := calculator.ValidateCreateExpense(req.Msg); err != nil {
		return nil, toConnectError("CreateExpense", err)
	}
	start, end, err := calculator.ParseDateRange(req.Msg.StartDate, req.Msg.EndDate)
	if err != nil {
		return nil, toConnectError("CreateExpense", err)
	}

	event, err := s.store.GetEventByID(ctx, req.Msg.EventID)
	if err != nil {
		return nil, toConnectError("CreateExpense", lookupError("Event", err))
	}

	missing, err := s.store.MissingEventMembers(ctx, event.ID, calculator.ParticipantIDs(req.Msg))
	if err != nil {
		return nil, toConnectError("CreateExpense", apperr.Persistence("failed to check event members", err))
	}
	if len(missing) > 0 {
		return nil, toConnectError("CreateExpense", apperr.NotFound("Participant "+strings.Join(missing, ", ")))
	}

	allocations, err := calculator.Allocate(calculator.TotalsOf(req.Msg), req.Msg.Participants, req.Msg.SplittingMethod)
	if err != nil {
		return nil, toConnectError("CreateExpense", err)
	}

	expense := &models.Expense{
		EventID:         event.ID,
		Name:            strings.TrimSpace(req.Msg.Name),
		Description:     req.Msg.Description,
		StartDate:       start,
		EndDate:         end,
		Amount:          req.Msg.Amount,
		Tax:             req.Msg.Tax,
		ServiceFee:      req.Msg.ServiceFee,
		Discount:        req.Msg.Discount,
		SplittingMethod: req.Msg.SplittingMethod,
	}
	for _, a := range allocations {
		slog.Debug("Allocated share",
			"participant_id", a.ParticipantID,
			"tag", a.Tag,
			"amount_to_pay", a.AmountToPay,
		)
		expense.Participants = append(expense.Participants, models.ExpenseParticipant{
			ParticipantID: a.ParticipantID,
			Tag:           a.Tag,
			Share:         a.AmountToPay,
			AmountToPay:   a.AmountToPay,
		})
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, toConnectError("CreateExpense", apperr.Persistence("failed to create expense", err))
	}

	slog.Info("Expense created", "expense_id", expense.ID, "total", expense.Total())

	created, err := s.store.GetExpense(ctx, expense.ID)
	if err != nil {
		return nil, toConnectError("CreateExpense", lookupError("Expense", err))
	}
	return connect.NewResponse(created), nil
}

// GetExpense retrieves an expense with its obligations and proofs.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[models.ExpenseRequest]) (*connect.Response[models.Expense], error) {
	slog.Info("GetExpense request received", "expense_id", req.Msg.ID)

	expense, err := s.expense(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError("GetExpense", err)
	}
	return connect.NewResponse(expense), nil
}

// UpdateExpense updates the name, description and dates of an expense.
// Amounts and obligations are fixed once created.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[models.UpdateExpenseRequest]) (*connect.Response[models.Expense], error) {
	slog.Info("UpdateExpense request received", "expense_id", req.Msg.ID)

	if err := validateName(req.Msg.Name); err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}
	dates, err := parseDateUpdate(req.Msg.StartDate, req.Msg.EndDate)
	if err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}

	expense, err := s.expense(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}

	if req.Msg.Name != nil {
		expense.Name = strings.TrimSpace(*req.Msg.Name)
	}
	if req.Msg.Description != nil {
		expense.Description = *req.Msg.Description
	}
	if dates.ok {
		expense.StartDate, expense.EndDate = dates.start, dates.end
	}

	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		return nil, toConnectError("UpdateExpense", lookupError("Expense", err))
	}

	slog.Info("Expense updated", "expense_id", expense.ID)
	return connect.NewResponse(expense), nil
}

// DeleteExpense removes an expense, its obligations and proofs, then deletes
// the proof files. File deletion is best effort.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[models.ExpenseRequest]) (*connect.Response[models.DeleteExpenseResponse], error) {
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ID)

	if err := requireFields([2]string{"id", req.Msg.ID}); err != nil {
		return nil, toConnectError("DeleteExpense", err)
	}

	paths, err := s.store.DeleteExpense(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError("DeleteExpense", lookupError("Expense", err))
	}

	failed := objectstore.DeleteAll(ctx, s.blobs, paths)
	if len(failed) > 0 {
		slog.Warn("Failed to delete payment proof files", "expense_id", req.Msg.ID, "paths", failed)
	}

	slog.Info("Expense deleted", "expense_id", req.Msg.ID, "proofs_deleted", len(paths)-len(failed))

	return connect.NewResponse(&models.DeleteExpenseResponse{
		Message:       "Expense deleted",
		FailedDeletes: failed,
	}), nil
}

// ListExpenses returns one page of the expenses of an event.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[models.ListExpensesRequest]) (*connect.Response[models.ListExpensesResponse], error) {
	slog.Info("ListExpenses request received",
		"event_slug", req.Msg.EventSlug,
		"page", req.Msg.Page,
		"limit", req.Msg.Limit,
	)

	if strings.TrimSpace(req.Msg.EventSlug) == "" {
		return nil, toConnectError("ListExpenses", apperr.Validation("Missing event_slug query parameter in request"))
	}
	if err := validateListQuery(req.Msg.PageQuery, expenseSortBy); err != nil {
		return nil, toConnectError("ListExpenses", err)
	}
	query := req.Msg.PageQuery.Normalize("created_at")

	event, err := s.store.GetEventBySlug(ctx, req.Msg.EventSlug)
	if err != nil {
		return nil, toConnectError("ListExpenses", lookupError("Event", err))
	}

	total, err := s.store.CountExpensesByEvent(ctx, event.ID)
	if err != nil {
		return nil, toConnectError("ListExpenses", apperr.Persistence("failed to count expenses", err))
	}
	expenses, err := s.store.ListExpensesByEvent(ctx, event.ID, listOptions(query))
	if err != nil {
		return nil, toConnectError("ListExpenses", apperr.Persistence("failed to list expenses", err))
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}

	return connect.NewResponse(&models.ListExpensesResponse{
		Data:       expenses,
		Pagination: models.NewPagination(query, total),
	}), nil
}

// ListExpenseParticipants returns one page of the obligations of an expense.
func (s *ExpenseService) ListExpenseParticipants(ctx context.Context, req *connect.Request[models.ListExpenseParticipantsRequest]) (*connect.Response[models.ListExpenseParticipantsResponse], error) {
	slog.Info("ListExpenseParticipants request received", "expense_id", req.Msg.ExpenseID)

	if err := validateListQuery(req.Msg.PageQuery, obligationSortBy); err != nil {
		return nil, toConnectError("ListExpenseParticipants", err)
	}
	query := req.Msg.PageQuery.Normalize("created_at")

	if _, err := s.expense(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError("ListExpenseParticipants", err)
	}

	total, err := s.store.CountObligations(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("ListExpenseParticipants", apperr.Persistence("failed to count expense participants", err))
	}
	obligations, err := s.store.ListObligations(ctx, req.Msg.ExpenseID, listOptions(query))
	if err != nil {
		return nil, toConnectError("ListExpenseParticipants", apperr.Persistence("failed to list expense participants", err))
	}
	if obligations == nil {
		obligations = []models.ExpenseParticipant{}
	}

	return connect.NewResponse(&models.ListExpenseParticipantsResponse{
		Data:       obligations,
		Pagination: models.NewPagination(query, total),
	}), nil
}

// PayExpense records a payment by a participant. The participant comes from
// the request or, when omitted, from the participant token. Proofs are
// uploaded before the payment is written; if the write fails they are deleted.
func (s *ExpenseService) PayExpense(ctx context.Context, req *connect.Request[models.PayExpenseRequest]) (*connect.Response[models.PayExpenseResponse], error) {
	participantID := req.Msg.ParticipantID
	if participantID == "" {
		participantID = middleware.GetParticipantID(ctx)
	}
	slog.Info("PayExpense request received",
		"expense_id", req.Msg.ExpenseID,
		"participant_id", participantID,
		"amount", req.Msg.Amount,
		"proofs_count", len(req.Msg.PaymentProofs),
	)

	if err := requireFields(
		[2]string{"expense_id", req.Msg.ExpenseID},
		[2]string{"participant_id", participantID},
	); err != nil {
		return nil, toConnectError("PayExpense", err)
	}
	if err := objectstore.ValidateFiles(req.Msg.PaymentProofs); err != nil {
		return nil, toConnectError("PayExpense", err)
	}

	if _, err := s.expense(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError("PayExpense", err)
	}

	obligation, err := s.tracker.FindPayableObligation(ctx, req.Msg.ExpenseID, participantID, req.Msg.Amount)
	if err != nil {
		return nil, toConnectError("PayExpense", err)
	}

	uploads := objectstore.UploadAll(ctx, s.blobs, objectstore.FolderObligations, req.Msg.PaymentProofs)
	urls := objectstore.URLs(uploads)

	updated, err := s.tracker.RecordPayment(ctx, obligation.ID, req.Msg.Amount, urls)
	if err != nil {
		if failed := objectstore.DeleteAll(context.WithoutCancel(ctx), s.blobs, urls); len(failed) > 0 {
			slog.Warn("Failed to delete orphaned payment proofs", "obligation_id", obligation.ID, "paths", failed)
		}
		return nil, toConnectError("PayExpense", err)
	}

	slog.Info("Payment recorded",
		"obligation_id", updated.ID,
		"amount", req.Msg.Amount,
		"remaining", updated.Remaining(),
		"settled", updated.IsSettled(),
	)

	return connect.NewResponse(&models.PayExpenseResponse{
		Obligation: *updated,
		Uploads:    uploads,
	}), nil
}

// UploadPaymentProofs attaches general proofs to an expense and returns all of its proofs.
func (s *ExpenseService) UploadPaymentProofs(ctx context.Context, req *connect.Request[models.UploadPaymentProofsRequest]) (*connect.Response[models.UploadPaymentProofsResponse], error) {
	slog.Info("UploadPaymentProofs request received",
		"expense_id", req.Msg.ExpenseID,
		"proofs_count", len(req.Msg.PaymentProofs),
	)

	if len(req.Msg.PaymentProofs) == 0 {
		return nil, toConnectError("UploadPaymentProofs", apperr.Validation("Missing required fields (payment_proofs)"))
	}
	if err := objectstore.ValidateFiles(req.Msg.PaymentProofs); err != nil {
		return nil, toConnectError("UploadPaymentProofs", err)
	}

	if _, err := s.expense(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError("UploadPaymentProofs", err)
	}

	uploads := objectstore.UploadAll(ctx, s.blobs, objectstore.FolderExpenses, req.Msg.PaymentProofs)
	if urls := objectstore.URLs(uploads); len(urls) > 0 {
		if _, err := s.store.AddPaymentProofs(ctx, req.Msg.ExpenseID, urls); err != nil {
			objectstore.DeleteAll(context.WithoutCancel(ctx), s.blobs, urls)
			return nil, toConnectError("UploadPaymentProofs", lookupError("Expense", err))
		}
	}

	expense, err := s.expense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("UploadPaymentProofs", err)
	}
	proofs := expense.PaymentProofs
	if proofs == nil {
		proofs = []models.PaymentProof{}
	}

	return connect.NewResponse(&models.UploadPaymentProofsResponse{
		PaymentProofs: proofs,
		Uploads:       uploads,
	}), nil
}

// DeletePaymentProofs removes proofs from an expense and deletes their files.
func (s *ExpenseService) DeletePaymentProofs(ctx context.Context, req *connect.Request[models.DeletePaymentProofsRequest]) (*connect.Response[models.DeletePaymentProofsResponse], error) {
	slog.Info("DeletePaymentProofs request received",
		"expense_id", req.Msg.ExpenseID,
		"payment_proofs_ids", req.Msg.PaymentProofIDs,
	)

	if len(req.Msg.PaymentProofIDs) == 0 {
		return nil, toConnectError("DeletePaymentProofs", apperr.Validation("Missing required fields (payment_proofs_ids)"))
	}

	if _, err := s.expense(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError("DeletePaymentProofs", err)
	}

	deleted, err := s.store.DeletePaymentProofs(ctx, req.Msg.ExpenseID, req.Msg.PaymentProofIDs)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, toConnectError("DeletePaymentProofs", apperr.Validation("payment_proofs_ids not found"))
	}
	if err != nil {
		return nil, toConnectError("DeletePaymentProofs", apperr.Persistence("failed to delete payment proofs", err))
	}

	paths := make([]string, len(deleted))
	for i, p := range deleted {
		paths[i] = p.Path
	}
	failed := objectstore.DeleteAll(ctx, s.blobs, paths)
	if len(failed) > 0 {
		slog.Warn("Failed to delete payment proof files", "expense_id", req.Msg.ExpenseID, "paths", failed)
	}

	return connect.NewResponse(&models.DeletePaymentProofsResponse{
		Message:       "Payment proofs deleted",
		FailedDeletes: failed,
	}), nil
}

func (s *ExpenseService) expense(ctx context.Context, expenseID string) (*models.Expense, error) {
	if strings.TrimSpace(expenseID) == "" {
		return nil, apperr.Validation("Missing required fields (expense_id)")
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, lookupError("Expense", err)
	}
	return expense, nil
}
