package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/storage"
)

var expenseSortColumns = map[string]string{
	"created_at": "created_at",
	"name":       "name",
	"start_date": "start_date",
	"end_date":   "end_date",
}

const expenseColumns = `id, event_id, name, description, start_date, end_date,
	amount::text, tax::text, service_fee::text, discount::text, splitting_method, created_at, updated_at`

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var e models.Expense
	err := row.Scan(&e.ID, &e.EventID, &e.Name, &e.Description, &e.StartDate, &e.EndDate,
		&e.Amount, &e.Tax, &e.ServiceFee, &e.Discount, &e.SplittingMethod, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.StartDate, e.EndDate = e.StartDate.UTC(), e.EndDate.UTC()
	e.CreatedAt, e.UpdatedAt = e.CreatedAt.UTC(), e.UpdatedAt.UTC()
	return &e, nil
}

// CreateExpense persists an expense and its obligations in one transaction.
func (s *PostgresStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	ts := now()
	expense.CreatedAt, expense.UpdatedAt = ts, ts

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO expenses (id, event_id, name, description, start_date, end_date,
			amount, tax, service_fee, discount, splitting_method, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		expense.ID, expense.EventID, expense.Name, expense.Description, expense.StartDate, expense.EndDate,
		expense.Amount.String(), expense.Tax.String(), expense.ServiceFee.String(), expense.Discount.String(),
		string(expense.SplittingMethod), ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range expense.Participants {
		ob := &expense.Participants[i]
		if ob.ID == "" {
			ob.ID = uuid.New().String()
		}
		ob.ExpenseID = expense.ID
		ob.CreatedAt = ts
		batch.Queue(
			`INSERT INTO expense_participants (id, expense_id, participant_id, tag, share, amount_to_pay, paid_amount, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ob.ID, ob.ExpenseID, ob.ParticipantID, string(ob.Tag),
			ob.Share.String(), ob.AmountToPay.String(), ob.PaidAmount.String(), ts,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert expense participants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense with its obligations and proofs.
func (s *PostgresStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := scanExpense(s.db.QueryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = $1", expenseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	expense.Participants, err = queryObligations(ctx, s.db,
		"WHERE ob.expense_id = $1 ORDER BY ob.created_at, ob.id", expenseID)
	if err != nil {
		return nil, err
	}
	if err := attachObligationProofs(ctx, s.db, expense.Participants); err != nil {
		return nil, err
	}

	expense.PaymentProofs, err = queryProofs(ctx, s.db, "WHERE expense_id = $1 ORDER BY created_at, id", expenseID)
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateExpense updates the mutable fields of an expense.
func (s *PostgresStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	expense.UpdatedAt = now()
	tag, err := s.db.Exec(ctx,
		"UPDATE expenses SET name = $1, description = $2, start_date = $3, end_date = $4, updated_at = $5 WHERE id = $6",
		expense.Name, expense.Description, expense.StartDate, expense.EndDate, expense.UpdatedAt, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpense removes an expense; obligations and proofs cascade.
func (s *PostgresStore) DeleteExpense(ctx context.Context, expenseID string) ([]string, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT path FROM payment_proofs
		 WHERE expense_id = $1
		    OR expense_participant_id IN (SELECT id FROM expense_participants WHERE expense_id = $1)
		 ORDER BY created_at, id`,
		expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment proofs: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment proofs: %w", err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM expenses WHERE id = $1", expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, storage.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return paths, nil
}

// CountExpensesByEvent returns the number of expenses of an event.
func (s *PostgresStore) CountExpensesByEvent(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM expenses WHERE event_id = $1", eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return count, nil
}

// ListExpensesByEvent returns one page of an event's expenses, without obligations.
func (s *PostgresStore) ListExpensesByEvent(ctx context.Context, eventID string, opts storage.ListOptions) ([]models.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE event_id = $1" + orderClause(expenseSortColumns, opts, "id", 1)
	return s.queryExpenses(ctx, query, eventID, limitArg(opts), opts.Offset)
}

// ListEventLedger returns all expenses of an event with their obligations.
func (s *PostgresStore) ListEventLedger(ctx context.Context, eventID string) ([]models.Expense, error) {
	expenses, err := s.queryExpenses(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE event_id = $1 ORDER BY created_at, id", eventID)
	if err != nil {
		return nil, err
	}

	obligations, err := queryObligations(ctx, s.db,
		"WHERE ob.expense_id IN (SELECT id FROM expenses WHERE event_id = $1) ORDER BY ob.created_at, ob.id", eventID)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(expenses))
	for i, e := range expenses {
		index[e.ID] = i
	}
	for _, ob := range obligations {
		if i, ok := index[ob.ExpenseID]; ok {
			expenses[i].Participants = append(expenses[i].Participants, ob)
		}
	}
	return expenses, nil
}

func (s *PostgresStore) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}
