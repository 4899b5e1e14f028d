package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

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
	amount, tax, service_fee, discount, splitting_method, created_at, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (*models.Expense, error) {
	var (
		e                                models.Expense
		start, end, createdAt, updatedAt int64
	)
	err := row.Scan(&e.ID, &e.EventID, &e.Name, &e.Description, &start, &end,
		&e.Amount, &e.Tax, &e.ServiceFee, &e.Discount, &e.SplittingMethod, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.StartDate, e.EndDate = fromMillis(start), fromMillis(end)
	e.CreatedAt, e.UpdatedAt = fromMillis(createdAt), fromMillis(updatedAt)
	return &e, nil
}

// CreateExpense persists an expense and its obligations in one transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	ts := now()
	expense.CreatedAt, expense.UpdatedAt = ts, ts

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, event_id, name, description, start_date, end_date,
			amount, tax, service_fee, discount, splitting_method, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.EventID, expense.Name, expense.Description,
		toMillis(expense.StartDate), toMillis(expense.EndDate),
		expense.Amount.String(), expense.Tax.String(), expense.ServiceFee.String(), expense.Discount.String(),
		string(expense.SplittingMethod), toMillis(ts), toMillis(ts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i := range expense.Participants {
		ob := &expense.Participants[i]
		if ob.ID == "" {
			ob.ID = uuid.New().String()
		}
		ob.ExpenseID = expense.ID
		ob.CreatedAt = ts

		_, err = tx.ExecContext(ctx,
			`INSERT INTO expense_participants (id, expense_id, participant_id, tag, share, amount_to_pay, paid_amount, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ob.ID, ob.ExpenseID, ob.ParticipantID, string(ob.Tag),
			ob.Share.String(), ob.AmountToPay.String(), ob.PaidAmount.String(), toMillis(ts),
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense with its obligations and proofs.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := scanExpense(s.db.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	expense.Participants, err = queryObligations(ctx, s.db,
		"WHERE ob.expense_id = ? ORDER BY ob.created_at, ob.id", expenseID)
	if err != nil {
		return nil, err
	}
	if err := attachObligationProofs(ctx, s.db, expense.Participants); err != nil {
		return nil, err
	}

	expense.PaymentProofs, err = queryProofs(ctx, s.db, "WHERE expense_id = ? ORDER BY created_at, id", expenseID)
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateExpense updates the mutable fields of an expense.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	expense.UpdatedAt = now()
	result, err := s.db.ExecContext(ctx,
		"UPDATE expenses SET name = ?, description = ?, start_date = ?, end_date = ?, updated_at = ? WHERE id = ?",
		expense.Name, expense.Description, toMillis(expense.StartDate), toMillis(expense.EndDate),
		toMillis(expense.UpdatedAt), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpense removes an expense; obligations and proofs cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM expenses WHERE id = ?", expenseID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check expense existence: %w", err)
	}

	proofs, err := queryProofs(ctx, tx,
		`WHERE expense_id = ?
		    OR expense_participant_id IN (SELECT id FROM expense_participants WHERE expense_id = ?)
		 ORDER BY created_at, id`,
		expenseID, expenseID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID); err != nil {
		return nil, fmt.Errorf("failed to delete expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	paths := make([]string, len(proofs))
	for i, p := range proofs {
		paths[i] = p.Path
	}
	return paths, nil
}

// CountExpensesByEvent returns the number of expenses of an event.
func (s *SQLiteStore) CountExpensesByEvent(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses WHERE event_id = ?", eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return count, nil
}

// ListExpensesByEvent returns one page of an event's expenses, without obligations.
func (s *SQLiteStore) ListExpensesByEvent(ctx context.Context, eventID string, opts storage.ListOptions) ([]models.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE event_id = ?" + orderClause(expenseSortColumns, opts, "id")
	return s.queryExpenses(ctx, query, eventID, limitArg(opts), opts.Offset)
}

// ListEventLedger returns all expenses of an event with their obligations.
func (s *SQLiteStore) ListEventLedger(ctx context.Context, eventID string) ([]models.Expense, error) {
	expenses, err := s.queryExpenses(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE event_id = ? ORDER BY created_at, id", eventID)
	if err != nil {
		return nil, err
	}

	obligations, err := queryObligations(ctx, s.db,
		`WHERE ob.expense_id IN (SELECT id FROM expenses WHERE event_id = ?) ORDER BY ob.created_at, ob.id`, eventID)
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

func (s *SQLiteStore) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
