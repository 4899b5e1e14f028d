package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/storage"
)

var obligationSortColumns = map[string]string{
	"created_at":    "ob.created_at",
	"amount_to_pay": "CAST(ob.amount_to_pay AS REAL)",
	"paid_at":       "ob.paid_at",
}

const obligationSelect = `SELECT ob.id, ob.expense_id, ob.participant_id, p.name, p.slug, ob.tag,
	ob.share, ob.amount_to_pay, ob.paid_amount, ob.paid_at, ob.created_at
	FROM expense_participants ob JOIN participants p ON p.id = ob.participant_id `

func queryObligations(ctx context.Context, q querier, where string, args ...any) ([]models.ExpenseParticipant, error) {
	rows, err := q.QueryContext(ctx, obligationSelect+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense participants: %w", err)
	}
	defer rows.Close()

	var obligations []models.ExpenseParticipant
	for rows.Next() {
		var (
			ob        models.ExpenseParticipant
			paidAt    sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&ob.ID, &ob.ExpenseID, &ob.ParticipantID, &ob.Name, &ob.Slug, &ob.Tag,
			&ob.Share, &ob.AmountToPay, &ob.PaidAmount, &paidAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense participant: %w", err)
		}
		if paidAt.Valid {
			t := fromMillis(paidAt.Int64)
			ob.PaidAt = &t
		}
		ob.CreatedAt = fromMillis(createdAt)
		obligations = append(obligations, ob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense participants: %w", err)
	}
	return obligations, nil
}

// attachObligationProofs loads the proofs of every obligation in obs.
func attachObligationProofs(ctx context.Context, q querier, obs []models.ExpenseParticipant) error {
	if len(obs) == 0 {
		return nil
	}

	args := make([]any, len(obs))
	index := make(map[string]int, len(obs))
	for i, ob := range obs {
		args[i] = ob.ID
		index[ob.ID] = i
	}

	proofs, err := queryProofs(ctx, q,
		"WHERE expense_participant_id IN ("+placeholders(len(obs))+") ORDER BY created_at, id", args...)
	if err != nil {
		return err
	}
	for _, p := range proofs {
		i := index[*p.ExpenseParticipantID]
		obs[i].PaymentProofs = append(obs[i].PaymentProofs, p)
	}
	return nil
}

// CountObligations returns the number of obligations of an expense.
func (s *SQLiteStore) CountObligations(ctx context.Context, expenseID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expense_participants WHERE expense_id = ?", expenseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count expense participants: %w", err)
	}
	return count, nil
}

// ListObligations returns one page of an expense's obligations with their proofs.
func (s *SQLiteStore) ListObligations(ctx context.Context, expenseID string, opts storage.ListOptions) ([]models.ExpenseParticipant, error) {
	obligations, err := queryObligations(ctx, s.db,
		"WHERE ob.expense_id = ?"+orderClause(obligationSortColumns, opts, "ob.id"),
		expenseID, limitArg(opts), opts.Offset)
	if err != nil {
		return nil, err
	}
	if err := attachObligationProofs(ctx, s.db, obligations); err != nil {
		return nil, err
	}
	return obligations, nil
}

// FindObligation returns the obligation of participantID on expenseID.
func (s *SQLiteStore) FindObligation(ctx context.Context, expenseID, participantID string) (*models.ExpenseParticipant, error) {
	obligations, err := queryObligations(ctx, s.db,
		"WHERE ob.expense_id = ? AND ob.participant_id = ?", expenseID, participantID)
	if err != nil {
		return nil, err
	}
	if len(obligations) == 0 {
		return nil, storage.ErrNotFound
	}
	return &obligations[0], nil
}

// RecordPayment applies a payment to an obligation.
// The decrement is a compare-and-set on the value read in the same
// transaction, so a concurrent payment makes this one fail instead of
// driving the balance negative.
func (s *SQLiteStore) RecordPayment(ctx context.Context, payment storage.Payment) (*models.ExpenseParticipant, error) {
	paidAt := payment.PaidAt
	if paidAt.IsZero() {
		paidAt = now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		"SELECT amount_to_pay FROM expense_participants WHERE id = ?", payment.ObligationID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense participant: %w", err)
	}

	remaining, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount_to_pay: %w", err)
	}
	if remaining.LessThan(payment.Amount) {
		return nil, storage.ErrInsufficientBalance
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE expense_participants SET amount_to_pay = ?, paid_amount = ?, paid_at = ?
		 WHERE id = ? AND amount_to_pay = ?`,
		remaining.Sub(payment.Amount).String(), payment.Amount.String(), toMillis(paidAt),
		payment.ObligationID, raw,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, storage.ErrInsufficientBalance
	}

	for _, path := range payment.ProofPaths {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO payment_proofs (id, expense_participant_id, path, created_at) VALUES (?, ?, ?, ?)",
			uuid.New().String(), payment.ObligationID, path, toMillis(paidAt),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert payment proof: %w", err)
		}
	}

	obligations, err := queryObligations(ctx, tx, "WHERE ob.id = ?", payment.ObligationID)
	if err != nil {
		return nil, err
	}
	if len(obligations) == 0 {
		return nil, storage.ErrNotFound
	}
	if err := attachObligationProofs(ctx, tx, obligations); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &obligations[0], nil
}
