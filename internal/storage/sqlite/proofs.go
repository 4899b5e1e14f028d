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

func queryProofs(ctx context.Context, q querier, where string, args ...any) ([]models.PaymentProof, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, expense_id, expense_participant_id, path, created_at FROM payment_proofs "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment proofs: %w", err)
	}
	defer rows.Close()

	var proofs []models.PaymentProof
	for rows.Next() {
		var (
			p                     models.PaymentProof
			expenseID, obligation sql.NullString
			createdAt             int64
		)
		if err := rows.Scan(&p.ID, &expenseID, &obligation, &p.Path, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment proof: %w", err)
		}
		if expenseID.Valid {
			p.ExpenseID = &expenseID.String
		}
		if obligation.Valid {
			p.ExpenseParticipantID = &obligation.String
		}
		p.CreatedAt = fromMillis(createdAt)
		proofs = append(proofs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment proofs: %w", err)
	}
	return proofs, nil
}

// AddPaymentProofs attaches general proofs to an expense.
func (s *SQLiteStore) AddPaymentProofs(ctx context.Context, expenseID string, paths []string) ([]models.PaymentProof, error) {
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

	ts := now()
	proofs := make([]models.PaymentProof, 0, len(paths))
	for _, path := range paths {
		id := expenseID
		p := models.PaymentProof{ID: uuid.New().String(), ExpenseID: &id, Path: path, CreatedAt: ts}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO payment_proofs (id, expense_id, path, created_at) VALUES (?, ?, ?, ?)",
			p.ID, expenseID, path, toMillis(ts),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert payment proof: %w", err)
		}
		proofs = append(proofs, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return proofs, nil
}

// DeletePaymentProofs removes the given proofs of an expense.
func (s *SQLiteStore) DeletePaymentProofs(ctx context.Context, expenseID string, proofIDs []string) ([]models.PaymentProof, error) {
	ids := unique(proofIDs)
	if len(ids) == 0 {
		return nil, storage.ErrNotFound
	}
	args := make([]any, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	in := "(" + placeholders(len(ids)) + ")"
	proofs, err := queryProofs(ctx, tx,
		`WHERE id IN `+in+`
		   AND (expense_id = ? OR expense_participant_id IN (SELECT id FROM expense_participants WHERE expense_id = ?))
		 ORDER BY created_at, id`,
		append(args, expenseID, expenseID)...)
	if err != nil {
		return nil, err
	}
	if len(proofs) != len(ids) {
		return nil, storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM payment_proofs WHERE id IN "+in, args...); err != nil {
		return nil, fmt.Errorf("failed to delete payment proofs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return proofs, nil
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
