package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/storage"
)

var obligationSortColumns = map[string]string{
	"created_at":    "ob.created_at",
	"amount_to_pay": "ob.amount_to_pay",
	"paid_at":       "ob.paid_at",
}

const obligationSelect = `SELECT ob.id, ob.expense_id, ob.participant_id, p.name, p.slug, ob.tag,
	ob.share::text, ob.amount_to_pay::text, ob.paid_amount::text, ob.paid_at, ob.created_at
	FROM expense_participants ob JOIN participants p ON p.id = ob.participant_id `

func queryObligations(ctx context.Context, q querier, where string, args ...any) ([]models.ExpenseParticipant, error) {
	rows, err := q.Query(ctx, obligationSelect+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense participants: %w", err)
	}
	defer rows.Close()

	var obligations []models.ExpenseParticipant
	for rows.Next() {
		var (
			ob     models.ExpenseParticipant
			paidAt *time.Time
		)
		if err := rows.Scan(&ob.ID, &ob.ExpenseID, &ob.ParticipantID, &ob.Name, &ob.Slug, &ob.Tag,
			&ob.Share, &ob.AmountToPay, &ob.PaidAmount, &paidAt, &ob.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense participant: %w", err)
		}
		if paidAt != nil {
			t := paidAt.UTC()
			ob.PaidAt = &t
		}
		ob.CreatedAt = ob.CreatedAt.UTC()
		obligations = append(obligations, ob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense participants: %w", err)
	}
	return obligations, nil
}

func attachObligationProofs(ctx context.Context, q querier, obs []models.ExpenseParticipant) error {
	if len(obs) == 0 {
		return nil
	}

	ids := make([]string, len(obs))
	index := make(map[string]int, len(obs))
	for i, ob := range obs {
		ids[i] = ob.ID
		index[ob.ID] = i
	}

	proofs, err := queryProofs(ctx, q, "WHERE expense_participant_id = ANY($1) ORDER BY created_at, id", ids)
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
func (s *PostgresStore) CountObligations(ctx context.Context, expenseID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM expense_participants WHERE expense_id = $1", expenseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count expense participants: %w", err)
	}
	return count, nil
}

// ListObligations returns one page of an expense's obligations with their proofs.
func (s *PostgresStore) ListObligations(ctx context.Context, expenseID string, opts storage.ListOptions) ([]models.ExpenseParticipant, error) {
	obligations, err := queryObligations(ctx, s.db,
		"WHERE ob.expense_id = $1"+orderClause(obligationSortColumns, opts, "ob.id", 1),
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
func (s *PostgresStore) FindObligation(ctx context.Context, expenseID, participantID string) (*models.ExpenseParticipant, error) {
	obligations, err := queryObligations(ctx, s.db,
		"WHERE ob.expense_id = $1 AND ob.participant_id = $2", expenseID, participantID)
	if err != nil {
		return nil, err
	}
	if len(obligations) == 0 {
		return nil, storage.ErrNotFound
	}
	return &obligations[0], nil
}

// RecordPayment applies a payment to an obligation with a conditional
// decrement: the row only changes while amount_to_pay >= amount, so two
// concurrent payments can never drive the balance negative.
func (s *PostgresStore) RecordPayment(ctx context.Context, payment storage.Payment) (*models.ExpenseParticipant, error) {
	paidAt := payment.PaidAt
	if paidAt.IsZero() {
		paidAt = now()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE expense_participants
		 SET amount_to_pay = amount_to_pay - $1::numeric, paid_amount = $1::numeric, paid_at = $2
		 WHERE id = $3 AND amount_to_pay >= $1::numeric`,
		payment.Amount.String(), paidAt, payment.ObligationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM expense_participants WHERE id = $1)", payment.ObligationID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check expense participant existence: %w", err)
		}
		if !exists {
			return nil, storage.ErrNotFound
		}
		return nil, storage.ErrInsufficientBalance
	}

	if len(payment.ProofPaths) > 0 {
		batch := &pgx.Batch{}
		for _, path := range payment.ProofPaths {
			batch.Queue(
				"INSERT INTO payment_proofs (id, expense_participant_id, path, created_at) VALUES ($1, $2, $3, $4)",
				uuid.New().String(), payment.ObligationID, path, paidAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to insert payment proofs: %w", err)
		}
	}

	obligations, err := queryObligations(ctx, tx, "WHERE ob.id = $1", payment.ObligationID)
	if err != nil {
		return nil, err
	}
	if len(obligations) == 0 {
		return nil, storage.ErrNotFound
	}
	if err := attachObligationProofs(ctx, tx, obligations); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &obligations[0], nil
}

func queryProofs(ctx context.Context, q querier, where string, args ...any) ([]models.PaymentProof, error) {
	rows, err := q.Query(ctx,
		"SELECT id, expense_id, expense_participant_id, path, created_at FROM payment_proofs "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment proofs: %w", err)
	}
	defer rows.Close()

	var proofs []models.PaymentProof
	for rows.Next() {
		var p models.PaymentProof
		if err := rows.Scan(&p.ID, &p.ExpenseID, &p.ExpenseParticipantID, &p.Path, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment proof: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		proofs = append(proofs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment proofs: %w", err)
	}
	return proofs, nil
}

// AddPaymentProofs attaches general proofs to an expense.
func (s *PostgresStore) AddPaymentProofs(ctx context.Context, expenseID string, paths []string) ([]models.PaymentProof, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the expense so a concurrent delete cannot orphan the proofs
	var id string
	err = tx.QueryRow(ctx, "SELECT id FROM expenses WHERE id = $1 FOR UPDATE", expenseID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock expense: %w", err)
	}

	ts := now()
	proofs := make([]models.PaymentProof, 0, len(paths))
	for _, path := range paths {
		p := models.PaymentProof{ID: uuid.New().String(), ExpenseID: &id, Path: path, CreatedAt: ts}
		_, err := tx.Exec(ctx,
			"INSERT INTO payment_proofs (id, expense_id, path, created_at) VALUES ($1, $2, $3, $4)",
			p.ID, expenseID, path, ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert payment proof: %w", err)
		}
		proofs = append(proofs, p)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return proofs, nil
}

// DeletePaymentProofs removes the given proofs of an expense.
func (s *PostgresStore) DeletePaymentProofs(ctx context.Context, expenseID string, proofIDs []string) ([]models.PaymentProof, error) {
	ids := unique(proofIDs)
	if len(ids) == 0 {
		return nil, storage.ErrNotFound
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	proofs, err := queryProofs(ctx, tx,
		`WHERE id = ANY($1)
		   AND (expense_id = $2 OR expense_participant_id IN (SELECT id FROM expense_participants WHERE expense_id = $2))
		 ORDER BY created_at, id
		 FOR UPDATE`,
		ids, expenseID)
	if err != nil {
		return nil, err
	}
	if len(proofs) != len(ids) {
		return nil, storage.ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM payment_proofs WHERE id = ANY($1)", ids); err != nil {
		return nil, fmt.Errorf("failed to delete payment proofs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
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
