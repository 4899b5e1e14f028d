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

var participantSortColumns = map[string]string{
	"created_at": "ep.joined_at",
	"name":       "p.name",
}

// EventSlugExists reports whether an event already uses slug.
func (s *SQLiteStore) EventSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM events WHERE slug = ?", slug).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check event slug: %w", err)
	}
	return true, nil
}

// ParticipantSlugExists reports whether a participant already uses slug.
func (s *SQLiteStore) ParticipantSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM participants WHERE slug = ?", slug).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check participant slug: %w", err)
	}
	return true, nil
}

// CreateEvent persists an event together with its creator.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *models.Event, creator *models.Participant) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if creator.ID == "" {
		creator.ID = uuid.New().String()
	}
	ts := now()
	event.CreatedAt, event.UpdatedAt = ts, ts
	creator.CreatedAt = ts

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id, slug, name, description, start_date, end_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Slug, event.Name, event.Description,
		toMillis(event.StartDate), toMillis(event.EndDate), toMillis(ts), toMillis(ts),
	)
	if isUniqueViolation(err, "events.slug") {
		return storage.ErrEventSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := insertMember(ctx, tx, event.ID, creator, true); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertMember inserts a participant and its membership of eventID.
func insertMember(ctx context.Context, tx *sql.Tx, eventID string, p *models.Participant, creator bool) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO participants (id, slug, name, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.Slug, p.Name, toMillis(p.CreatedAt),
	)
	if isUniqueViolation(err, "participants.slug") {
		return storage.ErrParticipantSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO event_participants (event_id, participant_id, is_event_creator, joined_at) VALUES (?, ?, ?, ?)",
		eventID, p.ID, creator, toMillis(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event membership: %w", err)
	}
	return nil
}

const eventColumns = "id, slug, name, description, start_date, end_date, created_at, updated_at"

func scanEvent(row interface{ Scan(...any) error }) (*models.Event, error) {
	var (
		e                                models.Event
		start, end, createdAt, updatedAt int64
	)
	if err := row.Scan(&e.ID, &e.Slug, &e.Name, &e.Description, &start, &end, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.StartDate, e.EndDate = fromMillis(start), fromMillis(end)
	e.CreatedAt, e.UpdatedAt = fromMillis(createdAt), fromMillis(updatedAt)
	return &e, nil
}

// GetEventByID retrieves an event by ID.
func (s *SQLiteStore) GetEventByID(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := scanEvent(s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// GetEventBySlug retrieves an event by slug.
func (s *SQLiteStore) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	event, err := scanEvent(s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE slug = ?", slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// UpdateEvent updates the mutable fields of an event.
func (s *SQLiteStore) UpdateEvent(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = now()
	result, err := s.db.ExecContext(ctx,
		"UPDATE events SET name = ?, description = ?, start_date = ?, end_date = ?, updated_at = ? WHERE id = ?",
		event.Name, event.Description, toMillis(event.StartDate), toMillis(event.EndDate), toMillis(event.UpdatedAt), event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
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

// JoinEvent persists a new participant as a member of the event.
func (s *SQLiteStore) JoinEvent(ctx context.Context, eventID string, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.New().String()
	}
	participant.CreatedAt = now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ?", eventID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check event existence: %w", err)
	}

	if err := insertMember(ctx, tx, eventID, participant, false); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountEventParticipants returns the number of members of an event.
func (s *SQLiteStore) CountEventParticipants(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_participants WHERE event_id = ?", eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count event participants: %w", err)
	}
	return count, nil
}

// ListEventParticipants returns one page of an event's members.
func (s *SQLiteStore) ListEventParticipants(ctx context.Context, eventID string, opts storage.ListOptions) ([]models.EventParticipant, error) {
	query := `SELECT ep.event_id, ep.is_event_creator, ep.joined_at, p.id, p.slug, p.name, p.created_at
		 FROM event_participants ep JOIN participants p ON p.id = ep.participant_id
		 WHERE ep.event_id = ?` + orderClause(participantSortColumns, opts, "p.id")

	rows, err := s.db.QueryContext(ctx, query, eventID, limitArg(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list event participants: %w", err)
	}
	defer rows.Close()

	var members []models.EventParticipant
	for rows.Next() {
		var (
			m                   models.EventParticipant
			joinedAt, createdAt int64
		)
		if err := rows.Scan(&m.EventID, &m.IsEventCreator, &joinedAt,
			&m.Participant.ID, &m.Participant.Slug, &m.Participant.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event participant: %w", err)
		}
		m.JoinedAt = fromMillis(joinedAt)
		m.Participant.CreatedAt = fromMillis(createdAt)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event participants: %w", err)
	}
	return members, nil
}

// MissingEventMembers returns the ids that are not members of the event.
func (s *SQLiteStore) MissingEventMembers(ctx context.Context, eventID string, participantIDs []string) ([]string, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(participantIDs)+1)
	args = append(args, eventID)
	for _, id := range participantIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT participant_id FROM event_participants WHERE event_id = ? AND participant_id IN ("+placeholders(len(participantIDs))+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check event membership: %w", err)
	}
	defer rows.Close()

	members := make(map[string]bool, len(participantIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate membership: %w", err)
	}

	var missing []string
	for _, id := range participantIDs {
		if !members[id] {
			missing = append(missing, id)
			members[id] = true
		}
	}
	return missing, nil
}
