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

var participantSortColumns = map[string]string{
	"created_at": "ep.joined_at",
	"name":       "p.name",
}

// EventSlugExists reports whether an event already uses slug.
func (s *PostgresStore) EventSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM events WHERE slug = $1)", slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check event slug: %w", err)
	}
	return exists, nil
}

// ParticipantSlugExists reports whether a participant already uses slug.
func (s *PostgresStore) ParticipantSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM participants WHERE slug = $1)", slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participant slug: %w", err)
	}
	return exists, nil
}

// CreateEvent persists an event together with its creator.
func (s *PostgresStore) CreateEvent(ctx context.Context, event *models.Event, creator *models.Participant) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if creator.ID == "" {
		creator.ID = uuid.New().String()
	}
	ts := now()
	event.CreatedAt, event.UpdatedAt = ts, ts
	creator.CreatedAt = ts

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO events (id, slug, name, description, start_date, end_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		event.ID, event.Slug, event.Name, event.Description, event.StartDate, event.EndDate, ts,
	)
	if isUniqueViolation(err, "events_slug_key") {
		return storage.ErrEventSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := insertMember(ctx, tx, event.ID, creator, true); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMember(ctx context.Context, tx pgx.Tx, eventID string, p *models.Participant, creator bool) error {
	_, err := tx.Exec(ctx,
		"INSERT INTO participants (id, slug, name, created_at) VALUES ($1, $2, $3, $4)",
		p.ID, p.Slug, p.Name, p.CreatedAt,
	)
	if isUniqueViolation(err, "participants_slug_key") {
		return storage.ErrParticipantSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO event_participants (event_id, participant_id, is_event_creator, joined_at) VALUES ($1, $2, $3, $4)",
		eventID, p.ID, creator, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event membership: %w", err)
	}
	return nil
}

const eventColumns = "id, slug, name, description, start_date, end_date, created_at, updated_at"

func (s *PostgresStore) getEvent(ctx context.Context, where string, arg string) (*models.Event, error) {
	var e models.Event
	err := s.db.QueryRow(ctx, "SELECT "+eventColumns+" FROM events "+where, arg).Scan(
		&e.ID, &e.Slug, &e.Name, &e.Description, &e.StartDate, &e.EndDate, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	e.StartDate, e.EndDate = e.StartDate.UTC(), e.EndDate.UTC()
	e.CreatedAt, e.UpdatedAt = e.CreatedAt.UTC(), e.UpdatedAt.UTC()
	return &e, nil
}

// GetEventByID retrieves an event by ID.
func (s *PostgresStore) GetEventByID(ctx context.Context, eventID string) (*models.Event, error) {
	return s.getEvent(ctx, "WHERE id = $1", eventID)
}

// GetEventBySlug retrieves an event by slug.
func (s *PostgresStore) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return s.getEvent(ctx, "WHERE slug = $1", slug)
}

// UpdateEvent updates the mutable fields of an event.
func (s *PostgresStore) UpdateEvent(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = now()
	tag, err := s.db.Exec(ctx,
		"UPDATE events SET name = $1, description = $2, start_date = $3, end_date = $4, updated_at = $5 WHERE id = $6",
		event.Name, event.Description, event.StartDate, event.EndDate, event.UpdatedAt, event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// JoinEvent persists a new participant as a member of the event.
func (s *PostgresStore) JoinEvent(ctx context.Context, eventID string, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.New().String()
	}
	participant.CreatedAt = now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)", eventID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check event existence: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}

	if err := insertMember(ctx, tx, eventID, participant, false); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountEventParticipants returns the number of members of an event.
func (s *PostgresStore) CountEventParticipants(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM event_participants WHERE event_id = $1", eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count event participants: %w", err)
	}
	return count, nil
}

// ListEventParticipants returns one page of an event's members.
func (s *PostgresStore) ListEventParticipants(ctx context.Context, eventID string, opts storage.ListOptions) ([]models.EventParticipant, error) {
	query := `SELECT ep.event_id, ep.is_event_creator, ep.joined_at, p.id, p.slug, p.name, p.created_at
		 FROM event_participants ep JOIN participants p ON p.id = ep.participant_id
		 WHERE ep.event_id = $1` + orderClause(participantSortColumns, opts, "p.id", 1)

	rows, err := s.db.Query(ctx, query, eventID, limitArg(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list event participants: %w", err)
	}
	defer rows.Close()

	var members []models.EventParticipant
	for rows.Next() {
		var m models.EventParticipant
		if err := rows.Scan(&m.EventID, &m.IsEventCreator, &m.JoinedAt,
			&m.Participant.ID, &m.Participant.Slug, &m.Participant.Name, &m.Participant.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event participant: %w", err)
		}
		m.JoinedAt = m.JoinedAt.UTC()
		m.Participant.CreatedAt = m.Participant.CreatedAt.UTC()
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event participants: %w", err)
	}
	return members, nil
}

// MissingEventMembers returns the ids that are not members of the event.
func (s *PostgresStore) MissingEventMembers(ctx context.Context, eventID string, participantIDs []string) ([]string, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		"SELECT participant_id FROM event_participants WHERE event_id = $1 AND participant_id = ANY($2)",
		eventID, participantIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check event membership: %w", err)
	}
	members, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}

	known := make(map[string]bool, len(members))
	for _, id := range members {
		known[id] = true
	}
	var missing []string
	for _, id := range participantIDs {
		if !known[id] {
			missing = append(missing, id)
			known[id] = true
		}
	}
	return missing, nil
}
