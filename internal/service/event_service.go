package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitevent/internal/apperr"
	"github.com/mmynk/splitevent/internal/auth"
	"github.com/mmynk/splitevent/internal/calculator"
	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/slug"
	"github.com/mmynk/splitevent/internal/storage"
)

// maxSlugInserts bounds the insert-retry loop when a freshly drawn slug is
// claimed by a concurrent insert between the existence check and the write.
const maxSlugInserts = 5

var errSlugsExhausted = errors.New("slug still taken after retries")

// EventService implements the Connect EventService: events, participants and memberships.
type EventService struct {
	store  storage.Store
	slugs  *slug.Generator
	tokens *auth.JWTManager
}

// NewEventService creates a new EventService with the given storage backend.
func NewEventService(store storage.Store, tokens *auth.JWTManager) *EventService {
	return &EventService{store: store, slugs: slug.New(), tokens: tokens}
}

// CreateEvent creates an event together with its creator and returns a token for the creator.
func (s *EventService) CreateEvent(ctx context.Context, req *connect.Request[models.CreateEventRequest]) (*connect.Response[models.CreateEventResponse], error) {
	slog.Info("CreateEvent request received",
		"name", req.Msg.Name,
		"creator_name", req.Msg.CreatorName,
	)

	start, end, err := validateCreateEvent(req.Msg)
	if err != nil {
		return nil, toConnectError("CreateEvent", err)
	}

	event := &models.Event{
		Name:        strings.TrimSpace(req.Msg.Name),
		Description: req.Msg.Description,
		StartDate:   start,
		EndDate:     end,
	}
	creator := &models.Participant{Name: strings.TrimSpace(req.Msg.CreatorName)}

	err = s.insertWithSlugs(ctx, event, creator, func() error {
		return s.store.CreateEvent(ctx, event, creator)
	})
	if err != nil {
		return nil, toConnectError("CreateEvent", err)
	}

	token, err := s.tokens.Generate(creator.ID, event.ID)
	if err != nil {
		return nil, toConnectError("CreateEvent", err)
	}

	slog.Info("Event created", "event_id", event.ID, "slug", event.Slug, "creator_id", creator.ID)

	return connect.NewResponse(&models.CreateEventResponse{
		Event:       *event,
		Participant: *creator,
		Token:       token,
	}), nil
}

// GetEvent retrieves an event by slug.
func (s *EventService) GetEvent(ctx context.Context, req *connect.Request[models.GetEventRequest]) (*connect.Response[models.Event], error) {
	slog.Info("GetEvent request received", "slug", req.Msg.Slug)

	event, err := s.eventBySlug(ctx, req.Msg.Slug)
	if err != nil {
		return nil, toConnectError("GetEvent", err)
	}
	return connect.NewResponse(event), nil
}

// UpdateEvent updates the name, description and dates of an event.
func (s *EventService) UpdateEvent(ctx context.Context, req *connect.Request[models.UpdateEventRequest]) (*connect.Response[models.Event], error) {
	slog.Info("UpdateEvent request received", "event_id", req.Msg.ID)

	if err := requireFields([2]string{"id", req.Msg.ID}); err != nil {
		return nil, toConnectError("UpdateEvent", err)
	}
	if err := validateName(req.Msg.Name); err != nil {
		return nil, toConnectError("UpdateEvent", err)
	}
	dates, err := parseDateUpdate(req.Msg.StartDate, req.Msg.EndDate)
	if err != nil {
		return nil, toConnectError("UpdateEvent", err)
	}

	event, err := s.store.GetEventByID(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError("UpdateEvent", lookupError("Event", err))
	}

	if req.Msg.Name != nil {
		event.Name = strings.TrimSpace(*req.Msg.Name)
	}
	if req.Msg.Description != nil {
		event.Description = *req.Msg.Description
	}
	if dates.ok {
		event.StartDate, event.EndDate = dates.start, dates.end
	}

	if err := s.store.UpdateEvent(ctx, event); err != nil {
		return nil, toConnectError("UpdateEvent", lookupError("Event", err))
	}

	slog.Info("Event updated", "event_id", event.ID)
	return connect.NewResponse(event), nil
}

// JoinEvent creates a participant and makes it a member of the event.
func (s *EventService) JoinEvent(ctx context.Context, req *connect.Request[models.JoinEventRequest]) (*connect.Response[models.JoinEventResponse], error) {
	slog.Info("JoinEvent request received",
		"slug", req.Msg.Slug,
		"participant_name", req.Msg.ParticipantName,
	)

	if strings.TrimSpace(req.Msg.ParticipantName) == "" {
		return nil, toConnectError("JoinEvent", apperr.Validation("Missing required field (participant_name)"))
	}

	event, err := s.eventBySlug(ctx, req.Msg.Slug)
	if err != nil {
		return nil, toConnectError("JoinEvent", err)
	}

	participant := &models.Participant{Name: strings.TrimSpace(req.Msg.ParticipantName)}
	err = s.insertWithSlugs(ctx, nil, participant, func() error {
		return s.store.JoinEvent(ctx, event.ID, participant)
	})
	if err != nil {
		return nil, toConnectError("JoinEvent", err)
	}

	token, err := s.tokens.Generate(participant.ID, event.ID)
	if err != nil {
		return nil, toConnectError("JoinEvent", err)
	}

	slog.Info("Participant joined event", "event_id", event.ID, "participant_id", participant.ID)

	return connect.NewResponse(&models.JoinEventResponse{
		Participant: *participant,
		Token:       token,
	}), nil
}

// ListEventParticipants returns one page of the members of an event.
func (s *EventService) ListEventParticipants(ctx context.Context, req *connect.Request[models.ListEventParticipantsRequest]) (*connect.Response[models.ListEventParticipantsResponse], error) {
	slog.Info("ListEventParticipants request received", "slug", req.Msg.Slug)

	if err := validateListQuery(req.Msg.PageQuery, participantSortBy); err != nil {
		return nil, toConnectError("ListEventParticipants", err)
	}
	query := req.Msg.PageQuery.Normalize("created_at")

	event, err := s.eventBySlug(ctx, req.Msg.Slug)
	if err != nil {
		return nil, toConnectError("ListEventParticipants", err)
	}

	total, err := s.store.CountEventParticipants(ctx, event.ID)
	if err != nil {
		return nil, toConnectError("ListEventParticipants", apperr.Persistence("failed to count participants", err))
	}
	members, err := s.store.ListEventParticipants(ctx, event.ID, listOptions(query))
	if err != nil {
		return nil, toConnectError("ListEventParticipants", apperr.Persistence("failed to list participants", err))
	}
	if members == nil {
		members = []models.EventParticipant{}
	}

	return connect.NewResponse(&models.ListEventParticipantsResponse{
		Data:       members,
		Pagination: models.NewPagination(query, total),
	}), nil
}

// GetEventBalances returns every member's balance across the event and the
// transfers that would settle them.
func (s *EventService) GetEventBalances(ctx context.Context, req *connect.Request[models.GetEventBalancesRequest]) (*connect.Response[models.GetEventBalancesResponse], error) {
	slog.Info("GetEventBalances request received", "slug", req.Msg.Slug)

	event, err := s.eventBySlug(ctx, req.Msg.Slug)
	if err != nil {
		return nil, toConnectError("GetEventBalances", err)
	}

	members, err := s.store.ListEventParticipants(ctx, event.ID, storage.ListOptions{})
	if err != nil {
		return nil, toConnectError("GetEventBalances", apperr.Persistence("failed to list participants", err))
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.Participant.ID] = m.Participant.Name
	}

	expenses, err := s.store.ListEventLedger(ctx, event.ID)
	if err != nil {
		return nil, toConnectError("GetEventBalances", apperr.Persistence("failed to load expenses", err))
	}

	balances, debts := calculator.CalculateEventBalances(expenses, names)
	slog.Debug("Event balances calculated",
		"event_id", event.ID,
		"members", len(balances),
		"debts", len(debts),
	)

	return connect.NewResponse(&models.GetEventBalancesResponse{
		Balances: balances,
		Debts:    debts,
	}), nil
}

func (s *EventService) eventBySlug(ctx context.Context, eventSlug string) (*models.Event, error) {
	if strings.TrimSpace(eventSlug) == "" {
		return nil, apperr.Validation("Missing required fields (slug)")
	}
	event, err := s.store.GetEventBySlug(ctx, eventSlug)
	if err != nil {
		return nil, lookupError("Event", err)
	}
	return event, nil
}

// insertWithSlugs draws fresh slugs for event (when non-nil) and participant
// and runs insert, drawing again if a concurrent insert claimed one of them.
func (s *EventService) insertWithSlugs(ctx context.Context, event *models.Event, participant *models.Participant, insert func() error) error {
	for attempt := 1; attempt <= maxSlugInserts; attempt++ {
		var err error
		if event != nil {
			event.Slug, err = s.slugs.Unique(ctx, event.Name, s.store.EventSlugExists)
			if err != nil {
				return apperr.Persistence("failed to generate event slug", err)
			}
		}
		participant.Slug, err = s.slugs.Unique(ctx, participant.Name, s.store.ParticipantSlugExists)
		if err != nil {
			return apperr.Persistence("failed to generate participant slug", err)
		}

		err = insert()
		if errors.Is(err, storage.ErrEventSlugTaken) || errors.Is(err, storage.ErrParticipantSlugTaken) {
			slog.Warn("Slug taken on insert, regenerating", "attempt", attempt, "error", err)
			continue
		}
		if err != nil {
			return apperr.Persistence("failed to insert", err)
		}
		return nil
	}
	return apperr.Persistence("failed to insert", errSlugsExhausted)
}

// lookupError turns a store miss into a NotFound for entity.
func lookupError(entity string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(entity)
	}
	return apperr.Persistence("failed to get "+strings.ToLower(entity), err)
}
