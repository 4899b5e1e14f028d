// Package cache decorates a storage.Store with a Redis read-through cache for
// event lookups. Events are the only entity cached.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/storage"
)

const keyPrefix = "splitevent:event:"

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store wraps a storage.Store. Cache errors are logged and never fail a request.
type Store struct {
	storage.Store
	client redis.UniversalClient
	ttl    time.Duration
}

// New returns a caching decorator around next.
func New(next storage.Store, client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{Store: next, client: client, ttl: ttl}
}

func slugKey(slug string) string { return keyPrefix + "slug:" + slug }
func idKey(id string) string     { return keyPrefix + "id:" + id }

// GetEventBySlug returns the cached event or loads and caches it.
func (s *Store) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return s.readThrough(ctx, slugKey(slug), func() (*models.Event, error) {
		return s.Store.GetEventBySlug(ctx, slug)
	})
}

// GetEventByID returns the cached event or loads and caches it.
func (s *Store) GetEventByID(ctx context.Context, eventID string) (*models.Event, error) {
	return s.readThrough(ctx, idKey(eventID), func() (*models.Event, error) {
		return s.Store.GetEventByID(ctx, eventID)
	})
}

// UpdateEvent updates the event and evicts its cache entries.
func (s *Store) UpdateEvent(ctx context.Context, event *models.Event) error {
	if err := s.Store.UpdateEvent(ctx, event); err != nil {
		return err
	}
	keys := []string{idKey(event.ID)}
	if event.Slug != "" {
		keys = append(keys, slugKey(event.Slug))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("Failed to evict cached event", "event_id", event.ID, "error", err)
	}
	return nil
}

// Close closes the underlying store and the redis client.
func (s *Store) Close() error {
	return errors.Join(s.Store.Close(), s.client.Close())
}

func (s *Store) readThrough(ctx context.Context, key string, load func() (*models.Event, error)) (*models.Event, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var event models.Event
		if err := json.Unmarshal(data, &event); err == nil {
			return &event, nil
		}
		slog.Warn("Discarding malformed cached event", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("Event cache read failed", "key", key, "error", err)
	}

	event, err := load()
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(event)
	if err != nil {
		slog.Warn("Failed to encode event for cache", "key", key, "error", err)
		return event, nil
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		slog.Warn("Event cache write failed", "key", key, "error", err)
	}
	return event, nil
}
