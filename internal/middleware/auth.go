package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitevent/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ParticipantIDKey is the context key for the participant carried by a token.
	ParticipantIDKey contextKey = "participant_id"
	// EventIDKey is the context key for the event the token was issued for.
	EventIDKey contextKey = "event_id"
)

// GetParticipantID extracts the participant ID from the context.
// Returns empty string if not found.
func GetParticipantID(ctx context.Context) string {
	id, _ := ctx.Value(ParticipantIDKey).(string)
	return id
}

// GetEventID extracts the token's event ID from the context.
// Returns empty string if not found.
func GetEventID(ctx context.Context) string {
	id, _ := ctx.Value(EventIDKey).(string)
	return id
}

// WithParticipant returns a context carrying the given token claims.
func WithParticipant(ctx context.Context, participantID, eventID string) context.Context {
	ctx = context.WithValue(ctx, ParticipantIDKey, participantID)
	return context.WithValue(ctx, EventIDKey, eventID)
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// OptionalAuth returns a middleware that validates participant tokens if
// present, but allows requests without one. Invalid tokens are ignored; the
// request proceeds anonymously and must name its participant explicitly.
func OptionalAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if tokenString, ok := bearerToken(req.Header().Get("Authorization")); ok {
				// Validate token (ignore errors - optional auth)
				claims, err := jwtManager.Validate(tokenString)
				if err == nil {
					ctx = WithParticipant(ctx, claims.ParticipantID, claims.EventID)
				}
			}

			return next(ctx, req)
		}
	}
}
