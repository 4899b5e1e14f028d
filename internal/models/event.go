package models

import "time"

// Event represents a shared context under which participants log and split expenses.
type Event struct {
	// ID is the unique identifier for the event (UUID format).
	ID string `json:"id"`

	// Slug is the unique, URL-safe identifier used in links (e.g. "weekend-trip-Xa9_k2P").
	Slug string `json:"slug"`

	// Name is the display name of the event.
	Name string `json:"name"`

	// Description is optional free text.
	Description string `json:"description"`

	// StartDate and EndDate bound the event. StartDate is never after EndDate.
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant represents a person able to join events and owe or pay obligations.
// Participants have a global identity; membership in an event is tracked by EventParticipant.
type Participant struct {
	// ID is the unique identifier for the participant (UUID format).
	ID string `json:"id"`

	// Slug is generated with the same scheme as event slugs and is unique among participants.
	Slug string `json:"slug"`

	// Name is the display name of the participant.
	Name string `json:"name"`

	CreatedAt time.Time `json:"created_at"`
}

// EventParticipant is the membership of a participant in an event.
// Exactly one membership per event has IsEventCreator set; it is written when
// the event is created and never reassigned.
type EventParticipant struct {
	EventID        string      `json:"event_id"`
	Participant    Participant `json:"participant"`
	IsEventCreator bool        `json:"is_event_creator"`
	JoinedAt       time.Time   `json:"joined_at"`
}
