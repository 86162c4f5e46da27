package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventType string

const (
	EventBookingCreated EventType = "booking.created"
	EventBookingUpdated EventType = "booking.updated"
	EventReviewCreated  EventType = "review.created"
)

// Event is a user-addressed notification.
type Event struct {
	Type      EventType      `json:"type"`
	UserID    snowflake.ID   `json:"user_id"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notifier accepts events for delivery. Implementations must not block the
// caller and never report delivery failures.
type Notifier interface {
	Notify(ctx context.Context, userID snowflake.ID, event Event)
}

// Publisher delivers a single event over one transport.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event Event) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, snowflake.ID, Event) {}
