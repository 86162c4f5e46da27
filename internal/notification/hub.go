package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/notification/domain"
)

const DefaultSubscriberBuffer = 16

var ErrHubUnavailable = errors.New("hub_unavailable")

// Hub fans events out to the live subscriptions of a user on this instance.
// Nothing is buffered for absent users, and a slow subscriber drops events
// instead of blocking the publisher.
type Hub struct {
	mu               sync.RWMutex
	streams          map[snowflake.ID]*stream
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	subs   map[uint64]chan domain.Event
	nextID uint64
}

type Subscription struct {
	hub    *Hub
	userID snowflake.ID
	id     uint64
	ch     chan domain.Event
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[snowflake.ID]*stream),
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

func (h *Hub) Name() string { return "hub" }

// Publish implements domain.Publisher.
func (h *Hub) Publish(_ context.Context, event domain.Event) error {
	h.Deliver(event)
	return nil
}

// Deliver hands event to every subscription of event.UserID and reports how
// many received it.
func (h *Hub) Deliver(event domain.Event) int {
	if h == nil || event.UserID == 0 {
		return 0
	}
	h.mu.RLock()
	s := h.streams[event.UserID]
	h.mu.RUnlock()
	if s == nil {
		return 0
	}

	s.mu.Lock()
	subs := make([]chan domain.Event, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	delivered := 0
	for _, ch := range subs {
		select {
		case ch <- event:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *Hub) Subscribe(userID snowflake.ID) (*Subscription, error) {
	if h == nil {
		return nil, ErrHubUnavailable
	}
	if userID == 0 {
		return nil, errors.New("invalid_user_id")
	}

	h.mu.Lock()
	s := h.streams[userID]
	if s == nil {
		s = &stream{subs: make(map[uint64]chan domain.Event)}
		h.streams[userID] = s
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan domain.Event, h.subscriberBuffer)
	s.subs[id] = ch
	s.mu.Unlock()
	h.mu.Unlock()

	return &Subscription{hub: h, userID: userID, id: id, ch: ch}, nil
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID snowflake.ID) int {
	h.mu.RLock()
	s := h.streams[userID]
	h.mu.RUnlock()
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (h *Hub) unsubscribe(userID snowflake.ID, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.streams[userID]
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.subs, id)
	empty := len(s.subs) == 0
	s.mu.Unlock()
	if empty {
		delete(h.streams, userID)
	}
}

func (s *Subscription) Events() <-chan domain.Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.userID, s.id)
	})
}
