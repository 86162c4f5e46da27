package domain

import "strings"

type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every storable status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusRejected,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// providerTransitions is the single source of truth for provider-driven
// status changes. in-progress is storable but nothing leads into it.
var providerTransitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusCompleted},
}

var cancellable = map[Status]bool{
	StatusPending:  true,
	StatusAccepted: true,
}

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a provider may move a booking from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range providerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanCancel reports whether a customer may cancel from s.
func (s Status) CanCancel() bool {
	return cancellable[s]
}

func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)
