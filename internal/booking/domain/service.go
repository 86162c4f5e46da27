package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
)

type CreateBookingRequest struct {
	ServiceID     snowflake.ID `json:"service_id" validate:"required"`
	ScheduledDate time.Time    `json:"scheduled_date" validate:"required"`
	Duration      int          `json:"duration" validate:"min=15,max=480"`
	CustomerNotes string       `json:"customer_notes" validate:"max=500"`
	Address       Address      `json:"customer_address"`
}

type TransitionRequest struct {
	BookingID snowflake.ID
	ActorID   snowflake.ID
	ActorRole identitydomain.Role
	Status    string
	Notes     *string
}

type ListBookingRequest struct {
	UserID snowflake.ID
	Role   identitydomain.Role
	Status string
	pagination.Pagination
}

type ListBookingResponse struct {
	pagination.PageInfo
	Bookings []Booking `json:"bookings"`
}

type Service interface {
	Create(ctx context.Context, actor identitydomain.Actor, req CreateBookingRequest) (Booking, error)
	Transition(ctx context.Context, req TransitionRequest) (Booking, error)
	Cancel(ctx context.Context, bookingID, customerID snowflake.ID) (Booking, error)
	GetByID(ctx context.Context, bookingID, requesterID snowflake.ID) (Booking, error)
	List(ctx context.Context, req ListBookingRequest) (ListBookingResponse, error)
}

var (
	ErrInvalidScheduledDate = errors.New("invalid_scheduled_date")
	ErrInvalidDuration      = errors.New("invalid_duration")
	ErrInvalidNotes         = errors.New("invalid_notes")
	ErrInvalidAddress       = errors.New("invalid_address")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrServiceNotFound      = errors.New("service_not_found")
	ErrNotFound             = errors.New("not_found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrConflict             = errors.New("conflict")
)
