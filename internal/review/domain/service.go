package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type SubmitReviewRequest struct {
	BookingID snowflake.ID `json:"booking_id"`
	Rating    int          `json:"rating" validate:"min=1,max=5"`
	Comment   string       `json:"comment" validate:"max=500"`
}

type ListReviewRequest struct {
	ProviderID snowflake.ID
	pagination.Pagination
}

type ListReviewResponse struct {
	pagination.PageInfo
	Reviews []Review `json:"reviews"`
}

type Service interface {
	Submit(ctx context.Context, customerID snowflake.ID, req SubmitReviewRequest) (Review, error)
	// UpdateProviderRating folds rating into the provider's running mean. A
	// nil tx runs the statement on its own.
	UpdateProviderRating(ctx context.Context, tx *gorm.DB, providerID snowflake.ID, rating int) error
	List(ctx context.Context, req ListReviewRequest) (ListReviewResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (Review, error)
	ProviderStats(ctx context.Context, providerID snowflake.ID) (ProviderStats, error)
}

var (
	ErrInvalidRating    = errors.New("invalid_rating")
	ErrInvalidComment   = errors.New("invalid_comment")
	ErrBookingNotFound  = errors.New("booking_not_found")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidState     = errors.New("invalid_state")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("review_exists")
	ErrNotFound         = errors.New("not_found")
)
