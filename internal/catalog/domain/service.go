package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
)

type CreateListingRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=100"`
	Description string   `json:"description" validate:"required,min=10,max=500"`
	Category    Category `json:"category" validate:"required"`
	Rate        float64  `json:"rate" validate:"gt=0"`
	Duration    int      `json:"duration" validate:"omitempty,min=15,max=480"`
	Tags        []string `json:"tags" validate:"max=10,dive,max=30"`
}

// UpdateListingRequest carries optional changes; nil fields are left untouched.
type UpdateListingRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=3,max=100"`
	Description *string   `json:"description" validate:"omitempty,min=10,max=500"`
	Category    *Category `json:"category"`
	Rate        *float64  `json:"rate" validate:"omitempty,gt=0"`
	Duration    *int      `json:"duration" validate:"omitempty,min=15,max=480"`
	Tags        []string  `json:"tags" validate:"omitempty,max=10,dive,max=30"`
	IsActive    *bool     `json:"is_active"`
}

type ListListingRequest struct {
	Search   string
	Category string
	MinRate  *float64
	MaxRate  *float64
	pagination.Pagination
}

type ListListingResponse struct {
	pagination.PageInfo
	Listings []Listing `json:"services"`
}

type Service interface {
	Create(ctx context.Context, providerID snowflake.ID, req CreateListingRequest) (Listing, error)
	Update(ctx context.Context, providerID, id snowflake.ID, req UpdateListingRequest) (Listing, error)
	// Archive deactivates a listing. Listings are never deleted because
	// bookings keep referencing them.
	Archive(ctx context.Context, providerID, id snowflake.ID) error
	GetByID(ctx context.Context, id snowflake.ID) (Listing, error)
	List(ctx context.Context, req ListListingRequest) (ListListingResponse, error)
	ListByProvider(ctx context.Context, providerID snowflake.ID, page pagination.Pagination) (ListListingResponse, error)
}

var (
	ErrInvalidTitle       = errors.New("invalid_title")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidCategory    = errors.New("invalid_category")
	ErrInvalidRate        = errors.New("invalid_rate")
	ErrInvalidDuration    = errors.New("invalid_duration")
	ErrInvalidTags        = errors.New("invalid_tags")
	ErrInvalidProvider    = errors.New("invalid_provider")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
)
