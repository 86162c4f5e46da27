package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	CustomerID snowflake.ID
	ProviderID snowflake.ID
	Status     Status
}

// StatusUpdate describes a conditional status write.
type StatusUpdate struct {
	ID            snowflake.ID
	From          Status
	To            Status
	ProviderNotes *string
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, booking *Booking) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	// FindByIDForUpdate reads the booking and, on dialects that support it,
	// locks the row for the rest of the transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	// UpdateStatus applies the write only if the stored status still equals
	// From. It reports whether a row was changed.
	UpdateStatus(ctx context.Context, db *gorm.DB, update StatusUpdate) (bool, error)
	MarkReviewSubmitted(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	InsertHistory(ctx context.Context, db *gorm.DB, change *StatusChange) error
	ListHistory(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) ([]StatusChange, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Booking, int64, error)
}
