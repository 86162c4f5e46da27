package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, review *Review) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Review, error)
	FindByBookingID(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*Review, error)
	// List returns reviews newest first. A zero providerID lists every review.
	List(ctx context.Context, db *gorm.DB, providerID snowflake.ID, page pagination.Pagination) ([]*Review, int64, error)
	CountByRating(ctx context.Context, db *gorm.DB, providerID snowflake.ID) ([]RatingCount, error)
}
