package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// AggregateForCustomer and AggregateForProvider compute all counters in a
	// single pass over the user's bookings.
	AggregateForCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (BookingStats, error)
	AggregateForProvider(ctx context.Context, db *gorm.DB, providerID snowflake.ID) (BookingStats, error)
}
