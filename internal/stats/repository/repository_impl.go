package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/stats/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type aggregateRow struct {
	TotalBookings     int64
	CompletedBookings int64
	PendingBookings   int64
	CompletedAmount   float64
}

const aggregateSelect = `SELECT
	COUNT(*) AS total_bookings,
	COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed_bookings,
	COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending_bookings,
	COALESCE(SUM(CASE WHEN status = 'completed' THEN total_amount ELSE 0 END), 0) AS completed_amount
	FROM bookings`

func (r *repo) AggregateForCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (domain.BookingStats, error) {
	row, err := r.aggregate(ctx, db, "customer_id", customerID)
	if err != nil {
		return domain.BookingStats{}, err
	}
	return domain.BookingStats{
		TotalBookings:     row.TotalBookings,
		CompletedBookings: row.CompletedBookings,
		PendingBookings:   row.PendingBookings,
	}, nil
}

func (r *repo) AggregateForProvider(ctx context.Context, db *gorm.DB, providerID snowflake.ID) (domain.BookingStats, error) {
	row, err := r.aggregate(ctx, db, "provider_id", providerID)
	if err != nil {
		return domain.BookingStats{}, err
	}
	return domain.BookingStats{
		TotalBookings:     row.TotalBookings,
		CompletedBookings: row.CompletedBookings,
		PendingBookings:   row.PendingBookings,
		TotalEarnings:     row.CompletedAmount,
	}, nil
}

func (r *repo) aggregate(ctx context.Context, db *gorm.DB, column string, id snowflake.ID) (aggregateRow, error) {
	var row aggregateRow
	err := db.WithContext(ctx).Raw(aggregateSelect+` WHERE `+column+` = ?`, id).Scan(&row).Error
	return row, err
}
