package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/servicehub/internal/catalog/domain"
)

type BookingStats struct {
	TotalBookings     int64   `json:"total_bookings"`
	CompletedBookings int64   `json:"completed_bookings"`
	PendingBookings   int64   `json:"pending_bookings"`
	TotalEarnings     float64 `json:"total_earnings"`
}

// ProviderProfile is the public view of a provider.
type ProviderProfile struct {
	ID            snowflake.ID            `json:"id"`
	Name          string                  `json:"name"`
	City          string                  `json:"city,omitempty"`
	Bio           string                  `json:"bio,omitempty"`
	RatingAverage float64                 `json:"rating_average"`
	RatingCount   int                     `json:"rating_count"`
	MemberSince   time.Time               `json:"member_since"`
	Services      []catalogdomain.Listing `json:"services"`
	Stats         BookingStats            `json:"stats"`
}
