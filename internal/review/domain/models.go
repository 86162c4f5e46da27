package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	MinRating     = 1
	MaxRating     = 5
	MaxCommentLen = 500
)

type Review struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	BookingID    snowflake.ID `gorm:"not null;uniqueIndex" json:"booking_id"`
	CustomerID   snowflake.ID `gorm:"not null" json:"customer_id"`
	ProviderID   snowflake.ID `gorm:"not null;index" json:"provider_id"`
	ServiceID    snowflake.ID `gorm:"not null" json:"service_id"`
	Rating       int          `gorm:"not null" json:"rating"`
	Comment      string       `json:"comment,omitempty"`
	IsVerified   bool         `gorm:"not null" json:"is_verified"`
	HelpfulVotes int          `gorm:"not null" json:"helpful_votes"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
}

func (Review) TableName() string { return "reviews" }

// ProviderStats summarises the reviews a provider has received.
type ProviderStats struct {
	TotalReviews       int64         `json:"total_reviews"`
	AverageRating      float64       `json:"average_rating"`
	RatingDistribution map[int]int64 `json:"rating_distribution"`
}

// RatingCount is one row of a GROUP BY rating aggregate.
type RatingCount struct {
	Rating int
	Count  int64
}
