package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Address struct {
	Street      string       `json:"street" validate:"max=200"`
	City        string       `json:"city" validate:"max=100"`
	State       string       `json:"state" validate:"max=100"`
	ZipCode     string       `json:"zip_code" validate:"max=20"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type Booking struct {
	ID                snowflake.ID                `gorm:"primaryKey" json:"id"`
	CustomerID        snowflake.ID                `gorm:"not null;index" json:"customer_id"`
	ProviderID        snowflake.ID                `gorm:"not null;index" json:"provider_id"`
	ServiceID         snowflake.ID                `gorm:"not null" json:"service_id"`
	ScheduledDate     time.Time                   `gorm:"not null" json:"scheduled_date"`
	Duration          int                         `gorm:"not null" json:"duration"`
	TotalAmount       float64                     `gorm:"not null" json:"total_amount"`
	Status            Status                      `gorm:"not null" json:"status"`
	CustomerNotes     string                      `json:"customer_notes,omitempty"`
	ProviderNotes     string                      `json:"provider_notes,omitempty"`
	CustomerAddress   datatypes.JSONType[Address] `gorm:"type:jsonb;not null" json:"customer_address"`
	PaymentStatus     PaymentStatus               `gorm:"not null" json:"payment_status"`
	IsReviewSubmitted bool                        `gorm:"not null" json:"is_review_submitted"`
	CompletedAt       *time.Time                  `json:"completed_at,omitempty"`
	CreatedAt         time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time                   `gorm:"not null" json:"updated_at"`

	StatusHistory []StatusChange `gorm:"-" json:"status_history,omitempty"`
}

func (Booking) TableName() string { return "bookings" }

// StatusChange is one append-only entry of a booking's status history.
type StatusChange struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	BookingID snowflake.ID `gorm:"not null;index" json:"booking_id"`
	Status    Status       `gorm:"not null" json:"status"`
	Notes     string       `json:"notes,omitempty"`
	ChangedBy snowflake.ID `gorm:"not null" json:"changed_by"`
	ChangedAt time.Time    `gorm:"not null" json:"changed_at"`
}

func (StatusChange) TableName() string { return "booking_status_history" }

const (
	MinDuration = 15
	MaxDuration = 480
	MaxNotesLen = 500
)

// CalculateTotalAmount prices a booking as hourly rate times duration,
// rounded to cents.
func CalculateTotalAmount(rate float64, durationMinutes int) float64 {
	return math.Round(rate*float64(durationMinutes)/60*100) / 100
}
