package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Category string

const (
	CategoryCleaning   Category = "cleaning"
	CategoryPlumbing   Category = "plumbing"
	CategoryElectrical Category = "electrical"
	CategoryGardening  Category = "gardening"
	CategoryPainting   Category = "painting"
	CategoryCarpentry  Category = "carpentry"
	CategoryTutoring   Category = "tutoring"
	CategoryOther      Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryCleaning, CategoryPlumbing, CategoryElectrical, CategoryGardening,
		CategoryPainting, CategoryCarpentry, CategoryTutoring, CategoryOther:
		return true
	default:
		return false
	}
}

const DefaultDuration = 60

// Listing is a service offered by a provider at an hourly rate.
type Listing struct {
	ID          snowflake.ID                `gorm:"primaryKey" json:"id"`
	ProviderID  snowflake.ID                `gorm:"not null;index" json:"provider_id"`
	Title       string                      `gorm:"not null" json:"title"`
	Slug        string                      `gorm:"not null;uniqueIndex" json:"slug"`
	Description string                      `gorm:"not null" json:"description"`
	Category    Category                    `gorm:"not null" json:"category"`
	Rate        float64                     `gorm:"not null" json:"rate"`
	Duration    int                         `gorm:"not null;default:60" json:"duration"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`
	IsActive    bool                        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Listing) TableName() string { return "listings" }
