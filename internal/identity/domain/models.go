package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleProvider:
		return true
	default:
		return false
	}
}

type User struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"not null" json:"name"`
	Email         string       `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash  string       `gorm:"not null" json:"-"`
	Role          Role         `gorm:"not null" json:"role"`
	Phone         string       `json:"phone,omitempty"`
	City          string       `json:"city,omitempty"`
	Bio           string       `json:"bio,omitempty"`
	IsActive      bool         `gorm:"not null;default:true" json:"is_active"`
	RatingAverage float64      `gorm:"not null;default:0" json:"rating_average"`
	RatingCount   int          `gorm:"not null;default:0" json:"rating_count"`
	TotalEarnings float64      `gorm:"not null;default:0" json:"total_earnings"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Actor is the authenticated caller resolved from a bearer token.
type Actor struct {
	ID   snowflake.ID
	Role Role
}
