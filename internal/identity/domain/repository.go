package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	UpdateProfile(ctx context.Context, db *gorm.DB, user *User) error

	// IncrementEarnings adds amount to the provider's total_earnings in a
	// single statement.
	IncrementEarnings(ctx context.Context, db *gorm.DB, providerID snowflake.ID, amount float64) error
	// FoldRating folds rating into the running mean in a single statement.
	FoldRating(ctx context.Context, db *gorm.DB, providerID snowflake.ID, rating int) error
}
