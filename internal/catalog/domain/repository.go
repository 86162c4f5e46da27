package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Search     string
	Category   Category
	MinRate    *float64
	MaxRate    *float64
	ProviderID snowflake.ID
	ActiveOnly bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, listing *Listing) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Listing, error)
	Update(ctx context.Context, db *gorm.DB, listing *Listing) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Listing, int64, error)
}
