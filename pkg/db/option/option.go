package option

import (
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type QueryOptionFunc func(*gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

// ApplyPagination applies LIMIT/OFFSET for the page window.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if p.Limit <= 0 {
			return db
		}
		return db.Limit(p.Limit).Offset(p.Offset())
	})
}

// ApplyOrder orders newest first with id as the tie breaker.
func ApplyOrder(column string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if column == "" {
			column = "created_at"
		}
		return db.Order(column + " DESC").Order("id DESC")
	})
}

// Chain applies opts in order.
func Chain(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			db = opt.Apply(db)
		}
	}
	return db
}
