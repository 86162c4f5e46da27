package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/catalog/domain"
	"github.com/smallbiznis/servicehub/pkg/db/option"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, listing *domain.Listing) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO listings (id, provider_id, title, slug, description, category, rate, duration, tags, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ID,
		listing.ProviderID,
		listing.Title,
		listing.Slug,
		listing.Description,
		listing.Category,
		listing.Rate,
		listing.Duration,
		listing.Tags,
		listing.IsActive,
		listing.CreatedAt,
		listing.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Listing, error) {
	var listing domain.Listing
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider_id, title, slug, description, category, rate, duration, tags, is_active, created_at, updated_at
		 FROM listings WHERE id = ?`,
		id,
	).Scan(&listing).Error
	if err != nil {
		return nil, err
	}
	if listing.ID == 0 {
		return nil, nil
	}
	return &listing, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, listing *domain.Listing) error {
	return db.WithContext(ctx).Exec(
		`UPDATE listings
		 SET title = ?, description = ?, category = ?, rate = ?, duration = ?, tags = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		listing.Title,
		listing.Description,
		listing.Category,
		listing.Rate,
		listing.Duration,
		listing.Tags,
		listing.IsActive,
		listing.UpdatedAt,
		listing.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Listing, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Listing{})
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if filter.ProviderID != 0 {
		stmt = stmt.Where("provider_id = ?", filter.ProviderID)
	}
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.MinRate != nil {
		stmt = stmt.Where("rate >= ?", *filter.MinRate)
	}
	if filter.MaxRate != nil {
		stmt = stmt.Where("rate <= ?", *filter.MaxRate)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []*domain.Listing
	err := option.Chain(stmt, option.ApplyOrder("created_at"), option.ApplyPagination(page)).
		Find(&listings).Error
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}
