package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/review/domain"
	"github.com/smallbiznis/servicehub/pkg/db/option"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const reviewColumns = `id, booking_id, customer_id, provider_id, service_id, rating, comment, is_verified, helpful_votes, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, review *domain.Review) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reviews (`+reviewColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		review.ID,
		review.BookingID,
		review.CustomerID,
		review.ProviderID,
		review.ServiceID,
		review.Rating,
		review.Comment,
		review.IsVerified,
		review.HelpfulVotes,
		review.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Review, error) {
	return r.findOne(ctx, db, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id)
}

func (r *repo) FindByBookingID(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*domain.Review, error) {
	return r.findOne(ctx, db, `SELECT `+reviewColumns+` FROM reviews WHERE booking_id = ?`, bookingID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Review, error) {
	var review domain.Review
	if err := db.WithContext(ctx).Raw(query, arg).Scan(&review).Error; err != nil {
		return nil, err
	}
	if review.ID == 0 {
		return nil, nil
	}
	return &review, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, providerID snowflake.ID, page pagination.Pagination) ([]*domain.Review, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Review{})
	if providerID != 0 {
		stmt = stmt.Where("provider_id = ?", providerID)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []*domain.Review
	err := option.Chain(stmt, option.ApplyOrder("created_at"), option.ApplyPagination(page)).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *repo) CountByRating(ctx context.Context, db *gorm.DB, providerID snowflake.ID) ([]domain.RatingCount, error) {
	var rows []domain.RatingCount
	err := db.WithContext(ctx).Raw(
		`SELECT rating, COUNT(*) AS count
		 FROM reviews WHERE provider_id = ?
		 GROUP BY rating`,
		providerID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
