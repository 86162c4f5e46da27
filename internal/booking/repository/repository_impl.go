package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/booking/domain"
	"github.com/smallbiznis/servicehub/pkg/db/option"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const bookingColumns = `id, customer_id, provider_id, service_id, scheduled_date, duration, total_amount,
	status, customer_notes, provider_notes, customer_address, payment_status, is_review_submitted,
	completed_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, booking *domain.Booking) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bookings (`+bookingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.CustomerID,
		booking.ProviderID,
		booking.ServiceID,
		booking.ScheduledDate,
		booking.Duration,
		booking.TotalAmount,
		booking.Status,
		booking.CustomerNotes,
		booking.ProviderNotes,
		booking.CustomerAddress,
		booking.PaymentStatus,
		booking.IsReviewSubmitted,
		booking.CompletedAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`,
		id,
	).Scan(&booking).Error
	if err != nil {
		return nil, err
	}
	if booking.ID == 0 {
		return nil, nil
	}
	return &booking, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, update domain.StatusUpdate) (bool, error) {
	values := map[string]any{
		"status":     update.To,
		"updated_at": update.UpdatedAt,
	}
	if update.ProviderNotes != nil {
		values["provider_notes"] = *update.ProviderNotes
	}
	if update.CompletedAt != nil {
		values["completed_at"] = *update.CompletedAt
	}

	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ? AND status = ?", update.ID, update.From).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkReviewSubmitted(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE bookings SET is_review_submitted = ?, updated_at = ?
		 WHERE id = ? AND is_review_submitted = ?`,
		true, at, id, false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, change *domain.StatusChange) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO booking_status_history (id, booking_id, status, notes, changed_by, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		change.ID,
		change.BookingID,
		change.Status,
		change.Notes,
		change.ChangedBy,
		change.ChangedAt,
	).Error
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) ([]domain.StatusChange, error) {
	var history []domain.StatusChange
	err := db.WithContext(ctx).Raw(
		`SELECT id, booking_id, status, notes, changed_by, changed_at
		 FROM booking_status_history WHERE booking_id = ?
		 ORDER BY changed_at ASC, id ASC`,
		bookingID,
	).Scan(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Booking, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Booking{})
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.ProviderID != 0 {
		stmt = stmt.Where("provider_id = ?", filter.ProviderID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []*domain.Booking
	err := option.Chain(stmt, option.ApplyOrder("created_at"), option.ApplyPagination(page)).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}
