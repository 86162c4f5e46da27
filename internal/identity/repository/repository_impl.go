package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/identity/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userColumns = `id, name, email, password_hash, role, phone, city, bio, is_active,
	rating_average, rating_count, total_earnings, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Phone,
		user.City,
		user.Bio,
		user.IsActive,
		user.RatingAverage,
		user.RatingCount,
		user.TotalEarnings,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		email,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateProfile(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET name = ?, phone = ?, city = ?, bio = ?, updated_at = ? WHERE id = ?`,
		user.Name,
		user.Phone,
		user.City,
		user.Bio,
		user.UpdatedAt,
		user.ID,
	).Error
}

func (r *repo) IncrementEarnings(ctx context.Context, db *gorm.DB, providerID snowflake.ID, amount float64) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET total_earnings = total_earnings + ? WHERE id = ? AND role = ?`,
		amount,
		providerID,
		domain.RoleProvider,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) FoldRating(ctx context.Context, db *gorm.DB, providerID snowflake.ID, rating int) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET rating_average = (rating_average * rating_count + ?) / (rating_count + 1),
		     rating_count = rating_count + 1
		 WHERE id = ? AND role = ?`,
		float64(rating),
		providerID,
		domain.RoleProvider,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
