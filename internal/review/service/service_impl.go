package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	bookingdomain "github.com/smallbiznis/servicehub/internal/booking/domain"
	"github.com/smallbiznis/servicehub/internal/clock"
	"github.com/smallbiznis/servicehub/internal/config"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	notificationdomain "github.com/smallbiznis/servicehub/internal/notification/domain"
	"github.com/smallbiznis/servicehub/internal/observability/metrics"
	"github.com/smallbiznis/servicehub/internal/review/domain"
	"github.com/smallbiznis/servicehub/pkg/db"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	BookingRepo bookingdomain.Repository
	UserRepo    identitydomain.Repository
	Clock       clock.Clock
	Notifier    notificationdomain.Notifier     `optional:"true"`
	Metrics     *metrics.Metrics                `optional:"true"`
	Marketplace *config.MarketplaceConfigHolder `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	bookingRepo bookingdomain.Repository
	userRepo    identitydomain.Repository
	clock       clock.Clock
	notifier    notificationdomain.Notifier
	metrics     *metrics.Metrics
	marketplace *config.MarketplaceConfigHolder
	validate    *validator.Validate
}

func New(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notificationdomain.NopNotifier{}
	}
	marketplace := p.Marketplace
	if marketplace == nil {
		marketplace = config.NewStaticMarketplaceConfigHolder(config.DefaultMarketplaceConfig())
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("review.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		bookingRepo: p.BookingRepo,
		userRepo:    p.UserRepo,
		clock:       p.Clock,
		notifier:    notifier,
		metrics:     p.Metrics,
		marketplace: marketplace,
		validate:    validator.New(),
	}
}

func (s *Service) Submit(ctx context.Context, customerID snowflake.ID, req domain.SubmitReviewRequest) (domain.Review, error) {
	req.Comment = strings.TrimSpace(req.Comment)
	if err := s.validate.Struct(req); err != nil {
		return domain.Review{}, validationError(err)
	}

	var review domain.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookingRepo.FindByIDForUpdate(ctx, tx, req.BookingID)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if booking == nil {
			return domain.ErrBookingNotFound
		}
		if booking.Status != bookingdomain.StatusCompleted {
			return domain.ErrInvalidState
		}
		if booking.CustomerID != customerID {
			return domain.ErrForbidden
		}
		if booking.IsReviewSubmitted {
			return domain.ErrConflict
		}
		existing, err := s.repo.FindByBookingID(ctx, tx, booking.ID)
		if err != nil {
			return fmt.Errorf("find review: %w", err)
		}
		if existing != nil {
			return domain.ErrConflict
		}

		now := s.clock.Now()
		review = domain.Review{
			ID:         s.genID.Generate(),
			BookingID:  booking.ID,
			CustomerID: customerID,
			ProviderID: booking.ProviderID,
			ServiceID:  booking.ServiceID,
			Rating:     req.Rating,
			Comment:    req.Comment,
			IsVerified: true,
			CreatedAt:  now,
		}
		if err := s.repo.Insert(ctx, tx, &review); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrConflict
			}
			return fmt.Errorf("insert review: %w", err)
		}

		marked, err := s.bookingRepo.MarkReviewSubmitted(ctx, tx, booking.ID, now)
		if err != nil {
			return fmt.Errorf("mark review submitted: %w", err)
		}
		if !marked {
			return domain.ErrConflict
		}

		return s.UpdateProviderRating(ctx, tx, booking.ProviderID, req.Rating)
	})
	if err != nil {
		return domain.Review{}, err
	}

	s.metrics.RecordReviewCreated(ctx, review.Rating)
	s.log.Info("review submitted",
		zap.String("review_id", review.ID.String()),
		zap.String("booking_id", review.BookingID.String()),
		zap.String("provider_id", review.ProviderID.String()),
		zap.Int("rating", review.Rating),
	)

	s.notifier.Notify(context.WithoutCancel(ctx), review.ProviderID, notificationdomain.Event{
		Type:    notificationdomain.EventReviewCreated,
		UserID:  review.ProviderID,
		Message: fmt.Sprintf("You received a new %d-star review", review.Rating),
		Data: map[string]any{
			"review_id":  review.ID.String(),
			"booking_id": review.BookingID.String(),
			"rating":     review.Rating,
		},
		CreatedAt: review.CreatedAt,
	})
	return review, nil
}

func (s *Service) UpdateProviderRating(ctx context.Context, tx *gorm.DB, providerID snowflake.ID, rating int) error {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return domain.ErrInvalidRating
	}
	if tx == nil {
		tx = s.db
	}
	if err := s.userRepo.FoldRating(ctx, tx, providerID, rating); err != nil {
		if errors.Is(err, identitydomain.ErrNotFound) {
			return domain.ErrProviderNotFound
		}
		return fmt.Errorf("fold rating: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListReviewRequest) (domain.ListReviewResponse, error) {
	cfg := s.marketplace.Get()
	page := req.Pagination.Normalize(cfg.DefaultPageSize, cfg.MaxPageSize)

	items, total, err := s.repo.List(ctx, s.db, req.ProviderID, page)
	if err != nil {
		return domain.ListReviewResponse{}, fmt.Errorf("list reviews: %w", err)
	}
	reviews := make([]domain.Review, 0, len(items))
	for _, item := range items {
		if item != nil {
			reviews = append(reviews, *item)
		}
	}
	return domain.ListReviewResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Reviews:  reviews,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Review, error) {
	review, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Review{}, fmt.Errorf("find review: %w", err)
	}
	if review == nil {
		return domain.Review{}, domain.ErrNotFound
	}
	return *review, nil
}

func (s *Service) ProviderStats(ctx context.Context, providerID snowflake.ID) (domain.ProviderStats, error) {
	rows, err := s.repo.CountByRating(ctx, s.db, providerID)
	if err != nil {
		return domain.ProviderStats{}, fmt.Errorf("count ratings: %w", err)
	}

	stats := domain.ProviderStats{RatingDistribution: make(map[int]int64, domain.MaxRating)}
	for r := domain.MinRating; r <= domain.MaxRating; r++ {
		stats.RatingDistribution[r] = 0
	}
	var sum int64
	for _, row := range rows {
		if row.Rating < domain.MinRating || row.Rating > domain.MaxRating {
			continue
		}
		stats.RatingDistribution[row.Rating] = row.Count
		stats.TotalReviews += row.Count
		sum += int64(row.Rating) * row.Count
	}
	if stats.TotalReviews > 0 {
		stats.AverageRating = math.Round(float64(sum)/float64(stats.TotalReviews)*10) / 10
	}
	return stats, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Comment" {
		return domain.ErrInvalidComment
	}
	return domain.ErrInvalidRating
}
