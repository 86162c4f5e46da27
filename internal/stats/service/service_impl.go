package service

import (
	"context"
	"fmt"
	"math"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/servicehub/internal/catalog/domain"
	"github.com/smallbiznis/servicehub/internal/config"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	"github.com/smallbiznis/servicehub/internal/stats/domain"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Repo        domain.Repository
	UserRepo    identitydomain.Repository
	ListingRepo catalogdomain.Repository
	Marketplace *config.MarketplaceConfigHolder `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	userRepo    identitydomain.Repository
	listingRepo catalogdomain.Repository
	marketplace *config.MarketplaceConfigHolder
}

func New(p Params) domain.Service {
	marketplace := p.Marketplace
	if marketplace == nil {
		marketplace = config.NewStaticMarketplaceConfigHolder(config.DefaultMarketplaceConfig())
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("stats.service"),
		repo:        p.Repo,
		userRepo:    p.UserRepo,
		listingRepo: p.ListingRepo,
		marketplace: marketplace,
	}
}

func (s *Service) BookingStats(ctx context.Context, userID snowflake.ID, role identitydomain.Role) (domain.BookingStats, error) {
	var (
		stats domain.BookingStats
		err   error
	)
	switch role {
	case identitydomain.RoleCustomer:
		stats, err = s.repo.AggregateForCustomer(ctx, s.db, userID)
	case identitydomain.RoleProvider:
		stats, err = s.repo.AggregateForProvider(ctx, s.db, userID)
	default:
		return domain.BookingStats{}, domain.ErrInvalidRole
	}
	if err != nil {
		return domain.BookingStats{}, fmt.Errorf("aggregate bookings: %w", err)
	}
	stats.TotalEarnings = math.Round(stats.TotalEarnings*100) / 100
	return stats, nil
}

func (s *Service) ProviderProfile(ctx context.Context, providerID snowflake.ID) (domain.ProviderProfile, error) {
	user, err := s.userRepo.FindByID(ctx, s.db, providerID)
	if err != nil {
		return domain.ProviderProfile{}, fmt.Errorf("find provider: %w", err)
	}
	if user == nil || user.Role != identitydomain.RoleProvider || !user.IsActive {
		return domain.ProviderProfile{}, domain.ErrNotFound
	}

	page := pagination.Pagination{Page: 1, Limit: s.marketplace.Get().MaxPageSize}
	listings, _, err := s.listingRepo.List(ctx, s.db, catalogdomain.ListFilter{
		ProviderID: providerID,
		ActiveOnly: true,
	}, page)
	if err != nil {
		return domain.ProviderProfile{}, fmt.Errorf("list services: %w", err)
	}

	stats, err := s.BookingStats(ctx, providerID, identitydomain.RoleProvider)
	if err != nil {
		return domain.ProviderProfile{}, err
	}

	services := make([]catalogdomain.Listing, 0, len(listings))
	for _, l := range listings {
		if l != nil {
			services = append(services, *l)
		}
	}
	return domain.ProviderProfile{
		ID:            user.ID,
		Name:          user.Name,
		City:          user.City,
		Bio:           user.Bio,
		RatingAverage: math.Round(user.RatingAverage*10) / 10,
		RatingCount:   user.RatingCount,
		MemberSince:   user.CreatedAt,
		Services:      services,
		Stats:         stats,
	}, nil
}
