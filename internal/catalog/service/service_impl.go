package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/servicehub/internal/catalog/domain"
	"github.com/smallbiznis/servicehub/internal/clock"
	"github.com/smallbiznis/servicehub/internal/config"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	UserRepo    identitydomain.Repository
	Clock       clock.Clock
	Marketplace *config.MarketplaceConfigHolder `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	userRepo    identitydomain.Repository
	clock       clock.Clock
	marketplace *config.MarketplaceConfigHolder
	validate    *validator.Validate
}

func New(p Params) domain.Service {
	marketplace := p.Marketplace
	if marketplace == nil {
		marketplace = config.NewStaticMarketplaceConfigHolder(config.DefaultMarketplaceConfig())
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("catalog.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		userRepo:    p.UserRepo,
		clock:       p.Clock,
		marketplace: marketplace,
		validate:    validator.New(),
	}
}

func (s *Service) Create(ctx context.Context, providerID snowflake.ID, req domain.CreateListingRequest) (domain.Listing, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = domain.Category(strings.ToLower(strings.TrimSpace(string(req.Category))))
	if err := s.validate.Struct(req); err != nil {
		return domain.Listing{}, validationError(err)
	}
	if !req.Category.Valid() {
		return domain.Listing{}, domain.ErrInvalidCategory
	}

	provider, err := s.userRepo.FindByID(ctx, s.db, providerID)
	if err != nil {
		return domain.Listing{}, err
	}
	if provider == nil {
		return domain.Listing{}, domain.ErrInvalidProvider
	}
	if provider.Role != identitydomain.RoleProvider {
		return domain.Listing{}, domain.ErrForbidden
	}

	duration := req.Duration
	if duration == 0 {
		duration = domain.DefaultDuration
	}

	now := s.clock.Now()
	id := s.genID.Generate()
	listing := domain.Listing{
		ID:          id,
		ProviderID:  providerID,
		Title:       req.Title,
		Slug:        slug.Make(req.Title) + "-" + id.String(),
		Description: req.Description,
		Category:    req.Category,
		Rate:        req.Rate,
		Duration:    duration,
		Tags:        normalizeTags(req.Tags),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &listing); err != nil {
		return domain.Listing{}, err
	}

	s.log.Info("listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("provider_id", providerID.String()),
		zap.String("category", string(listing.Category)),
	)
	return listing, nil
}

func (s *Service) Update(ctx context.Context, providerID, id snowflake.ID, req domain.UpdateListingRequest) (domain.Listing, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.Listing{}, validationError(err)
	}
	if req.Category != nil && !req.Category.Valid() {
		return domain.Listing{}, domain.ErrInvalidCategory
	}

	listing, err := s.ownedListing(ctx, providerID, id)
	if err != nil {
		return domain.Listing{}, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if len(title) < 3 {
			return domain.Listing{}, domain.ErrInvalidTitle
		}
		listing.Title = title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if len(description) < 10 {
			return domain.Listing{}, domain.ErrInvalidDescription
		}
		listing.Description = description
	}
	if req.Category != nil {
		listing.Category = *req.Category
	}
	if req.Rate != nil {
		listing.Rate = *req.Rate
	}
	if req.Duration != nil {
		listing.Duration = *req.Duration
	}
	if req.Tags != nil {
		listing.Tags = normalizeTags(req.Tags)
	}
	if req.IsActive != nil {
		listing.IsActive = *req.IsActive
	}
	listing.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, listing); err != nil {
		return domain.Listing{}, err
	}
	return *listing, nil
}

func (s *Service) Archive(ctx context.Context, providerID, id snowflake.ID) error {
	listing, err := s.ownedListing(ctx, providerID, id)
	if err != nil {
		return err
	}
	if !listing.IsActive {
		return nil
	}
	listing.IsActive = false
	listing.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, listing); err != nil {
		return err
	}
	s.log.Info("listing archived", zap.String("listing_id", id.String()))
	return nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Listing, error) {
	listing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if listing == nil || !listing.IsActive {
		return domain.Listing{}, domain.ErrNotFound
	}
	return *listing, nil
}

func (s *Service) List(ctx context.Context, req domain.ListListingRequest) (domain.ListListingResponse, error) {
	filter := domain.ListFilter{
		Search:     req.Search,
		MinRate:    req.MinRate,
		MaxRate:    req.MaxRate,
		ActiveOnly: true,
	}
	if category := strings.ToLower(strings.TrimSpace(req.Category)); category != "" && category != "all" {
		filter.Category = domain.Category(category)
		if !filter.Category.Valid() {
			return domain.ListListingResponse{}, domain.ErrInvalidCategory
		}
	}
	if filter.MinRate != nil && filter.MaxRate != nil && *filter.MinRate > *filter.MaxRate {
		return domain.ListListingResponse{}, domain.ErrInvalidRate
	}
	return s.list(ctx, filter, req.Pagination)
}

func (s *Service) ListByProvider(ctx context.Context, providerID snowflake.ID, page pagination.Pagination) (domain.ListListingResponse, error) {
	return s.list(ctx, domain.ListFilter{ProviderID: providerID}, page)
}

func (s *Service) list(ctx context.Context, filter domain.ListFilter, page pagination.Pagination) (domain.ListListingResponse, error) {
	cfg := s.marketplace.Get()
	page = page.Normalize(cfg.DefaultPageSize, cfg.MaxPageSize)

	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListListingResponse{}, err
	}

	listings := make([]domain.Listing, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		listings = append(listings, *item)
	}
	return domain.ListListingResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Listings: listings,
	}, nil
}

func (s *Service) ownedListing(ctx context.Context, providerID, id snowflake.ID) (*domain.Listing, error) {
	listing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, domain.ErrNotFound
	}
	if listing.ProviderID != providerID {
		return nil, domain.ErrForbidden
	}
	return listing, nil
}

func normalizeTags(tags []string) datatypes.JSONSlice[string] {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return datatypes.NewJSONSlice(out)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInvalidTitle
	}
	switch verrs[0].Field() {
	case "Title":
		return domain.ErrInvalidTitle
	case "Description":
		return domain.ErrInvalidDescription
	case "Category":
		return domain.ErrInvalidCategory
	case "Rate":
		return domain.ErrInvalidRate
	case "Duration":
		return domain.ErrInvalidDuration
	default:
		return domain.ErrInvalidTags
	}
}
