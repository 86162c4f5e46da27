package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/servicehub/internal/booking/domain"
	catalogdomain "github.com/smallbiznis/servicehub/internal/catalog/domain"
	"github.com/smallbiznis/servicehub/internal/clock"
	"github.com/smallbiznis/servicehub/internal/config"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	notificationdomain "github.com/smallbiznis/servicehub/internal/notification/domain"
	"github.com/smallbiznis/servicehub/internal/observability/metrics"
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
	ListingRepo catalogdomain.Repository
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
	listingRepo catalogdomain.Repository
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
		log:         p.Log.Named("booking.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		listingRepo: p.ListingRepo,
		userRepo:    p.UserRepo,
		clock:       p.Clock,
		notifier:    notifier,
		metrics:     p.Metrics,
		marketplace: marketplace,
		validate:    validator.New(),
	}
}

func (s *Service) Create(ctx context.Context, actor identitydomain.Actor, req domain.CreateBookingRequest) (domain.Booking, error) {
	req.CustomerNotes = strings.TrimSpace(req.CustomerNotes)
	if err := s.validate.Struct(req); err != nil {
		return domain.Booking{}, validationError(err)
	}
	now := s.clock.Now()
	if !req.ScheduledDate.After(now) {
		return domain.Booking{}, domain.ErrInvalidScheduledDate
	}
	if actor.Role != identitydomain.RoleCustomer {
		return domain.Booking{}, domain.ErrForbidden
	}

	listing, err := s.listingRepo.FindByID(ctx, s.db, req.ServiceID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("find listing: %w", err)
	}
	if listing == nil || !listing.IsActive {
		return domain.Booking{}, domain.ErrServiceNotFound
	}

	booking := domain.Booking{
		ID:              s.genID.Generate(),
		CustomerID:      actor.ID,
		ProviderID:      listing.ProviderID,
		ServiceID:       listing.ID,
		ScheduledDate:   req.ScheduledDate.UTC(),
		Duration:        req.Duration,
		TotalAmount:     domain.CalculateTotalAmount(listing.Rate, req.Duration),
		Status:          domain.StatusPending,
		CustomerNotes:   req.CustomerNotes,
		CustomerAddress: datatypes.NewJSONType(req.Address),
		PaymentStatus:   domain.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, &booking); err != nil {
		return domain.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	s.metrics.RecordBookingCreated(ctx)
	s.log.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("customer_id", booking.CustomerID.String()),
		zap.String("provider_id", booking.ProviderID.String()),
		zap.Float64("total_amount", booking.TotalAmount),
	)

	s.notify(ctx, booking.ProviderID, notificationdomain.Event{
		Type:    notificationdomain.EventBookingCreated,
		Message: "New booking request received!",
		Data:    bookingPayload(booking),
	})
	return booking, nil
}

func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (domain.Booking, error) {
	next, ok := domain.ParseStatus(req.Status)
	if !ok {
		return domain.Booking{}, domain.ErrInvalidStatus
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		if len(notes) > domain.MaxNotesLen {
			return domain.Booking{}, domain.ErrInvalidNotes
		}
		// Blank notes leave the stored provider notes untouched.
		if notes == "" {
			req.Notes = nil
		} else {
			req.Notes = &notes
		}
	}

	var (
		updated  domain.Booking
		previous domain.Status
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.repo.FindByIDForUpdate(ctx, tx, req.BookingID)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if booking == nil {
			return domain.ErrNotFound
		}
		if booking.ProviderID != req.ActorID {
			return domain.ErrForbidden
		}
		if !booking.Status.CanTransition(next) {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		update := domain.StatusUpdate{
			ID:            booking.ID,
			From:          booking.Status,
			To:            next,
			ProviderNotes: req.Notes,
			UpdatedAt:     now,
		}
		if next == domain.StatusCompleted {
			update.CompletedAt = &now
		}
		if err := s.apply(ctx, tx, update, req.ActorID, notesValue(req.Notes)); err != nil {
			return err
		}

		if next == domain.StatusCompleted {
			if err := s.userRepo.IncrementEarnings(ctx, tx, booking.ProviderID, booking.TotalAmount); err != nil {
				return fmt.Errorf("increment earnings: %w", err)
			}
			booking.CompletedAt = &now
		}

		previous = booking.Status
		booking.Status = next
		booking.UpdatedAt = now
		if req.Notes != nil {
			booking.ProviderNotes = *req.Notes
		}
		updated = *booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.metrics.RecordBookingTransition(ctx, string(previous), string(next))
	s.log.Info("booking status changed",
		zap.String("booking_id", updated.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
		zap.String("actor_id", req.ActorID.String()),
		zap.String("actor_role", string(req.ActorRole)),
	)

	s.notify(ctx, updated.CustomerID, notificationdomain.Event{
		Type:    notificationdomain.EventBookingUpdated,
		Message: fmt.Sprintf("Your booking status has been updated to %s", next),
		Data:    bookingPayload(updated),
	})
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, bookingID, customerID snowflake.ID) (domain.Booking, error) {
	var (
		updated  domain.Booking
		previous domain.Status
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.repo.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if booking == nil {
			return domain.ErrNotFound
		}
		if booking.CustomerID != customerID {
			return domain.ErrForbidden
		}
		if !booking.Status.CanCancel() {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		update := domain.StatusUpdate{
			ID:        booking.ID,
			From:      booking.Status,
			To:        domain.StatusCancelled,
			UpdatedAt: now,
		}
		if err := s.apply(ctx, tx, update, customerID, "Cancelled by customer"); err != nil {
			return err
		}

		previous = booking.Status
		booking.Status = domain.StatusCancelled
		booking.UpdatedAt = now
		updated = *booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.metrics.RecordBookingTransition(ctx, string(previous), string(domain.StatusCancelled))
	s.log.Info("booking cancelled",
		zap.String("booking_id", updated.ID.String()),
		zap.String("from", string(previous)),
		zap.String("customer_id", customerID.String()),
	)

	s.notify(ctx, updated.ProviderID, notificationdomain.Event{
		Type:    notificationdomain.EventBookingUpdated,
		Message: "A booking has been cancelled by the customer",
		Data:    bookingPayload(updated),
	})
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, bookingID, requesterID snowflake.ID) (domain.Booking, error) {
	booking, err := s.repo.FindByID(ctx, s.db, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return domain.Booking{}, domain.ErrNotFound
	}
	if booking.CustomerID != requesterID && booking.ProviderID != requesterID {
		return domain.Booking{}, domain.ErrForbidden
	}

	history, err := s.repo.ListHistory(ctx, s.db, booking.ID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("list history: %w", err)
	}
	booking.StatusHistory = history
	return *booking, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBookingRequest) (domain.ListBookingResponse, error) {
	var filter domain.ListFilter
	switch req.Role {
	case identitydomain.RoleCustomer:
		filter.CustomerID = req.UserID
	case identitydomain.RoleProvider:
		filter.ProviderID = req.UserID
	default:
		return domain.ListBookingResponse{}, domain.ErrInvalidRole
	}

	if raw := strings.TrimSpace(req.Status); raw != "" && !strings.EqualFold(raw, "all") {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return domain.ListBookingResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	cfg := s.marketplace.Get()
	page := req.Pagination.Normalize(cfg.DefaultPageSize, cfg.MaxPageSize)

	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListBookingResponse{}, fmt.Errorf("list bookings: %w", err)
	}

	bookings := make([]domain.Booking, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		bookings = append(bookings, *item)
	}
	return domain.ListBookingResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Bookings: bookings,
	}, nil
}

// apply performs the guarded status write and appends the history row.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, update domain.StatusUpdate, actorID snowflake.ID, notes string) error {
	changed, err := s.repo.UpdateStatus(ctx, tx, update)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if !changed {
		return domain.ErrConflict
	}

	change := domain.StatusChange{
		ID:        s.genID.Generate(),
		BookingID: update.ID,
		Status:    update.To,
		Notes:     notes,
		ChangedBy: actorID,
		ChangedAt: update.UpdatedAt,
	}
	if err := s.repo.InsertHistory(ctx, tx, &change); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, userID snowflake.ID, event notificationdomain.Event) {
	event.UserID = userID
	event.CreatedAt = s.clock.Now()
	s.notifier.Notify(context.WithoutCancel(ctx), userID, event)
}

func bookingPayload(b domain.Booking) map[string]any {
	return map[string]any{
		"booking_id":   b.ID.String(),
		"service_id":   b.ServiceID.String(),
		"status":       string(b.Status),
		"total_amount": b.TotalAmount,
	}
}

func notesValue(notes *string) string {
	if notes == nil {
		return ""
	}
	return *notes
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInvalidScheduledDate
	}
	switch verrs[0].Field() {
	case "ServiceID":
		return domain.ErrServiceNotFound
	case "ScheduledDate":
		return domain.ErrInvalidScheduledDate
	case "Duration":
		return domain.ErrInvalidDuration
	case "CustomerNotes":
		return domain.ErrInvalidNotes
	default:
		return domain.ErrInvalidAddress
	}
}
