package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingdomain "github.com/smallbiznis/servicehub/internal/booking/domain"
	catalogdomain "github.com/smallbiznis/servicehub/internal/catalog/domain"
	"github.com/smallbiznis/servicehub/internal/clock"
	"github.com/smallbiznis/servicehub/internal/config"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	reviewdomain "github.com/smallbiznis/servicehub/internal/review/domain"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DemoCustomerEmail = "customer@example.com"
	DemoProviderEmail = "provider@example.com"
	DemoPassword      = "password123"
)

var Module = fx.Module("seed",
	fx.Invoke(register),
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Clock    clock.Clock
	Identity identitydomain.Service
	Catalog  catalogdomain.Service
	Bookings bookingdomain.Service
	Reviews  reviewdomain.Service
}

// Result reports what EnsureDemoData created on this run.
type Result struct {
	CustomerID      string
	ProviderID      string
	ListingsCreated int
	BookingsCreated int
}

func register(lc fx.Lifecycle, p Params) {
	if !p.Config.SeedDemoData || p.Config.IsProduction() {
		return
	}
	log := p.Log.Named("seed")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			res, err := EnsureDemoData(ctx, p)
			if err != nil {
				return fmt.Errorf("seed demo data: %w", err)
			}
			log.Info("demo data ready",
				zap.String("customer_id", res.CustomerID),
				zap.String("provider_id", res.ProviderID),
				zap.Int("listings_created", res.ListingsCreated),
				zap.Int("bookings_created", res.BookingsCreated),
			)
			return nil
		},
	})
}

// EnsureDemoData creates a demo customer and provider, three cleaning
// listings, one upcoming booking and one reviewed, completed booking. It goes
// through the domain services, so every row obeys the same rules as API
// traffic. Running it again only creates what is missing.
func EnsureDemoData(ctx context.Context, p Params) (Result, error) {
	customer, err := ensureUser(ctx, p.Identity, identitydomain.RegisterRequest{
		Name:     "John Doe",
		Email:    DemoCustomerEmail,
		Password: DemoPassword,
		Role:     identitydomain.RoleCustomer,
		Phone:    "+1234567890",
		City:     "New York",
	})
	if err != nil {
		return Result{}, err
	}
	provider, err := ensureUser(ctx, p.Identity, identitydomain.RegisterRequest{
		Name:     "Jane Smith",
		Email:    DemoProviderEmail,
		Password: DemoPassword,
		Role:     identitydomain.RoleProvider,
		Phone:    "+1987654321",
		City:     "New York",
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{CustomerID: customer.ID.String(), ProviderID: provider.ID.String()}

	existing, err := p.Catalog.ListByProvider(ctx, provider.ID, pagination.Pagination{Page: 1, Limit: 1})
	if err != nil {
		return res, fmt.Errorf("list demo listings: %w", err)
	}
	if existing.Total > 0 {
		return res, nil
	}

	bio := "Professional cleaning service with 5+ years of experience."
	if _, err := p.Identity.UpdateProfile(ctx, provider.ID, identitydomain.UpdateProfileRequest{Bio: &bio}); err != nil {
		return res, fmt.Errorf("update demo provider: %w", err)
	}

	var listings []catalogdomain.Listing
	for _, req := range demoListings() {
		listing, err := p.Catalog.Create(ctx, provider.ID, req)
		if err != nil {
			return res, fmt.Errorf("create listing %q: %w", req.Title, err)
		}
		listings = append(listings, listing)
	}
	res.ListingsCreated = len(listings)

	customerActor := identitydomain.Actor{ID: customer.ID, Role: identitydomain.RoleCustomer}
	address := bookingdomain.Address{Street: "123 Main St", City: "New York", State: "NY", ZipCode: "10001"}
	now := p.Clock.Now()

	if _, err := p.Bookings.Create(ctx, customerActor, bookingdomain.CreateBookingRequest{
		ServiceID:     listings[0].ID,
		ScheduledDate: now.Add(7 * 24 * time.Hour),
		Duration:      120,
		CustomerNotes: "Please focus on the kitchen and bathrooms.",
		Address:       address,
	}); err != nil {
		return res, fmt.Errorf("create upcoming booking: %w", err)
	}
	res.BookingsCreated++

	done, err := p.Bookings.Create(ctx, customerActor, bookingdomain.CreateBookingRequest{
		ServiceID:     listings[0].ID,
		ScheduledDate: now.Add(time.Hour),
		Duration:      120,
		CustomerNotes: "Previous cleaning was excellent!",
		Address:       address,
	})
	if err != nil {
		return res, fmt.Errorf("create completed booking: %w", err)
	}
	res.BookingsCreated++

	for _, status := range []bookingdomain.Status{bookingdomain.StatusAccepted, bookingdomain.StatusCompleted} {
		if _, err := p.Bookings.Transition(ctx, bookingdomain.TransitionRequest{
			BookingID: done.ID,
			ActorID:   provider.ID,
			ActorRole: identitydomain.RoleProvider,
			Status:    string(status),
		}); err != nil {
			return res, fmt.Errorf("move demo booking to %s: %w", status, err)
		}
	}

	if _, err := p.Reviews.Submit(ctx, customer.ID, reviewdomain.SubmitReviewRequest{
		BookingID: done.ID,
		Rating:    5,
		Comment:   "Excellent service! Very thorough and professional.",
	}); err != nil {
		return res, fmt.Errorf("submit demo review: %w", err)
	}
	return res, nil
}

func ensureUser(ctx context.Context, identity identitydomain.Service, req identitydomain.RegisterRequest) (identitydomain.User, error) {
	resp, err := identity.Register(ctx, req)
	if err == nil {
		return resp.User, nil
	}
	if !errors.Is(err, identitydomain.ErrEmailTaken) {
		return identitydomain.User{}, fmt.Errorf("register %s: %w", req.Email, err)
	}
	resp, err = identity.Login(ctx, identitydomain.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		return identitydomain.User{}, fmt.Errorf("login %s: %w", req.Email, err)
	}
	return resp.User, nil
}

func demoListings() []catalogdomain.CreateListingRequest {
	return []catalogdomain.CreateListingRequest{
		{
			Title:       "House Deep Cleaning",
			Description: "Complete house cleaning including all rooms, kitchen and bathrooms. Uses eco-friendly products.",
			Category:    catalogdomain.CategoryCleaning,
			Rate:        25,
			Duration:    120,
			Tags:        []string{"deep-cleaning", "eco-friendly", "residential"},
		},
		{
			Title:       "Office Cleaning",
			Description: "Office cleaning for small to medium businesses. Flexible scheduling available.",
			Category:    catalogdomain.CategoryCleaning,
			Rate:        30,
			Duration:    90,
			Tags:        []string{"office", "commercial", "flexible"},
		},
		{
			Title:       "Move-in/Move-out Cleaning",
			Description: "Thorough cleaning for moving transitions, ready for the next tenant.",
			Category:    catalogdomain.CategoryCleaning,
			Rate:        35,
			Duration:    180,
			Tags:        []string{"move-in", "move-out"},
		},
	}
}
