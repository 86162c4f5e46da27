package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/servicehub/internal/booking/domain"
	bookingrepo "github.com/smallbiznis/servicehub/internal/booking/repository"
	bookingservice "github.com/smallbiznis/servicehub/internal/booking/service"
	catalogrepo "github.com/smallbiznis/servicehub/internal/catalog/repository"
	"github.com/smallbiznis/servicehub/internal/clock"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	identityrepo "github.com/smallbiznis/servicehub/internal/identity/repository"
	"github.com/smallbiznis/servicehub/internal/review/domain"
	"github.com/smallbiznis/servicehub/internal/review/repository"
	"github.com/smallbiznis/servicehub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	svc      domain.Service
	customer snowflake.ID
	provider snowflake.ID
	listing  snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	f := &fixture{
		db:    conn,
		node:  node,
		clock: clock.NewFakeClock(time.Now().UTC()),
	}
	f.customer = testutil.SeedUser(t, conn, node, "customer")
	f.provider = testutil.SeedUser(t, conn, node, "provider")
	f.listing = testutil.SeedListing(t, conn, node, f.provider, 25)
	f.svc = New(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
		BookingRepo: bookingrepo.Provide(),
		UserRepo:    identityrepo.Provide(),
		Clock:       f.clock,
	})
	return f
}

func (f *fixture) completedBooking(t *testing.T) snowflake.ID {
	t.Helper()
	return testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "completed", 50)
}

type providerRating struct {
	Average float64
	Count   int64
}

func loadRating(t *testing.T, db *gorm.DB, id snowflake.ID) providerRating {
	t.Helper()
	var r providerRating
	err := db.Raw(`SELECT rating_average AS average, rating_count AS count FROM users WHERE id = ?`, id).Scan(&r).Error
	require.NoError(t, err)
	return r
}

func TestSubmitReview(t *testing.T) {
	f := newFixture(t)
	bookingID := f.completedBooking(t)

	review, err := f.svc.Submit(context.Background(), f.customer, domain.SubmitReviewRequest{
		BookingID: bookingID,
		Rating:    4,
		Comment:   "  Tidy and on time  ",
	})
	require.NoError(t, err)
	assert.Equal(t, f.provider, review.ProviderID)
	assert.Equal(t, f.listing, review.ServiceID)
	assert.Equal(t, "Tidy and on time", review.Comment)
	assert.True(t, review.IsVerified)

	var submitted bool
	require.NoError(t, f.db.Raw(`SELECT is_review_submitted FROM bookings WHERE id = ?`, bookingID).Scan(&submitted).Error)
	assert.True(t, submitted)

	rating := loadRating(t, f.db, f.provider)
	assert.Equal(t, int64(1), rating.Count)
	assert.InDelta(t, 4.0, rating.Average, 1e-9)

	loaded, err := f.svc.GetByID(context.Background(), review.ID)
	require.NoError(t, err)
	assert.Equal(t, review.BookingID, loaded.BookingID)
}

func TestSubmitReviewValidationComesFirst(t *testing.T) {
	f := newFixture(t)
	missing := f.node.Generate()

	cases := []struct {
		name string
		req  domain.SubmitReviewRequest
		want error
	}{
		{"zero", domain.SubmitReviewRequest{BookingID: missing, Rating: 0}, domain.ErrInvalidRating},
		{"six", domain.SubmitReviewRequest{BookingID: missing, Rating: 6}, domain.ErrInvalidRating},
		{"comment", domain.SubmitReviewRequest{BookingID: missing, Rating: 3, Comment: strings.Repeat("c", 501)}, domain.ErrInvalidComment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), f.customer, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.svc.Submit(context.Background(), f.customer, domain.SubmitReviewRequest{BookingID: missing, Rating: 3})
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestSubmitReviewStateAndOwnership(t *testing.T) {
	f := newFixture(t)
	stranger := testutil.SeedUser(t, f.db, f.node, "customer")

	for _, status := range []string{"pending", "accepted", "rejected", "in-progress", "cancelled"} {
		id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, status, 10)
		_, err := f.svc.Submit(context.Background(), f.customer, domain.SubmitReviewRequest{BookingID: id, Rating: 5})
		assert.ErrorIs(t, err, domain.ErrInvalidState, status)
	}

	// state is checked before ownership
	pending := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "pending", 10)
	_, err := f.svc.Submit(context.Background(), stranger, domain.SubmitReviewRequest{BookingID: pending, Rating: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	completed := f.completedBooking(t)
	_, err = f.svc.Submit(context.Background(), stranger, domain.SubmitReviewRequest{BookingID: completed, Rating: 5})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.Equal(t, int64(0), loadRating(t, f.db, f.provider).Count)
}

func TestSubmitReviewTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	bookingID := f.completedBooking(t)

	_, err := f.svc.Submit(context.Background(), f.customer, domain.SubmitReviewRequest{BookingID: bookingID, Rating: 5})
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), f.customer, domain.SubmitReviewRequest{BookingID: bookingID, Rating: 1})
	assert.ErrorIs(t, err, domain.ErrConflict)

	rating := loadRating(t, f.db, f.provider)
	assert.Equal(t, int64(1), rating.Count)
	assert.InDelta(t, 5.0, rating.Average, 1e-9)
}

func TestConcurrentReviewsOfOneBookingHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	bookingID := f.completedBooking(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), f.customer, domain.SubmitReviewRequest{BookingID: bookingID, Rating: rating})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, domain.ErrConflict):
				conflicts++
			}
		}(i + 1)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 4, conflicts)
	assert.Equal(t, int64(1), loadRating(t, f.db, f.provider).Count)
}

// reviewedElsewhereRepo reports the booking as already flagged by another
// writer when the review is marked.
type reviewedElsewhereRepo struct {
	bookingdomain.Repository
}

func (reviewedElsewhereRepo) MarkReviewSubmitted(context.Context, *gorm.DB, snowflake.ID, time.Time) (bool, error) {
	return false, nil
}

func TestSubmitReviewLosingBookingFlagRollsBack(t *testing.T) {
	f := newFixture(t)
	svc := New(Params{
		DB:          f.db,
		Log:         zap.NewNop(),
		GenID:       f.node,
		Repo:        repository.Provide(),
		BookingRepo: reviewedElsewhereRepo{Repository: bookingrepo.Provide()},
		UserRepo:    identityrepo.Provide(),
		Clock:       f.clock,
	})
	bookingID := f.completedBooking(t)

	_, err := svc.Submit(context.Background(), f.customer, domain.SubmitReviewRequest{BookingID: bookingID, Rating: 4})
	assert.ErrorIs(t, err, domain.ErrConflict)

	var reviews int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM reviews WHERE booking_id = ?`, bookingID).Scan(&reviews).Error)
	assert.Zero(t, reviews)
	rating := loadRating(t, f.db, f.provider)
	assert.Zero(t, rating.Count)
	assert.Zero(t, rating.Average)
}

func TestConcurrentReviewsOfOneProviderAllFold(t *testing.T) {
	f := newFixture(t)
	ratings := []int{5, 4, 3, 5, 1, 2, 5, 4}
	bookings := make([]snowflake.ID, len(ratings))
	for i := range bookings {
		bookings[i] = f.completedBooking(t)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ratings))
	for i := range ratings {
		wg.Add(1)
		go func(bookingID snowflake.ID, rating int) {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), f.customer, domain.SubmitReviewRequest{BookingID: bookingID, Rating: rating})
			errs <- err
		}(bookings[i], ratings[i])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	rating := loadRating(t, f.db, f.provider)
	assert.Equal(t, int64(len(ratings)), rating.Count)
	assert.InDelta(t, float64(sum)/float64(len(ratings)), rating.Average, 1e-9)
}

func TestRatingFoldIsOrderIndependent(t *testing.T) {
	f := newFixture(t)
	other := testutil.SeedUser(t, f.db, f.node, "provider")

	ratings := []int{5, 1, 4, 2, 3, 5, 5}
	for i := range ratings {
		require.NoError(t, f.svc.UpdateProviderRating(context.Background(), nil, f.provider, ratings[i]))
		require.NoError(t, f.svc.UpdateProviderRating(context.Background(), nil, other, ratings[len(ratings)-1-i]))
	}

	a := loadRating(t, f.db, f.provider)
	b := loadRating(t, f.db, other)
	assert.Equal(t, int64(len(ratings)), a.Count)
	assert.Equal(t, a.Count, b.Count)
	assert.InDelta(t, 25.0/7.0, a.Average, 1e-9)
	assert.InDelta(t, a.Average, b.Average, 1e-9)
}

func TestUpdateProviderRatingRejectsUnknownProvider(t *testing.T) {
	f := newFixture(t)

	err := f.svc.UpdateProviderRating(context.Background(), nil, f.customer, 4)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
	err = f.svc.UpdateProviderRating(context.Background(), nil, f.provider, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
}

func TestProviderStats(t *testing.T) {
	f := newFixture(t)

	empty, err := f.svc.ProviderStats(context.Background(), f.provider)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.TotalReviews)
	assert.Equal(t, 0.0, empty.AverageRating)
	assert.Len(t, empty.RatingDistribution, 5)

	for _, r := range []int{5, 4, 4} {
		_, err := f.svc.Submit(context.Background(), f.customer, domain.SubmitReviewRequest{BookingID: f.completedBooking(t), Rating: r})
		require.NoError(t, err)
	}

	stats, err := f.svc.ProviderStats(context.Background(), f.provider)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalReviews)
	assert.Equal(t, 4.3, stats.AverageRating)
	assert.Equal(t, map[int]int64{1: 0, 2: 0, 3: 0, 4: 2, 5: 1}, stats.RatingDistribution)

	list, err := f.svc.List(context.Background(), domain.ListReviewRequest{ProviderID: f.provider})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
	assert.Len(t, list.Reviews, 3)

	_, err = f.svc.GetByID(context.Background(), f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketplaceLifecycle(t *testing.T) {
	f := newFixture(t)
	bookings := bookingservice.New(bookingservice.Params{
		DB:          f.db,
		Log:         zap.NewNop(),
		GenID:       f.node,
		Repo:        bookingrepo.Provide(),
		ListingRepo: catalogrepo.Provide(),
		UserRepo:    identityrepo.Provide(),
		Clock:       f.clock,
	})
	ctx := context.Background()

	created, err := bookings.Create(ctx, identitydomain.Actor{ID: f.customer, Role: identitydomain.RoleCustomer}, bookingdomain.CreateBookingRequest{
		ServiceID:     f.listing,
		ScheduledDate: f.clock.Now().Add(24 * time.Hour),
		Duration:      120,
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, created.TotalAmount)

	_, err = bookings.Cancel(ctx, created.ID, f.provider)
	assert.ErrorIs(t, err, bookingdomain.ErrForbidden)

	for _, status := range []string{"accepted", "completed"} {
		_, err := bookings.Transition(ctx, bookingdomain.TransitionRequest{
			BookingID: created.ID,
			ActorID:   f.provider,
			ActorRole: identitydomain.RoleProvider,
			Status:    status,
		})
		require.NoError(t, err, status)
	}

	var earnings float64
	require.NoError(t, f.db.Raw(`SELECT total_earnings FROM users WHERE id = ?`, f.provider).Scan(&earnings).Error)
	assert.True(t, math.Abs(earnings-50) < 1e-9, "earnings %v", earnings)

	_, err = f.svc.Submit(ctx, f.customer, domain.SubmitReviewRequest{BookingID: created.ID, Rating: 5})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.customer, domain.SubmitReviewRequest{BookingID: created.ID, Rating: 5})
	assert.ErrorIs(t, err, domain.ErrConflict)

	rating := loadRating(t, f.db, f.provider)
	assert.Equal(t, int64(1), rating.Count)
	assert.InDelta(t, 5.0, rating.Average, 1e-9)
}
