package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/servicehub/internal/booking/domain"
	"github.com/smallbiznis/servicehub/internal/booking/repository"
	catalogrepo "github.com/smallbiznis/servicehub/internal/catalog/repository"
	"github.com/smallbiznis/servicehub/internal/clock"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	identityrepo "github.com/smallbiznis/servicehub/internal/identity/repository"
	notificationdomain "github.com/smallbiznis/servicehub/internal/notification/domain"
	"github.com/smallbiznis/servicehub/internal/observability/metrics"
	"github.com/smallbiznis/servicehub/internal/testutil"
	"github.com/smallbiznis/servicehub/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notificationdomain.Event
}

func (r *recordingNotifier) Notify(_ context.Context, userID snowflake.ID, event notificationdomain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.UserID = userID
	r.events = append(r.events, event)
}

func (r *recordingNotifier) Events() []notificationdomain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notificationdomain.Event, len(r.events))
	copy(out, r.events)
	return out
}

type failingEarningsRepo struct {
	identitydomain.Repository
}

func (failingEarningsRepo) IncrementEarnings(context.Context, *gorm.DB, snowflake.ID, float64) error {
	return errors.New("earnings unavailable")
}

// staleStatusRepo behaves as if another writer moved the booking between the
// row read and the guarded update.
type staleStatusRepo struct {
	domain.Repository
}

func (staleStatusRepo) UpdateStatus(context.Context, *gorm.DB, domain.StatusUpdate) (bool, error) {
	return false, nil
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	notifier *recordingNotifier
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
		db:       conn,
		node:     node,
		clock:    clock.NewFakeClock(time.Now().UTC().Truncate(time.Second)),
		notifier: &recordingNotifier{},
	}
	f.customer = testutil.SeedUser(t, conn, node, "customer")
	f.provider = testutil.SeedUser(t, conn, node, "provider")
	f.listing = testutil.SeedListing(t, conn, node, f.provider, 25)
	f.svc = f.newService(identityrepo.Provide())
	return f
}

func (f *fixture) newService(userRepo identitydomain.Repository) domain.Service {
	return New(Params{
		DB:          f.db,
		Log:         zap.NewNop(),
		GenID:       f.node,
		Repo:        repository.Provide(),
		ListingRepo: catalogrepo.Provide(),
		UserRepo:    userRepo,
		Clock:       f.clock,
		Notifier:    f.notifier,
		Metrics:     metrics.NewNoop(),
	})
}

func (f *fixture) customerActor() identitydomain.Actor {
	return identitydomain.Actor{ID: f.customer, Role: identitydomain.RoleCustomer}
}

func (f *fixture) createRequest(duration int) domain.CreateBookingRequest {
	return domain.CreateBookingRequest{
		ServiceID:     f.listing,
		ScheduledDate: f.clock.Now().Add(72 * time.Hour),
		Duration:      duration,
		CustomerNotes: "Please bring a ladder",
		Address: domain.Address{
			Street:      "12 Market St",
			City:        "Springfield",
			State:       "IL",
			ZipCode:     "62701",
			Coordinates: &domain.Coordinates{Lat: 39.78, Lng: -89.65},
		},
	}
}

func (f *fixture) transition(id, actor snowflake.ID, status string) (domain.Booking, error) {
	return f.svc.Transition(context.Background(), domain.TransitionRequest{
		BookingID: id,
		ActorID:   actor,
		ActorRole: identitydomain.RoleProvider,
		Status:    status,
	})
}

func storedStatus(t *testing.T, db *gorm.DB, id snowflake.ID) domain.Status {
	t.Helper()
	var status string
	if err := db.Raw(`SELECT status FROM bookings WHERE id = ?`, id).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	return domain.Status(status)
}

func storedEarnings(t *testing.T, db *gorm.DB, id snowflake.ID) float64 {
	t.Helper()
	var earnings float64
	if err := db.Raw(`SELECT total_earnings FROM users WHERE id = ?`, id).Scan(&earnings).Error; err != nil {
		t.Fatalf("read earnings: %v", err)
	}
	return earnings
}

func countRows(t *testing.T, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Raw(query, args...).Scan(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCreateBookingComputesTotalAndNotifiesProvider(t *testing.T) {
	f := newFixture(t)

	booking, err := f.svc.Create(context.Background(), f.customerActor(), f.createRequest(120))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if booking.TotalAmount != 50 {
		t.Fatalf("expected total 50.00, got %v", booking.TotalAmount)
	}
	if booking.Status != domain.StatusPending || booking.PaymentStatus != domain.PaymentPending {
		t.Fatalf("unexpected initial state: %s/%s", booking.Status, booking.PaymentStatus)
	}
	if booking.ProviderID != f.provider {
		t.Fatalf("provider not taken from listing")
	}

	loaded, err := f.svc.GetByID(context.Background(), booking.ID, f.customer)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.CustomerAddress.Data().City != "Springfield" {
		t.Fatalf("address not persisted: %+v", loaded.CustomerAddress.Data())
	}
	if len(loaded.StatusHistory) != 0 {
		t.Fatalf("expected empty history, got %d", len(loaded.StatusHistory))
	}

	events := f.notifier.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != f.provider || events[0].Type != notificationdomain.EventBookingCreated {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if events[0].Message != "New booking request received!" {
		t.Fatalf("unexpected message %q", events[0].Message)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		mutate func(*domain.CreateBookingRequest)
		want   error
	}{
		{"past date", func(r *domain.CreateBookingRequest) { r.ScheduledDate = f.clock.Now().Add(-time.Hour) }, domain.ErrInvalidScheduledDate},
		{"now", func(r *domain.CreateBookingRequest) { r.ScheduledDate = f.clock.Now() }, domain.ErrInvalidScheduledDate},
		{"short", func(r *domain.CreateBookingRequest) { r.Duration = 14 }, domain.ErrInvalidDuration},
		{"long", func(r *domain.CreateBookingRequest) { r.Duration = 481 }, domain.ErrInvalidDuration},
		{"notes", func(r *domain.CreateBookingRequest) { r.CustomerNotes = strings.Repeat("n", 501) }, domain.ErrInvalidNotes},
		{"missing service", func(r *domain.CreateBookingRequest) { r.ServiceID = f.node.Generate() }, domain.ErrServiceNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.createRequest(60)
			tc.mutate(&req)
			if _, err := f.svc.Create(context.Background(), f.customerActor(), req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if n := countRows(t, f.db, `SELECT COUNT(*) FROM bookings`); n != 0 {
		t.Fatalf("expected nothing persisted, got %d bookings", n)
	}
	if len(f.notifier.Events()) != 0 {
		t.Fatalf("expected no notifications")
	}
}

func TestCreateBookingBoundaryDurations(t *testing.T) {
	f := newFixture(t)
	for _, d := range []int{15, 480} {
		if _, err := f.svc.Create(context.Background(), f.customerActor(), f.createRequest(d)); err != nil {
			t.Fatalf("duration %d: %v", d, err)
		}
	}
}

func TestCreateBookingRequiresCustomerAndActiveListing(t *testing.T) {
	f := newFixture(t)

	providerActor := identitydomain.Actor{ID: f.provider, Role: identitydomain.RoleProvider}
	if _, err := f.svc.Create(context.Background(), providerActor, f.createRequest(60)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for provider, got %v", err)
	}

	if err := f.db.Exec(`UPDATE listings SET is_active = ? WHERE id = ?`, false, f.listing).Error; err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), f.customerActor(), f.createRequest(60)); !errors.Is(err, domain.ErrServiceNotFound) {
		t.Fatalf("expected not found for archived listing, got %v", err)
	}
}

func TestTotalAmountIsNotRecomputedAfterRateChange(t *testing.T) {
	f := newFixture(t)

	booking, err := f.svc.Create(context.Background(), f.customerActor(), f.createRequest(90))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if booking.TotalAmount != 37.5 {
		t.Fatalf("expected 37.50, got %v", booking.TotalAmount)
	}

	if err := f.db.Exec(`UPDATE listings SET rate = ? WHERE id = ?`, 99.0, f.listing).Error; err != nil {
		t.Fatalf("update rate: %v", err)
	}
	if _, err := f.transition(booking.ID, f.provider, "accepted"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	completed, err := f.transition(booking.ID, f.provider, "completed")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.TotalAmount != 37.5 {
		t.Fatalf("amount changed to %v", completed.TotalAmount)
	}
	if got := storedEarnings(t, f.db, f.provider); got != 37.5 {
		t.Fatalf("expected earnings 37.50, got %v", got)
	}
}

func TestTransitionGrid(t *testing.T) {
	legal := map[[2]domain.Status]bool{
		{domain.StatusPending, domain.StatusAccepted}:   true,
		{domain.StatusPending, domain.StatusRejected}:   true,
		{domain.StatusAccepted, domain.StatusCompleted}: true,
	}

	f := newFixture(t)
	for _, from := range domain.AllStatuses {
		for _, to := range domain.AllStatuses {
			name := string(from) + "_to_" + string(to)
			t.Run(name, func(t *testing.T) {
				id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, string(from), 10)

				_, err := f.transition(id, f.provider, string(to))
				if legal[[2]domain.Status{from, to}] {
					if err != nil {
						t.Fatalf("expected success, got %v", err)
					}
				} else if !errors.Is(err, domain.ErrInvalidTransition) {
					t.Fatalf("expected invalid transition, got %v", err)
				}

				want := from
				if err == nil {
					want = to
				}
				if got := storedStatus(t, f.db, id); got != want {
					t.Fatalf("stored status %s, want %s", got, want)
				}
			})
		}
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "pending", 10)

	if _, err := f.transition(id, f.provider, "archived"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestTransitionCheckOrder(t *testing.T) {
	f := newFixture(t)
	stranger := testutil.SeedUser(t, f.db, f.node, "provider")

	if _, err := f.transition(f.node.Generate(), f.provider, "accepted"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	completed := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "completed", 10)
	if _, err := f.transition(completed, stranger, "accepted"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden before invalid transition, got %v", err)
	}

	pending := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "pending", 10)
	for _, target := range []string{"pending", "cancelled"} {
		if _, err := f.transition(f.node.Generate(), f.provider, target); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("%s on missing booking: expected not found, got %v", target, err)
		}
		if _, err := f.transition(pending, stranger, target); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("%s by stranger: expected forbidden, got %v", target, err)
		}
		if _, err := f.transition(pending, f.provider, target); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("%s by owner: expected invalid transition, got %v", target, err)
		}
	}
}

func TestTransitionLosingGuardedUpdateIsConflict(t *testing.T) {
	f := newFixture(t)
	svc := New(Params{
		DB:          f.db,
		Log:         zap.NewNop(),
		GenID:       f.node,
		Repo:        staleStatusRepo{Repository: repository.Provide()},
		ListingRepo: catalogrepo.Provide(),
		UserRepo:    identityrepo.Provide(),
		Clock:       f.clock,
		Notifier:    f.notifier,
		Metrics:     metrics.NewNoop(),
	})
	id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "accepted", 40)

	_, err := svc.Transition(context.Background(), domain.TransitionRequest{
		BookingID: id,
		ActorID:   f.provider,
		ActorRole: identitydomain.RoleProvider,
		Status:    "completed",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := storedStatus(t, f.db, id); got != domain.StatusAccepted {
		t.Fatalf("status changed to %s", got)
	}
	if n := countRows(t, f.db, `SELECT COUNT(*) FROM booking_status_history WHERE booking_id = ?`, id); n != 0 {
		t.Fatalf("expected no history rows, got %d", n)
	}
	if got := storedEarnings(t, f.db, f.provider); got != 0 {
		t.Fatalf("expected no earnings, got %v", got)
	}
	if events := f.notifier.Events(); len(events) != 0 {
		t.Fatalf("expected no notifications, got %d", len(events))
	}

	if _, err := svc.Cancel(context.Background(), id, f.customer); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("cancel: expected conflict, got %v", err)
	}
	if events := f.notifier.Events(); len(events) != 0 {
		t.Fatalf("expected no notifications after cancel, got %d", len(events))
	}
}

func TestBlankProviderNotesKeepStoredNotes(t *testing.T) {
	f := newFixture(t)
	id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "pending", 10)
	if err := f.db.Exec(`UPDATE bookings SET provider_notes = ? WHERE id = ?`, "Bring the steam cleaner", id).Error; err != nil {
		t.Fatalf("seed notes: %v", err)
	}

	blank := "   "
	booking, err := f.svc.Transition(context.Background(), domain.TransitionRequest{
		BookingID: id,
		ActorID:   f.provider,
		ActorRole: identitydomain.RoleProvider,
		Status:    "accepted",
		Notes:     &blank,
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if booking.ProviderNotes != "Bring the steam cleaner" {
		t.Fatalf("returned notes %q", booking.ProviderNotes)
	}

	var stored string
	if err := f.db.Raw(`SELECT provider_notes FROM bookings WHERE id = ?`, id).Scan(&stored).Error; err != nil {
		t.Fatalf("read notes: %v", err)
	}
	if stored != "Bring the steam cleaner" {
		t.Fatalf("stored notes %q", stored)
	}
}

func TestTransitionForbiddenForNonOwners(t *testing.T) {
	f := newFixture(t)
	otherProvider := testutil.SeedUser(t, f.db, f.node, "provider")
	id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "pending", 10)

	for _, actor := range []snowflake.ID{f.customer, otherProvider, f.node.Generate()} {
		if _, err := f.transition(id, actor, "accepted"); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("actor %s: expected forbidden, got %v", actor, err)
		}
	}
	if got := storedStatus(t, f.db, id); got != domain.StatusPending {
		t.Fatalf("status changed to %s", got)
	}
	if n := countRows(t, f.db, `SELECT COUNT(*) FROM booking_status_history WHERE booking_id = ?`, id); n != 0 {
		t.Fatalf("expected no history rows, got %d", n)
	}
}

func TestCompletionRecordsHistoryAndEarnings(t *testing.T) {
	f := newFixture(t)
	testutil.SetEarnings(t, f.db, f.provider, 100)
	id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "accepted", 42.25)

	notes := "  All done  "
	f.clock.Advance(time.Hour)
	booking, err := f.svc.Transition(context.Background(), domain.TransitionRequest{
		BookingID: id,
		ActorID:   f.provider,
		ActorRole: identitydomain.RoleProvider,
		Status:    "Completed",
		Notes:     &notes,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if booking.CompletedAt == nil || !booking.CompletedAt.Equal(f.clock.Now()) {
		t.Fatalf("completed_at not set to now: %v", booking.CompletedAt)
	}
	if booking.ProviderNotes != "All done" {
		t.Fatalf("provider notes %q", booking.ProviderNotes)
	}
	if got := storedEarnings(t, f.db, f.provider); got != 142.25 {
		t.Fatalf("expected earnings 142.25, got %v", got)
	}

	loaded, err := f.svc.GetByID(context.Background(), id, f.provider)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.StatusHistory) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(loaded.StatusHistory))
	}
	entry := loaded.StatusHistory[0]
	if entry.Status != domain.StatusCompleted || entry.ChangedBy != f.provider || entry.Notes != "All done" {
		t.Fatalf("unexpected history entry %+v", entry)
	}
	if loaded.CompletedAt == nil {
		t.Fatalf("completed_at not persisted")
	}

	events := f.notifier.Events()
	if len(events) != 1 || events[0].UserID != f.customer {
		t.Fatalf("expected one event for the customer, got %+v", events)
	}
	if events[0].Message != "Your booking status has been updated to completed" {
		t.Fatalf("unexpected message %q", events[0].Message)
	}
}

func TestCompletionRollsBackWhenEarningsFail(t *testing.T) {
	f := newFixture(t)
	svc := f.newService(failingEarningsRepo{Repository: identityrepo.Provide()})
	id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "accepted", 20)

	_, err := svc.Transition(context.Background(), domain.TransitionRequest{
		BookingID: id,
		ActorID:   f.provider,
		Status:    "completed",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := storedStatus(t, f.db, id); got != domain.StatusAccepted {
		t.Fatalf("status should be rolled back, got %s", got)
	}
	if n := countRows(t, f.db, `SELECT COUNT(*) FROM booking_status_history WHERE booking_id = ?`, id); n != 0 {
		t.Fatalf("history should be rolled back, got %d rows", n)
	}
	if len(f.notifier.Events()) != 0 {
		t.Fatalf("no notification expected on failure")
	}
}

func TestConcurrentCompletionsSumExactly(t *testing.T) {
	f := newFixture(t)

	const n = 12
	ids := make([]snowflake.ID, n)
	for i := range ids {
		ids[i] = testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "accepted", 12.5)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			if _, err := f.transition(id, f.provider, "completed"); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("complete: %v", err)
	}

	if got := storedEarnings(t, f.db, f.provider); got != 150 {
		t.Fatalf("expected earnings 150, got %v", got)
	}
}

func TestConcurrentTransitionsOnOneBookingHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "pending", 10)

	targets := []string{"accepted", "rejected", "accepted", "rejected"}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			_, err := f.transition(id, f.provider, target)
			switch {
			case err == nil:
				mu.Lock()
				successes++
				mu.Unlock()
			case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(target)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}
	if n := countRows(t, f.db, `SELECT COUNT(*) FROM booking_status_history WHERE booking_id = ?`, id); n != 1 {
		t.Fatalf("expected one history row, got %d", n)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	for _, from := range []string{"pending", "accepted"} {
		id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, from, 30)
		booking, err := f.svc.Cancel(context.Background(), id, f.customer)
		if err != nil {
			t.Fatalf("cancel from %s: %v", from, err)
		}
		if booking.Status != domain.StatusCancelled {
			t.Fatalf("expected cancelled, got %s", booking.Status)
		}
	}
	if got := storedEarnings(t, f.db, f.provider); got != 0 {
		t.Fatalf("cancel must not touch earnings, got %v", got)
	}

	events := f.notifier.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.UserID != f.provider || ev.Message != "A booking has been cancelled by the customer" {
			t.Fatalf("unexpected event %+v", ev)
		}
	}

	for _, from := range []string{"rejected", "completed", "cancelled", "in-progress"} {
		id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, from, 30)
		if _, err := f.svc.Cancel(context.Background(), id, f.customer); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("cancel from %s: expected invalid transition, got %v", from, err)
		}
	}
}

func TestProviderCannotCancel(t *testing.T) {
	f := newFixture(t)
	id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "pending", 30)

	if _, err := f.svc.Cancel(context.Background(), id, f.provider); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if got := storedStatus(t, f.db, id); got != domain.StatusPending {
		t.Fatalf("status changed to %s", got)
	}
	if _, err := f.svc.Cancel(context.Background(), f.node.Generate(), f.customer); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetByIDRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	stranger := testutil.SeedUser(t, f.db, f.node, "customer")
	id := testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "pending", 30)

	if _, err := f.svc.GetByID(context.Background(), id, stranger); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.svc.GetByID(context.Background(), f.node.Generate(), f.customer); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListBookings(t *testing.T) {
	f := newFixture(t)
	otherCustomer := testutil.SeedUser(t, f.db, f.node, "customer")

	for i := 0; i < 12; i++ {
		testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "pending", 10)
	}
	testutil.SeedBooking(t, f.db, f.node, f.customer, f.provider, f.listing, "completed", 10)
	testutil.SeedBooking(t, f.db, f.node, otherCustomer, f.provider, f.listing, "pending", 10)

	res, err := f.svc.List(context.Background(), domain.ListBookingRequest{
		UserID: f.customer,
		Role:   identitydomain.RoleCustomer,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 13 || res.TotalPages != 2 || res.CurrentPage != 1 || len(res.Bookings) != 10 {
		t.Fatalf("unexpected page %+v (items=%d)", res.PageInfo, len(res.Bookings))
	}
	for i := 1; i < len(res.Bookings); i++ {
		if res.Bookings[i-1].ID < res.Bookings[i].ID {
			t.Fatalf("expected newest first")
		}
	}

	res, err = f.svc.List(context.Background(), domain.ListBookingRequest{
		UserID:     f.provider,
		Role:       identitydomain.RoleProvider,
		Status:     "all",
		Pagination: pagination.Pagination{Page: 2, Limit: 10},
	})
	if err != nil {
		t.Fatalf("list provider: %v", err)
	}
	if res.Total != 14 || len(res.Bookings) != 4 {
		t.Fatalf("expected 14 total / 4 on page 2, got %d / %d", res.Total, len(res.Bookings))
	}

	res, err = f.svc.List(context.Background(), domain.ListBookingRequest{
		UserID: f.provider,
		Role:   identitydomain.RoleProvider,
		Status: "completed",
	})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("expected 1 completed booking, got %d", res.Total)
	}

	if _, err := f.svc.List(context.Background(), domain.ListBookingRequest{
		UserID: f.provider,
		Role:   identitydomain.RoleProvider,
		Status: "archived",
	}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}
