package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/servicehub/internal/authorization"
	bookingrepo "github.com/smallbiznis/servicehub/internal/booking/repository"
	bookingservice "github.com/smallbiznis/servicehub/internal/booking/service"
	catalogrepo "github.com/smallbiznis/servicehub/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/servicehub/internal/catalog/service"
	"github.com/smallbiznis/servicehub/internal/clock"
	"github.com/smallbiznis/servicehub/internal/config"
	identityrepo "github.com/smallbiznis/servicehub/internal/identity/repository"
	identityservice "github.com/smallbiznis/servicehub/internal/identity/service"
	"github.com/smallbiznis/servicehub/internal/notification"
	notificationdomain "github.com/smallbiznis/servicehub/internal/notification/domain"
	"github.com/smallbiznis/servicehub/internal/ratelimit"
	reviewrepo "github.com/smallbiznis/servicehub/internal/review/repository"
	reviewservice "github.com/smallbiznis/servicehub/internal/review/service"
	statsrepo "github.com/smallbiznis/servicehub/internal/stats/repository"
	statsservice "github.com/smallbiznis/servicehub/internal/stats/service"
	"github.com/smallbiznis/servicehub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	t      *testing.T
	engine *gin.Engine
	server *Server
	hub    *notification.Hub
	clock  *clock.FakeClock
}

type harnessOption func(*ServerParams)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Now().UTC().Truncate(time.Second))
	log := zap.NewNop()
	cfg := config.Config{AppName: "servicehub", Environment: "test"}

	identitySvc, err := identityservice.New(identityservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Repo:       identityrepo.Provide(),
		Clock:      clk,
		Config:     cfg,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	hub := notification.NewHub()
	dispatcher := notification.NewDispatcher(notification.DispatcherConfig{}, log, nil, hub)
	dispatcher.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dispatcher.Stop(ctx)
	})

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	params := ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		IdentitySvc: identitySvc,
		CatalogSvc: catalogservice.New(catalogservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk,
			Repo:     catalogrepo.Provide(),
			UserRepo: identityrepo.Provide(),
		}),
		BookingSvc: bookingservice.New(bookingservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk,
			Repo:        bookingrepo.Provide(),
			ListingRepo: catalogrepo.Provide(),
			UserRepo:    identityrepo.Provide(),
			Notifier:    dispatcher,
		}),
		ReviewSvc: reviewservice.New(reviewservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk,
			Repo:        reviewrepo.Provide(),
			BookingRepo: bookingrepo.Provide(),
			UserRepo:    identityrepo.Provide(),
			Notifier:    dispatcher,
		}),
		StatsSvc: statsservice.New(statsservice.Params{
			DB: db, Log: log,
			Repo:        statsrepo.Provide(),
			UserRepo:    identityrepo.Provide(),
			ListingRepo: catalogrepo.Provide(),
		}),
		AuthzSvc: authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
		Hub:      hub,
	}
	for _, opt := range opts {
		opt(&params)
	}

	return &harness{
		t:      t,
		engine: engine,
		server: NewServer(params),
		hub:    hub,
		clock:  clk,
	}
}

func withBookingLimit(perMinute int) harnessOption {
	return func(p *ServerParams) {
		cfg := p.Cfg
		cfg.RateLimit.Enabled = true
		marketplace := config.DefaultMarketplaceConfig()
		marketplace.BookingCreatePerMin = perMinute
		p.Limiter = ratelimit.NewBookingLimiter(ratelimit.Params{
			Config:      cfg,
			Log:         zap.NewNop(),
			Marketplace: config.NewStaticMarketplaceConfigHolder(marketplace),
		})
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func (h *harness) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

type registered struct {
	Token string `json:"token"`
	User  struct {
		ID   snowflake.ID `json:"id"`
		Role string       `json:"role"`
	} `json:"user"`
}

func (h *harness) register(name, email, role string) registered {
	h.t.Helper()
	rec, env := h.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     name,
		"email":    email,
		"password": "secret123",
		"role":     role,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out registered
	require.NoError(h.t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(h.t, out.Token)
	return out
}

type idOnly struct {
	ID snowflake.ID `json:"id"`
}

func (h *harness) createListing(token string, rate float64) snowflake.ID {
	h.t.Helper()
	rec, env := h.do(http.MethodPost, "/api/services", token, gin.H{
		"title":       "Deep house cleaning",
		"description": "Kitchen, bathrooms and floors",
		"category":    "cleaning",
		"rate":        rate,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var listing idOnly
	require.NoError(h.t, json.Unmarshal(env.Data, &listing))
	return listing.ID
}

func (h *harness) bookingBody(serviceID snowflake.ID, scheduled time.Time, duration int) gin.H {
	return gin.H{
		"service_id":     serviceID.String(),
		"scheduled_date": scheduled.Format(time.RFC3339),
		"duration":       duration,
		"customer_notes": "gate code 1234",
		"customer_address": gin.H{
			"street": "1 Main St",
			"city":   "Springfield",
		},
	}
}

type bookingView struct {
	ID            snowflake.ID `json:"id"`
	Status        string       `json:"status"`
	TotalAmount   float64      `json:"total_amount"`
	StatusHistory []struct {
		Status string `json:"status"`
	} `json:"status_history"`
}

func TestBookingLifecycleEndToEnd(t *testing.T) {
	h := newHarness(t)
	customer := h.register("Casey Customer", "casey@example.com", "customer")
	provider := h.register("Pat Provider", "pat@example.com", "provider")
	listingID := h.createListing(provider.Token, 25)

	rec, env := h.do(http.MethodPost, "/api/bookings", customer.Token,
		h.bookingBody(listingID, h.clock.Now().Add(48*time.Hour), 120))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booking bookingView
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	assert.Equal(t, "pending", booking.Status)
	assert.Equal(t, 50.0, booking.TotalAmount)

	path := "/api/bookings/" + booking.ID.String()

	rec, _ = h.do(http.MethodPut, path+"/status", provider.Token, gin.H{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	notes := "all done"
	rec, env = h.do(http.MethodPut, path+"/status", provider.Token, gin.H{"status": "completed", "provider_notes": notes})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	assert.Equal(t, "completed", booking.Status)

	rec, env = h.do(http.MethodGet, path, customer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	require.Len(t, booking.StatusHistory, 2)
	assert.Equal(t, "accepted", booking.StatusHistory[0].Status)
	assert.Equal(t, "completed", booking.StatusHistory[1].Status)

	rec, _ = h.do(http.MethodPost, "/api/reviews", customer.Token, gin.H{
		"booking_id": booking.ID.String(),
		"rating":     5,
		"comment":    "spotless",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = h.do(http.MethodPost, "/api/reviews", customer.Token, gin.H{
		"booking_id": booking.ID.String(),
		"rating":     4,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "conflict", env.Error.Type)

	rec, env = h.do(http.MethodGet, "/api/providers/"+provider.User.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile struct {
		RatingAverage float64 `json:"rating_average"`
		RatingCount   int     `json:"rating_count"`
		Stats         struct {
			CompletedBookings int64   `json:"completed_bookings"`
			TotalEarnings     float64 `json:"total_earnings"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, 5.0, profile.RatingAverage)
	assert.Equal(t, 1, profile.RatingCount)
	assert.Equal(t, int64(1), profile.Stats.CompletedBookings)
	assert.Equal(t, 50.0, profile.Stats.TotalEarnings)

	rec, env = h.do(http.MethodGet, "/api/reviews/provider/"+provider.User.ID.String()+"/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalReviews  int64   `json:"total_reviews"`
		AverageRating float64 `json:"average_rating"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.TotalReviews)
	assert.Equal(t, 5.0, stats.AverageRating)
}

func TestProviderCannotCancelBooking(t *testing.T) {
	h := newHarness(t)
	customer := h.register("Casey Customer", "casey@example.com", "customer")
	provider := h.register("Pat Provider", "pat@example.com", "provider")
	listingID := h.createListing(provider.Token, 25)

	rec, env := h.do(http.MethodPost, "/api/bookings", customer.Token,
		h.bookingBody(listingID, h.clock.Now().Add(24*time.Hour), 60))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booking bookingView
	require.NoError(t, json.Unmarshal(env.Data, &booking))

	rec, env = h.do(http.MethodPut, "/api/bookings/"+booking.ID.String()+"/cancel", provider.Token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Type)

	rec, env = h.do(http.MethodGet, "/api/bookings/"+booking.ID.String(), customer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	assert.Equal(t, "pending", booking.Status)

	rec, _ = h.do(http.MethodPut, "/api/bookings/"+booking.ID.String()+"/cancel", customer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = h.do(http.MethodPut, "/api/bookings/"+booking.ID.String()+"/status", provider.Token, gin.H{"status": "accepted"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", env.Error.Type)
}

func TestCreateBookingValidation(t *testing.T) {
	h := newHarness(t)
	customer := h.register("Casey Customer", "casey@example.com", "customer")
	provider := h.register("Pat Provider", "pat@example.com", "provider")
	listingID := h.createListing(provider.Token, 25)

	rec, env := h.do(http.MethodPost, "/api/bookings", customer.Token,
		h.bookingBody(listingID, h.clock.Now().Add(-time.Hour), 60))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, "scheduled_date", env.Error.Errors[0].Field)
	assert.Equal(t, "invalid_scheduled_date", env.Error.Errors[0].Code)

	rec, env = h.do(http.MethodPost, "/api/bookings", customer.Token,
		h.bookingBody(listingID, h.clock.Now().Add(time.Hour), 5))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_duration", env.Error.Errors[0].Code)

	rec, env = h.do(http.MethodPost, "/api/bookings", customer.Token,
		h.bookingBody(snowflake.ID(42), h.clock.Now().Add(time.Hour), 60))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Type)

	rec, _ = h.do(http.MethodPost, "/api/bookings", provider.Token,
		h.bookingBody(listingID, h.clock.Now().Add(time.Hour), 60))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(http.MethodGet, "/api/bookings", customer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Total    int64         `json:"total"`
		Bookings []bookingView `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(mustData(t, rec), &list))
	assert.Equal(t, int64(0), list.Total)
}

func TestAuthRequiredRejectsMissingAndInvalidTokens(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(http.MethodGet, "/api/bookings", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Error.Type)

	rec, _ = h.do(http.MethodGet, "/api/auth/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	customer := h.register("Casey Customer", "casey@example.com", "customer")
	rec, env = h.do(http.MethodGet, "/api/auth/profile", customer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user struct {
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "casey@example.com", user.Email)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegisterConflictAndLogin(t *testing.T) {
	h := newHarness(t)
	h.register("Casey Customer", "casey@example.com", "customer")

	rec, env := h.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Other", "email": "casey@example.com", "password": "secret123", "role": "customer",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email already registered", env.Error.Message)

	rec, _ = h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "casey@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "casey@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var out registered
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.NotEmpty(t, out.Token)
}

func TestCatalogOwnership(t *testing.T) {
	h := newHarness(t)
	owner := h.register("Pat Provider", "pat@example.com", "provider")
	other := h.register("Rae Provider", "rae@example.com", "provider")
	customer := h.register("Casey Customer", "casey@example.com", "customer")
	listingID := h.createListing(owner.Token, 40)
	path := "/api/services/" + listingID.String()

	rec, _ := h.do(http.MethodPut, path, other.Token, gin.H{"rate": 10})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(http.MethodPost, "/api/services", customer.Token, gin.H{
		"title": "Not allowed", "description": "customers cannot list", "category": "other", "rate": 10,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(http.MethodDelete, path, owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := h.do(http.MethodGet, "/api/services", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(0), list.Total)

	rec, env = h.do(http.MethodGet, "/api/services/not-an-id", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Type)
}

func TestBookingCreateRateLimit(t *testing.T) {
	h := newHarness(t, withBookingLimit(1))
	customer := h.register("Casey Customer", "casey@example.com", "customer")
	provider := h.register("Pat Provider", "pat@example.com", "provider")
	listingID := h.createListing(provider.Token, 25)
	body := h.bookingBody(listingID, h.clock.Now().Add(time.Hour), 60)

	rec, _ := h.do(http.MethodPost, "/api/bookings", customer.Token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := h.do(http.MethodPost, "/api/bookings", customer.Token, body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", env.Error.Type)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, rateLimitReasonCustomerRate, rec.Header().Get("X-Rate-Limited-Reason"))
}

func TestNotificationStreamDeliversLiveEvents(t *testing.T) {
	h := newHarness(t)
	customer := h.register("Casey Customer", "casey@example.com", "customer")

	srv := httptest.NewServer(h.engine)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+customer.Token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "retry: 2000\n", line)

	require.Eventually(t, func() bool { return h.hub.Subscribers(customer.User.ID) == 1 }, time.Second, 5*time.Millisecond)
	h.hub.Deliver(notificationdomain.Event{
		Type:      notificationdomain.EventBookingUpdated,
		UserID:    customer.User.ID,
		Message:   "Your booking status has been updated to accepted",
		CreatedAt: h.clock.Now(),
	})

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	assert.Equal(t, "booking.updated", eventLine)
	var event notificationdomain.Event
	require.NoError(t, json.Unmarshal([]byte(dataLine), &event))
	assert.Equal(t, "Your booking status has been updated to accepted", event.Message)

	cancel()
	require.Eventually(t, func() bool { return h.hub.Subscribers(customer.User.ID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestMapErrorRendersValidatorFields(t *testing.T) {
	status, payload := mapError(newValidationError("rating", "invalid_rating", "out of range"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Equal(t, "rating", payload.Errors[0].Field)

	status, payload = mapError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", payload.Type)

	errType, code := classifyErrorForLog(ErrRateLimited)
	assert.Equal(t, "rate_limited", errType)
	assert.Equal(t, "rate_limited", code)
}

func mustData(t *testing.T, rec *httptest.ResponseRecorder) json.RawMessage {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}
