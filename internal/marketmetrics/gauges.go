package marketmetrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	bookingdomain "github.com/smallbiznis/servicehub/internal/booking/domain"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	"gorm.io/gorm"
)

// Gauges is a private registry of marketplace-wide gauges refreshed from the
// database. It is never served on /metrics.
type Gauges struct {
	registry *prometheus.Registry

	bookingsByStatus *prometheus.GaugeVec
	activeListings   prometheus.Gauge
	usersByRole      *prometheus.GaugeVec
	reviewsTotal     prometheus.Gauge
	lastRefresh      prometheus.Gauge
}

func NewGauges() *Gauges {
	g := &Gauges{
		registry: prometheus.NewRegistry(),
		bookingsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "servicehub_bookings",
			Help: "Bookings by current status.",
		}, []string{"status"}),
		activeListings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servicehub_listings_active",
			Help: "Active service listings.",
		}),
		usersByRole: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "servicehub_users",
			Help: "Registered users by role.",
		}, []string{"role"}),
		reviewsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servicehub_reviews",
			Help: "Submitted reviews.",
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servicehub_market_metrics_refreshed_timestamp_seconds",
			Help: "Unix time of the last successful refresh.",
		}),
	}
	g.registry.MustRegister(g.bookingsByStatus, g.activeListings, g.usersByRole, g.reviewsTotal, g.lastRefresh)
	return g
}

func (g *Gauges) Registry() *prometheus.Registry {
	return g.registry
}

type labelCount struct {
	Label string `gorm:"column:label"`
	Count int64  `gorm:"column:count"`
}

// Refresh reloads every gauge. Gauges keep their previous values when a
// query fails.
func (g *Gauges) Refresh(ctx context.Context, db *gorm.DB, now time.Time) error {
	var statuses []labelCount
	if err := db.WithContext(ctx).Raw(
		`SELECT status AS label, COUNT(*) AS count FROM bookings GROUP BY status`,
	).Scan(&statuses).Error; err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}

	var listings int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM listings WHERE is_active = ?`, true,
	).Scan(&listings).Error; err != nil {
		return fmt.Errorf("count listings: %w", err)
	}

	var roles []labelCount
	if err := db.WithContext(ctx).Raw(
		`SELECT role AS label, COUNT(*) AS count FROM users GROUP BY role`,
	).Scan(&roles).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	var reviews int64
	if err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM reviews`).Scan(&reviews).Error; err != nil {
		return fmt.Errorf("count reviews: %w", err)
	}

	byStatus := make(map[string]int64, len(statuses))
	for _, row := range statuses {
		byStatus[row.Label] = row.Count
	}
	for _, status := range bookingdomain.AllStatuses {
		g.bookingsByStatus.WithLabelValues(string(status)).Set(float64(byStatus[string(status)]))
	}

	byRole := make(map[string]int64, len(roles))
	for _, row := range roles {
		byRole[row.Label] = row.Count
	}
	for _, role := range []identitydomain.Role{identitydomain.RoleCustomer, identitydomain.RoleProvider} {
		g.usersByRole.WithLabelValues(string(role)).Set(float64(byRole[string(role)]))
	}

	g.activeListings.Set(float64(listings))
	g.reviewsTotal.Set(float64(reviews))
	g.lastRefresh.Set(float64(now.Unix()))
	return nil
}
