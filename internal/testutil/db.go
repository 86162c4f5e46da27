// Package testutil holds shared helpers for database-backed tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/servicehub/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens an isolated in-memory sqlite database with the marketplace
// schema applied. A single connection keeps the shared-cache database alive
// and serializes transactions the way row locks would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.ApplySQLiteSchema(conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}

func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// SeedUser inserts an active user with the given role and returns its id.
func SeedUser(t testing.TB, db *gorm.DB, node *snowflake.Node, role string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO users (id, name, email, password_hash, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, role+" "+id.String(), fmt.Sprintf("%s-%s@example.com", role, id), "x", role, true, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

// SeedListing inserts an active listing owned by providerID with the given hourly rate.
func SeedListing(t testing.TB, db *gorm.DB, node *snowflake.Node, providerID snowflake.ID, rate float64) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO listings (id, provider_id, title, slug, description, category, rate, duration, tags, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, providerID, "House cleaning", "house-cleaning-"+id.String(), "Deep cleaning of your home", "cleaning", rate, 60, "[]", true, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return id
}

// SeedBooking inserts a booking row directly in the given status.
func SeedBooking(t testing.TB, db *gorm.DB, node *snowflake.Node, customerID, providerID, serviceID snowflake.ID, status string, amount float64) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	var completedAt *time.Time
	if status == "completed" {
		completedAt = &now
	}
	err := db.Exec(
		`INSERT INTO bookings (id, customer_id, provider_id, service_id, scheduled_date, duration, total_amount, status, customer_address, payment_status, is_review_submitted, completed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, customerID, providerID, serviceID, now.Add(48*time.Hour), 60, amount, status, "{}", "pending", false, completedAt, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return id
}

// SetEarnings overwrites a provider's stored earnings.
func SetEarnings(t testing.TB, db *gorm.DB, userID snowflake.ID, amount float64) {
	t.Helper()
	if err := db.Exec(`UPDATE users SET total_earnings = ? WHERE id = ?`, amount, userID).Error; err != nil {
		t.Fatalf("set earnings: %v", err)
	}
}
