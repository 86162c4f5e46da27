package scheduler

import (
	"context"
	"fmt"
	"math"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/servicehub/internal/booking/domain"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	"go.uber.org/zap"
)

// EarningsDrift is a provider whose stored total_earnings disagrees with the
// sum of their completed bookings.
type EarningsDrift struct {
	ProviderID snowflake.ID
	Stored     float64
	Computed   float64
}

func (d EarningsDrift) Delta() float64 {
	return d.Stored - d.Computed
}

type ReconcileReport struct {
	Checked int
	Drifts  []EarningsDrift
}

type earningsRow struct {
	ProviderID snowflake.ID `gorm:"column:provider_id"`
	Stored     float64      `gorm:"column:stored"`
	Computed   float64      `gorm:"column:computed"`
}

// ReconcileEarnings compares stored provider earnings with completed bookings
// and reports differences. It only reads.
func (s *Scheduler) ReconcileEarnings(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	run := jobRunFromContext(ctx)

	var after snowflake.ID
	for {
		rows, err := s.fetchEarnings(ctx, after, s.cfg.BatchSize)
		if err != nil {
			return report, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			report.Checked++
			if math.Abs(row.Stored-row.Computed) <= s.cfg.Tolerance {
				continue
			}
			drift := EarningsDrift{ProviderID: row.ProviderID, Stored: row.Stored, Computed: row.Computed}
			report.Drifts = append(report.Drifts, drift)
			s.logger(ctx).Warn("provider earnings drift",
				zap.String("provider_id", drift.ProviderID.String()),
				zap.Float64("stored", drift.Stored),
				zap.Float64("computed", drift.Computed),
				zap.Float64("delta", drift.Delta()),
			)
		}
		run.AddProcessed(len(rows))
		after = rows[len(rows)-1].ProviderID
		if len(rows) < s.cfg.BatchSize {
			break
		}
	}

	s.metrics.SetEarningsDrift(JobEarningsReconcile, len(report.Drifts))
	return report, nil
}

func (s *Scheduler) fetchEarnings(ctx context.Context, after snowflake.ID, limit int) ([]earningsRow, error) {
	var rows []earningsRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT u.id AS provider_id,
		        u.total_earnings AS stored,
		        COALESCE(SUM(b.total_amount), 0) AS computed
		 FROM users u
		 LEFT JOIN bookings b ON b.provider_id = u.id AND b.status = ?
		 WHERE u.role = ? AND u.id > ?
		 GROUP BY u.id, u.total_earnings
		 ORDER BY u.id ASC
		 LIMIT ?`,
		string(bookingdomain.StatusCompleted),
		string(identitydomain.RoleProvider),
		after,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch earnings: %w", err)
	}
	return rows, nil
}
