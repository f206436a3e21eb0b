package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rcabrera/citewatch/internal/aggregate"
	"github.com/rcabrera/citewatch/internal/config"
	"github.com/rcabrera/citewatch/internal/enrich"
	"github.com/rcabrera/citewatch/internal/logger"
	"github.com/rcabrera/citewatch/internal/models"
	"github.com/rcabrera/citewatch/internal/store"
)

// ReportService computes the aggregation views the admin console renders.
// Every call works over a fresh snapshot of the stored records; nothing is
// cached between calls.
type ReportService interface {
	// Dashboard returns the landing view: running totals, a trailing monthly
	// trend, recent activity and the enforcer leaderboard.
	Dashboard(ctx context.Context) (*aggregate.DashboardSnapshot, error)

	// Daily returns the rollup for one calendar day in the engine's fixed
	// zone.
	Daily(ctx context.Context, date time.Time) (*aggregate.DailySummary, error)

	// Monthly returns the rollup for one calendar month, with a complete
	// per-day breakdown.
	Monthly(ctx context.Context, year int, month time.Month) (*aggregate.MonthlyReport, error)

	// EnforcerPerformance returns per-enforcer counts, fine totals and
	// collection rates for every active enforcer.
	EnforcerPerformance(ctx context.Context) ([]aggregate.EnforcerPerformance, error)

	// RepeatOffenders groups violations by violator identity and returns the
	// groups meeting minCount. Zero or negative minCount falls back to the
	// configured threshold.
	RepeatOffenders(ctx context.Context, minCount int) (*aggregate.OffenderReport, error)
}

type reportService struct {
	violations store.ViolationStore
	users      store.UserStore
	rollup     *aggregate.Rollup
	grouper    *aggregate.Grouper
	joiner     *enrich.Joiner
	engine     config.EngineConfig
	log        *logger.Logger
	now        func() time.Time
}

// NewReportService creates a ReportService.
func NewReportService(
	violations store.ViolationStore,
	users store.UserStore,
	rollup *aggregate.Rollup,
	grouper *aggregate.Grouper,
	joiner *enrich.Joiner,
	engine config.EngineConfig,
	log *logger.Logger,
) ReportService {
	return &reportService{
		violations: violations,
		users:      users,
		rollup:     rollup,
		grouper:    grouper,
		joiner:     joiner,
		engine:     engine,
		log:        log,
		now:        time.Now,
	}
}

func (s *reportService) Dashboard(ctx context.Context) (*aggregate.DashboardSnapshot, error) {
	records, users, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	snap := s.rollup.Dashboard(records, users, s.now())
	snap.RecentViolations = s.joiner.Fill(ctx, snap.RecentViolations)
	return snap, nil
}

func (s *reportService) Daily(ctx context.Context, date time.Time) (*aggregate.DailySummary, error) {
	records, users, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.rollup.Daily(records, users, date), nil
}

func (s *reportService) Monthly(ctx context.Context, year int, month time.Month) (*aggregate.MonthlyReport, error) {
	records, err := s.fetchViolations(ctx)
	if err != nil {
		return nil, err
	}
	return s.rollup.Monthly(records, year, month), nil
}

func (s *reportService) EnforcerPerformance(ctx context.Context) ([]aggregate.EnforcerPerformance, error) {
	records, users, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.rollup.EnforcerReport(records, users, s.now()), nil
}

func (s *reportService) RepeatOffenders(ctx context.Context, minCount int) (*aggregate.OffenderReport, error) {
	if minCount <= 0 {
		minCount = s.engine.RepeatMinViolations
	}

	records, err := s.fetchViolations(ctx)
	if err != nil {
		return nil, err
	}

	report := s.grouper.RepeatOffenders(records, minCount)
	return &report, nil
}

// snapshot fetches the violation and user sets an aggregation call works over.
func (s *reportService) snapshot(ctx context.Context) ([]models.Violation, []models.User, error) {
	records, err := s.fetchViolations(ctx)
	if err != nil {
		return nil, nil, err
	}

	users, err := s.users.FindMany(ctx, nil, 0)
	if err != nil {
		s.log.Error("Failed to fetch users", err, nil)
		return nil, nil, fmt.Errorf("failed to fetch users: %w", err)
	}

	return records, users, nil
}

func (s *reportService) fetchViolations(ctx context.Context) ([]models.Violation, error) {
	records, err := s.violations.FindMany(ctx, nil, s.engine.MaxFetch)
	if err != nil {
		s.log.Error("Failed to fetch violations", err, nil)
		return nil, fmt.Errorf("failed to fetch violations: %w", err)
	}
	return records, nil
}
