package services

import (
	"context"
	"fmt"
	"time"

	"financeai/internal/auth"
	"financeai/internal/core"
	"financeai/internal/ledger"
	"financeai/internal/log"
)

// TrendMonths is how many calendar months the trend covers.
const TrendMonths = 6

// Dashboard is everything the dashboard page renders from the ledger.
type Dashboard struct {
	Aggregates  core.AggregateSnapshot `json:"aggregates"`
	Recent      []core.Transaction     `json:"recent"`
	Breakdown   []core.CategoryAmount  `json:"breakdown"`
	Trend       []core.MonthOverview   `json:"trend"`
	GeneratedAt time.Time              `json:"generated_at"`
}

type DashboardService struct {
	store  ledger.Store
	now    func() time.Time
	logger *log.Logger
}

func NewDashboardService(store ledger.Store, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DashboardService{
		store:  store,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentDashboard),
	}
}

// Build recomputes every figure from the full ledger.
func (s *DashboardService) Build(ctx context.Context, user auth.User) (Dashboard, error) {
	if user.ID == "" {
		return Dashboard{}, auth.ErrAuthRequired
	}
	txs, err := s.store.Query(ctx, user.ID, ledger.QueryOptions{})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load ledger for dashboard",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		return Dashboard{}, fmt.Errorf("build dashboard: %w", err)
	}

	now := s.now()
	d := Dashboard{
		Aggregates:  core.ComputeAggregates(txs),
		Recent:      core.Recent(txs, DefaultListLimit),
		Breakdown:   core.CategoryBreakdown(txs),
		Trend:       core.MonthlyTrend(txs, TrendMonths, now),
		GeneratedAt: now.UTC(),
	}
	if d.Recent == nil {
		d.Recent = []core.Transaction{}
	}

	s.logger.DebugContext(ctx, "Dashboard built",
		log.FieldUserID, user.ID,
		log.FieldCount, len(txs),
		log.FieldOperation, log.OpAggregate)
	return d, nil
}
