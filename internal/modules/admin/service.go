package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"stockfolio/internal/modules/activity"
	"stockfolio/internal/modules/auth"
	"stockfolio/internal/modules/reporting"
	"stockfolio/internal/modules/watchlists"
)

// DashboardStats is the headline block of the dashboard.
type DashboardStats struct {
	TotalUsers        int     `json:"totalUsers"`
	TotalHoldings     int     `json:"totalHoldings"`
	TotalTransactions int     `json:"totalTransactions"`
	UptimeHours       float64 `json:"uptimeHours"`
	CPUPercent        float64 `json:"cpuPercent"`
	RAMPercent        float64 `json:"ramPercent"`
}

// DemandingStock is a symbol ranked by how often it appears across holdings
// and watchlists.
type DemandingStock struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

// UserValue pairs a user with an aggregate money amount.
type UserValue struct {
	UserID   string          `json:"userId"`
	Username string          `json:"username"`
	Value    decimal.Decimal `json:"value"`
}

// SymbolPerformance summarizes the realized returns of one symbol.
type SymbolPerformance struct {
	Symbol       string  `json:"symbol"`
	Trades       int     `json:"trades"`
	MeanReturn   float64 `json:"meanReturn"`
	StdDevReturn float64 `json:"stdDevReturn"`
	WorstReturn  float64 `json:"worstReturn"`
	BestReturn   float64 `json:"bestReturn"`
}

// Service aggregates data across all users for the admin dashboard
type Service struct {
	repo        *Repository
	users       *auth.Repository
	activity    *activity.Repository
	watchlists  *watchlists.Repository
	reporting   *reporting.Service
	startupTime time.Time
	log         zerolog.Logger
}

// NewService creates a new admin service
func NewService(
	repo *Repository,
	users *auth.Repository,
	activityRepo *activity.Repository,
	watchlistsRepo *watchlists.Repository,
	reportingSvc *reporting.Service,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		activity:    activityRepo,
		watchlists:  watchlistsRepo,
		reporting:   reportingSvc,
		startupTime: time.Now(),
		log:         log.With().Str("service", "admin").Logger(),
	}
}

// DashboardStats returns the counts and host stats behind the dashboard header.
func (s *Service) DashboardStats() (DashboardStats, error) {
	userCount, err := s.repo.CountUsers()
	if err != nil {
		return DashboardStats{}, err
	}
	holdingCount, err := s.repo.CountHoldings()
	if err != nil {
		return DashboardStats{}, err
	}
	realizedCount, err := s.repo.CountRealized()
	if err != nil {
		return DashboardStats{}, err
	}

	cpuPercent, ramPercent := s.hostStats()

	return DashboardStats{
		TotalUsers:        userCount,
		TotalHoldings:     holdingCount,
		TotalTransactions: realizedCount,
		UptimeHours:       time.Since(s.startupTime).Hours(),
		CPUPercent:        cpuPercent,
		RAMPercent:        ramPercent,
	}, nil
}

// RecentActivities returns the newest activity log entries.
func (s *Service) RecentActivities(limit int) ([]activity.Event, error) {
	return s.activity.Recent(limit)
}

// UserGrowth returns account signups bucketed by month.
func (s *Service) UserGrowth() ([]MonthlySignups, error) {
	return s.repo.UserGrowth()
}

// Users returns every registered account.
func (s *Service) Users() ([]auth.User, error) {
	return s.users.List()
}

// DeleteUser removes an account and everything it owns: the user row,
// holdings, realized transactions, activity entries and watchlists.
func (s *Service) DeleteUser(userID string) error {
	if err := s.users.Delete(userID); err != nil {
		return err
	}

	if err := s.repo.DeleteLedgerData(userID); err != nil {
		return fmt.Errorf("failed to delete ledger data: %w", err)
	}

	if err := s.watchlists.DeleteByUser(userID); err != nil {
		return fmt.Errorf("failed to delete watchlists: %w", err)
	}

	s.log.Info().Str("user_id", userID).Msg("User deleted")
	return nil
}

// DemandingStocks ranks symbols by how often they appear across all holdings
// and watchlists, most demanded first.
func (s *Service) DemandingStocks() ([]DemandingStock, error) {
	holdingCounts, err := s.repo.HoldingSymbolCounts()
	if err != nil {
		return nil, err
	}
	watchlistCounts, err := s.watchlists.AllSymbolCounts()
	if err != nil {
		return nil, err
	}

	merged := make(map[string]int, len(holdingCounts)+len(watchlistCounts))
	for symbol, count := range holdingCounts {
		merged[symbol] += count
	}
	for symbol, count := range watchlistCounts {
		merged[symbol] += count
	}

	result := make([]DemandingStock, 0, len(merged))
	for symbol, count := range merged {
		result = append(result, DemandingStock{Symbol: symbol, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

// TotalPortfolioValues returns every user's total current portfolio value,
// priced through the oracle. A user whose prices cannot be fetched falls back
// to purchase prices inside the reporting service rather than failing the
// whole report.
func (s *Service) TotalPortfolioValues(ctx context.Context) ([]UserValue, error) {
	users, err := s.users.List()
	if err != nil {
		return nil, err
	}

	result := make([]UserValue, 0, len(users))
	for _, u := range users {
		values, err := s.reporting.CurrentValues(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to value portfolios for user %s: %w", u.ID, err)
		}

		total := decimal.Zero
		for _, v := range values {
			total = total.Add(v)
		}
		result = append(result, UserValue{UserID: u.ID, Username: u.Username, Value: total})
	}

	return result, nil
}

// TotalInvestedValues returns every user's total purchase cost across open
// holdings. Paired with TotalPortfolioValues on the dashboard to show invested
// versus current value.
func (s *Service) TotalInvestedValues() ([]UserValue, error) {
	users, err := s.users.List()
	if err != nil {
		return nil, err
	}
	invested, err := s.repo.InvestedValueByUser()
	if err != nil {
		return nil, err
	}

	result := make([]UserValue, 0, len(users))
	for _, u := range users {
		result = append(result, UserValue{UserID: u.ID, Username: u.Username, Value: invested[u.ID]})
	}

	return result, nil
}

// TotalReturns returns every user's realized gain/loss to date.
func (s *Service) TotalReturns() ([]UserValue, error) {
	users, err := s.users.List()
	if err != nil {
		return nil, err
	}
	gains, err := s.repo.RealizedGainByUser()
	if err != nil {
		return nil, err
	}

	result := make([]UserValue, 0, len(users))
	for _, u := range users {
		result = append(result, UserValue{UserID: u.ID, Username: u.Username, Value: gains[u.ID]})
	}

	return result, nil
}

// StockPerformance summarizes realized percent returns per symbol. Symbols
// with a single trade report a zero standard deviation.
func (s *Service) StockPerformance() ([]SymbolPerformance, error) {
	returns, err := s.repo.RealizedReturnsBySymbol()
	if err != nil {
		return nil, err
	}

	result := make([]SymbolPerformance, 0, len(returns))
	for symbol, samples := range returns {
		perf := SymbolPerformance{
			Symbol:      symbol,
			Trades:      len(samples),
			MeanReturn:  stat.Mean(samples, nil),
			WorstReturn: samples[0],
			BestReturn:  samples[0],
		}
		if len(samples) > 1 {
			perf.StdDevReturn = stat.StdDev(samples, nil)
		}
		for _, sample := range samples {
			if sample < perf.WorstReturn {
				perf.WorstReturn = sample
			}
			if sample > perf.BestReturn {
				perf.BestReturn = sample
			}
		}
		result = append(result, perf)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

// hostStats samples CPU and RAM usage. A 100ms CPU window keeps the dashboard
// endpoint from blocking for a full second.
func (s *Service) hostStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
