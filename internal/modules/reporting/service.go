// Package reporting provides read-side aggregates over a user's holdings and
// realized transactions: counts, mark-to-market values, gains and day changes.
package reporting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
	"stockfolio/internal/modules/ledger"
	"stockfolio/internal/modules/portfolio"
)

var hundred = decimal.NewFromInt(100)

// PortfolioMetrics are the headline numbers for one named portfolio, or for
// the whole user when PortfolioName is empty.
type PortfolioMetrics struct {
	PortfolioName      string          `json:"portfolioName,omitempty"`
	TotalValue         decimal.Decimal `json:"totalValue"`
	TotalStocksHeld    decimal.Decimal `json:"totalStocksHeld"`
	UnrealizedGainLoss decimal.Decimal `json:"unrealizedGainLoss"`
	RealizedGainLoss   decimal.Decimal `json:"realizedGainLoss"`
	PercentageReturn   decimal.Decimal `json:"percentageReturn"`
}

// SymbolChange is one holding's intraday move.
type SymbolChange struct {
	Symbol        string          `json:"symbol"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// DayChangeReport aggregates intraday movement across a holding set.
type DayChangeReport struct {
	DayChangeAmount  decimal.Decimal `json:"dayChangeAmount"`
	DayChangePercent decimal.Decimal `json:"dayChangePercent"`
	TopGainer        *SymbolChange   `json:"topGainer,omitempty"`
	TopLoser         *SymbolChange   `json:"topLoser,omitempty"`
}

// ChartsData feeds the portfolio distribution charts: unique stock counts and
// total current value per portfolio name.
type ChartsData struct {
	StockCounts   map[string]int             `json:"stockCounts"`
	CurrentValues map[string]decimal.Decimal `json:"currentValues"`
}

// HoldingView is a holding enriched with its latest market quote, ready for
// the holdings table and pie chart.
type HoldingView struct {
	portfolio.Holding
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	DayOpenPrice decimal.Decimal `json:"dayOpenPrice"`
}

// Service computes read-only reports. It never mutates holding or
// realized-transaction state.
type Service struct {
	holdings     *portfolio.HoldingRepository
	realized     *ledger.RealizedRepository
	oracle       domain.PriceOracle
	priceTimeout time.Duration
	log          zerolog.Logger
}

// NewService creates a new reporting service
func NewService(
	holdings *portfolio.HoldingRepository,
	realized *ledger.RealizedRepository,
	oracle domain.PriceOracle,
	priceTimeout time.Duration,
	log zerolog.Logger,
) *Service {
	return &Service{
		holdings:     holdings,
		realized:     realized,
		oracle:       oracle,
		priceTimeout: priceTimeout,
		log:          log.With().Str("service", "reporting").Logger(),
	}
}

// HoldingViews returns the user's holdings enriched with current and day-open
// prices, falling back to the purchase price per holding when a quote is
// unavailable.
func (s *Service) HoldingViews(ctx context.Context, userID, portfolioName string) ([]HoldingView, error) {
	holdings, err := s.scopedHoldings(userID, portfolioName)
	if err != nil {
		return nil, err
	}

	quotes := s.fetchQuotes(ctx, holdings)

	views := make([]HoldingView, len(holdings))
	for i, h := range holdings {
		view := HoldingView{Holding: h, CurrentPrice: h.PurchasePrice, DayOpenPrice: h.PurchasePrice}
		if q, ok := quotes[h.Symbol]; ok {
			if q.Price.IsPositive() {
				view.CurrentPrice = q.Price
			}
			if q.OpenPrice.IsPositive() {
				view.DayOpenPrice = q.OpenPrice
			}
		}
		views[i] = view
	}

	return views, nil
}

// UniqueStockCounts returns the count of distinct symbols per portfolio name.
func (s *Service) UniqueStockCounts(userID string) (map[string]int, error) {
	holdings, err := s.holdings.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]map[string]bool)
	for _, h := range holdings {
		if seen[h.PortfolioName] == nil {
			seen[h.PortfolioName] = make(map[string]bool)
		}
		seen[h.PortfolioName][h.Symbol] = true
	}

	counts := make(map[string]int, len(seen))
	for name, symbols := range seen {
		counts[name] = len(symbols)
	}

	return counts, nil
}

// CurrentValues returns the total mark-to-market value per portfolio name:
// sum of (currentPrice, or purchasePrice when unavailable) * quantity.
func (s *Service) CurrentValues(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	holdings, err := s.holdings.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	prices := s.fetchPrices(ctx, holdings)

	values := make(map[string]decimal.Decimal)
	for _, h := range holdings {
		value := s.currentPrice(prices, h).Mul(h.Quantity)
		values[h.PortfolioName] = values[h.PortfolioName].Add(value)
	}

	return values, nil
}

// ChartsData returns stock counts and current values in one payload.
func (s *Service) ChartsData(ctx context.Context, userID string) (ChartsData, error) {
	counts, err := s.UniqueStockCounts(userID)
	if err != nil {
		return ChartsData{}, err
	}

	values, err := s.CurrentValues(ctx, userID)
	if err != nil {
		return ChartsData{}, err
	}

	return ChartsData{StockCounts: counts, CurrentValues: values}, nil
}

// PortfolioMetrics computes the aggregate metrics for one portfolio name, or
// for the whole user when portfolioName is empty.
func (s *Service) PortfolioMetrics(ctx context.Context, userID, portfolioName string) (PortfolioMetrics, error) {
	holdings, err := s.scopedHoldings(userID, portfolioName)
	if err != nil {
		return PortfolioMetrics{}, err
	}

	realized, err := s.scopedRealized(userID, portfolioName)
	if err != nil {
		return PortfolioMetrics{}, err
	}

	prices := s.fetchPrices(ctx, holdings)

	m := PortfolioMetrics{PortfolioName: portfolioName}
	for _, h := range holdings {
		price := s.currentPrice(prices, h)
		m.TotalValue = m.TotalValue.Add(price.Mul(h.Quantity))
		m.TotalStocksHeld = m.TotalStocksHeld.Add(h.Quantity)
		m.UnrealizedGainLoss = m.UnrealizedGainLoss.Add(price.Sub(h.PurchasePrice).Mul(h.Quantity))
	}

	realizedBasis := decimal.Zero
	for _, rt := range realized {
		m.RealizedGainLoss = m.RealizedGainLoss.Add(rt.GainLoss)
		realizedBasis = realizedBasis.Add(rt.CostBasis())
	}

	// Percentage return over the cost basis of the realized lots; zero when
	// nothing has been realized.
	if realizedBasis.IsPositive() {
		m.PercentageReturn = m.RealizedGainLoss.Div(realizedBasis).Mul(hundred)
	}

	return m, nil
}

// DayChanges computes the intraday report for a portfolio name (or the whole
// user when empty): value-weighted aggregate change plus top gainer/loser.
// The reference open price falls back to the purchase price when the provider
// has no intraday data. Ties go to the first-encountered holding.
func (s *Service) DayChanges(ctx context.Context, userID, portfolioName string) (DayChangeReport, error) {
	holdings, err := s.scopedHoldings(userID, portfolioName)
	if err != nil {
		return DayChangeReport{}, err
	}

	quotes := s.fetchQuotes(ctx, holdings)

	var report DayChangeReport
	marketValue := decimal.Zero
	for _, h := range holdings {
		current := h.PurchasePrice
		open := h.PurchasePrice
		if q, ok := quotes[h.Symbol]; ok {
			if q.Price.IsPositive() {
				current = q.Price
			}
			if q.OpenPrice.IsPositive() {
				open = q.OpenPrice
			}
		}

		report.DayChangeAmount = report.DayChangeAmount.Add(current.Sub(open).Mul(h.Quantity))
		marketValue = marketValue.Add(current.Mul(h.Quantity))

		if !open.IsPositive() {
			continue
		}
		changePercent := current.Sub(open).Div(open).Mul(hundred)

		if report.TopGainer == nil || changePercent.GreaterThan(report.TopGainer.ChangePercent) {
			report.TopGainer = &SymbolChange{Symbol: h.Symbol, ChangePercent: changePercent}
		}
		if report.TopLoser == nil || changePercent.LessThan(report.TopLoser.ChangePercent) {
			report.TopLoser = &SymbolChange{Symbol: h.Symbol, ChangePercent: changePercent}
		}
	}

	if marketValue.IsPositive() {
		report.DayChangePercent = report.DayChangeAmount.Div(marketValue).Mul(hundred)
	}

	return report, nil
}

func (s *Service) scopedHoldings(userID, portfolioName string) ([]portfolio.Holding, error) {
	if portfolioName == "" {
		return s.holdings.ListByUser(userID)
	}
	return s.holdings.ListByPortfolio(userID, portfolioName)
}

func (s *Service) scopedRealized(userID, portfolioName string) ([]ledger.RealizedTransaction, error) {
	if portfolioName == "" {
		return s.realized.ListByUser(userID)
	}
	return s.realized.ListByUserAndPortfolio(userID, portfolioName)
}

// currentPrice applies the per-holding fallback: the holding's own purchase
// price when no current price is available for its symbol.
func (s *Service) currentPrice(prices map[string]decimal.Decimal, h portfolio.Holding) decimal.Decimal {
	if price, ok := prices[h.Symbol]; ok {
		return price
	}
	return h.PurchasePrice
}

// fetchPrices resolves current prices for the distinct symbols of a holding
// set, one concurrent lookup per symbol. Failed lookups are simply absent
// from the result; they never abort the report.
func (s *Service) fetchPrices(ctx context.Context, holdings []portfolio.Holding) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	var mu sync.Mutex

	s.forEachSymbol(ctx, holdings, func(lctx context.Context, symbol string) {
		price, err := s.oracle.CurrentPrice(lctx, symbol)
		if err != nil || !price.IsPositive() {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("Price unavailable for report")
			return
		}

		mu.Lock()
		prices[symbol] = price
		mu.Unlock()
	})

	return prices
}

// fetchQuotes resolves full quotes (price + day open) for the distinct
// symbols of a holding set.
func (s *Service) fetchQuotes(ctx context.Context, holdings []portfolio.Holding) map[string]domain.Quote {
	quotes := make(map[string]domain.Quote)
	var mu sync.Mutex

	s.forEachSymbol(ctx, holdings, func(lctx context.Context, symbol string) {
		quote, err := s.oracle.GetQuote(lctx, symbol)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("Quote unavailable for report")
			return
		}

		mu.Lock()
		quotes[symbol] = quote
		mu.Unlock()
	})

	return quotes
}

func (s *Service) forEachSymbol(ctx context.Context, holdings []portfolio.Holding, fn func(ctx context.Context, symbol string)) {
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for _, h := range holdings {
		if seen[h.Symbol] {
			continue
		}
		seen[h.Symbol] = true

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			lctx, cancel := context.WithTimeout(ctx, s.priceTimeout)
			defer cancel()

			fn(lctx, symbol)
		}(h.Symbol)
	}
	wg.Wait()
}
