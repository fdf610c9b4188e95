package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
	"stockfolio/internal/modules/ledger"
)

// ActivityLogger is the audit sink for ledger events.
// Defined here to avoid an import cycle with the activity module.
type ActivityLogger interface {
	Record(userID, eventType, description string)
}

// LedgerService orchestrates add-holding, delete-holding and
// delete-portfolio-by-name. A holding has exactly two states: open (a row in
// the holdings table) and closed (a row in realized_transactions); the only
// transition is deletion, which converts one into the other atomically.
type LedgerService struct {
	holdings *HoldingRepository
	realized *ledger.RealizedRepository
	ledgerDB *sql.DB // owns the disposal transactions spanning both tables
	oracle   domain.PriceOracle
	activity ActivityLogger

	priceTimeout time.Duration
	log          zerolog.Logger
	now          func() time.Time

	// Per-user mutexes serialize same-user mutations to prevent lost updates.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	holdings *HoldingRepository,
	realized *ledger.RealizedRepository,
	ledgerDB *sql.DB,
	oracle domain.PriceOracle,
	activity ActivityLogger,
	priceTimeout time.Duration,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		holdings:     holdings,
		realized:     realized,
		ledgerDB:     ledgerDB,
		oracle:       oracle,
		activity:     activity,
		priceTimeout: priceTimeout,
		log:          log.With().Str("service", "ledger").Logger(),
		now:          time.Now,
		userLocks:    make(map[string]*sync.Mutex),
	}
}

// lockUser returns the mutex serializing mutations for one user.
func (s *LedgerService) lockUser(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// AddStock validates the input and persists a new holding.
func (s *LedgerService) AddStock(ctx context.Context, userID string, input AddStockInput) (Holding, error) {
	if err := input.Validate(); err != nil {
		return Holding{}, err
	}

	l := s.lockUser(userID)
	l.Lock()
	defer l.Unlock()

	h := input.toHolding(userID, s.now())
	if err := s.holdings.Create(h); err != nil {
		return Holding{}, err
	}

	s.activity.Record(userID, "stock_added",
		fmt.Sprintf("Added %s %s to portfolio %q at %s", h.Quantity, h.Symbol, h.PortfolioName, h.PurchasePrice))

	return h, nil
}

// ListHoldings returns all of the user's open holdings.
func (s *LedgerService) ListHoldings(userID string) ([]Holding, error) {
	return s.holdings.ListByUser(userID)
}

// ListRealized returns the user's realized transactions.
func (s *LedgerService) ListRealized(userID string) ([]ledger.RealizedTransaction, error) {
	return s.realized.ListByUser(userID)
}

// DeleteHolding closes one holding: it records a realized transaction at the
// current market price (purchase price when the lookup fails) and removes the
// holding, both in one SQL transaction.
func (s *LedgerService) DeleteHolding(ctx context.Context, userID, holdingID string) (ledger.RealizedTransaction, error) {
	l := s.lockUser(userID)
	l.Lock()
	defer l.Unlock()

	h, err := s.holdings.GetByID(userID, holdingID)
	if err != nil {
		return ledger.RealizedTransaction{}, err
	}
	if h == nil {
		return ledger.RealizedTransaction{}, domain.NotFoundf("holding %s", holdingID)
	}

	sellPrice := s.resolveSellPrice(ctx, h.Symbol, h.PurchasePrice)
	rt := ledger.BuildDisposal(userID, h.Symbol, h.Quantity, h.PurchasePrice, sellPrice, h.PortfolioName, s.now())

	if err := s.dispose(userID, []Holding{*h}, []ledger.RealizedTransaction{rt}); err != nil {
		return ledger.RealizedTransaction{}, err
	}

	s.activity.Record(userID, "stock_removed",
		fmt.Sprintf("Removed %s %s from portfolio %q, gain/loss %s", h.Quantity, h.Symbol, h.PortfolioName, rt.GainLoss))

	return rt, nil
}

// DeletePortfolio closes every holding sharing the portfolio name as one
// logical operation. Price lookups run concurrently and fail independently;
// the disposals commit in a single SQL transaction.
func (s *LedgerService) DeletePortfolio(ctx context.Context, userID, portfolioName string) ([]ledger.RealizedTransaction, error) {
	l := s.lockUser(userID)
	l.Lock()
	defer l.Unlock()

	holdings, err := s.holdings.ListByPortfolio(userID, portfolioName)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, domain.NotFoundf("portfolio %q", portfolioName)
	}

	prices := s.resolveSellPrices(ctx, holdings)

	now := s.now()
	transactions := make([]ledger.RealizedTransaction, len(holdings))
	totalGainLoss := decimal.Zero
	for i, h := range holdings {
		transactions[i] = ledger.BuildDisposal(userID, h.Symbol, h.Quantity, h.PurchasePrice, prices[h.ID], h.PortfolioName, now)
		totalGainLoss = totalGainLoss.Add(transactions[i].GainLoss)
	}

	if err := s.dispose(userID, holdings, transactions); err != nil {
		return nil, err
	}

	s.activity.Record(userID, "portfolio_deleted",
		fmt.Sprintf("Deleted portfolio %q: closed %d holdings, total gain/loss %s", portfolioName, len(holdings), totalGainLoss))

	return transactions, nil
}

// dispose appends the realized transactions and removes the holdings in one
// SQL transaction: either all become visible or none do.
func (s *LedgerService) dispose(userID string, holdings []Holding, transactions []ledger.RealizedTransaction) error {
	tx, err := s.ledgerDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin disposal transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, h := range holdings {
		if err := s.realized.AppendTx(tx, transactions[i]); err != nil {
			return err
		}

		removed, err := s.holdings.DeleteByIDTx(tx, userID, h.ID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("holding %s vanished during disposal", h.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit disposal transaction: %w", err)
	}

	return nil
}

// resolveSellPrice looks up the current price with a bounded timeout.
// Any failure falls back to the purchase price - this degrades the recorded
// gain/loss to zero instead of failing the disposal.
func (s *LedgerService) resolveSellPrice(ctx context.Context, symbol string, purchasePrice decimal.Decimal) decimal.Decimal {
	ctx, cancel := context.WithTimeout(ctx, s.priceTimeout)
	defer cancel()

	price, err := s.oracle.CurrentPrice(ctx, symbol)
	if err != nil || !price.IsPositive() {
		s.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Msg("Price lookup failed, falling back to purchase price")
		return purchasePrice
	}

	return price
}

// resolveSellPrices resolves prices for a batch of holdings, one concurrent
// lookup per distinct symbol. A failed lookup for one symbol does not affect
// the others; each resolves to its own fallback. The result maps holding id
// to sell price.
func (s *LedgerService) resolveSellPrices(ctx context.Context, holdings []Holding) map[string]decimal.Decimal {
	seen := make(map[string]bool)
	var symbols []string
	for _, h := range holdings {
		if !seen[h.Symbol] {
			seen[h.Symbol] = true
			symbols = append(symbols, h.Symbol)
		}
	}

	resolved := make(map[string]decimal.Decimal, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			lctx, cancel := context.WithTimeout(ctx, s.priceTimeout)
			defer cancel()

			price, err := s.oracle.CurrentPrice(lctx, symbol)
			if err != nil || !price.IsPositive() {
				s.log.Warn().
					Err(err).
					Str("symbol", symbol).
					Msg("Price lookup failed, falling back to purchase price")
				return
			}

			mu.Lock()
			resolved[symbol] = price
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	prices := make(map[string]decimal.Decimal, len(holdings))
	for _, h := range holdings {
		if price, ok := resolved[h.Symbol]; ok {
			prices[h.ID] = price
		} else {
			prices[h.ID] = h.PurchasePrice
		}
	}

	return prices
}
