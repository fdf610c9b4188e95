package reporting

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"stockfolio/internal/domain"
	"stockfolio/internal/modules/ledger"
	"stockfolio/internal/modules/portfolio"
)

// stubOracle serves fixed quotes; symbols without one return an error.
type stubOracle struct {
	quotes map[string]domain.Quote
}

func (o *stubOracle) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, ok := o.quotes[symbol]
	if !ok {
		return decimal.Zero, errors.New("quote unavailable")
	}
	return q.Price, nil
}

func (o *stubOracle) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	q, ok := o.quotes[symbol]
	if !ok {
		return domain.Quote{}, errors.New("quote unavailable")
	}
	return q, nil
}

type fixture struct {
	svc      *Service
	holdings *portfolio.HoldingRepository
	realized *ledger.RealizedRepository
	db       *sql.DB
}

func setupReporting(t *testing.T, oracle domain.PriceOracle) fixture {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Single connection so every query sees the same in-memory database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE holdings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			quantity TEXT NOT NULL,
			purchase_price TEXT NOT NULL,
			total_value TEXT NOT NULL,
			portfolio_name TEXT NOT NULL,
			purchase_date INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE realized_transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			quantity TEXT NOT NULL,
			purchase_price TEXT NOT NULL,
			sell_price TEXT NOT NULL,
			gain_loss TEXT NOT NULL,
			portfolio_name TEXT NOT NULL,
			date_sold INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	holdings := portfolio.NewHoldingRepository(db, log)
	realized := ledger.NewRealizedRepository(db, log)
	svc := NewService(holdings, realized, oracle, time.Second, log)

	return fixture{svc: svc, holdings: holdings, realized: realized, db: db}
}

func (f fixture) addHolding(t *testing.T, userID, symbol, portfolioName string, quantity, price int64) {
	t.Helper()

	qty := decimal.NewFromInt(quantity)
	buy := decimal.NewFromInt(price)
	err := f.holdings.Create(portfolio.Holding{
		ID:            uuid.NewString(),
		UserID:        userID,
		Symbol:        symbol,
		Quantity:      qty,
		PurchasePrice: buy,
		TotalValue:    qty.Mul(buy),
		PortfolioName: portfolioName,
		PurchaseDate:  time.Now(),
	})
	require.NoError(t, err)
}

func (f fixture) addRealized(t *testing.T, userID, symbol, portfolioName string, quantity, buy, sell int64) {
	t.Helper()

	rt := ledger.BuildDisposal(userID, symbol,
		decimal.NewFromInt(quantity), decimal.NewFromInt(buy), decimal.NewFromInt(sell),
		portfolioName, time.Now())

	tx, err := f.db.Begin()
	require.NoError(t, err)
	require.NoError(t, f.realized.AppendTx(tx, rt))
	require.NoError(t, tx.Commit())
}

func quote(price, open int64) domain.Quote {
	return domain.Quote{
		Price:     decimal.NewFromInt(price),
		OpenPrice: decimal.NewFromInt(open),
		AsOf:      time.Now(),
	}
}

func TestPortfolioMetrics(t *testing.T) {
	f := setupReporting(t, &stubOracle{quotes: map[string]domain.Quote{
		"AAPL": quote(180, 175),
	}})

	f.addHolding(t, "user-1", "AAPL", "Growth", 10, 150)
	f.addHolding(t, "user-1", "MSFT", "Growth", 5, 300) // no quote: valued at cost
	f.addRealized(t, "user-1", "TSLA", "Growth", 4, 200, 250)

	m, err := f.svc.PortfolioMetrics(context.Background(), "user-1", "")
	require.NoError(t, err)

	// AAPL 10*180 + MSFT 5*300 fallback
	assert.True(t, m.TotalValue.Equal(decimal.NewFromInt(3300)), "totalValue = %s", m.TotalValue)
	assert.True(t, m.TotalStocksHeld.Equal(decimal.NewFromInt(15)))
	// Only AAPL moved: (180-150)*10
	assert.True(t, m.UnrealizedGainLoss.Equal(decimal.NewFromInt(300)))
	// TSLA: (250-200)*4 = 200 gain on 800 basis = 25%
	assert.True(t, m.RealizedGainLoss.Equal(decimal.NewFromInt(200)))
	assert.True(t, m.PercentageReturn.Equal(decimal.NewFromInt(25)), "percentageReturn = %s", m.PercentageReturn)
}

func TestPortfolioMetrics_ScopedToPortfolioName(t *testing.T) {
	f := setupReporting(t, &stubOracle{})

	f.addHolding(t, "user-1", "AAPL", "Growth", 10, 150)
	f.addHolding(t, "user-1", "TSLA", "Speculative", 2, 200)
	f.addRealized(t, "user-1", "NVDA", "Speculative", 1, 100, 150)

	m, err := f.svc.PortfolioMetrics(context.Background(), "user-1", "Growth")
	require.NoError(t, err)

	assert.Equal(t, "Growth", m.PortfolioName)
	assert.True(t, m.TotalValue.Equal(decimal.NewFromInt(1500)))
	assert.True(t, m.RealizedGainLoss.IsZero(), "other portfolio's realized gains excluded")
	assert.True(t, m.PercentageReturn.IsZero())
}

func TestPortfolioMetrics_NoRealizedMeansZeroReturn(t *testing.T) {
	f := setupReporting(t, &stubOracle{})

	f.addHolding(t, "user-1", "AAPL", "Growth", 10, 150)

	m, err := f.svc.PortfolioMetrics(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.True(t, m.PercentageReturn.IsZero())
}

func TestHoldingViews_FallsBackPerHolding(t *testing.T) {
	f := setupReporting(t, &stubOracle{quotes: map[string]domain.Quote{
		"AAPL": quote(180, 175),
	}})

	f.addHolding(t, "user-1", "AAPL", "Growth", 10, 150)
	f.addHolding(t, "user-1", "MSFT", "Growth", 5, 300)

	views, err := f.svc.HoldingViews(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.Len(t, views, 2)

	bySymbol := make(map[string]HoldingView, len(views))
	for _, v := range views {
		bySymbol[v.Symbol] = v
	}

	assert.True(t, bySymbol["AAPL"].CurrentPrice.Equal(decimal.NewFromInt(180)))
	assert.True(t, bySymbol["AAPL"].DayOpenPrice.Equal(decimal.NewFromInt(175)))
	assert.True(t, bySymbol["MSFT"].CurrentPrice.Equal(decimal.NewFromInt(300)), "unquoted symbol falls back to purchase price")
	assert.True(t, bySymbol["MSFT"].DayOpenPrice.Equal(decimal.NewFromInt(300)))
}

func TestDayChanges(t *testing.T) {
	f := setupReporting(t, &stubOracle{quotes: map[string]domain.Quote{
		"AAPL": quote(110, 100), // +10%
		"MSFT": quote(190, 200), // -5%
	}})

	f.addHolding(t, "user-1", "AAPL", "Growth", 10, 100)
	f.addHolding(t, "user-1", "MSFT", "Growth", 10, 200)

	report, err := f.svc.DayChanges(context.Background(), "user-1", "")
	require.NoError(t, err)

	// AAPL (110-100)*10 = 100, MSFT (190-200)*10 = -100
	assert.True(t, report.DayChangeAmount.IsZero(), "dayChangeAmount = %s", report.DayChangeAmount)
	assert.True(t, report.DayChangePercent.IsZero())

	require.NotNil(t, report.TopGainer)
	assert.Equal(t, "AAPL", report.TopGainer.Symbol)
	assert.True(t, report.TopGainer.ChangePercent.Equal(decimal.NewFromInt(10)))

	require.NotNil(t, report.TopLoser)
	assert.Equal(t, "MSFT", report.TopLoser.Symbol)
	assert.True(t, report.TopLoser.ChangePercent.Equal(decimal.NewFromInt(-5)))
}

func TestDayChanges_NoQuotesMeansFlat(t *testing.T) {
	f := setupReporting(t, &stubOracle{})

	f.addHolding(t, "user-1", "AAPL", "Growth", 10, 150)

	report, err := f.svc.DayChanges(context.Background(), "user-1", "")
	require.NoError(t, err)

	// Current and open both fall back to the purchase price.
	assert.True(t, report.DayChangeAmount.IsZero())
	require.NotNil(t, report.TopGainer)
	assert.True(t, report.TopGainer.ChangePercent.IsZero())
}

func TestChartsData(t *testing.T) {
	f := setupReporting(t, &stubOracle{quotes: map[string]domain.Quote{
		"AAPL": quote(180, 175),
	}})

	f.addHolding(t, "user-1", "AAPL", "Growth", 10, 150)
	f.addHolding(t, "user-1", "AAPL", "Growth", 5, 160) // same symbol: counts once
	f.addHolding(t, "user-1", "MSFT", "Growth", 2, 300)
	f.addHolding(t, "user-1", "TSLA", "Speculative", 1, 200)

	data, err := f.svc.ChartsData(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Growth": 2, "Speculative": 1}, data.StockCounts)

	// Growth: AAPL quoted at 180 for both lots (15 shares) + MSFT at cost.
	assert.True(t, data.CurrentValues["Growth"].Equal(decimal.NewFromInt(3300)),
		"growth value = %s", data.CurrentValues["Growth"])
	assert.True(t, data.CurrentValues["Speculative"].Equal(decimal.NewFromInt(200)))
}
