package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"stockfolio/internal/domain"
	"stockfolio/internal/modules/ledger"
)

// stubOracle serves fixed prices; symbols without a price return an error.
type stubOracle struct {
	prices map[string]decimal.Decimal
}

func (o *stubOracle) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := o.prices[symbol]
	if !ok {
		return decimal.Zero, errors.New("quote unavailable")
	}
	return price, nil
}

func (o *stubOracle) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	price, err := o.CurrentPrice(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{Symbol: symbol, Price: price, OpenPrice: price, AsOf: time.Now()}, nil
}

// recordingLogger captures audit events.
type recordingLogger struct {
	events []string
}

func (l *recordingLogger) Record(userID, eventType, description string) {
	l.events = append(l.events, eventType)
}

func setupLedgerDB(t *testing.T) *sql.DB {
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

	return db
}

func setupService(t *testing.T, oracle domain.PriceOracle) (*LedgerService, *recordingLogger) {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	db := setupLedgerDB(t)

	holdings := NewHoldingRepository(db, log)
	realized := ledger.NewRealizedRepository(db, log)
	recorder := &recordingLogger{}

	svc := NewLedgerService(holdings, realized, db, oracle, recorder, time.Second, log)
	return svc, recorder
}

func addStock(t *testing.T, svc *LedgerService, userID, symbol, portfolio string, quantity, price int64) Holding {
	t.Helper()

	h, err := svc.AddStock(context.Background(), userID, AddStockInput{
		Symbol:        symbol,
		Quantity:      decimal.NewFromInt(quantity),
		PurchasePrice: decimal.NewFromInt(price),
		TotalValue:    decimal.NewFromInt(quantity * price),
		PortfolioName: portfolio,
	})
	require.NoError(t, err)
	return h
}

func TestAddStock_PersistsHolding(t *testing.T) {
	svc, recorder := setupService(t, &stubOracle{})

	h := addStock(t, svc, "user-1", "aapl", "Growth", 10, 150)
	assert.Equal(t, "AAPL", h.Symbol)

	holdings, err := svc.ListHoldings("user-1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, h.ID, holdings[0].ID)
	assert.True(t, holdings[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, []string{"stock_added"}, recorder.events)
}

func TestAddStock_InvalidInputLeavesNoRow(t *testing.T) {
	svc, recorder := setupService(t, &stubOracle{})

	_, err := svc.AddStock(context.Background(), "user-1", AddStockInput{
		Symbol:        "AAPL",
		Quantity:      decimal.Zero,
		PurchasePrice: decimal.NewFromInt(150),
		TotalValue:    decimal.NewFromInt(1500),
		PortfolioName: "Growth",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	holdings, err := svc.ListHoldings("user-1")
	require.NoError(t, err)
	assert.Empty(t, holdings)
	assert.Empty(t, recorder.events)
}

func TestDeleteHolding_RecordsRealizedGain(t *testing.T) {
	oracle := &stubOracle{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(180),
	}}
	svc, _ := setupService(t, oracle)

	h := addStock(t, svc, "user-1", "AAPL", "Growth", 10, 150)

	rt, err := svc.DeleteHolding(context.Background(), "user-1", h.ID)
	require.NoError(t, err)

	assert.True(t, rt.SellPrice.Equal(decimal.NewFromInt(180)))
	assert.True(t, rt.GainLoss.Equal(decimal.NewFromInt(300)),
		"gain should be (180-150)*10, got %s", rt.GainLoss)

	holdings, err := svc.ListHoldings("user-1")
	require.NoError(t, err)
	assert.Empty(t, holdings, "holding should be gone after disposal")

	transactions, err := svc.ListRealized("user-1")
	require.NoError(t, err)
	require.Len(t, transactions, 1, "disposal should produce exactly one realized transaction")
	assert.True(t, transactions[0].GainLoss.Equal(decimal.NewFromInt(300)))
}

func TestDeleteHolding_OracleFailureFallsBackToPurchasePrice(t *testing.T) {
	svc, _ := setupService(t, &stubOracle{}) // no prices: every lookup fails

	h := addStock(t, svc, "user-1", "AAPL", "Growth", 10, 150)

	rt, err := svc.DeleteHolding(context.Background(), "user-1", h.ID)
	require.NoError(t, err, "price failure must not fail the disposal")

	assert.True(t, rt.SellPrice.Equal(decimal.NewFromInt(150)),
		"sell price should fall back to purchase price, got %s", rt.SellPrice)
	assert.True(t, rt.GainLoss.IsZero(), "fallback disposal records zero gain/loss")
}

func TestDeleteHolding_NonPositivePriceFallsBack(t *testing.T) {
	oracle := &stubOracle{prices: map[string]decimal.Decimal{
		"AAPL": decimal.Zero,
	}}
	svc, _ := setupService(t, oracle)

	h := addStock(t, svc, "user-1", "AAPL", "Growth", 10, 150)

	rt, err := svc.DeleteHolding(context.Background(), "user-1", h.ID)
	require.NoError(t, err)
	assert.True(t, rt.SellPrice.Equal(decimal.NewFromInt(150)))
	assert.True(t, rt.GainLoss.IsZero())
}

func TestDeleteHolding_UnknownID(t *testing.T) {
	svc, _ := setupService(t, &stubOracle{})

	addStock(t, svc, "user-1", "AAPL", "Growth", 10, 150)

	_, err := svc.DeleteHolding(context.Background(), "user-1", "no-such-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	transactions, err := svc.ListRealized("user-1")
	require.NoError(t, err)
	assert.Empty(t, transactions, "failed delete must not create realized transactions")

	holdings, err := svc.ListHoldings("user-1")
	require.NoError(t, err)
	assert.Len(t, holdings, 1, "failed delete must leave the holding untouched")
}

func TestDeleteHolding_OtherUsersHoldingIsInvisible(t *testing.T) {
	svc, _ := setupService(t, &stubOracle{})

	h := addStock(t, svc, "user-1", "AAPL", "Growth", 10, 150)

	_, err := svc.DeleteHolding(context.Background(), "user-2", h.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	holdings, err := svc.ListHoldings("user-1")
	require.NoError(t, err)
	assert.Len(t, holdings, 1)
}

func TestDeletePortfolio_ClosesOnlyNamedHoldings(t *testing.T) {
	oracle := &stubOracle{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(180),
		// MSFT intentionally unpriced: its disposal falls back
	}}
	svc, recorder := setupService(t, oracle)

	addStock(t, svc, "user-1", "AAPL", "Growth", 10, 150)
	addStock(t, svc, "user-1", "MSFT", "Growth", 5, 300)
	keep := addStock(t, svc, "user-1", "TSLA", "Speculative", 2, 200)

	transactions, err := svc.DeletePortfolio(context.Background(), "user-1", "Growth")
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	bySymbol := map[string]ledger.RealizedTransaction{}
	for _, rt := range transactions {
		bySymbol[rt.Symbol] = rt
	}
	assert.True(t, bySymbol["AAPL"].GainLoss.Equal(decimal.NewFromInt(300)))
	assert.True(t, bySymbol["MSFT"].GainLoss.IsZero(), "unpriced symbol falls back independently")

	holdings, err := svc.ListHoldings("user-1")
	require.NoError(t, err)
	require.Len(t, holdings, 1, "holdings outside the portfolio must survive")
	assert.Equal(t, keep.ID, holdings[0].ID)

	assert.Contains(t, recorder.events, "portfolio_deleted")
}

func TestDeletePortfolio_UnknownName(t *testing.T) {
	svc, _ := setupService(t, &stubOracle{})

	addStock(t, svc, "user-1", "AAPL", "Growth", 10, 150)

	_, err := svc.DeletePortfolio(context.Background(), "user-1", "Nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	transactions, err := svc.ListRealized("user-1")
	require.NoError(t, err)
	assert.Empty(t, transactions)
}
