package marketdata

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
)

func setupCacheDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Single connection so every query sees the same in-memory database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE quote_cache (
			symbol TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			cached_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

func newTestCache(t *testing.T, ttl time.Duration) (*QuoteCache, *sql.DB) {
	t.Helper()
	db := setupCacheDB(t)
	return NewQuoteCache(db, ttl, zerolog.New(nil).Level(zerolog.Disabled)), db
}

func TestQuoteCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)

	want := domain.Quote{
		Symbol:    "AAPL",
		Price:     decimal.RequireFromString("180.25"),
		OpenPrice: decimal.RequireFromString("178.5"),
		AsOf:      time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC),
	}
	cache.Put(want)

	got, ok := cache.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.True(t, got.Price.Equal(want.Price), "price survives the round trip exactly")
	assert.True(t, got.OpenPrice.Equal(want.OpenPrice))
	assert.True(t, got.AsOf.Equal(want.AsOf))
}

func TestQuoteCache_GetMissing(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)

	_, ok := cache.Get("MSFT")
	assert.False(t, ok)
}

func TestQuoteCache_PutReplaces(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)

	cache.Put(domain.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(100), AsOf: time.Now()})
	cache.Put(domain.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(105), AsOf: time.Now()})

	got, ok := cache.Get("AAPL")
	require.True(t, ok)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(105)))
}

func TestQuoteCache_StaleEntryIgnored(t *testing.T) {
	cache, db := newTestCache(t, time.Minute)

	cache.Put(domain.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(100), AsOf: time.Now()})

	// Age the row past the TTL.
	_, err := db.Exec("UPDATE quote_cache SET cached_at = ? WHERE symbol = ?",
		time.Now().Add(-2*time.Minute).Unix(), "AAPL")
	require.NoError(t, err)

	_, ok := cache.Get("AAPL")
	assert.False(t, ok)
}

func TestQuoteCache_Prune(t *testing.T) {
	cache, db := newTestCache(t, time.Minute)

	cache.Put(domain.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(100), AsOf: time.Now()})
	cache.Put(domain.Quote{Symbol: "MSFT", Price: decimal.NewFromInt(300), AsOf: time.Now()})

	_, err := db.Exec("UPDATE quote_cache SET cached_at = ? WHERE symbol = ?",
		time.Now().Add(-2*time.Minute).Unix(), "AAPL")
	require.NoError(t, err)

	removed, err := cache.Prune()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, ok := cache.Get("MSFT")
	assert.True(t, ok, "fresh entry survives the prune")
}

// countingOracle records how many upstream lookups were made.
type countingOracle struct {
	quote domain.Quote
	err   error
	calls int
}

func (o *countingOracle) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := o.GetQuote(ctx, symbol)
	return q.Price, err
}

func (o *countingOracle) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	o.calls++
	if o.err != nil {
		return domain.Quote{}, o.err
	}
	return o.quote, nil
}

func TestCachedOracle_ServesFromCache(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)
	upstream := &countingOracle{quote: domain.Quote{
		Symbol: "AAPL",
		Price:  decimal.NewFromInt(180),
		AsOf:   time.Now(),
	}}
	oracle := NewCachedOracle(upstream, cache)

	for i := 0; i < 3; i++ {
		q, err := oracle.GetQuote(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.True(t, q.Price.Equal(decimal.NewFromInt(180)))
	}

	assert.Equal(t, 1, upstream.calls, "only the first lookup hits the provider")
}

func TestCachedOracle_UpstreamErrorNotCached(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)
	upstream := &countingOracle{err: errors.New("provider down")}
	oracle := NewCachedOracle(upstream, cache)

	_, err := oracle.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)

	_, err = oracle.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, 2, upstream.calls, "failures are retried, never cached")
}

func TestPruneJob_Run(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	job := NewPruneJob(cache, zerolog.New(nil).Level(zerolog.Disabled))

	assert.Equal(t, "quote_cache_prune", job.Name())
	assert.NoError(t, job.Run())
}
