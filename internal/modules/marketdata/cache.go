package marketdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"stockfolio/internal/domain"
)

// cachedQuote is the msgpack payload stored in cache.db.
// Decimals travel as strings to keep exact values.
type cachedQuote struct {
	Symbol    string `msgpack:"symbol"`
	Price     string `msgpack:"price"`
	OpenPrice string `msgpack:"open_price"`
	AsOfUnix  int64  `msgpack:"as_of"`
}

// QuoteCache stores recent quotes in cache.db. Entries past the TTL are
// ignored by readers and pruned by a scheduled job.
type QuoteCache struct {
	cacheDB *sql.DB
	ttl     time.Duration
	log     zerolog.Logger
}

// NewQuoteCache creates a new quote cache
func NewQuoteCache(cacheDB *sql.DB, ttl time.Duration, log zerolog.Logger) *QuoteCache {
	return &QuoteCache{
		cacheDB: cacheDB,
		ttl:     ttl,
		log:     log.With().Str("repo", "quote_cache").Logger(),
	}
}

// Get returns the cached quote for symbol, or false when absent or stale.
func (c *QuoteCache) Get(symbol string) (domain.Quote, bool) {
	var payload []byte
	var cachedAt int64

	err := c.cacheDB.QueryRow(
		"SELECT payload, cached_at FROM quote_cache WHERE symbol = ?", symbol,
	).Scan(&payload, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quote{}, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed")
		return domain.Quote{}, false
	}

	if time.Since(time.Unix(cachedAt, 0)) > c.ttl {
		return domain.Quote{}, false
	}

	var cq cachedQuote
	if err := msgpack.Unmarshal(payload, &cq); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache payload corrupt")
		return domain.Quote{}, false
	}

	quote, err := cq.toQuote()
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache payload invalid")
		return domain.Quote{}, false
	}

	return quote, true
}

// Put stores a quote. Cache write failures are logged, never surfaced - the
// cache is rebuildable.
func (c *QuoteCache) Put(quote domain.Quote) {
	payload, err := msgpack.Marshal(cachedQuote{
		Symbol:    quote.Symbol,
		Price:     quote.Price.String(),
		OpenPrice: quote.OpenPrice.String(),
		AsOfUnix:  quote.AsOf.Unix(),
	})
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", quote.Symbol).Msg("Quote cache encode failed")
		return
	}

	_, err = c.cacheDB.Exec(
		"INSERT OR REPLACE INTO quote_cache (symbol, payload, cached_at) VALUES (?, ?, ?)",
		quote.Symbol, payload, time.Now().Unix(),
	)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", quote.Symbol).Msg("Quote cache write failed")
	}
}

// Prune deletes entries older than the TTL and returns the number removed.
func (c *QuoteCache) Prune() (int64, error) {
	cutoff := time.Now().Add(-c.ttl).Unix()

	result, err := c.cacheDB.Exec("DELETE FROM quote_cache WHERE cached_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune quote cache: %w", err)
	}

	removed, _ := result.RowsAffected()
	return removed, nil
}

func (cq cachedQuote) toQuote() (domain.Quote, error) {
	price, err := decimal.NewFromString(cq.Price)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("invalid cached price %q: %w", cq.Price, err)
	}

	quote := domain.Quote{
		Symbol: cq.Symbol,
		Price:  price,
		AsOf:   time.Unix(cq.AsOfUnix, 0).UTC(),
	}

	if open, err := decimal.NewFromString(cq.OpenPrice); err == nil {
		quote.OpenPrice = open
	}

	return quote, nil
}

// CachedOracle decorates a PriceOracle with the sqlite quote cache.
type CachedOracle struct {
	next  domain.PriceOracle
	cache *QuoteCache
}

// NewCachedOracle creates a new caching oracle decorator
func NewCachedOracle(next domain.PriceOracle, cache *QuoteCache) *CachedOracle {
	return &CachedOracle{next: next, cache: cache}
}

// CurrentPrice returns the latest price for symbol, preferring the cache.
func (o *CachedOracle) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := o.GetQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Price, nil
}

// GetQuote returns the latest quote for symbol, preferring the cache.
func (o *CachedOracle) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if quote, ok := o.cache.Get(symbol); ok {
		return quote, nil
	}

	quote, err := o.next.GetQuote(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}

	o.cache.Put(quote)
	return quote, nil
}

// PruneJob is the scheduled cache-pruning job.
type PruneJob struct {
	cache *QuoteCache
	log   zerolog.Logger
}

// NewPruneJob creates a new cache prune job
func NewPruneJob(cache *QuoteCache, log zerolog.Logger) *PruneJob {
	return &PruneJob{cache: cache, log: log.With().Str("job", "quote_cache_prune").Logger()}
}

// Name returns the job name
func (j *PruneJob) Name() string { return "quote_cache_prune" }

// Run prunes stale cache entries
func (j *PruneJob) Run() error {
	removed, err := j.cache.Prune()
	if err != nil {
		return err
	}

	if removed > 0 {
		j.log.Debug().Int64("removed", removed).Msg("Pruned stale quotes")
	}
	return nil
}
