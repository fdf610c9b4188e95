package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time market quote for a symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	OpenPrice decimal.Decimal `json:"openPrice"` // Day open; zero when the provider has no intraday data
	AsOf      time.Time       `json:"asOf"`
}

// PriceOracle provides current market prices for symbols.
// Implementations must honor the context deadline; callers treat any error
// (including timeout) as ErrUpstreamUnavailable and apply their own fallback.
type PriceOracle interface {
	// CurrentPrice returns the latest price for symbol.
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetQuote returns the latest quote including the day-open price.
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}
