// Package marketdata provides the price oracle (an external quote provider
// behind a cache), the live quote stream, and the news/video proxies.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/domain"
)

// Provider fetches quotes from an Alpha-Vantage-style GLOBAL_QUOTE endpoint.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewProvider creates a new quote provider. The http.Client carries no
// timeout of its own; callers bound each lookup via the context.
func NewProvider(baseURL, apiKey string, log zerolog.Logger) *Provider {
	return &Provider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
		log:     log.With().Str("client", "quotes").Logger(),
	}
}

// globalQuote is the provider's GLOBAL_QUOTE response shape.
type globalQuote struct {
	Quote struct {
		Symbol string `json:"01. symbol"`
		Open   string `json:"02. open"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// CurrentPrice returns the latest price for symbol.
func (p *Provider) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := p.GetQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Price, nil
}

// GetQuote returns the latest quote including the day-open price.
func (p *Provider) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Quote{}, domain.Validationf("symbol must not be empty")
	}

	reqURL := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		p.baseURL, url.QueryEscape(symbol), url.QueryEscape(p.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, fmt.Errorf("%w: quote provider returned %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var gq globalQuote
	if err := json.NewDecoder(resp.Body).Decode(&gq); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: failed to decode quote: %v", domain.ErrUpstreamUnavailable, err)
	}

	// The provider reports rate limiting as a 200 with a Note/Information body.
	if gq.Note != "" || gq.Information != "" {
		return domain.Quote{}, fmt.Errorf("%w: quote provider rate limited", domain.ErrUpstreamUnavailable)
	}

	price, err := decimal.NewFromString(gq.Quote.Price)
	if err != nil || !price.IsPositive() {
		return domain.Quote{}, fmt.Errorf("%w: no price for %s", domain.ErrUpstreamUnavailable, symbol)
	}

	quote := domain.Quote{
		Symbol: symbol,
		Price:  price,
		AsOf:   time.Now().UTC(),
	}

	// Day open is optional; a missing value just disables intraday reporting
	// for this symbol.
	if open, err := decimal.NewFromString(gq.Quote.Open); err == nil && open.IsPositive() {
		quote.OpenPrice = open
	}

	return quote, nil
}
