package marketdata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"stockfolio/internal/config"
	"stockfolio/internal/domain"
)

// Handler handles market-data HTTP requests: live quotes, the quote stream,
// and the news/video proxies.
type Handler struct {
	oracle       domain.PriceOracle
	cfg          *config.Config
	proxyClient  *http.Client
	streamPeriod time.Duration
	log          zerolog.Logger
}

// NewHandler creates a new market-data handler
func NewHandler(oracle domain.PriceOracle, cfg *config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		oracle:       oracle,
		cfg:          cfg,
		proxyClient:  &http.Client{Timeout: 10 * time.Second},
		streamPeriod: 5 * time.Second,
		log:          log.With().Str("handler", "marketdata").Logger(),
	}
}

// RegisterRoutes registers all market-data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/stock/live/{symbols}", h.HandleLiveQuotes)
	r.Get("/api/stock/stream", h.HandleQuoteStream)
	r.Get("/api/news", h.HandleNewsProxy)
	r.Get("/api/videos", h.HandleVideoProxy)
}

// HandleLiveQuotes returns quotes for a comma-separated symbol list.
// Lookups run concurrently; symbols whose lookup fails are reported in a
// separate list rather than failing the whole response.
func (h *Handler) HandleLiveQuotes(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "symbols")

	var symbols []string
	seen := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}

	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "no symbols given")
		return
	}

	quotes, missing := h.lookupQuotes(r.Context(), symbols)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"quotes":      quotes,
		"unavailable": missing,
	})
}

// HandleQuoteStream upgrades to a websocket and pushes quotes for the
// symbols the client subscribes to until the client disconnects.
func (h *Handler) HandleQuoteStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := r.Context()

	// First client message selects the symbols to stream.
	var sub struct {
		Symbols []string `json:"symbols"`
	}
	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = wsjson.Read(readCtx, conn, &sub)
	cancel()
	if err != nil || len(sub.Symbols) == 0 {
		conn.Close(websocket.StatusPolicyViolation, "expected subscribe message with symbols")
		return
	}

	symbols := make([]string, 0, len(sub.Symbols))
	for _, s := range sub.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}

	ticker := time.NewTicker(h.streamPeriod)
	defer ticker.Stop()

	for {
		quotes, _ := h.lookupQuotes(ctx, symbols)
		if err := wsjson.Write(ctx, conn, map[string]interface{}{"quotes": quotes}); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

// lookupQuotes fetches quotes concurrently and splits results into found and
// unavailable symbols.
func (h *Handler) lookupQuotes(ctx context.Context, symbols []string) ([]domain.Quote, []string) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	found := make(map[string]domain.Quote)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			lctx, cancel := context.WithTimeout(ctx, h.cfg.PriceTimeout)
			defer cancel()

			quote, err := h.oracle.GetQuote(lctx, symbol)
			if err != nil {
				return
			}

			mu.Lock()
			found[symbol] = quote
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	quotes := make([]domain.Quote, 0, len(found))
	var missing []string
	for _, symbol := range symbols {
		if quote, ok := found[symbol]; ok {
			quotes = append(quotes, quote)
		} else {
			missing = append(missing, symbol)
		}
	}

	return quotes, missing
}

// HandleNewsProxy passes the news search through to the configured upstream.
func (h *Handler) HandleNewsProxy(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, h.cfg.NewsAPIURL, h.cfg.NewsAPIKey)
}

// HandleVideoProxy passes the video search through to the configured upstream.
func (h *Handler) HandleVideoProxy(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, h.cfg.VideoAPIURL, h.cfg.VideoAPIKey)
}

// proxy forwards the caller's query string to an upstream, adding the API
// key, and streams the JSON response back unchanged.
func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, upstream, apiKey string) {
	if upstream == "" {
		h.writeError(w, http.StatusServiceUnavailable, "upstream not configured")
		return
	}

	target, err := url.Parse(upstream)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "invalid upstream URL")
		return
	}

	query := r.URL.Query()
	if apiKey != "" {
		query.Set("apikey", apiKey)
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}

	resp, err := h.proxyClient.Do(req)
	if err != nil {
		h.log.Warn().Err(err).Str("upstream", upstream).Msg("Proxy request failed")
		h.writeError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.log.Warn().Err(err).Msg("Proxy response copy failed")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
