package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "stocktracker/internal/errors"
	"stocktracker/internal/models"
)

// Alpha Vantage GLOBAL_QUOTE field keys. The upstream document is flat with
// numbered string fields; all knowledge of this shape stays in this package.
const (
	fieldSymbol        = "01. symbol"
	fieldOpen          = "02. open"
	fieldHigh          = "03. high"
	fieldLow           = "04. low"
	fieldPrice         = "05. price"
	fieldVolume        = "06. volume"
	fieldPrevClose     = "08. previous close"
	fieldChange        = "09. change"
	fieldChangePercent = "10. change percent"
)

// ClientConfig holds settings for the Alpha Vantage client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client fetches quotes from the Alpha Vantage GLOBAL_QUOTE endpoint.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a new Alpha Vantage client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co/query"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "quote").Logger(),
	}
}

type globalQuoteEnvelope struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	Note         string            `json:"Note"`
	ErrorMessage string            `json:"Error Message"`
}

// Fetch performs one bounded round trip for the given symbol and normalizes
// the response. Transport errors, non-2xx statuses and missing or empty
// payloads all come back as a *errors.FetchError; the call never panics or
// returns a partial quote.
func (c *Client) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewFetchError(symbol, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchError(symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, apperrors.NewFetchError(symbol,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var env globalQuoteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, apperrors.NewFetchError(symbol, fmt.Errorf("decode response: %w", err))
	}
	if env.ErrorMessage != "" {
		return nil, apperrors.NewFetchError(symbol, fmt.Errorf("upstream error: %s", env.ErrorMessage))
	}
	// Alpha Vantage reports throttling with a 200 and a "Note" field.
	if env.Note != "" {
		return nil, apperrors.NewFetchError(symbol, fmt.Errorf("upstream throttled: %s", env.Note))
	}
	if len(env.GlobalQuote) == 0 {
		return nil, apperrors.NewFetchError(symbol, fmt.Errorf("empty quote payload"))
	}

	quote := c.normalize(symbol, env.GlobalQuote)
	c.logger.Debug().
		Str("symbol", quote.Symbol).
		Str("price", quote.Price.String()).
		Msg("Fetched quote")
	return quote, nil
}

// normalize maps the raw field document onto a Quote. Numeric fields are
// parsed defensively: a missing or malformed field becomes zero rather than
// failing the whole quote.
func (c *Client) normalize(symbol string, fields map[string]string) *models.Quote {
	if s := strings.TrimSpace(fields[fieldSymbol]); s != "" {
		symbol = s
	}
	return &models.Quote{
		Symbol:        symbol,
		Price:         parseDecimal(fields[fieldPrice]),
		Volume:        parseVolume(fields[fieldVolume]),
		Open:          parseDecimal(fields[fieldOpen]),
		High:          parseDecimal(fields[fieldHigh]),
		Low:           parseDecimal(fields[fieldLow]),
		PreviousClose: parseDecimal(fields[fieldPrevClose]),
		Change:        parseDecimal(fields[fieldChange]),
		ChangePercent: parsePercent(fields[fieldChangePercent]),
		FetchedAt:     time.Now().UTC(),
	}
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parsePercent strips the trailing percent sign the upstream formats the
// change-percent field with before parsing.
func parsePercent(s string) decimal.Decimal {
	return parseDecimal(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

func parseVolume(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
