// Package yahoo implements the price provider contract against the Yahoo
// Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfolio/quantfolio/internal/domain"
	"github.com/quantfolio/quantfolio/internal/modules/marketdata"
)

const chartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// ValidPeriods are the range values the chart API accepts.
var ValidPeriods = map[string]bool{
	"1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "max": true,
}

// Client fetches daily price history from Yahoo Finance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewClient creates a Yahoo Finance client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    chartBaseURL,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// NewClientWithBaseURL points the client at an alternate endpoint, for tests.
func NewClientWithBaseURL(baseURL string, log zerolog.Logger) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

var _ marketdata.Provider = (*Client)(nil)

// Fetch returns the daily closing price series for symbol over the named
// period. Unknown symbols map to NotFoundError; transport and upstream
// failures map to TransientError.
func (c *Client) Fetch(ctx context.Context, symbol, period string) (domain.PriceSeries, error) {
	if !ValidPeriods[period] {
		return domain.PriceSeries{}, fmt.Errorf("invalid period %q", period)
	}

	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("range", period)
	reqURL := c.baseURL + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PriceSeries{}, &marketdata.TransientError{Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.PriceSeries{}, &marketdata.NotFoundError{Symbol: symbol}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.PriceSeries{}, &marketdata.TransientError{
			Symbol: symbol,
			Err:    fmt.Errorf("chart API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceSeries{}, &marketdata.TransientError{Symbol: symbol, Err: err}
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.PriceSeries{}, &marketdata.TransientError{
			Symbol: symbol,
			Err:    fmt.Errorf("failed to parse chart response: %w", err),
		}
	}

	if parsed.Chart.Error != nil {
		if parsed.Chart.Error.Code == "Not Found" {
			return domain.PriceSeries{}, &marketdata.NotFoundError{Symbol: symbol}
		}
		return domain.PriceSeries{}, &marketdata.TransientError{
			Symbol: symbol,
			Err:    fmt.Errorf("chart API error: %s", parsed.Chart.Error.Description),
		}
	}

	if len(parsed.Chart.Result) == 0 {
		return domain.PriceSeries{}, &marketdata.NotFoundError{Symbol: symbol}
	}

	series := toSeries(symbol, parsed.Chart.Result[0])
	c.log.Debug().
		Str("symbol", symbol).
		Str("period", period).
		Int("points", series.Len()).
		Msg("Fetched price history")

	return series, nil
}

// toSeries converts a chart result into a price series, preferring the
// adjusted close and skipping days with missing quotes.
func toSeries(symbol string, r chartResult) domain.PriceSeries {
	closes := []float64(nil)
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		closes = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}

	series := domain.PriceSeries{Symbol: symbol}
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == 0 {
			continue
		}
		series.Points = append(series.Points, domain.PricePoint{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close: closes[i],
		})
	}
	return series
}
