package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/moodboard/shared"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	statsPath    = "/api/stats"
	scrapePath   = "/api/scrape/{source}"
	historyPath  = "/api/history"
	analysisPath = "/api/analysis"

	// defaultTimeout is the default request timeout for backend requests.
	defaultTimeout = time.Second * 30
)

// BackendConfig represents the configuration for the backend client.
type BackendConfig struct {
	// BaseURL is the backend base url.
	BaseURL string
	// Timeout is the request timeout, defaults to 30 seconds.
	Timeout time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *BackendConfig) Validate() error {
	var errs error

	if cfg.BaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("base url cannot be an empty string"))
	}
	if cfg.Timeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("timeout cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// BackendClient represents the dashboard backend api client.
type BackendClient struct {
	cfg    *BackendConfig
	client *resty.Client
}

// Ensure the backend client implements the Backend interface.
var _ shared.Backend = (*BackendClient)(nil)

// NewBackendClient instantiates a new backend client.
func NewBackendClient(cfg *BackendConfig) (*BackendClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating backend config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	return &BackendClient{
		cfg:    cfg,
		client: client,
	}, nil
}

// rangeParams forms the query parameters for a ticker and date range.
func rangeParams(ticker string, start time.Time, end time.Time) map[string]string {
	params := map[string]string{
		"start": start.Format(shared.DayLayout),
		"end":   end.Format(shared.DayLayout),
	}
	if ticker != "" {
		params["ticker"] = ticker
	}

	return params
}

// checkResponse asserts the provided response is a success.
func checkResponse(resp *resty.Response, what string) error {
	if resp.IsError() {
		return fmt.Errorf("%s: unexpected status %d: %s", what, resp.StatusCode(), resp.String())
	}

	return nil
}

// FetchStats fetches the raw dashboard statistics payload for a ticker.
func (c *BackendClient) FetchStats(ctx context.Context, ticker string, start time.Time, end time.Time) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(rangeParams(ticker, start, end)).
		Get(statsPath)
	if err != nil {
		return nil, fmt.Errorf("fetching stats for %s: %w", ticker, err)
	}

	err = checkResponse(resp, fmt.Sprintf("fetching stats for %s", ticker))
	if err != nil {
		return nil, err
	}

	return resp.Body(), nil
}

// TriggerScrape triggers a scrape of the provided news source.
func (c *BackendClient) TriggerScrape(ctx context.Context, source string, start time.Time, end time.Time) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("source", source).
		SetQueryParams(rangeParams("", start, end)).
		Post(scrapePath)
	if err != nil {
		return fmt.Errorf("triggering scrape for %s: %w", source, err)
	}

	return checkResponse(resp, fmt.Sprintf("triggering scrape for %s", source))
}

// historyEntries returns the history entries of the provided payload. The
// entries are either the payload itself or nested under a data field.
func historyEntries(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json payload")
	}

	res := gjson.ParseBytes(body)
	switch {
	case res.IsArray():
		return res.Array(), nil
	case res.Get("data").IsArray():
		return res.Get("data").Array(), nil
	default:
		return nil, fmt.Errorf("unexpected history payload type: %s", res.Type)
	}
}

// FetchHistory fetches the daily OHLCV series for a ticker.
func (c *BackendClient) FetchHistory(ctx context.Context, ticker string, start time.Time, end time.Time) ([]shared.DataPoint, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(rangeParams(ticker, start, end)).
		Get(historyPath)
	if err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", ticker, err)
	}

	err = checkResponse(resp, fmt.Sprintf("fetching history for %s", ticker))
	if err != nil {
		return nil, err
	}

	entries, err := historyEntries(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("parsing history for %s: %w", ticker, err)
	}

	points, err := shared.ParseDataPoints(entries)
	if err != nil {
		return nil, fmt.Errorf("parsing history for %s: %w", ticker, err)
	}

	return points, nil
}

// FetchAnalysis fetches the support/resistance levels and trade plan for a ticker.
func (c *BackendClient) FetchAnalysis(ctx context.Context, ticker string) (*shared.Analysis, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("ticker", ticker).
		Get(analysisPath)
	if err != nil {
		return nil, fmt.Errorf("fetching analysis for %s: %w", ticker, err)
	}

	// A ticker without analysis has no overlays.
	if resp.StatusCode() == http.StatusNotFound {
		return &shared.Analysis{Levels: shared.Levels{
			Supports:    []float64{},
			Resistances: []float64{},
		}}, nil
	}

	err = checkResponse(resp, fmt.Sprintf("fetching analysis for %s", ticker))
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(resp.Body()) {
		return nil, fmt.Errorf("parsing analysis for %s: invalid json payload", ticker)
	}

	data := gjson.ParseBytes(resp.Body())
	analysis, err := shared.ParseAnalysis(data)
	if err != nil {
		// The levels stay usable without the trade plan.
		c.cfg.Logger.Error().Str("ticker", ticker).Msgf("discarding trade plan (%v): %s",
			err, spew.Sdump(data.Get("trade_plan").Value()))
	}

	return analysis, nil
}
