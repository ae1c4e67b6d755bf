package shared

import (
	"context"
	"time"
)

// StatsFetcher defines the requirements for fetching dashboard statistics.
type StatsFetcher interface {
	// FetchStats fetches the raw dashboard statistics payload for a ticker.
	FetchStats(ctx context.Context, ticker string, start time.Time, end time.Time) ([]byte, error)
}

// ScrapeTrigger defines the requirements for triggering a news source scrape.
type ScrapeTrigger interface {
	// TriggerScrape triggers a scrape of the provided news source.
	TriggerScrape(ctx context.Context, source string, start time.Time, end time.Time) error
}

// HistoryFetcher defines the requirements for fetching historical price data.
type HistoryFetcher interface {
	// FetchHistory fetches the daily OHLCV series for a ticker.
	FetchHistory(ctx context.Context, ticker string, start time.Time, end time.Time) ([]DataPoint, error)
}

// AnalysisFetcher defines the requirements for fetching price analysis.
type AnalysisFetcher interface {
	// FetchAnalysis fetches the support/resistance levels and trade plan for a ticker.
	FetchAnalysis(ctx context.Context, ticker string) (*Analysis, error)
}

// Backend defines the full set of backend collaborator requirements.
type Backend interface {
	StatsFetcher
	ScrapeTrigger
	HistoryFetcher
	AnalysisFetcher
}
