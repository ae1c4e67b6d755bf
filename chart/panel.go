package chart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dnldd/moodboard/invalidate"
	"github.com/dnldd/moodboard/shared"
	"github.com/rs/zerolog"
)

const (
	// DefaultPaddingCount is the default number of synthetic points reserved
	// for projections.
	DefaultPaddingCount = 10
)

// PanelConfig represents the chart panel configuration.
type PanelConfig struct {
	// History fetches the price series of the panel.
	History shared.HistoryFetcher
	// Analysis fetches the levels and trade plan of the panel.
	Analysis shared.AnalysisFetcher
	// PaddingCount is the number of synthetic points appended to the series.
	PaddingCount int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *PanelConfig) Validate() error {
	var errs error

	if cfg.History == nil {
		errs = errors.Join(errs, fmt.Errorf("history fetcher cannot be nil"))
	}
	if cfg.Analysis == nil {
		errs = errors.Join(errs, fmt.Errorf("analysis fetcher cannot be nil"))
	}
	if cfg.PaddingCount < 0 {
		errs = errors.Join(errs, fmt.Errorf("padding count cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Frame represents everything the renderer needs to draw the chart once.
type Frame struct {
	Props      Props              `json:"props"`
	Ticker     string             `json:"ticker"`
	Range      shared.DateRange   `json:"range"`
	Series     []shared.DataPoint `json:"series"`
	Domain     *Domain            `json:"domain,omitempty"`
	Overlays   []Overlay          `json:"overlays"`
	Primitives []Primitive        `json:"primitives"`
	// Placeholder signals the chart cannot be drawn and a placeholder
	// should be rendered instead.
	Placeholder bool   `json:"placeholder"`
	Reason      string `json:"reason,omitempty"`
}

// matches checks whether the frame was mounted for the provided inputs.
func (f *Frame) matches(ticker string, dr shared.DateRange) bool {
	return f != nil && f.Ticker == ticker && f.Range.Start.Equal(dr.Start) && f.Range.End.Equal(dr.End)
}

// placeholder returns a placeholder frame for the provided reason.
func placeholder(key uint64, ticker string, dr shared.DateRange, reason string) *Frame {
	return &Frame{
		Props:       Props{Key: key},
		Ticker:      ticker,
		Range:       dr,
		Placeholder: true,
		Reason:      reason,
	}
}

// Panel represents the chart subcomponent. It fetches its own series and
// remounts whenever its invalidation key or its declared inputs change.
type Panel struct {
	cfg      *PanelConfig
	observer invalidate.Observer
	frame    *Frame
	mtx      sync.Mutex
}

// NewPanel initializes a new chart panel.
func NewPanel(cfg *PanelConfig) (*Panel, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating panel config: %w", err)
	}

	return &Panel{cfg: cfg}, nil
}

// Sync returns the frame for the provided key and inputs, remounting the panel
// when either changed since the last sync. The returned flag reports whether a
// remount happened. Panel data is fetched without holding the panel lock.
func (p *Panel) Sync(ctx context.Context, key uint64, ticker string, dr shared.DateRange) (*Frame, bool) {
	current := p.Current()

	keyChanged := p.observer.Changed(key)
	if !keyChanged && current.matches(ticker, dr) {
		return current, false
	}

	frame := p.mount(ctx, key, ticker, dr)

	p.mtx.Lock()
	defer p.mtx.Unlock()

	// A frame mounted for a newer key meanwhile is kept.
	if p.frame != nil && p.frame.Props.Key > key {
		return p.frame, false
	}

	p.frame = frame

	return frame, true
}

// Current returns the last mounted frame, if any.
func (p *Panel) Current() *Frame {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return p.frame
}

// mount fetches the panel data and derives a fresh frame.
func (p *Panel) mount(ctx context.Context, key uint64, ticker string, dr shared.DateRange) *Frame {
	history, err := p.cfg.History.FetchHistory(ctx, ticker, dr.Start, dr.End)
	if err != nil {
		p.cfg.Logger.Error().Str("ticker", ticker).Msgf("fetching price history: %v", err)
		// Retry on the next sync.
		p.observer.Reset()
		return placeholder(key, ticker, dr, "price history unavailable")
	}
	if len(history) == 0 {
		return placeholder(key, ticker, dr, "no price history")
	}

	levels := shared.Levels{Supports: []float64{}, Resistances: []float64{}}
	var plan *shared.TradePlan
	analysis, err := p.cfg.Analysis.FetchAnalysis(ctx, ticker)
	switch {
	case err != nil:
		p.cfg.Logger.Warn().Str("ticker", ticker).Msgf("fetching price analysis: %v", err)
	case analysis != nil:
		levels = analysis.Levels
		plan = analysis.TradePlan
	}

	var targets []float64
	if plan != nil {
		targets = plan.Targets
	}

	domain, err := ComputeDomain(history, targets)
	if err != nil {
		return placeholder(key, ticker, dr, err.Error())
	}

	series := BuildPaddedSeries(history, p.cfg.PaddingCount)
	last, _ := LastReal(history)

	overlays := BuildOverlays(OverlayInput{
		Last:          last,
		ProjectionEnd: series[len(series)-1].Date,
		Plan:          plan,
		Levels:        levels,
	})

	primitives, err := Render(overlays)
	if err != nil {
		p.cfg.Logger.Error().Str("ticker", ticker).Msgf("rendering overlays: %v", err)
		primitives = []Primitive{}
	}

	frame := &Frame{
		Props: Props{
			History:     history,
			Supports:    levels.Supports,
			Resistances: levels.Resistances,
			TradePlan:   plan,
			Key:         key,
		},
		Ticker:     ticker,
		Range:      dr,
		Series:     series,
		Domain:     &domain,
		Overlays:   overlays,
		Primitives: primitives,
	}

	err = frame.Props.Validate()
	if err != nil {
		p.cfg.Logger.Warn().Str("ticker", ticker).Msgf("unexpected chart props: %v", err)
	}

	return frame
}
