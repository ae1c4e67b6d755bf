package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dnldd/moodboard/chart"
	"github.com/dnldd/moodboard/database"
	"github.com/dnldd/moodboard/invalidate"
	"github.com/dnldd/moodboard/metrics"
	"github.com/dnldd/moodboard/refresh"
	"github.com/dnldd/moodboard/shared"
	"github.com/rs/zerolog"
)

var (
	// ErrRefreshInFlight is returned when a refresh is requested while a
	// refresh cycle is in flight.
	ErrRefreshInFlight = errors.New("refresh already in flight")
)

// Selection represents the ticker and date range the dashboard displays.
// The generation advances on every selection change.
type Selection struct {
	Ticker     string           `json:"ticker"`
	Range      shared.DateRange `json:"range"`
	Generation uint64           `json:"generation"`
}

// ViewConfig represents the dashboard view configuration.
type ViewConfig struct {
	// Backend represents the dashboard backend.
	Backend shared.Backend
	// Ticker is the initially selected ticker.
	Ticker string
	// Sources are the news sources scraped on refresh.
	Sources []string
	// Range is the initially selected date range.
	Range shared.DateRange
	// PaddingCount is the number of synthetic chart points reserved for
	// projections.
	PaddingCount int
	// Journal records completed refresh cycles. Optional.
	Journal database.CycleRecorder
	// Collectors represents the refresh instrumentation. Optional.
	Collectors *refresh.Collectors
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ViewConfig) Validate() error {
	var errs error

	if cfg.Backend == nil {
		errs = errors.Join(errs, fmt.Errorf("backend cannot be nil"))
	}
	if strings.TrimSpace(cfg.Ticker) == "" {
		errs = errors.Join(errs, fmt.Errorf("ticker cannot be an empty string"))
	}
	err := cfg.Range.Validate()
	if err != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid range: %w", err))
	}
	if cfg.PaddingCount < 0 {
		errs = errors.Join(errs, fmt.Errorf("padding count cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// View represents the dashboard. It owns the metrics snapshot and the current
// selection, and coordinates refresh cycles with the chart panel.
type View struct {
	cfg            *ViewConfig
	orchestrator   *refresh.Orchestrator
	invalidator    *invalidate.Controller
	panel          *chart.Panel
	metrics        shared.Metrics
	selection      Selection
	state          State
	loadOnce       sync.Once
	refreshSignals chan struct{}
	mtx            sync.RWMutex
}

// NewView initializes a new dashboard view.
func NewView(cfg *ViewConfig) (*View, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating view config: %w", err)
	}

	if cfg.Journal == nil {
		cfg.Journal = database.NoopJournal{}
	}

	v := &View{
		cfg:         cfg,
		invalidator: invalidate.NewController(),
		metrics:     shared.EmptyMetrics(),
		selection: Selection{
			Ticker: strings.TrimSpace(cfg.Ticker),
			Range:  cfg.Range,
		},
		state:          Loading,
		refreshSignals: make(chan struct{}, 1),
	}

	v.panel, err = chart.NewPanel(&chart.PanelConfig{
		History:      cfg.Backend,
		Analysis:     cfg.Backend,
		PaddingCount: cfg.PaddingCount,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chart panel: %w", err)
	}

	v.orchestrator, err = refresh.NewOrchestrator(&refresh.OrchestratorConfig{
		Scraper:        cfg.Backend,
		RefetchMetrics: func(ctx context.Context) { v.refetchMetrics(ctx) },
		Invalidate:     v.invalidator.Bump,
		NotifyPhase:    v.setPhase,
		RecordCycle:    v.recordCycle,
		Collectors:     cfg.Collectors,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating refresh orchestrator: %w", err)
	}

	return v, nil
}

// setPhase mirrors the provided refresh phase as the view state.
func (v *View) setPhase(phase refresh.Phase) {
	v.mtx.Lock()
	v.state = stateOf(phase)
	v.mtx.Unlock()
}

// recordCycle journals the provided completed cycle.
func (v *View) recordCycle(cycle *refresh.Cycle) {
	ticker := v.Selection().Ticker
	err := v.cfg.Journal.PersistCycle(context.Background(), ticker, cycle)
	if err != nil {
		v.cfg.Logger.Error().Str("cycle", cycle.ID).Msgf("journaling refresh cycle: %v", err)
	}
}

// refetchMetrics fetches and normalizes the metrics of the current selection.
// Fetch failures publish the empty metrics. Responses for a superseded
// selection are discarded, the returned flag reports whether the snapshot
// was published.
func (v *View) refetchMetrics(ctx context.Context) bool {
	sel := v.Selection()

	snapshot := shared.EmptyMetrics()
	body, err := v.cfg.Backend.FetchStats(ctx, sel.Ticker, sel.Range.Start, sel.Range.End)
	switch {
	case err != nil:
		v.cfg.Logger.Error().Str("ticker", sel.Ticker).Msgf("fetching stats: %v", err)
	default:
		snapshot = metrics.NormalizeBytes(body)
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()

	if v.selection.Generation != sel.Generation {
		v.cfg.Logger.Debug().Str("ticker", sel.Ticker).
			Msgf("discarding stats for superseded generation %d", sel.Generation)
		return false
	}

	v.metrics = snapshot

	return true
}

// Load performs the initial metrics fetch and moves the view out of the
// loading state. Only the first call has an effect.
func (v *View) Load(ctx context.Context) {
	v.loadOnce.Do(func() {
		v.refetchMetrics(ctx)

		v.mtx.Lock()
		if v.state == Loading {
			v.state = Idle
		}
		v.mtx.Unlock()
	})
}

// Refresh runs a refresh cycle across the configured sources for the current
// selection. It returns ErrRefreshInFlight when a cycle is already running.
func (v *View) Refresh(ctx context.Context) (*refresh.Cycle, error) {
	sel := v.Selection()
	cycle, ok := v.orchestrator.TriggerRefresh(ctx, v.cfg.Sources, sel.Range)
	if !ok {
		return nil, ErrRefreshInFlight
	}

	return cycle, nil
}

// InFlight checks whether a refresh cycle is in flight.
func (v *View) InFlight() bool {
	return v.orchestrator.InFlight()
}

// SendRefreshSignal requests an asynchronous refresh cycle. It reports false
// when a cycle is in flight or already requested.
func (v *View) SendRefreshSignal() bool {
	if v.orchestrator.InFlight() {
		return false
	}

	select {
	case v.refreshSignals <- struct{}{}:
		return true
	default:
		return false
	}
}

// Select changes the displayed ticker and date range and refetches the
// metrics for the new selection.
func (v *View) Select(ctx context.Context, ticker string, dr shared.DateRange) (Selection, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Selection{}, fmt.Errorf("ticker cannot be an empty string")
	}
	err := dr.Validate()
	if err != nil {
		return Selection{}, fmt.Errorf("invalid range: %w", err)
	}

	v.mtx.Lock()
	v.selection = Selection{
		Ticker:     ticker,
		Range:      dr,
		Generation: v.selection.Generation + 1,
	}
	sel := v.selection
	v.mtx.Unlock()

	v.refetchMetrics(ctx)

	return sel, nil
}

// Selection returns the current selection.
func (v *View) Selection() Selection {
	v.mtx.RLock()
	defer v.mtx.RUnlock()

	return v.selection
}

// Metrics returns the current metrics snapshot.
func (v *View) Metrics() shared.Metrics {
	v.mtx.RLock()
	defer v.mtx.RUnlock()

	return v.metrics
}

// Cards returns the metric cards of the current snapshot.
func (v *View) Cards() []Card {
	return Cards(v.Metrics())
}

// State returns the current view state.
func (v *View) State() State {
	v.mtx.RLock()
	defer v.mtx.RUnlock()

	return v.state
}

// Token returns the current chart invalidation token.
func (v *View) Token() uint64 {
	return v.invalidator.Current()
}

// Chart returns the chart frame for the current selection and invalidation
// token. A frame mounted for a selection superseded meanwhile is replaced by
// one for the current selection.
func (v *View) Chart(ctx context.Context) *chart.Frame {
	sel := v.Selection()
	frame, _ := v.panel.Sync(ctx, v.invalidator.Current(), sel.Ticker, sel.Range)

	current := v.Selection()
	if current.Generation != sel.Generation {
		v.cfg.Logger.Debug().Str("ticker", sel.Ticker).
			Msgf("discarding chart frame for superseded generation %d", sel.Generation)
		frame, _ = v.panel.Sync(ctx, v.invalidator.Current(), current.Ticker, current.Range)
	}

	return frame
}

// Run manages the lifecycle processes of the dashboard view.
func (v *View) Run(ctx context.Context) {
	v.Load(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-v.refreshSignals:
			cycle, err := v.Refresh(ctx)
			if err != nil {
				v.cfg.Logger.Debug().Msgf("handling refresh signal: %v", err)
				continue
			}

			failures := cycle.Failures()
			if len(failures) > 0 {
				v.cfg.Logger.Info().Str("cycle", cycle.ID).
					Msgf("refresh completed with failed sources: %s", strings.Join(failures, ", "))
			}
		}
	}
}
