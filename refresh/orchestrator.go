package refresh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dnldd/moodboard/shared"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Outcome represents the result of triggering a single source scrape.
type Outcome struct {
	Err      error
	Duration time.Duration
}

// Succeeded checks whether the scrape trigger succeeded.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil
}

// Cycle represents a single refresh cycle. It is owned by the orchestrator
// until the cycle completes.
type Cycle struct {
	ID         string
	Sources    []string
	Range      shared.DateRange
	Results    map[string]Outcome
	StartedOn  time.Time
	FinishedOn time.Time
}

// Failures returns the sources whose scrape trigger failed, sorted.
func (c *Cycle) Failures() []string {
	failures := make([]string, 0)
	for source, outcome := range c.Results {
		if !outcome.Succeeded() {
			failures = append(failures, source)
		}
	}

	slices.Sort(failures)

	return failures
}

// Duration returns the duration of the cycle.
func (c *Cycle) Duration() time.Duration {
	return c.FinishedOn.Sub(c.StartedOn)
}

// OrchestratorConfig represents the refresh orchestrator configuration.
type OrchestratorConfig struct {
	// Scraper triggers per-source scrapes.
	Scraper shared.ScrapeTrigger
	// RefetchMetrics refetches the dashboard metrics once all sources settle.
	RefetchMetrics func(ctx context.Context)
	// Invalidate bumps the chart invalidation token.
	Invalidate func() uint64
	// NotifyPhase relays phase transitions. Optional.
	NotifyPhase func(phase Phase)
	// RecordCycle relays completed cycles. Optional.
	RecordCycle func(cycle *Cycle)
	// Collectors represents the refresh instrumentation. Optional.
	Collectors *Collectors
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *OrchestratorConfig) Validate() error {
	var errs error

	if cfg.Scraper == nil {
		errs = errors.Join(errs, fmt.Errorf("scraper cannot be nil"))
	}
	if cfg.RefetchMetrics == nil {
		errs = errors.Join(errs, fmt.Errorf("refetch metrics function cannot be nil"))
	}
	if cfg.Invalidate == nil {
		errs = errors.Join(errs, fmt.Errorf("invalidate function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Orchestrator fans out scrape triggers across news sources and refreshes
// the dashboard once every source settled.
type Orchestrator struct {
	cfg   *OrchestratorConfig
	state machine
}

// NewOrchestrator initializes a new refresh orchestrator.
func NewOrchestrator(cfg *OrchestratorConfig) (*Orchestrator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating orchestrator config: %w", err)
	}

	return &Orchestrator{cfg: cfg}, nil
}

// Phase returns the current phase of the orchestrator.
func (o *Orchestrator) Phase() Phase {
	return o.state.current()
}

// InFlight checks whether a refresh cycle is in flight.
func (o *Orchestrator) InFlight() bool {
	return o.state.current() != Idle
}

// notifyPhase relays the provided phase if a listener is configured.
func (o *Orchestrator) notifyPhase(phase Phase) {
	if o.cfg.NotifyPhase != nil {
		o.cfg.NotifyPhase(phase)
	}
}

// advance moves the cycle to its next phase.
func (o *Orchestrator) advance() {
	phase, err := o.state.advance()
	if err != nil {
		o.cfg.Logger.Error().Msgf("advancing refresh phase: %v", err)
		return
	}

	o.notifyPhase(phase)
}

// uniqueSources trims and de-duplicates the provided sources, keeping the
// first occurrence order.
func uniqueSources(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	unique := make([]string, 0, len(sources))
	for idx := range sources {
		source := strings.TrimSpace(sources[idx])
		if source == "" {
			continue
		}
		if _, ok := seen[source]; ok {
			continue
		}

		seen[source] = struct{}{}
		unique = append(unique, source)
	}

	return unique
}

// scrape triggers a scrape for the provided source. A panicking scraper is
// reported as a failed scrape.
func (o *Orchestrator) scrape(ctx context.Context, source string, dr shared.DateRange) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scrape panicked: %v", r)
		}
	}()

	return o.cfg.Scraper.TriggerScrape(ctx, source, dr.Start, dr.End)
}

// fanOut triggers a scrape per source concurrently and waits for all of them
// to settle. Failures are logged and recorded, they never abort the batch.
func (o *Orchestrator) fanOut(ctx context.Context, cycle *Cycle) {
	var mtx sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)

	for idx := range cycle.Sources {
		source := cycle.Sources[idx]
		group.Go(func() error {
			start := time.Now()
			err := o.scrape(groupCtx, source, cycle.Range)
			outcome := Outcome{Err: err, Duration: time.Since(start)}

			mtx.Lock()
			cycle.Results[source] = outcome
			mtx.Unlock()

			if err != nil {
				o.cfg.Logger.Warn().Str("source", source).Msgf("triggering scrape: %v", err)
				if o.cfg.Collectors != nil {
					o.cfg.Collectors.sourceFailures.WithLabelValues(source).Inc()
				}
			}

			return nil
		})
	}

	o.advance()

	// Source failures are handled above, the group never reports an error.
	_ = group.Wait()
}

// TriggerRefresh runs a full refresh cycle: it triggers a scrape for every
// provided source, waits for all of them to settle, refetches the metrics once
// and invalidates the chart once. Calls made while a cycle is in flight are
// dropped and report false. The completed cycle is recorded after the in-flight
// guard is released.
func (o *Orchestrator) TriggerRefresh(ctx context.Context, sources []string, dr shared.DateRange) (*Cycle, bool) {
	if !o.state.begin() {
		o.cfg.Logger.Debug().Msg("refresh already in flight, dropping request")
		if o.cfg.Collectors != nil {
			o.cfg.Collectors.dropped.Inc()
		}
		return nil, false
	}

	cycle := o.run(ctx, sources, dr)
	if o.cfg.RecordCycle != nil {
		o.cfg.RecordCycle(cycle)
	}

	return cycle, true
}

// run executes a refresh cycle, the caller must hold the in-flight guard.
func (o *Orchestrator) run(ctx context.Context, sources []string, dr shared.DateRange) *Cycle {
	defer func() {
		o.state.finish()
		o.notifyPhase(Idle)
	}()

	o.notifyPhase(FanningOut)

	cycle := &Cycle{
		ID:        uuid.New().String(),
		Sources:   uniqueSources(sources),
		Range:     dr,
		StartedOn: time.Now(),
	}
	cycle.Results = make(map[string]Outcome, len(cycle.Sources))

	o.fanOut(ctx, cycle)

	o.advance()
	o.cfg.RefetchMetrics(ctx)

	o.advance()
	token := o.cfg.Invalidate()

	cycle.FinishedOn = time.Now()

	failures := cycle.Failures()
	o.cfg.Logger.Info().Str("cycle", cycle.ID).Uint64("token", token).
		Msgf("refresh cycle completed for %d sources (%d failed) in %s",
			len(cycle.Sources), len(failures), cycle.Duration())

	if o.cfg.Collectors != nil {
		o.cfg.Collectors.cycles.Inc()
		o.cfg.Collectors.duration.Observe(cycle.Duration().Seconds())
	}

	return cycle
}
