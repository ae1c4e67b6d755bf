package refresh

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dnldd/moodboard/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

type ScraperMock struct {
	failures map[string]error
	panics   map[string]bool
	delay    time.Duration
	release  chan struct{}
	started  chan string
	calls    atomic.Int32
	settled  atomic.Int32
}

func (m *ScraperMock) TriggerScrape(ctx context.Context, source string, start time.Time, end time.Time) error {
	m.calls.Add(1)
	defer m.settled.Add(1)

	if m.started != nil {
		m.started <- source
	}
	if m.release != nil {
		<-m.release
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	if m.panics[source] {
		panic("scraper state corrupted")
	}

	return m.failures[source]
}

type harness struct {
	orchestrator     *Orchestrator
	scraper          *ScraperMock
	refetches        atomic.Int32
	invalidates      atomic.Int32
	settledAtRefetch atomic.Int32
	phases           []Phase
	phasesMtx        sync.Mutex
	cycles           []*Cycle
}

func setupOrchestrator(t *testing.T, scraper *ScraperMock, logger *zerolog.Logger, collectors *Collectors) *harness {
	h := &harness{scraper: scraper}

	orchestrator, err := NewOrchestrator(&OrchestratorConfig{
		Scraper: scraper,
		RefetchMetrics: func(ctx context.Context) {
			h.settledAtRefetch.Store(scraper.settled.Load())
			h.refetches.Add(1)
		},
		Invalidate: func() uint64 {
			return uint64(h.invalidates.Add(1))
		},
		NotifyPhase: func(phase Phase) {
			h.phasesMtx.Lock()
			h.phases = append(h.phases, phase)
			h.phasesMtx.Unlock()
		},
		RecordCycle: func(cycle *Cycle) {
			h.cycles = append(h.cycles, cycle)
		},
		Collectors: collectors,
		Logger:     logger,
	})
	assert.NoError(t, err)

	h.orchestrator = orchestrator

	return h
}

func testRange() shared.DateRange {
	return shared.NewDateRange(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 30)
}

func TestOrchestratorConfigValidate(t *testing.T) {
	logger := zerolog.New(nil)

	baseCfg := &OrchestratorConfig{
		Scraper:        &ScraperMock{},
		RefetchMetrics: func(ctx context.Context) {},
		Invalidate:     func() uint64 { return 0 },
		Logger:         &logger,
	}

	tests := []struct {
		name        string
		modify      func(cfg *OrchestratorConfig)
		wantErr     bool
		errContains []string
	}{
		{
			name:    "valid config returns nil",
			modify:  func(cfg *OrchestratorConfig) {},
			wantErr: false,
		},
		{
			name:        "missing scraper",
			modify:      func(cfg *OrchestratorConfig) { cfg.Scraper = nil },
			wantErr:     true,
			errContains: []string{"scraper cannot be nil"},
		},
		{
			name: "multiple missing fields",
			modify: func(cfg *OrchestratorConfig) {
				*cfg = OrchestratorConfig{}
			},
			wantErr: true,
			errContains: []string{
				"scraper cannot be nil",
				"refetch metrics function cannot be nil",
				"invalidate function cannot be nil",
				"logger cannot be nil",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *baseCfg
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				for _, substr := range tt.errContains {
					assert.True(t, strings.Contains(err.Error(), substr))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTriggerRefresh(t *testing.T) {
	scraper := &ScraperMock{delay: time.Millisecond * 10}
	h := setupOrchestrator(t, scraper, &log.Logger, nil)

	// Ensure a cycle fans out to every source, then refetches and invalidates once.
	cycle, ok := h.orchestrator.TriggerRefresh(context.Background(), []string{"A", "B", "C"}, testRange())
	assert.True(t, ok)
	assert.Equal(t, scraper.calls.Load(), int32(3))
	assert.Equal(t, h.refetches.Load(), int32(1))
	assert.Equal(t, h.invalidates.Load(), int32(1))
	assert.Equal(t, len(cycle.Results), 3)
	assert.Equal(t, len(cycle.Failures()), 0)
	assert.True(t, cycle.ID != "")
	assert.False(t, cycle.FinishedOn.Before(cycle.StartedOn))

	// Ensure the metrics refetch strictly follows the settlement of every source.
	assert.Equal(t, h.settledAtRefetch.Load(), int32(3))

	// Ensure the phases are traversed in order and end idle.
	want := []Phase{FanningOut, Joining, Normalizing, Invalidated, Idle}
	if !cmp.Equal(h.phases, want) {
		t.Errorf("mismatching phases, got %v", cmp.Diff(h.phases, want))
	}
	assert.Equal(t, h.orchestrator.Phase(), Idle)
	assert.False(t, h.orchestrator.InFlight())

	// Ensure the completed cycle is recorded.
	assert.Equal(t, len(h.cycles), 1)
	assert.Equal(t, h.cycles[0].ID, cycle.ID)
}

func TestTriggerRefreshPartialFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	reg := prometheus.NewRegistry()
	collectors, err := NewCollectors(reg)
	assert.NoError(t, err)

	scraper := &ScraperMock{
		failures: map[string]error{"B": errors.New("network error")},
	}
	h := setupOrchestrator(t, scraper, &logger, collectors)

	// Ensure the cycle completes despite a failing source.
	cycle, ok := h.orchestrator.TriggerRefresh(context.Background(), []string{"A", "B", "C"}, testRange())
	assert.True(t, ok)
	assert.Equal(t, h.refetches.Load(), int32(1))
	assert.Equal(t, h.invalidates.Load(), int32(1))
	assert.Equal(t, cycle.Failures(), []string{"B"})

	outcome := cycle.Results["A"]
	assert.True(t, outcome.Succeeded())
	outcome = cycle.Results["B"]
	assert.False(t, outcome.Succeeded())

	// Ensure a single warning referencing the failed source is logged.
	var warnings []gjson.Result
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		entry := gjson.Parse(scanner.Text())
		if entry.Get("level").String() == zerolog.LevelWarnValue {
			warnings = append(warnings, entry)
		}
	}
	assert.Equal(t, len(warnings), 1)
	assert.Equal(t, warnings[0].Get("source").String(), "B")

	// Ensure the failure and the cycle are counted.
	assert.Equal(t, testutil.ToFloat64(collectors.sourceFailures.WithLabelValues("B")), float64(1))
	assert.Equal(t, testutil.ToFloat64(collectors.cycles), float64(1))
}

func TestTriggerRefreshAllFail(t *testing.T) {
	scraper := &ScraperMock{
		failures: map[string]error{
			"A": errors.New("timeout"),
			"B": errors.New("timeout"),
		},
	}
	h := setupOrchestrator(t, scraper, &log.Logger, nil)

	// Ensure the metrics are refetched even when every source fails.
	cycle, ok := h.orchestrator.TriggerRefresh(context.Background(), []string{"B", "A"}, testRange())
	assert.True(t, ok)
	assert.Equal(t, h.refetches.Load(), int32(1))
	assert.Equal(t, cycle.Failures(), []string{"A", "B"})
}

func TestTriggerRefreshReentrancy(t *testing.T) {
	reg := prometheus.NewRegistry()
	collectors, err := NewCollectors(reg)
	assert.NoError(t, err)

	scraper := &ScraperMock{
		release: make(chan struct{}),
		started: make(chan string, 3),
	}
	h := setupOrchestrator(t, scraper, &log.Logger, collectors)

	done := make(chan bool)
	go func() {
		_, ok := h.orchestrator.TriggerRefresh(context.Background(), []string{"A", "B", "C"}, testRange())
		done <- ok
	}()

	// Wait for the fan-out to start.
	for range 3 {
		<-scraper.started
	}
	assert.True(t, h.orchestrator.InFlight())

	// Ensure overlapping calls are dropped, not queued.
	for range 2 {
		cycle, ok := h.orchestrator.TriggerRefresh(context.Background(), []string{"A", "B", "C"}, testRange())
		assert.False(t, ok)
		assert.True(t, cycle == nil)
	}

	close(scraper.release)
	assert.True(t, <-done)

	// Ensure exactly one fan-out batch and one metrics refetch happened.
	assert.Equal(t, scraper.calls.Load(), int32(3))
	assert.Equal(t, h.refetches.Load(), int32(1))
	assert.Equal(t, h.invalidates.Load(), int32(1))
	assert.Equal(t, testutil.ToFloat64(collectors.dropped), float64(2))

	// Ensure a new cycle can run once the previous one completed.
	_, ok := h.orchestrator.TriggerRefresh(context.Background(), []string{"A"}, testRange())
	assert.True(t, ok)
	assert.Equal(t, h.refetches.Load(), int32(2))
}

func TestTriggerRefreshReleasesGuardOnPanic(t *testing.T) {
	h := &harness{}
	orchestrator, err := NewOrchestrator(&OrchestratorConfig{
		Scraper:        &ScraperMock{},
		RefetchMetrics: func(ctx context.Context) { panic("refetch failed") },
		Invalidate:     func() uint64 { return 0 },
		Logger:         &log.Logger,
	})
	assert.NoError(t, err)
	h.orchestrator = orchestrator

	func() {
		defer func() {
			_ = recover()
		}()
		h.orchestrator.TriggerRefresh(context.Background(), []string{"A"}, testRange())
	}()

	// Ensure the guard was released by the deferred cleanup.
	assert.False(t, h.orchestrator.InFlight())
}

func TestTriggerRefreshScrapePanic(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	scraper := &ScraperMock{panics: map[string]bool{"B": true}}
	h := setupOrchestrator(t, scraper, &logger, nil)

	// Ensure a panicking scraper is recorded as a failed source.
	cycle, ok := h.orchestrator.TriggerRefresh(context.Background(), []string{"A", "B", "C"}, testRange())
	assert.True(t, ok)
	assert.Equal(t, cycle.Failures(), []string{"B"})

	outcome := cycle.Results["B"]
	assert.True(t, strings.Contains(outcome.Err.Error(), "scrape panicked"))

	// Ensure the remaining sources settled and the cycle completed.
	assert.Equal(t, scraper.settled.Load(), int32(3))
	assert.Equal(t, h.refetches.Load(), int32(1))
	assert.Equal(t, h.invalidates.Load(), int32(1))
	assert.False(t, h.orchestrator.InFlight())
	assert.True(t, strings.Contains(buf.String(), "scrape panicked"))
}

func TestTriggerRefreshRecordsAfterRelease(t *testing.T) {
	var orchestrator *Orchestrator
	var inFlight atomic.Bool
	recorded := make(chan *Cycle, 1)

	orchestrator, err := NewOrchestrator(&OrchestratorConfig{
		Scraper:        &ScraperMock{},
		RefetchMetrics: func(ctx context.Context) {},
		Invalidate:     func() uint64 { return 1 },
		RecordCycle: func(cycle *Cycle) {
			inFlight.Store(orchestrator.InFlight())
			recorded <- cycle
		},
		Logger: &log.Logger,
	})
	assert.NoError(t, err)

	// Ensure the cycle is recorded once the in-flight guard is released.
	cycle, ok := orchestrator.TriggerRefresh(context.Background(), []string{"A"}, testRange())
	assert.True(t, ok)
	assert.True(t, <-recorded == cycle)
	assert.False(t, inFlight.Load())
	assert.False(t, cycle.FinishedOn.IsZero())
}

func TestTriggerRefreshSources(t *testing.T) {
	scraper := &ScraperMock{}
	h := setupOrchestrator(t, scraper, &log.Logger, nil)

	// Ensure an empty source list still refetches and invalidates.
	cycle, ok := h.orchestrator.TriggerRefresh(context.Background(), nil, testRange())
	assert.True(t, ok)
	assert.Equal(t, len(cycle.Results), 0)
	assert.Equal(t, h.refetches.Load(), int32(1))
	assert.Equal(t, h.invalidates.Load(), int32(1))

	// Ensure duplicate and blank sources are triggered once.
	cycle, ok = h.orchestrator.TriggerRefresh(context.Background(), []string{"A", " A", "", "B", "A"}, testRange())
	assert.True(t, ok)
	assert.Equal(t, cycle.Sources, []string{"A", "B"})
	assert.Equal(t, scraper.calls.Load(), int32(2))
}

func TestPhase(t *testing.T) {
	tests := []struct {
		name  string
		phase Phase
		want  string
	}{
		{"idle", Idle, "idle"},
		{"fanning out", FanningOut, "fanning out"},
		{"joining", Joining, "joining"},
		{"normalizing", Normalizing, "normalizing"},
		{"invalidated", Invalidated, "invalidated"},
		{"unknown", Phase(999), "unknown"},
	}

	for _, test := range tests {
		str := test.phase.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}

	// Ensure the machine only advances within a cycle.
	var m machine
	_, err := m.advance()
	assert.Error(t, err)

	assert.True(t, m.begin())
	assert.False(t, m.begin())

	phase, err := m.advance()
	assert.NoError(t, err)
	assert.Equal(t, phase, Joining)

	m.finish()
	assert.Equal(t, m.current(), Idle)
}
