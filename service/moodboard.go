package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dnldd/moodboard/api"
	"github.com/dnldd/moodboard/chart"
	"github.com/dnldd/moodboard/dashboard"
	"github.com/dnldd/moodboard/database"
	"github.com/dnldd/moodboard/fetch"
	"github.com/dnldd/moodboard/refresh"
	"github.com/dnldd/moodboard/shared"
	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// pruneTime is the daily time the cycle journal is pruned at.
	pruneTime = "03:00"
	// shutdownTimeout bounds the graceful shutdown of the http server.
	shutdownTimeout = time.Second * 5
	// bootstrapTimeout bounds the journal bootstrap.
	bootstrapTimeout = time.Second * 10
)

// MoodboardConfig represents the configuration struct for the moodboard service.
type MoodboardConfig struct {
	// BackendURL is the dashboard backend base url.
	BackendURL string
	// Ticker is the initially displayed ticker.
	Ticker string
	// Sources are the news sources scraped on refresh.
	Sources []string
	// RangeDays is the number of days displayed by default.
	RangeDays int
	// Padding is the number of synthetic chart points reserved for projections.
	Padding int
	// ListenAddr is the address the api listens on.
	ListenAddr string
	// DBEndpoint is the cycle journal database endpoint. The journal is
	// disabled when empty.
	DBEndpoint string
	// DBUser is the cycle journal database user.
	DBUser string
	// DBPass is the cycle journal database user pass.
	DBPass string
	// JournalRetentionDays is the number of days refresh cycles are retained.
	JournalRetentionDays int
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sane inputs.
func (cfg *MoodboardConfig) Validate() error {
	var errs error

	if cfg.BackendURL == "" {
		errs = errors.Join(errs, fmt.Errorf("backend url cannot be an empty string"))
	}
	if strings.TrimSpace(cfg.Ticker) == "" {
		errs = errors.Join(errs, fmt.Errorf("ticker cannot be an empty string"))
	}
	if cfg.RangeDays <= 0 {
		errs = errors.Join(errs, fmt.Errorf("range days must be positive"))
	}
	if cfg.Padding < 0 {
		errs = errors.Join(errs, fmt.Errorf("padding cannot be negative"))
	}
	if cfg.ListenAddr == "" {
		errs = errors.Join(errs, fmt.Errorf("listen address cannot be an empty string"))
	}
	if cfg.DBEndpoint != "" && cfg.JournalRetentionDays <= 0 {
		errs = errors.Join(errs, fmt.Errorf("journal retention days must be positive"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	return errs
}

// Moodboard represents the sentiment dashboard service.
type Moodboard struct {
	cfg          *MoodboardConfig
	view         *dashboard.View
	journal      database.CycleRecorder
	server       *http.Server
	jobScheduler *gocron.Scheduler
	logger       *zerolog.Logger
	wg           sync.WaitGroup
}

// NewMoodboard initializes a new moodboard service.
func NewMoodboard(cfg *MoodboardConfig) (*Moodboard, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating moodboard config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "moodboard").Logger()

	now, loc, err := shared.NewYorkTime()
	if err != nil {
		return nil, fmt.Errorf("fetching new york time: %v", err)
	}

	backendLogger := logger.With().Str("component", "backend").Logger()
	backend, err := fetch.NewBackendClient(&fetch.BackendConfig{
		BaseURL: cfg.BackendURL,
		Logger:  &backendLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %v", err)
	}

	var journal database.CycleRecorder = database.NoopJournal{}
	if cfg.DBEndpoint != "" {
		journalLogger := logger.With().Str("component", "journal").Logger()
		ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
		defer cancel()

		journal, err = database.NewJournal(ctx, &database.JournalConfig{
			Endpoint: cfg.DBEndpoint,
			User:     cfg.DBUser,
			Pass:     cfg.DBPass,
			Logger:   &journalLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating cycle journal: %v", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	refreshCollectors, err := refresh.NewCollectors(registry)
	if err != nil {
		return nil, fmt.Errorf("creating refresh collectors: %v", err)
	}

	padding := cfg.Padding
	if padding == 0 {
		padding = chart.DefaultPaddingCount
	}

	viewLogger := logger.With().Str("component", "dashboard").Logger()
	view, err := dashboard.NewView(&dashboard.ViewConfig{
		Backend:      backend,
		Ticker:       cfg.Ticker,
		Sources:      cfg.Sources,
		Range:        shared.NewDateRange(now, cfg.RangeDays),
		PaddingCount: padding,
		Journal:      journal,
		Collectors:   refreshCollectors,
		Logger:       &viewLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dashboard view: %v", err)
	}

	apiLogger := logger.With().Str("component", "api").Logger()
	apiServer, err := api.NewServer(&api.ServerConfig{
		Dashboard: view,
		Gatherer:  registry,
		Logger:    &apiLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating api server: %v", err)
	}

	service := &Moodboard{
		cfg:     cfg,
		view:    view,
		journal: journal,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: time.Second * 5,
		},
		jobScheduler: gocron.NewScheduler(loc),
		logger:       &logger,
	}

	if cfg.DBEndpoint != "" {
		_, err = service.jobScheduler.Every(1).Day().At(pruneTime).Do(service.pruneJournal)
		if err != nil {
			return nil, fmt.Errorf("scheduling journal pruning: %v", err)
		}
	}

	return service, nil
}

// pruneJournal removes journaled refresh cycles past the retention period.
func (m *Moodboard) pruneJournal() {
	now, _, err := shared.NewYorkTime()
	if err != nil {
		m.logger.Error().Msgf("fetching new york time: %v", err)
		return
	}

	before := now.AddDate(0, 0, -m.cfg.JournalRetentionDays)
	err = m.journal.Prune(context.Background(), before)
	if err != nil {
		m.logger.Error().Msgf("pruning cycle journal: %v", err)
		return
	}

	m.logger.Info().Msgf("pruned refresh cycles before %s", before.Format(shared.DayLayout))
}

// Run handles the lifecycle processes of the moodboard service.
func (m *Moodboard) Run(ctx context.Context) {
	m.jobScheduler.StartAsync()

	m.wg.Add(2)

	go func() {
		m.view.Run(ctx)
		m.wg.Done()
	}()

	go func() {
		defer m.wg.Done()

		m.logger.Info().Msgf("api listening on %s", m.cfg.ListenAddr)
		err := m.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Msgf("serving api: %v", err)
			m.cfg.Cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := m.server.Shutdown(shutdownCtx)
	if err != nil {
		m.logger.Error().Msgf("shutting down api: %v", err)
	}

	m.jobScheduler.Stop()
	m.wg.Wait()
}
