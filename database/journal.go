package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/moodboard/refresh"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// SQL statements.
	createCycleTableSQL   = "CREATE TABLE IF NOT EXISTS cycle (id TEXT PRIMARY KEY, ticker TEXT, sources TEXT, failures TEXT, startedon INTEGER, finishedon INTEGER)"
	createSummaryTableSQL = "CREATE TABLE IF NOT EXISTS summary (id TEXT PRIMARY KEY, ticker TEXT, cycles INTEGER, failures INTEGER, createdon INTEGER)"
	persistCycleSQL       = "INSERT INTO cycle(id, ticker, sources, failures, startedon, finishedon) VALUES(?,?,?,?,?,?)"
	upsertSummarySQL      = "INSERT INTO summary(id, ticker, cycles, failures, createdon) VALUES(?,?,1,?,?) ON CONFLICT(id) DO UPDATE SET cycles = cycles + 1, failures = failures + excluded.failures"
	pruneCyclesSQL        = "DELETE FROM cycle WHERE finishedon < ?"
	pruneSummariesSQL     = "DELETE FROM summary WHERE createdon < ?"

	// listSeparator joins list columns.
	listSeparator = ","
)

// CycleRecorder defines the requirements for journaling refresh cycles.
type CycleRecorder interface {
	// PersistCycle stores the provided completed refresh cycle.
	PersistCycle(ctx context.Context, ticker string, cycle *refresh.Cycle) error
	// Prune removes journal entries that finished before the provided time.
	Prune(ctx context.Context, before time.Time) error
}

// JournalConfig is the configuration for the refresh cycle journal.
type JournalConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the journal logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *JournalConfig) Validate() error {
	var errs error

	if cfg.Endpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("endpoint cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Journal represents the refresh cycle journal backed by rqlite.
type Journal struct {
	cfg    *JournalConfig
	client *rqlitehttp.Client
}

// Ensure the journal implements the CycleRecorder interface.
var _ CycleRecorder = (*Journal)(nil)

// NewJournal initializes a new journal connection.
func NewJournal(ctx context.Context, cfg *JournalConfig) (*Journal, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating journal config: %w", err)
	}

	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	journal := &Journal{
		cfg:    cfg,
		client: client,
	}

	err = journal.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping journal: %w", err)
	}

	return journal, nil
}

// execute runs the provided statements in a transaction.
func (j *Journal) execute(ctx context.Context, what string, stmts rqlitehttp.SQLStatements) error {
	resp, err := j.client.Execute(ctx, stmts, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("%s: %d -> %s", what, idx, errStr)
	}

	return nil
}

// bootstrap initializes the journal tables.
func (j *Journal) bootstrap(ctx context.Context) error {
	return j.execute(ctx, "creating tables", rqlitehttp.SQLStatements{
		{SQL: createCycleTableSQL},
		{SQL: createSummaryTableSQL},
	})
}

// generateSummaryID generates deterministic ids for daily summaries using the
// cycle day and ticker.
func generateSummaryID(day time.Time, ticker string) string {
	return fmt.Sprintf("%s-%s", day.Format("2006-01-02"), ticker)
}

// cycleParams returns the positional parameters persisting the provided cycle.
func cycleParams(ticker string, cycle *refresh.Cycle) []any {
	return []any{
		cycle.ID,
		ticker,
		strings.Join(cycle.Sources, listSeparator),
		strings.Join(cycle.Failures(), listSeparator),
		cycle.StartedOn.UnixMilli(),
		cycle.FinishedOn.UnixMilli(),
	}
}

// PersistCycle stores the provided completed refresh cycle and updates the
// daily summary for the ticker.
func (j *Journal) PersistCycle(ctx context.Context, ticker string, cycle *refresh.Cycle) error {
	if cycle.FinishedOn.IsZero() || cycle.ID == "" {
		j.cfg.Logger.Error().Msgf("unexpected cycle state for journaling: %s", spew.Sdump(cycle))
		return fmt.Errorf("cycle %q is not complete", cycle.ID)
	}

	id := generateSummaryID(cycle.FinishedOn, ticker)
	return j.execute(ctx, fmt.Sprintf("persisting cycle %s", cycle.ID), rqlitehttp.SQLStatements{
		{
			SQL:              persistCycleSQL,
			PositionalParams: cycleParams(ticker, cycle),
		},
		{
			SQL:              upsertSummarySQL,
			PositionalParams: []any{id, ticker, len(cycle.Failures()), cycle.FinishedOn.UnixMilli()},
		},
	})
}

// Prune removes cycles and summaries recorded before the provided time.
func (j *Journal) Prune(ctx context.Context, before time.Time) error {
	cutoff := before.UnixMilli()
	return j.execute(ctx, "pruning journal", rqlitehttp.SQLStatements{
		{SQL: pruneCyclesSQL, PositionalParams: []any{cutoff}},
		{SQL: pruneSummariesSQL, PositionalParams: []any{cutoff}},
	})
}

// NoopJournal discards refresh cycles, it is used when no journal endpoint
// is configured.
type NoopJournal struct{}

// Ensure the noop journal implements the CycleRecorder interface.
var _ CycleRecorder = (*NoopJournal)(nil)

// PersistCycle discards the provided cycle.
func (NoopJournal) PersistCycle(ctx context.Context, ticker string, cycle *refresh.Cycle) error {
	return nil
}

// Prune does nothing.
func (NoopJournal) Prune(ctx context.Context, before time.Time) error {
	return nil
}
