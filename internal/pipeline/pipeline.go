// Package pipeline orchestrates one cache-first aggregation run on a
// background worker.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/excelcw/dtools-pull/internal/aggregate"
	"github.com/excelcw/dtools-pull/internal/metrics"
	"github.com/excelcw/dtools-pull/internal/quota"
	"github.com/excelcw/dtools-pull/internal/report"
)

// Progress is a point-in-time run state update for the interactive surface.
type Progress struct {
	Phase     string
	Fraction  float64
	CallsUsed int
	Rows      int
}

// Result summarizes a completed (possibly partial) run.
type Result struct {
	Opportunities int
	Skipped       int
	Rows          int
	CallsUsed     int
}

// Runner owns one run: it drives the aggregation engine over the
// opportunity list and streams rows to the report writer. All fetching is
// strictly sequential; only the run itself sits on a worker goroutine so
// the interactive surface stays responsive.
type Runner struct {
	engine  *aggregate.Engine
	tracker *quota.Tracker
	cols    report.ColumnSet
	writer  *report.Writer
	metrics *metrics.Metrics
	logger  zerolog.Logger

	progress chan Progress
	done     chan struct{}
	result   Result
	err      error
}

// New creates a runner.
func New(engine *aggregate.Engine, tracker *quota.Tracker, cols report.ColumnSet, writer *report.Writer, m *metrics.Metrics, logger zerolog.Logger) *Runner {
	return &Runner{
		engine:   engine,
		tracker:  tracker,
		cols:     cols,
		writer:   writer,
		metrics:  m,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		progress: make(chan Progress, 16),
		done:     make(chan struct{}),
	}
}

// Progress returns the run state channel. It is closed when the run ends.
func (r *Runner) Progress() <-chan Progress {
	return r.progress
}

// Start launches the run on a background worker.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		defer close(r.progress)
		r.result, r.err = r.run(ctx)
	}()
}

// Wait blocks until the run ends and returns its result. A non-nil error is
// fatal: the CSV holds no usable rows beyond what was already written.
func (r *Runner) Wait() (Result, error) {
	<-r.done
	return r.result, r.err
}

// notify publishes progress without ever blocking the worker.
func (r *Runner) notify(phase string, fraction float64) {
	r.metrics.SetProgress(fraction)
	p := Progress{
		Phase:     phase,
		Fraction:  fraction,
		CallsUsed: r.tracker.UsedToday(),
		Rows:      r.writer.Rows(),
	}
	select {
	case r.progress <- p:
	default:
	}
}

func (r *Runner) run(ctx context.Context) (Result, error) {
	var res Result

	if r.cols.HasLabor() {
		r.notify("time entries", 0)
		if err := r.engine.LoadWorkedMinutes(ctx); err != nil {
			return res, fmt.Errorf("loading worked minutes: %w", err)
		}
	}

	r.notify("opportunity list", 0)
	opps, err := r.engine.LoadOpportunities(ctx)
	if err != nil {
		return res, fmt.Errorf("loading opportunities: %w", err)
	}
	res.Opportunities = len(opps)
	r.logger.Info().Int("opportunities", len(opps)).Msg("processing opportunities")

	for i, opp := range opps {
		detail, err := r.engine.Process(ctx, opp)
		if err != nil {
			// Already logged with entity context by the engine; the
			// opportunity simply contributes no row.
			res.Skipped++
			continue
		}

		labor, service := r.totalsFor(opp.ID)
		if err := r.writer.WriteOpportunity(detail, labor, service); err != nil {
			return res, fmt.Errorf("writing rows for opportunity %s: %w", opp.ID, err)
		}
		r.notify("processing", float64(i+1)/float64(len(opps)))
	}

	res.Rows = r.writer.Rows()
	res.CallsUsed = r.tracker.InRun()
	r.notify("done", 1)
	r.logger.Info().
		Int("rows", res.Rows).
		Int("skipped", res.Skipped).
		Int("calls_used", res.CallsUsed).
		Msg("run complete")
	return res, nil
}

func (r *Runner) totalsFor(id string) (labor, service *aggregate.Totals) {
	if t, ok := r.engine.Labor().Get(id); ok {
		labor = t
	}
	if t, ok := r.engine.Service().Get(id); ok {
		service = t
	}
	return labor, service
}
