// Package quota tracks daily API call usage across runs.
package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCeiling is the D-Tools cloud daily call allowance.
const DefaultCeiling = 10000

const dateLayout = "02/01/2006"

// Record is the persisted call ledger. TotalCallsToday resets when the
// stored date differs from today.
type Record struct {
	Date             string `json:"date"`
	TotalCallsToday  int    `json:"totalCallsToday"`
	LastRunCallCount int    `json:"lastRunCallCount"`
}

// Tracker combines the persisted record with the in-run call counter. It is
// single-writer: the pipeline issues all calls sequentially, so no locking
// is needed.
type Tracker struct {
	path    string
	ceiling int
	record  Record
	inRun   int
	logger  zerolog.Logger
}

// Load reads the quota record from path, starting fresh if the file is
// absent or corrupt. A stale date resets today's total.
func Load(path string, ceiling int, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		path:    path,
		ceiling: ceiling,
		logger:  logger.With().Str("component", "quota").Logger(),
	}

	data, err := os.ReadFile(path)
	if err != nil || json.Unmarshal(data, &t.record) != nil {
		if err != nil && !os.IsNotExist(err) {
			t.logger.Warn().Err(err).Str("file", path).Msg("quota record unreadable, starting fresh")
		}
		t.record = Record{Date: t.today()}
	}
	if t.record.Date != t.today() {
		t.record.Date = t.today()
		t.record.TotalCallsToday = 0
	}
	return t
}

func (t *Tracker) today() string {
	return time.Now().Format(dateLayout)
}

// Allow reports whether another call fits under the daily ceiling. The
// check happens only immediately before each call; once it declines, every
// later call in the run is declined too.
func (t *Tracker) Allow() bool {
	return t.record.TotalCallsToday+t.inRun < t.ceiling
}

// Note records that one call was issued.
func (t *Tracker) Note() {
	t.inRun++
}

// UsedToday is the live today total: the persisted count plus calls made
// this run.
func (t *Tracker) UsedToday() int {
	return t.record.TotalCallsToday + t.inRun
}

// InRun is the number of calls issued by the current run.
func (t *Tracker) InRun() int {
	return t.inRun
}

// LastRun is the call count persisted by the previous run.
func (t *Tracker) LastRun() int {
	return t.record.LastRunCallCount
}

// Commit folds the in-run count into the record and rewrites the file. It
// runs at process end, including the fatal and forced-shutdown paths.
func (t *Tracker) Commit() error {
	today := t.today()
	if t.record.Date == today {
		t.record.TotalCallsToday += t.inRun
	} else {
		t.record.Date = today
		t.record.TotalCallsToday = t.inRun
	}
	t.record.LastRunCallCount = t.inRun
	t.inRun = 0

	data, err := json.Marshal(t.record)
	if err != nil {
		return fmt.Errorf("encoding quota record: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("writing quota record: %w", err)
	}
	t.logger.Info().
		Int("last_run_calls", t.record.LastRunCallCount).
		Int("total_calls_today", t.record.TotalCallsToday).
		Msg("quota record committed")
	return nil
}
