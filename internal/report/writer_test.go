package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excelcw/dtools-pull/internal/aggregate"
	"github.com/excelcw/dtools-pull/internal/model"
)

func newTestWriter(t *testing.T, columns []string) (*Writer, *bytes.Buffer) {
	t.Helper()
	cols, err := Resolve(columns)
	require.NoError(t, err)
	var buf bytes.Buffer
	return NewWriter(&buf, cols), &buf
}

func readRows(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	return rows
}

func laborTotals(entries map[string]aggregate.Pair) *aggregate.Totals {
	totals := aggregate.NewTotals()
	for name, pair := range entries {
		totals.Add(name, pair)
	}
	return totals
}

func TestWriter_HeaderMatchesSelection(t *testing.T) {
	w, buf := newTestWriter(t, []string{"Job ID", "Worked Minutes"})
	require.NoError(t, w.WriteHeader())

	rows := readRows(t, buf)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Job ID", "Worked Minutes"}, rows[0])
}

func TestWriter_WonOpportunityWithoutTimeEntries(t *testing.T) {
	// A won project with 3600 seconds of quoted Install labor and no time
	// entries produces exactly one row with zero worked minutes.
	w, buf := newTestWriter(t, []string{"Job ID", "Labor Type", "Worked Minutes"})

	labor := laborTotals(map[string]aggregate.Pair{"Install": {Quoted: 60}})
	opp := &model.Opportunity{ID: "1", Stage: model.StageWon}
	require.NoError(t, w.WriteOpportunity(opp, labor, nil))

	rows := readRows(t, buf)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"1", "Install", "0"}, rows[0])
	assert.Equal(t, 1, w.Rows())
}

func TestWriter_LaborBreakoutOneRowPerType(t *testing.T) {
	w, buf := newTestWriter(t, []string{"Job ID", "Labor Type", "Quoted Minutes", "Worked Minutes"})

	labor := laborTotals(map[string]aggregate.Pair{
		"Install": {Quoted: 120, Worked: 90},
		"Design":  {Quoted: 30},
	})
	require.NoError(t, w.WriteOpportunity(&model.Opportunity{ID: "opp1"}, labor, nil))

	rows := readRows(t, buf)
	require.Len(t, rows, 2)
	// Rows come out in sorted labor type order.
	assert.Equal(t, []string{"opp1", "Design", "30", "0"}, rows[0])
	assert.Equal(t, []string{"opp1", "Install", "120", "90"}, rows[1])
}

func TestWriter_LaborBreakoutCarriesServiceTotals(t *testing.T) {
	// With both break-out columns requested, labor wins and every labor row
	// repeats the aggregate service totals with an empty Service Type cell.
	w, buf := newTestWriter(t, []string{"Labor Type", "Service Type", "Service Quantity", "Service Price"})

	labor := laborTotals(map[string]aggregate.Pair{
		"Design":  {Quoted: 30},
		"Install": {Quoted: 60},
	})
	service := laborTotals(map[string]aggregate.Pair{
		"Monitoring": {Quoted: 2, Worked: 150},
		"Support":    {Quoted: 1, Worked: 99.5},
	})
	require.NoError(t, w.WriteOpportunity(&model.Opportunity{ID: "opp1"}, labor, service))

	rows := readRows(t, buf)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "", row[1])
		assert.Equal(t, "3", row[2])
		assert.Equal(t, "249.5", row[3])
	}
}

func TestWriter_ServiceBreakout(t *testing.T) {
	w, buf := newTestWriter(t, []string{"Job ID", "Service Type", "Service Quantity", "Service Price", "Quoted Minutes"})

	labor := laborTotals(map[string]aggregate.Pair{"Install": {Quoted: 45}})
	service := laborTotals(map[string]aggregate.Pair{
		"Monitoring": {Quoted: 2, Worked: 150},
	})
	require.NoError(t, w.WriteOpportunity(&model.Opportunity{ID: "opp1"}, labor, service))

	rows := readRows(t, buf)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"opp1", "Monitoring", "2", "150", "45"}, rows[0])
}

func TestWriter_TotalsRowWithoutBreakouts(t *testing.T) {
	w, buf := newTestWriter(t, []string{"Job ID", "Quoted Minutes", "Worked Minutes"})

	labor := laborTotals(map[string]aggregate.Pair{
		"Install": {Quoted: 100, Worked: 40},
		"Design":  {Quoted: 20, Worked: 5},
	})
	require.NoError(t, w.WriteOpportunity(&model.Opportunity{ID: "opp1"}, labor, nil))

	rows := readRows(t, buf)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"opp1", "120", "45"}, rows[0])
}

func TestWriter_ZeroTotalsStillEmitRow(t *testing.T) {
	w, buf := newTestWriter(t, []string{"Job ID", "Quoted Minutes"})

	require.NoError(t, w.WriteOpportunity(&model.Opportunity{ID: "opp1"}, aggregate.NewTotals(), nil))

	rows := readRows(t, buf)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"opp1", "0"}, rows[0])
}

func TestWriter_ScalarCells(t *testing.T) {
	w, buf := newTestWriter(t, []string{"Job ID", "Client Name", "Job Name", "Job Stage", "Job Priority", "Job Price"})

	opp := &model.Opportunity{
		ID: "opp1", ClientName: "Acme", Name: "HQ Refresh",
		Stage: "On Hold", Priority: "High", Price: 12500.5,
	}
	require.NoError(t, w.WriteOpportunity(opp, nil, nil))

	rows := readRows(t, buf)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"opp1", "Acme", "HQ Refresh", "On Hold", "High", "12500.5"}, rows[0])
}
