package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/excelcw/dtools-pull/internal/aggregate"
	"github.com/excelcw/dtools-pull/internal/model"
)

// Writer emits CSV rows for processed opportunities as they complete, so a
// fatal abort still leaves the rows written so far behind the header.
type Writer struct {
	cols ColumnSet
	csv  *csv.Writer
	rows int
}

// NewWriter wraps w with the selected column set.
func NewWriter(w io.Writer, cols ColumnSet) *Writer {
	return &Writer{cols: cols, csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row of column display names.
func (w *Writer) WriteHeader() error {
	if err := w.csv.Write(w.cols.Names()); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// rowValues carries the labor/service values one row draws its non-scalar
// cells from.
type rowValues struct {
	laborName   string
	labor       aggregate.Pair
	serviceName string
	service     aggregate.Pair
}

// WriteOpportunity expands one opportunity into rows. With a labor
// break-out, one row per labor type, each with its own quoted/worked pair
// and aggregate service totals. With a service break-out, the symmetric
// per-service rows. Otherwise a single row of totals.
func (w *Writer) WriteOpportunity(o *model.Opportunity, labor, service *aggregate.Totals) error {
	laborTotal := totalOf(labor)
	serviceTotal := totalOf(service)

	switch {
	case w.cols.LaborBreakout():
		if labor == nil {
			return nil
		}
		for _, name := range labor.Names() {
			pair, _ := labor.Get(name)
			err := w.writeRow(o, rowValues{laborName: name, labor: pair, service: serviceTotal})
			if err != nil {
				return err
			}
		}
	case w.cols.ServiceBreakout():
		if service == nil {
			return nil
		}
		for _, name := range service.Names() {
			pair, _ := service.Get(name)
			err := w.writeRow(o, rowValues{serviceName: name, service: pair, labor: laborTotal})
			if err != nil {
				return err
			}
		}
	default:
		return w.writeRow(o, rowValues{labor: laborTotal, service: serviceTotal})
	}
	return nil
}

func totalOf(t *aggregate.Totals) aggregate.Pair {
	if t == nil {
		return aggregate.Pair{}
	}
	return t.Total()
}

func (w *Writer) writeRow(o *model.Opportunity, vals rowValues) error {
	row := make([]string, len(w.cols.cols))
	for i, col := range w.cols.cols {
		switch col.Role {
		case RoleScalar:
			row[i] = col.scalar(o)
		case RoleLaborType:
			row[i] = vals.laborName
		case RoleQuotedMinutes:
			row[i] = formatMinutes(vals.labor.Quoted)
		case RoleWorkedMinutes:
			row[i] = formatMinutes(vals.labor.Worked)
		case RoleServiceType:
			row[i] = vals.serviceName
		case RoleServiceQuantity:
			row[i] = formatNumber(vals.service.Quoted)
		case RoleServicePrice:
			row[i] = formatNumber(vals.service.Worked)
		}
	}
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("writing csv row: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	w.rows++
	return nil
}
