// Package report turns aggregated per-opportunity state into flat CSV rows.
package report

import (
	"fmt"
	"strconv"

	"github.com/excelcw/dtools-pull/internal/aggregate"
	"github.com/excelcw/dtools-pull/internal/model"
)

// Role says how a column's cell value is produced.
type Role int

const (
	// RoleScalar columns read a literal field off the opportunity detail.
	RoleScalar Role = iota
	RoleLaborType
	RoleQuotedMinutes
	RoleWorkedMinutes
	RoleServiceType
	RoleServiceQuantity
	RoleServicePrice
)

// Column maps a display name to a typed accessor over the opportunity
// record.
type Column struct {
	Name   string
	Role   Role
	scalar func(o *model.Opportunity) string
}

// registry is the fixed enumerated column set, in default output order.
var registry = []Column{
	{Name: "Job ID", Role: RoleScalar, scalar: func(o *model.Opportunity) string { return o.ID }},
	{Name: "Client Name", Role: RoleScalar, scalar: func(o *model.Opportunity) string { return o.ClientName }},
	{Name: "Job Name", Role: RoleScalar, scalar: func(o *model.Opportunity) string { return o.Name }},
	{Name: "Job Stage", Role: RoleScalar, scalar: func(o *model.Opportunity) string { return o.Stage }},
	{Name: "Job Priority", Role: RoleScalar, scalar: func(o *model.Opportunity) string { return o.Priority }},
	{Name: "Job Price", Role: RoleScalar, scalar: func(o *model.Opportunity) string { return formatNumber(o.Price) }},
	{Name: "Labor Type", Role: RoleLaborType},
	{Name: "Quoted Minutes", Role: RoleQuotedMinutes},
	{Name: "Worked Minutes", Role: RoleWorkedMinutes},
	{Name: "Service Type", Role: RoleServiceType},
	{Name: "Service Quantity", Role: RoleServiceQuantity},
	{Name: "Service Price", Role: RoleServicePrice},
}

// DefaultColumns returns every known display name in registry order.
func DefaultColumns() []string {
	names := make([]string, len(registry))
	for i, col := range registry {
		names[i] = col.Name
	}
	return names
}

// ColumnSet is an ordered, validated selection of output columns.
type ColumnSet struct {
	cols []Column
}

// Resolve validates the requested display names against the registry and
// returns them as an ordered column set. Unknown names are a startup error.
func Resolve(names []string) (ColumnSet, error) {
	if len(names) == 0 {
		return ColumnSet{}, fmt.Errorf("no output columns requested")
	}
	byName := make(map[string]Column, len(registry))
	for _, col := range registry {
		byName[col.Name] = col
	}

	cols := make([]Column, 0, len(names))
	for _, name := range names {
		col, ok := byName[name]
		if !ok {
			return ColumnSet{}, fmt.Errorf("unknown column %q", name)
		}
		cols = append(cols, col)
	}
	return ColumnSet{cols: cols}, nil
}

// Names returns the CSV header row.
func (s ColumnSet) Names() []string {
	names := make([]string, len(s.cols))
	for i, col := range s.cols {
		names[i] = col.Name
	}
	return names
}

func (s ColumnSet) hasRole(roles ...Role) bool {
	for _, col := range s.cols {
		for _, role := range roles {
			if col.Role == role {
				return true
			}
		}
	}
	return false
}

// HasLabor reports whether any labor/time column is requested; only then is
// time-entry and labor aggregation performed.
func (s ColumnSet) HasLabor() bool {
	return s.hasRole(RoleLaborType, RoleQuotedMinutes, RoleWorkedMinutes)
}

// HasService reports whether any service column is requested.
func (s ColumnSet) HasService() bool {
	return s.hasRole(RoleServiceType, RoleServiceQuantity, RoleServicePrice)
}

// LaborBreakout reports whether rows break out per labor type.
func (s ColumnSet) LaborBreakout() bool {
	return s.hasRole(RoleLaborType)
}

// ServiceBreakout reports whether rows break out per service type. The two
// break-out modes are mutually exclusive; labor wins when both columns are
// selected, and service values then appear as aggregate totals.
func (s ColumnSet) ServiceBreakout() bool {
	return s.hasRole(RoleServiceType) && !s.LaborBreakout()
}

// Views derives the active accumulation views for the engine.
func (s ColumnSet) Views() aggregate.Views {
	return aggregate.Views{Labor: s.HasLabor(), Service: s.HasService()}
}

// formatNumber renders a float with the precision the API supplied, without
// trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatMinutes renders a minute value as an integer.
func formatMinutes(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}
