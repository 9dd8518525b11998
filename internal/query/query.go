// Package query builds the parameterized report selections.
package query

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Report table columns the filter applies to
const (
	ColMarginType = "margin_type"
	ColDate       = "date"
	ColTimeOfDay  = "time_of_day"
)

// Condition is one equality filter
type Condition struct {
	Column string
	Value  string
}

// Predicate selects report rows of one margin class on one date, and
// optionally one time of day. Values only ever travel as bind arguments.
type Predicate struct {
	Table      string
	Conditions []Condition
}

// Build returns the predicate for table/margin/date, narrowed on
// time_of_day when timeOfDay is non-empty
func Build(table, margin, date, timeOfDay string) Predicate {
	p := Predicate{
		Table: table,
		Conditions: []Condition{
			{Column: ColMarginType, Value: margin},
			{Column: ColDate, Value: date},
		},
	}
	if timeOfDay != "" {
		p.Conditions = append(p.Conditions, Condition{Column: ColTimeOfDay, Value: timeOfDay})
	}
	return p
}

// Where renders the filter with $n placeholders
func (p Predicate) Where() string {
	parts := make([]string, 0, len(p.Conditions))
	for i, c := range p.Conditions {
		parts = append(parts, fmt.Sprintf("%s = $%d", pgx.Identifier{c.Column}.Sanitize(), i+1))
	}
	return strings.Join(parts, " AND ")
}

// Args returns the bind arguments in placeholder order
func (p Predicate) Args() []any {
	args := make([]any, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		args = append(args, c.Value)
	}
	return args
}

// SQL renders the full select. Rows come back in insertion (id) order.
func (p Predicate) SQL() string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY id",
		pgx.Identifier{p.Table}.Sanitize(), p.Where())
}

// Value returns the bound value for column, if filtered on
func (p Predicate) Value(column string) (string, bool) {
	for _, c := range p.Conditions {
		if c.Column == column {
			return c.Value, true
		}
	}
	return "", false
}
