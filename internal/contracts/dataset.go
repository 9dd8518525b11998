package contracts

import "fmt"

// Row is one result row keyed by column name
type Row map[string]any

// Dataset is a named, ordered result set
// ⭐ SSOT: 조회 결과는 이 타입으로만 전달
type Dataset struct {
	Name    string   `json:"name"`    // {report}_{margin}
	Columns []string `json:"columns"` // in select order
	Rows    []Row    `json:"rows"`
}

// DatasetName labels a fetched report for one margin class
func DatasetName(report, margin string) string {
	return fmt.Sprintf("%s_%s", report, margin)
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Empty reports whether the dataset has no rows
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// HasColumn reports whether col is part of the dataset's columns
func (d *Dataset) HasColumn(col string) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// MissingColumns returns the entries of cols the dataset does not carry,
// in the order given
func (d *Dataset) MissingColumns(cols []string) []string {
	var missing []string
	for _, c := range cols {
		if !d.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Column returns the values of col in row order
func (d *Dataset) Column(col string) []any {
	out := make([]any, 0, len(d.Rows))
	for _, r := range d.Rows {
		out = append(out, r[col])
	}
	return out
}
