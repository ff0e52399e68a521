// Package warehouse executes read-only SQL against the analytical dataset
package warehouse

// ColumnType is the semantic type of a result column
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnNumeric ColumnType = "numeric"
	ColumnDate    ColumnType = "date"
)

// Column is a named, typed result column
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Row maps column name to a scalar value. A nil value is SQL NULL.
type Row map[string]any

// Result is a tabular query result. Columns and Rows keep executor order.
// A result with exactly one row is a scalar result.
type Result struct {
	Columns   []Column `json:"columns"`
	Rows      []Row    `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// ColumnNames returns the column names in order
func (r *Result) ColumnNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// RowCount returns the number of rows
func (r *Result) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// IsScalar reports whether the result holds exactly one row
func (r *Result) IsScalar() bool {
	return r.RowCount() == 1
}

// Records returns the rows as plain maps, suitable for JSON encoding
func (r *Result) Records() []map[string]any {
	if r == nil {
		return []map[string]any{}
	}
	records := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		records[i] = map[string]any(row)
	}
	return records
}
