package sqlitemcp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row is a single result row. The mapping is ordered: keys appear in the same
// order as the query's output columns, which plain Go maps would not preserve
// through JSON serialization.
type Row = *orderedmap.OrderedMap[string, any]

// NewRow returns an empty ordered row.
func NewRow() Row {
	return orderedmap.New[string, any]()
}

// Error codes carried alongside the textual error message in QueryOutput.
const (
	ErrCodeRejected  = "rejected_query"
	ErrCodeExecution = "execution_error"
)

// QueryInput is the input for the sql_query tool.
type QueryInput struct {
	Query string `json:"query"`
}

// QueryOutput is the output of the sql_query tool. All failures (SQLite
// errors, gate rejections, hook rejections, Go errors) are placed in Error
// with a machine-readable ErrorCode; callers only need to check Error, never
// a Go error. The transport boundary renders Error verbatim as plain text.
type QueryOutput struct {
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
	Error     string   `json:"error,omitempty"`
	ErrorCode string   `json:"error_code,omitempty"`
}

// TableSchemaInput is the input for the per-table schema resource.
type TableSchemaInput struct {
	Table string `json:"table"`
}

// TableSchemaOutput is the result of a single-table catalog lookup.
// Found distinguishes "no such table" from a successful lookup;
// HasDefinition distinguishes a NULL definition text (system-generated
// objects) from a real CREATE TABLE statement.
type TableSchemaOutput struct {
	Table         string `json:"table"`
	Found         bool   `json:"found"`
	HasDefinition bool   `json:"has_definition"`
	Definition    string `json:"definition,omitempty"`
}

// SchemaCatalogOutput maps every user table with a non-null definition to its
// CREATE TABLE statement, in catalog order.
type SchemaCatalogOutput struct {
	Schemas *orderedmap.OrderedMap[string, string] `json:"schemas"`
}
