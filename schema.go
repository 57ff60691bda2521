package sqlitemcp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Catalog queries against sqlite_master. Both are re-run live on every call —
// no caching, so schema changes are visible on the next read.

const tableSchemaSQL = `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`

const allTableSchemasSQL = `SELECT name, sql FROM sqlite_master WHERE type = 'table'`

// TableSchema looks up the CREATE TABLE statement for a single table.
// A missing table is a NotFound outcome (Found == false), not an error; a
// table whose stored definition text is NULL reports HasDefinition == false.
// Does NOT go through the gate/hook/sanitization pipeline — the catalog query
// is fixed, not client-supplied.
func (s *SqliteMcp) TableSchema(ctx context.Context, input TableSchemaInput) (*TableSchemaOutput, error) {
	startTime := time.Now()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(s.config.Query.SchemaTimeoutSeconds)*time.Second)
	defer cancel()

	var definition sql.NullString
	err := s.db.QueryRowContext(queryCtx, tableSchemaSQL, input.Table).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn().Str("table", input.Table).Msg("table not found in catalog")
		return &TableSchemaOutput{Table: input.Table}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("TableSchema catalog lookup failed: %w", err)
	}

	s.logger.Info().
		Str("table", input.Table).
		Dur("duration", time.Since(startTime)).
		Bool("has_definition", definition.Valid).
		Msg("TableSchema executed")

	return &TableSchemaOutput{
		Table:         input.Table,
		Found:         true,
		HasDefinition: definition.Valid,
		Definition:    definition.String,
	}, nil
}

// AllTableSchemas enumerates every catalog entry of kind "table" whose
// definition text is non-null, in catalog order. Tables with a NULL
// definition (system-generated objects) are silently excluded — a deliberate
// filtering rule, not an oversight.
func (s *SqliteMcp) AllTableSchemas(ctx context.Context) (*SchemaCatalogOutput, error) {
	startTime := time.Now()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(s.config.Query.SchemaTimeoutSeconds)*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, allTableSchemasSQL)
	if err != nil {
		return nil, fmt.Errorf("AllTableSchemas catalog query failed: %w", err)
	}
	defer rows.Close()

	catalog := orderedmap.New[string, string]()
	for rows.Next() {
		var name string
		var definition sql.NullString
		if err := rows.Scan(&name, &definition); err != nil {
			return nil, fmt.Errorf("AllTableSchemas scan failed: %w", err)
		}
		if !definition.Valid {
			continue
		}
		catalog.Set(name, definition.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AllTableSchemas rows error: %w", err)
	}

	s.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", catalog.Len()).
		Msg("AllTableSchemas executed")

	return &SchemaCatalogOutput{Schemas: catalog}, nil
}
