// Package datasource executes generated SQL against the configured database.
// Adapters register themselves from their package init; import
// adapters/datasource/postgres or adapters/datasource/mssql to enable one.
package datasource

import "context"

// MaxQueryLimit is the hard cap on rows returned by Query.
const MaxQueryLimit = 1000

// QueryExecutor runs bounded read queries against a datasource.
// Each implementation owns its connection pool and must be closed when done.
type QueryExecutor interface {
	// Query runs a SELECT statement and returns at most limit rows.
	// The query is always wrapped with a dialect-specific limit:
	//   - PostgreSQL: SELECT * FROM (query) AS _limited LIMIT n
	//   - SQL Server: SELECT TOP (n) * FROM (query) AS _limited
	// limit <= 0 or above MaxQueryLimit is treated as MaxQueryLimit.
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryExecutionResult, error)

	// Ping verifies the datasource is reachable.
	Ping(ctx context.Context) error

	// Dialect names the SQL dialect, used when prompting for SQL.
	Dialect() string

	Close() error
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// EffectiveLimit applies the MaxQueryLimit bounds to a requested limit.
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
