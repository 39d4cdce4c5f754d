package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver

	"github.com/ekaya-inc/ekaya-querycache/pkg/adapters/datasource"
)

const connMaxLifetime = 30 * time.Minute

// QueryExecutor runs generated T-SQL against SQL Server.
type QueryExecutor struct {
	db *sql.DB
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)

// NewQueryExecutor opens a SQL Server pool for cfg. The datasource factory
// pings it before use.
func NewQueryExecutor(_ context.Context, cfg *Config) (*QueryExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open("sqlserver", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	db.SetConnMaxLifetime(connMaxLifetime)
	return &QueryExecutor{db: db}, nil
}

// limitQuery bounds sqlQuery with TOP, since T-SQL has no LIMIT.
func limitQuery(sqlQuery string, limit int) string {
	return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", datasource.EffectiveLimit(limit), sqlQuery)
}

// Query implements datasource.QueryExecutor.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	rows, err := e.db.QueryContext(ctx, limitQuery(sqlQuery, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	result := &datasource.QueryExecutionResult{
		Columns: make([]datasource.ColumnInfo, len(types)),
		Rows:    []map[string]any{},
	}
	dbTypes := make([]string, len(types))
	for i, ct := range types {
		dbTypes[i] = ct.DatabaseTypeName()
		result.Columns[i] = datasource.ColumnInfo{Name: ct.Name(), Type: mapSQLServerType(dbTypes[i])}
	}

	values := make([]any, len(types))
	dest := make([]any, len(types))
	for rows.Next() {
		for i := range values {
			values[i] = nil
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(types))
		for i, col := range result.Columns {
			row[col.Name] = convertValue(dbTypes[i], values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// Ping verifies the server is reachable with valid credentials.
func (e *QueryExecutor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Dialect implements datasource.QueryExecutor.
func (e *QueryExecutor) Dialect() string {
	return "Microsoft SQL Server (T-SQL)"
}

// Close releases the pool.
func (e *QueryExecutor) Close() error {
	return e.db.Close()
}
