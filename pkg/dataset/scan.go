package dataset

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cascadelabs/evlake/pkg/duck"
)

// QueryResult represents the result of a query execution.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
	Count   int
}

// ScanRows scans all rows into maps keyed by column name.
func ScanRows(rows *sql.Rows) ([]string, []map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get columns: %w", err)
	}

	valuePtrs := make([]any, len(columns))
	values := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	var resultRows []map[string]any
	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return columns, resultRows, nil
}

// Query executes a raw SQL query and returns the scanned results.
func Query(ctx context.Context, conn duck.Connection, query string, args ...any) (*QueryResult, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, resultRows, err := ScanRows(rows)
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Columns: columns,
		Rows:    resultRows,
		Count:   len(resultRows),
	}, nil
}
