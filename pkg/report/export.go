package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cascadelabs/evlake/pkg/dataset"
	"github.com/cascadelabs/evlake/pkg/duck"
)

// Aggregation/export-phase error kinds. Both are isolated per job: a failure
// on one artifact never aborts the others.
var (
	// ErrQueryExecution reports a job whose aggregation could not be
	// compiled or executed.
	ErrQueryExecution = errors.New("query execution failed")

	// ErrExportWrite reports an I/O failure writing an artifact.
	ErrExportWrite = errors.New("artifact export failed")
)

// exportParquet serializes a query result to a Parquet artifact. With a
// partition column it writes one file group per distinct value beneath path
// (e.g. model_year=2020) instead of a single file.
func exportParquet(ctx context.Context, conn duck.Connection, query, path, partitionBy string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrExportWrite, err)
	}

	options := "FORMAT 'PARQUET'"
	if partitionBy != "" {
		options += fmt.Sprintf(", PARTITION_BY (%s)", dataset.QuoteIdent(partitionBy))
	}
	stmt := fmt.Sprintf("COPY (%s) TO %s (%s)", query, dataset.QuoteLiteral(path), options)

	if err := conn.Exec(ctx, stmt); err != nil {
		return classifyExportError(err)
	}
	return nil
}

// classifyExportError splits engine failures of the single COPY statement
// into query-side and write-side kinds.
func classifyExportError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "binder error"),
		strings.Contains(msg, "catalog error"),
		strings.Contains(msg, "parser error"):
		return fmt.Errorf("%w: %w", ErrQueryExecution, err)
	default:
		return fmt.Errorf("%w: %w", ErrExportWrite, err)
	}
}
