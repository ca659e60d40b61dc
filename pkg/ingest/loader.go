// Package ingest derives categorical dictionaries from a CSV source and bulk
// loads it into a typed table, all-or-nothing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cascadelabs/evlake/pkg/dataset"
	"github.com/cascadelabs/evlake/pkg/duck"
)

// State tracks the load-phase state machine. The aggregation phase must not
// start before StateLoaded.
type State int

const (
	StateEmpty State = iota
	StateTypesDeclared
	StateTableDeclared
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateTypesDeclared:
		return "types_declared"
	case StateTableDeclared:
		return "table_declared"
	case StateLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

type LoaderConfig struct {
	Logger *slog.Logger
	DB     duck.Client
}

func (cfg *LoaderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("database client is required")
	}
	return nil
}

// Loader declares enum types and the table schema, then bulk loads the
// source. Steps run strictly in sequence.
type Loader struct {
	log   *slog.Logger
	cfg   LoaderConfig
	state State
}

func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loader{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

func (l *Loader) State() State {
	return l.state
}

// TableName derives the table name from the source file stem, lowercased.
func TableName(source string) string {
	base := filepath.Base(source)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Load declares the enum types and the table, then copies every source row
// into it. The copy is all-or-nothing: on any failure the table is dropped so
// no partial state survives. Returns the table name and the loaded row count.
func (l *Loader) Load(ctx context.Context, source string, enums []dataset.EnumType, table dataset.Table) (string, int64, error) {
	conn, err := l.cfg.DB.Conn(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	l.log.Info("creating table and importing data", "source", source, "table", table.Name)

	for _, e := range enums {
		ddl, err := e.DDL()
		if err != nil {
			return "", 0, fmt.Errorf("failed to render enum type %s: %w", e.Name, err)
		}
		if err := conn.Exec(ctx, ddl); err != nil {
			return "", 0, fmt.Errorf("failed to declare enum type %s: %w", e.Name, classifyDeclareError(err))
		}
		l.log.Debug("enum type declared", "type", e.Name, "values", len(e.Values))
	}
	l.state = StateTypesDeclared

	tableDDL, err := table.DDL()
	if err != nil {
		return "", 0, fmt.Errorf("failed to render table schema: %w", err)
	}
	if err := conn.Exec(ctx, tableDDL); err != nil {
		return "", 0, fmt.Errorf("failed to declare table %s: %w", table.Name, classifyDeclareError(err))
	}
	l.state = StateTableDeclared

	copyStmt := fmt.Sprintf("COPY %s FROM %s WITH (HEADER 1, DELIMITER ',')",
		dataset.QuoteIdent(table.Name), dataset.QuoteLiteral(source))
	if err := conn.Exec(ctx, copyStmt); err != nil {
		l.dropTable(ctx, conn, table.Name)
		return "", 0, fmt.Errorf("failed to load %s: %w", source, classifyCopyError(err))
	}

	var count int64
	if err := conn.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", dataset.QuoteIdent(table.Name))).Scan(&count); err != nil {
		l.dropTable(ctx, conn, table.Name)
		return "", 0, fmt.Errorf("failed to count loaded rows: %w", err)
	}

	l.state = StateLoaded
	l.log.Info("successfully imported data", "table", table.Name, "rows", count)

	return table.Name, count, nil
}

// dropTable removes the half-loaded table. A cancelled load still cleans up,
// so the drop runs detached from the caller's cancellation.
func (l *Loader) dropTable(ctx context.Context, conn duck.Connection, name string) {
	dropCtx := context.WithoutCancel(ctx)
	if err := conn.Exec(dropCtx, fmt.Sprintf("DROP TABLE IF EXISTS %s", dataset.QuoteIdent(name))); err != nil {
		l.log.Error("failed to drop table after load failure", "table", name, "error", err)
	}
	l.state = StateTypesDeclared
}
