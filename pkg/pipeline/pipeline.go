// Package pipeline wires the ingestion and reporting phases into one run:
// dictionary derivation, typed load, then four isolated aggregation exports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cascadelabs/evlake/pkg/dataset"
	"github.com/cascadelabs/evlake/pkg/duck"
	"github.com/cascadelabs/evlake/pkg/ev"
	"github.com/cascadelabs/evlake/pkg/ingest"
	"github.com/cascadelabs/evlake/pkg/report"
)

const outputDirTimeFormat = "2006-01-02_15-04-05"

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	DB     duck.Client

	// Source is the CSV file to ingest.
	Source string

	// OutputDir receives the artifacts. Empty derives a timestamped
	// directory under ./output.
	OutputDir string

	// Policy selects the source columns to dictionary-encode. An empty
	// policy loads every string column as plain text.
	Policy ev.TypingPolicy

	// GeometryAsText declares the location column as text instead of
	// geometry, for sessions without the spatial extension.
	GeometryAsText bool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("database client is required")
	}
	if cfg.Source == "" {
		return errors.New("source is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid typing policy: %w", err)
	}
	return nil
}

type Pipeline struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Result describes one pipeline run. Failed is non-empty on partial success
// of the reporting phase.
type Result struct {
	RunID     string
	Table     string
	Rows      int64
	OutputDir string
	Artifacts []string
	Failed    map[string]error
}

// Run executes one full pipeline pass: dictionaries, schema, bulk load, then
// the reporting jobs. Ingestion errors are fatal; reporting errors are
// collected per job and returned joined alongside the partial result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	log := p.log.With("run_id", runID)

	outputDir := p.cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join("output", p.cfg.Clock.Now().Format(outputDirTimeFormat))
	}

	conn, err := p.cfg.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	enums := make(map[string]dataset.EnumType, len(p.cfg.Policy.EnumColumns))
	ordered := make([]dataset.EnumType, 0, len(p.cfg.Policy.EnumColumns))
	for _, col := range p.cfg.Policy.EnumColumns {
		dict, err := ingest.BuildDictionary(ctx, conn, p.cfg.Source, col.Source, col.TypeName)
		if err != nil {
			return nil, err
		}
		log.Debug("dictionary derived", "column", col.Source, "type", dict.Name, "values", len(dict.Values))
		e := dict.EnumType()
		enums[col.Source] = e
		ordered = append(ordered, e)
	}

	table, err := ev.TableSchema(ev.SchemaParams{
		TableName:      ingest.TableName(p.cfg.Source),
		Enums:          enums,
		GeometryAsText: p.cfg.GeometryAsText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build table schema: %w", err)
	}

	loader, err := ingest.NewLoader(ingest.LoaderConfig{Logger: log, DB: p.cfg.DB})
	if err != nil {
		return nil, err
	}
	tableName, rows, err := loader.Load(ctx, p.cfg.Source, ordered, table)
	if err != nil {
		return nil, err
	}

	runner, err := report.NewRunner(report.RunnerConfig{Logger: log, DB: p.cfg.DB})
	if err != nil {
		return nil, err
	}
	reportResult, runErr := runner.Run(ctx, tableName, outputDir, report.Jobs())

	result := &Result{
		RunID:     runID,
		Table:     tableName,
		Rows:      rows,
		OutputDir: outputDir,
	}
	if reportResult != nil {
		result.Artifacts = reportResult.Artifacts
		result.Failed = reportResult.Failed
	}
	if runErr != nil {
		return result, runErr
	}

	log.Info("results exported", "output_dir", outputDir, "artifacts", len(result.Artifacts))
	return result, nil
}
