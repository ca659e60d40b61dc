package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cascadelabs/evlake/pkg/dataset"
	"github.com/cascadelabs/evlake/pkg/duck"
)

type RunnerConfig struct {
	Logger *slog.Logger
	DB     duck.Client
}

func (cfg *RunnerConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("database client is required")
	}
	return nil
}

// Runner executes reporting jobs against an immutable, fully loaded table.
// Jobs run on parallel workers and fail independently.
type Runner struct {
	log *slog.Logger
	cfg RunnerConfig
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Result reports which artifacts were written and which jobs failed.
type Result struct {
	OutputDir string
	Artifacts []string
	Failed    map[string]error
}

// Run executes the jobs against the table and writes each artifact under
// outputDir. Per-job failures are collected into Result.Failed and the
// joined error; sibling jobs still run to completion.
func (r *Runner) Run(ctx context.Context, table, outputDir string, jobs []Job) (*Result, error) {
	conn, err := r.cfg.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	columns, err := r.tableColumns(ctx, conn, table)
	if err != nil {
		return nil, err
	}

	r.log.Info("collecting data", "table", table, "output_dir", outputDir, "jobs", len(jobs))

	result := &Result{
		OutputDir: outputDir,
		Failed:    make(map[string]error),
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			path := filepath.Join(outputDir, job.File)
			err := r.runJob(ctx, conn, job, table, columns, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.Error("job failed", "job", job.Agg.Name, "error", err)
				result.Failed[job.Agg.Name] = err
				return nil
			}
			r.log.Info("artifact written", "job", job.Agg.Name, "path", path)
			result.Artifacts = append(result.Artifacts, path)
			return nil
		})
	}
	_ = g.Wait()

	if len(result.Failed) == 0 {
		return result, nil
	}

	errs := make([]error, 0, len(result.Failed))
	for _, job := range jobs {
		if err, ok := result.Failed[job.Agg.Name]; ok {
			errs = append(errs, fmt.Errorf("job %s: %w", job.Agg.Name, err))
		}
	}
	return result, errors.Join(errs...)
}

func (r *Runner) runJob(ctx context.Context, conn duck.Connection, job Job, table string, columns map[string]bool, path string) error {
	for _, key := range job.Agg.GroupBy {
		if !columns[key] {
			return fmt.Errorf("%w: group key %q is not a column of %s", ErrQueryExecution, key, table)
		}
	}
	for _, m := range job.Agg.Metrics {
		if m.Column != "" && !columns[m.Column] {
			return fmt.Errorf("%w: metric column %q is not a column of %s", ErrQueryExecution, m.Column, table)
		}
	}

	query, err := job.Agg.SQL(table)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrQueryExecution, err)
	}

	return exportParquet(ctx, conn, query, path, job.PartitionBy)
}

func (r *Runner) tableColumns(ctx context.Context, conn duck.Connection, table string) (map[string]bool, error) {
	result, err := dataset.Query(ctx, conn,
		"SELECT column_name FROM information_schema.columns WHERE table_name = ?", table)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	if result.Count == 0 {
		return nil, fmt.Errorf("%w: table %s does not exist", ErrQueryExecution, table)
	}
	columns := make(map[string]bool, result.Count)
	for _, row := range result.Rows {
		if name, ok := row["column_name"].(string); ok {
			columns[name] = true
		}
	}
	return columns, nil
}
