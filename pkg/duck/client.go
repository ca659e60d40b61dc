package duck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Client represents an embedded DuckDB database session
type Client interface {
	Conn(ctx context.Context) (Connection, error)
	Close() error
}

// Connection represents a DuckDB connection
type Connection interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

type Config struct {
	Logger *slog.Logger

	// Path is the database location. Empty means a fresh in-memory session.
	Path string

	// Extensions are installed and loaded at session open (e.g. "spatial").
	Extensions []string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

type client struct {
	db  *sql.DB
	log *slog.Logger
}

type connection struct {
	db *sql.DB
}

// NewClient opens an embedded DuckDB session and loads the requested
// extensions.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DuckDB: %w", err)
	}

	for _, ext := range cfg.Extensions {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("INSTALL %s", ext)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to install %s extension: %w", ext, err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("LOAD %s", ext)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load %s extension: %w", ext, err)
		}
	}

	location := cfg.Path
	if location == "" {
		location = ":memory:"
	}
	cfg.Logger.Info("DuckDB session initialized", "database", location, "extensions", fmt.Sprintf("%v", cfg.Extensions))

	return &client{
		db:  db,
		log: cfg.Logger,
	}, nil
}

func (c *client) Conn(ctx context.Context) (Connection, error) {
	return &connection{db: c.db}, nil
}

func (c *client) Close() error {
	return c.db.Close()
}

func (c *connection) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

func (c *connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *connection) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

func (c *connection) Close() error {
	// Connection is shared, don't close it
	return nil
}
