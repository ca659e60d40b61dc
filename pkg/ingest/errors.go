package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Ingestion-phase error kinds. All are fatal for the run: the
// dictionary/schema/load chain must be re-run against a fresh session.
var (
	// ErrSourceRead reports a missing or unreadable source, or a source
	// column absent from its header.
	ErrSourceRead = errors.New("source read failed")

	// ErrSchemaConflict reports a table or type name collision in the
	// session.
	ErrSchemaConflict = errors.New("schema name conflict")

	// ErrTypeCoercion reports a row value that cannot be cast to its
	// column's declared type, including NULL in a NOT NULL column.
	ErrTypeCoercion = errors.New("type coercion failed")

	// ErrEnumDomain reports a row value outside its column's dictionary.
	ErrEnumDomain = errors.New("value outside enum domain")
)

// classifyDeclareError maps engine errors from DDL execution onto the
// taxonomy. The engine reports name collisions in the message text.
func classifyDeclareError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("%w: %w", ErrSchemaConflict, err)
	}
	return err
}

// classifyCopyError maps engine errors from the bulk copy onto the taxonomy.
func classifyCopyError(err error) error {
	if err == nil {
		return nil
	}
	// A cancelled load is failed wholesale, not misread as a bad source.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "enum"):
		return fmt.Errorf("%w: %w", ErrEnumDomain, err)
	case strings.Contains(msg, "conversion"),
		strings.Contains(msg, "could not convert"),
		strings.Contains(msg, "could not parse"),
		strings.Contains(msg, "cast"),
		strings.Contains(msg, "not null"),
		strings.Contains(msg, "constraint"):
		return fmt.Errorf("%w: %w", ErrTypeCoercion, err)
	default:
		return fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
}
