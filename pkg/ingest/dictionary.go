package ingest

import (
	"context"
	"fmt"

	"github.com/cascadelabs/evlake/pkg/dataset"
	"github.com/cascadelabs/evlake/pkg/duck"
)

// Dictionary is the ordered set of distinct non-null values observed in one
// source column. Values are lexicographically ascending so repeated runs over
// the same source derive the same enum declaration.
type Dictionary struct {
	Name   string
	Column string
	Values []string
}

// EnumType returns the dictionary as a declarable enum type.
func (d Dictionary) EnumType() dataset.EnumType {
	return dataset.EnumType{
		Name:   d.Name,
		Values: d.Values,
	}
}

// BuildDictionary scans one column of a CSV source for its distinct non-null
// value domain. A single projection pass; the source is never materialized.
// An empty name derives the enum type name from the column header.
func BuildDictionary(ctx context.Context, conn duck.Connection, source, column, name string) (Dictionary, error) {
	if source == "" {
		return Dictionary{}, fmt.Errorf("%w: source path is required", ErrSourceRead)
	}
	if column == "" {
		return Dictionary{}, fmt.Errorf("%w: column name is required", ErrSourceRead)
	}
	if name == "" {
		name = dataset.EnumTypeName(column)
	}

	col := dataset.QuoteIdent(column)
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM read_csv(%s, auto_detect = true) WHERE %s IS NOT NULL ORDER BY %s ASC",
		col, dataset.QuoteLiteral(source), col, col)

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return Dictionary{}, fmt.Errorf("%w: scanning %q of %s: %w", ErrSourceRead, column, source, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return Dictionary{}, fmt.Errorf("%w: scanning %q of %s: %w", ErrSourceRead, column, source, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return Dictionary{}, fmt.Errorf("%w: scanning %q of %s: %w", ErrSourceRead, column, source, err)
	}
	if len(values) == 0 {
		return Dictionary{}, fmt.Errorf("%w: column %q of %s has no distinct non-null values", ErrSourceRead, column, source)
	}

	return Dictionary{
		Name:   name,
		Column: column,
		Values: values,
	}, nil
}
