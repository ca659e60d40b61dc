package dataset

import (
	"fmt"
	"strings"
)

// Type is a scalar column type renderable as DuckDB SQL.
type Type interface {
	SQL() string
}

type varcharType struct{ n int }

func (t varcharType) SQL() string {
	if t.n <= 0 {
		return "VARCHAR"
	}
	return fmt.Sprintf("VARCHAR(%d)", t.n)
}

type charType struct{ n int }

func (t charType) SQL() string {
	return fmt.Sprintf("CHAR(%d)", t.n)
}

type integerType struct{}

func (integerType) SQL() string { return "INTEGER" }

type geometryType struct{}

func (geometryType) SQL() string { return "GEOMETRY" }

type enumRef struct{ name string }

func (t enumRef) SQL() string { return QuoteIdent(t.name) }

// Varchar returns a bounded VARCHAR(n) type.
func Varchar(n int) Type { return varcharType{n: n} }

// Char returns a fixed-width CHAR(n) type.
func Char(n int) Type { return charType{n: n} }

var (
	// Text is an unbounded VARCHAR.
	Text Type = varcharType{}
	// Integer is a 32-bit signed integer.
	Integer Type = integerType{}
	// Geometry is a spatial value; requires the spatial extension.
	Geometry Type = geometryType{}
)

// Enum returns a reference to a previously declared enum type.
func Enum(e EnumType) Type { return enumRef{name: e.Name} }

// EnumType is a bounded, ordered set of distinct categorical values declared
// as a database enum type.
type EnumType struct {
	Name   string
	Values []string
}

// DDL renders the CREATE TYPE statement for the enum.
func (e EnumType) DDL() (string, error) {
	if e.Name == "" {
		return "", fmt.Errorf("enum type name required")
	}
	if len(e.Values) == 0 {
		return "", fmt.Errorf("enum type %s requires at least one value", e.Name)
	}
	values := make([]string, len(e.Values))
	for i, v := range e.Values {
		values[i] = QuoteLiteral(v)
	}
	return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", QuoteIdent(e.Name), strings.Join(values, ", ")), nil
}

// EnumTypeName derives an enum type name from a source column name by
// stripping spaces and parentheses.
func EnumTypeName(sourceColumn string) string {
	r := strings.NewReplacer(" ", "", "(", "", ")", "")
	return r.Replace(sourceColumn)
}

// Column is a single column of a table schema.
type Column struct {
	Name    string
	Type    Type
	NotNull bool
}

func (c Column) def() (string, error) {
	if c.Name == "" || c.Type == nil {
		return "", fmt.Errorf("column name and type required")
	}
	def := QuoteIdent(c.Name) + " " + c.Type.SQL()
	if c.NotNull {
		def += " NOT NULL"
	}
	return def, nil
}

// Table is an ordered, fixed column layout for one table.
type Table struct {
	Name    string
	Columns []Column
}

// DDL renders the CREATE TABLE statement for the table.
func (t Table) DDL() (string, error) {
	if t.Name == "" {
		return "", fmt.Errorf("table name required")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("at least one column required")
	}
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def, err := c.def()
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);", QuoteIdent(t.Name), strings.Join(defs, ",\n\t")), nil
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table declares the named column.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// QuoteIdent quotes an SQL identifier for DuckDB.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteLiteral quotes a string literal for DuckDB.
func QuoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
