package dataset

import (
	"fmt"
	"strings"
)

// Metric is one aggregate of an Aggregation, e.g. COUNT(*) AS vehicle_amount.
type Metric struct {
	Func   string // aggregate function, e.g. "count"
	Column string // empty means the whole row, e.g. COUNT(*)
	As     string // result column alias
}

func (m Metric) expr() (string, error) {
	if m.Func == "" {
		return "", fmt.Errorf("metric function required")
	}
	if m.As == "" {
		return "", fmt.Errorf("metric alias required")
	}
	arg := "*"
	if m.Column != "" {
		arg = QuoteIdent(m.Column)
	}
	return fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(m.Func), arg, QuoteIdent(m.As)), nil
}

// OrderBy orders by a group key or a metric alias.
type OrderBy struct {
	Column string
	Desc   bool
}

func (o OrderBy) expr(ident string) string {
	if o.Desc {
		return ident + " DESC"
	}
	return ident
}

// RankWindow ranks grouped rows within partitions and keeps only the
// top-ranked row per partition (ROW_NUMBER() = 1).
type RankWindow struct {
	PartitionBy string
	OrderBy     []OrderBy
}

// Aggregation is a read-only grouping query against one table: group keys,
// metrics, optional ordering, limit, and an optional rank window.
type Aggregation struct {
	Name    string
	GroupBy []string
	Metrics []Metric
	OrderBy []OrderBy
	Limit   int
	Rank    *RankWindow
}

const rankAlias = "row_num"

// SQL compiles the aggregation against a table name. All identifiers are
// quoted; values never appear in the statement.
func (a Aggregation) SQL(table string) (string, error) {
	if a.Name == "" {
		return "", fmt.Errorf("aggregation name required")
	}
	if table == "" {
		return "", fmt.Errorf("aggregation %s: table name required", a.Name)
	}
	if len(a.GroupBy) == 0 {
		return "", fmt.Errorf("aggregation %s: at least one group key required", a.Name)
	}
	if len(a.Metrics) == 0 {
		return "", fmt.Errorf("aggregation %s: at least one metric required", a.Name)
	}

	groupCols := make([]string, len(a.GroupBy))
	for i, g := range a.GroupBy {
		if g == "" {
			return "", fmt.Errorf("aggregation %s: empty group key", a.Name)
		}
		groupCols[i] = QuoteIdent(g)
	}

	metricExprs := make([]string, len(a.Metrics))
	for i, m := range a.Metrics {
		expr, err := m.expr()
		if err != nil {
			return "", fmt.Errorf("aggregation %s: %w", a.Name, err)
		}
		metricExprs[i] = expr
	}

	if a.Rank != nil {
		return a.rankedSQL(table, groupCols, metricExprs)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s GROUP BY %s",
		strings.Join(append(groupCols, metricExprs...), ", "),
		QuoteIdent(table),
		strings.Join(groupCols, ", "))

	orderBy, err := a.orderByClause(a.OrderBy)
	if err != nil {
		return "", err
	}
	sql += orderBy

	if a.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", a.Limit)
	}
	return sql, nil
}

// rankedSQL nests the grouping under a ROW_NUMBER() window and keeps only the
// top-ranked row per partition.
func (a Aggregation) rankedSQL(table string, groupCols, metricExprs []string) (string, error) {
	w := a.Rank
	if w.PartitionBy == "" {
		return "", fmt.Errorf("aggregation %s: rank window partition key required", a.Name)
	}
	if !a.hasGroupKey(w.PartitionBy) {
		return "", fmt.Errorf("aggregation %s: rank partition key %q is not a group key", a.Name, w.PartitionBy)
	}
	if len(w.OrderBy) == 0 {
		return "", fmt.Errorf("aggregation %s: rank window ordering required", a.Name)
	}

	// The window cannot reference same-level select aliases, so metric
	// aliases in its ordering resolve to the aggregate expression itself.
	windowOrder := make([]string, len(w.OrderBy))
	for i, o := range w.OrderBy {
		ident, err := a.resolveWindowIdent(o.Column)
		if err != nil {
			return "", err
		}
		windowOrder[i] = o.expr(ident)
	}

	outerCols := make([]string, 0, len(groupCols)+len(a.Metrics))
	outerCols = append(outerCols, groupCols...)
	for _, m := range a.Metrics {
		outerCols = append(outerCols, QuoteIdent(m.As))
	}

	orderBy, err := a.orderByClause(a.OrderBy)
	if err != nil {
		return "", err
	}

	window := fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS %s",
		QuoteIdent(w.PartitionBy), strings.Join(windowOrder, ", "), QuoteIdent(rankAlias))

	inner := fmt.Sprintf("SELECT %s FROM %s GROUP BY %s",
		strings.Join(append(append(append([]string{}, groupCols...), metricExprs...), window), ", "),
		QuoteIdent(table),
		strings.Join(groupCols, ", "))

	sql := fmt.Sprintf("SELECT %s FROM (%s) AS ranked WHERE %s = 1%s",
		strings.Join(outerCols, ", "), inner, QuoteIdent(rankAlias), orderBy)

	if a.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", a.Limit)
	}
	return sql, nil
}

func (a Aggregation) orderByClause(orders []OrderBy) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	exprs := make([]string, len(orders))
	for i, o := range orders {
		if !a.hasGroupKey(o.Column) && !a.hasMetricAlias(o.Column) {
			return "", fmt.Errorf("aggregation %s: order key %q is neither a group key nor a metric alias", a.Name, o.Column)
		}
		exprs[i] = o.expr(QuoteIdent(o.Column))
	}
	return " ORDER BY " + strings.Join(exprs, ", "), nil
}

func (a Aggregation) resolveWindowIdent(column string) (string, error) {
	for _, m := range a.Metrics {
		if m.As == column {
			arg := "*"
			if m.Column != "" {
				arg = QuoteIdent(m.Column)
			}
			return fmt.Sprintf("%s(%s)", strings.ToUpper(m.Func), arg), nil
		}
	}
	if a.hasGroupKey(column) {
		return QuoteIdent(column), nil
	}
	return "", fmt.Errorf("aggregation %s: window order key %q is neither a group key nor a metric alias", a.Name, column)
}

func (a Aggregation) hasGroupKey(name string) bool {
	for _, g := range a.GroupBy {
		if g == name {
			return true
		}
	}
	return false
}

func (a Aggregation) hasMetricAlias(name string) bool {
	for _, m := range a.Metrics {
		if m.As == name {
			return true
		}
	}
	return false
}

// Columns returns the result column names in output order.
func (a Aggregation) Columns() []string {
	cols := make([]string, 0, len(a.GroupBy)+len(a.Metrics))
	cols = append(cols, a.GroupBy...)
	for _, m := range a.Metrics {
		cols = append(cols, m.As)
	}
	return cols
}
