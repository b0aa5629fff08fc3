package table

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Duplicated marks every row whose values across cols repeat an earlier row.
// The first occurrence is not marked. With no cols every column is used.
func (t *Table) Duplicated(cols ...string) ([]bool, error) {
	keyCols, err := t.keyColumns(cols)
	if err != nil {
		return nil, err
	}
	n := t.NumRows()
	out := make([]bool, n)
	seen := make(map[string]struct{}, n)
	for i := range n {
		k := rowKey(keyCols, i)
		if _, ok := seen[k]; ok {
			out[i] = true
			continue
		}
		seen[k] = struct{}{}
	}
	return out, nil
}

// CountDuplicated returns the number of rows marked by Duplicated.
func (t *Table) CountDuplicated(cols ...string) (int, error) {
	dup, err := t.Duplicated(cols...)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range dup {
		if d {
			n++
		}
	}
	return n, nil
}

// Groups partitions the rows of a table by the values of key columns.
type Groups struct {
	table   *Table
	columns []string
	// rows holds the row numbers of each group, ascending. Groups are
	// ordered by key value.
	rows [][]int
}

// GroupBy partitions the rows by the values of cols. Groups are ordered by
// key and rows whose key holds a missing value are dropped.
func (t *Table) GroupBy(cols ...string) (*Groups, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("groupby needs at least one column")
	}
	keyCols, err := t.keyColumns(cols)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]int)
	var rows [][]int
	for i := range t.NumRows() {
		if slices.ContainsFunc(keyCols, func(c *Column) bool { return c.missingAt(i) }) {
			continue
		}
		k := rowKey(keyCols, i)
		g, ok := byKey[k]
		if !ok {
			g = len(rows)
			byKey[k] = g
			rows = append(rows, nil)
		}
		rows[g] = append(rows[g], i)
	}
	slices.SortStableFunc(rows, func(a, b []int) int {
		for _, c := range keyCols {
			if r := c.compareAt(a[0], b[0]); r != 0 {
				return r
			}
		}
		return 0
	})
	return &Groups{table: t, columns: slices.Clone(cols), rows: rows}, nil
}

// Columns returns the key column names.
func (g *Groups) Columns() []string {
	return g.columns
}

// NGroups returns the number of groups.
func (g *Groups) NGroups() int {
	return len(g.rows)
}

// Indices returns the row numbers of group i.
func (g *Groups) Indices(i int) []int {
	return g.rows[i]
}

// Key returns the key values of group i, one per key column.
func (g *Groups) Key(i int) []any {
	first := g.rows[i][0]
	key := make([]any, len(g.columns))
	for j, name := range g.columns {
		key[j] = g.table.Column(name).Value(first)
	}
	return key
}

// Sizes returns the number of rows in each group.
func (g *Groups) Sizes() []int {
	out := make([]int, len(g.rows))
	for i, r := range g.rows {
		out[i] = len(r)
	}
	return out
}

// Group returns the rows of group i as a new table.
func (g *Groups) Group(i int) *Table {
	return g.table.Take(g.rows[i])
}

// SortBy returns the rows of t stably ordered by the values of cols.
func (t *Table) SortBy(cols ...string) (*Table, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("sort needs at least one column")
	}
	keyCols, err := t.keyColumns(cols)
	if err != nil {
		return nil, err
	}
	rows := make([]int, t.NumRows())
	for i := range rows {
		rows[i] = i
	}
	slices.SortStableFunc(rows, func(a, b int) int {
		for _, c := range keyCols {
			if r := c.compareAt(a, b); r != 0 {
				return r
			}
		}
		return 0
	})
	return t.Take(rows), nil
}

func (t *Table) keyColumns(cols []string) ([]*Column, error) {
	if len(cols) == 0 {
		return slices.Clone(t.cols), nil
	}
	out := make([]*Column, len(cols))
	var missing []string
	for i, name := range cols {
		if out[i] = t.Column(name); out[i] == nil {
			missing = append(missing, name)
		}
	}
	if missing != nil {
		return nil, fmt.Errorf("columns %v not found", missing)
	}
	return out, nil
}

func rowKey(cols []*Column, i int) string {
	if len(cols) == 1 {
		return cols[0].keyAt(i)
	}
	var b strings.Builder
	for _, c := range cols {
		b.WriteString(c.keyAt(i))
		b.WriteByte(0)
	}
	return b.String()
}

func (c *Column) missingAt(i int) bool {
	if c.categorical {
		return c.codes[i] < 0
	}
	if v, ok := c.data.([]float64); ok {
		return math.IsNaN(v[i])
	}
	return false
}
