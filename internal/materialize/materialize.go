// Package materialize reconciles a final taxonomy against the original table
// rows and emits the labeled output table. One row is consumed per label
// occurrence; labels with no matching row get a synthesized row; rows left
// in the pool after all groups are drained are appended unclustered so no
// input row is ever lost.
package materialize

import (
	"strconv"
	"strings"

	"taxonorm/internal/table"
	"taxonorm/internal/taxonomy"
)

// Output column names inserted immediately after the category column.
const (
	GroupColumn     = "Group"
	GroupNameColumn = "Group Name"
)

// UnclusteredGroupID stamps leftover rows that no group label consumed.
const UnclusteredGroupID = 0

// RowPool hands out table rows by category value, first-available order.
// Matching is exact first, then case- and whitespace-insensitive.
type RowPool struct {
	rows     [][]string
	consumed []bool
	exact    map[string][]int
	lenient  map[string][]int
}

// NewRowPool indexes the table's rows by the category column at ci.
func NewRowPool(rows [][]string, ci int) *RowPool {
	p := &RowPool{
		rows:     rows,
		consumed: make([]bool, len(rows)),
		exact:    make(map[string][]int),
		lenient:  make(map[string][]int),
	}
	for i, row := range rows {
		cell := row[ci]
		p.exact[cell] = append(p.exact[cell], i)
		key := normalize(cell)
		p.lenient[key] = append(p.lenient[key], i)
	}
	return p
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Pop removes and returns the first available row matching label, or nil
// when no row matches under either pass.
func (p *RowPool) Pop(label string) []string {
	if i, ok := p.take(p.exact[label]); ok {
		return p.rows[i]
	}
	if i, ok := p.take(p.lenient[normalize(label)]); ok {
		return p.rows[i]
	}
	return nil
}

func (p *RowPool) take(queue []int) (int, bool) {
	for _, i := range queue {
		if !p.consumed[i] {
			p.consumed[i] = true
			return i, true
		}
	}
	return 0, false
}

// Leftovers returns the unconsumed rows in original order.
func (p *RowPool) Leftovers() [][]string {
	var out [][]string
	for i, row := range p.rows {
		if !p.consumed[i] {
			out = append(out, row)
		}
	}
	return out
}

// Materialize produces the output table: the original columns with Group and
// Group Name inserted immediately after the category column. Rows appear in
// group order then label order; leftover pool rows follow, stamped with
// group id 0 and an empty group name.
func Materialize(tbl *table.Table, groups []taxonomy.Group, categoryCol string) (*table.Table, error) {
	ci := tbl.ColumnIndex(categoryCol)
	if ci < 0 {
		return nil, &table.SchemaError{Column: categoryCol, Available: append([]string(nil), tbl.Header...)}
	}

	header := make([]string, 0, len(tbl.Header)+2)
	header = append(header, tbl.Header[:ci+1]...)
	header = append(header, GroupColumn, GroupNameColumn)
	header = append(header, tbl.Header[ci+1:]...)
	out := &table.Table{Header: header}

	pool := NewRowPool(tbl.Rows, ci)
	for _, g := range groups {
		for _, lab := range g.Labels {
			row := pool.Pop(lab)
			if row == nil {
				row = make([]string, len(tbl.Header))
				row[ci] = lab
			}
			out.Rows = append(out.Rows, stamp(row, ci, g.ID, g.Name))
		}
	}
	for _, row := range pool.Leftovers() {
		out.Rows = append(out.Rows, stamp(row, ci, UnclusteredGroupID, ""))
	}
	return out, nil
}

// stamp inserts the group cells after the category cell.
func stamp(row []string, ci, id int, name string) []string {
	out := make([]string, 0, len(row)+2)
	out = append(out, row[:ci+1]...)
	out = append(out, strconv.Itoa(id), name)
	out = append(out, row[ci+1:]...)
	return out
}
