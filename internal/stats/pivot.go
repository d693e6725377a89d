package stats

import (
	"cmp"
	"slices"
	"strconv"
)

// Unassigned labels issues without an assignee. It always sorts last.
const Unassigned = "Unassigned"

// Cell counts issues for one (row, column) pair.
type Cell struct {
	Assigned  int `json:"assigned"`
	Completed int `json:"completed"`
}

// CompletionPct is Completed/Assigned×100, false when nothing was assigned.
func (c Cell) CompletionPct() (float64, bool) {
	return Percent(c.Completed, c.Assigned)
}

// Pivot counts issues by row (assignee) and column (board column or sprint).
type Pivot struct {
	Columns []string
	cells   map[string]map[string]*Cell
	order   []string
}

// NewPivot creates a pivot with a fixed column order. Unknown columns are appended on first use.
func NewPivot(columns ...string) *Pivot {
	return &Pivot{Columns: slices.Clone(columns), cells: make(map[string]map[string]*Cell)}
}

// Add counts one issue. An empty row is Unassigned.
func (p *Pivot) Add(row, column string, completed bool) {
	if row == "" {
		row = Unassigned
	}
	if !slices.Contains(p.Columns, column) {
		p.Columns = append(p.Columns, column)
	}
	r, ok := p.cells[row]
	if !ok {
		r = make(map[string]*Cell)
		p.cells[row] = r
		p.order = append(p.order, row)
	}
	c, ok := r[column]
	if !ok {
		c = &Cell{}
		r[column] = c
	}
	c.Assigned++
	if completed {
		c.Completed++
	}
}

// Cell returns the counts for (row, column).
func (p *Pivot) Cell(row, column string) Cell {
	if c, ok := p.cells[row][column]; ok {
		return *c
	}
	return Cell{}
}

// RowTotal sums a row across columns.
func (p *Pivot) RowTotal(row string) Cell {
	var total Cell
	for _, c := range p.cells[row] {
		total.Assigned += c.Assigned
		total.Completed += c.Completed
	}
	return total
}

// ColumnTotal sums a column across rows.
func (p *Pivot) ColumnTotal(column string) Cell {
	var total Cell
	for _, r := range p.cells {
		if c, ok := r[column]; ok {
			total.Assigned += c.Assigned
			total.Completed += c.Completed
		}
	}
	return total
}

// Rows returns row labels by total assigned (desc), then name, with Unassigned last.
func (p *Pivot) Rows() []string {
	rows := slices.Clone(p.order)
	slices.SortFunc(rows, func(a, b string) int {
		if a == Unassigned {
			return 1
		}
		if b == Unassigned {
			return -1
		}
		if c := cmp.Compare(p.RowTotal(b).Assigned, p.RowTotal(a).Assigned); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return rows
}

// Loads returns every row's total assigned count, Unassigned excluded.
func (p *Pivot) Loads() map[string]int {
	out := make(map[string]int, len(p.order))
	for _, row := range p.order {
		if row == Unassigned {
			continue
		}
		out[row] = p.RowTotal(row).Assigned
	}
	return out
}

// SweatCell renders "assigned (pct%)" with one-decimal precision, e.g. "4 (75%)" or "3 (66.7%)".
// An empty cell renders as "".
func SweatCell(c Cell) string {
	pct, ok := c.CompletionPct()
	if !ok {
		return ""
	}
	return strconv.Itoa(c.Assigned) + " (" + FormatOneDecimal(pct) + "%)"
}

// SortByLabel orders labels with Unassigned last, others alphabetically.
func SortByLabel(labels []string) {
	slices.SortFunc(labels, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == Unassigned:
			return 1
		case b == Unassigned:
			return -1
		}
		return cmp.Compare(a, b)
	})
}
