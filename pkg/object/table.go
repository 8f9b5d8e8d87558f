package object

import (
	"fmt"
	"io"
	"strings"

	"github.com/aclements/go-moremath/stats"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// Column is a named float64 column with its value range
type Column struct {
	Label    string
	Values   []float64
	MinValue float64
	MaxValue float64
}

// TableObject holds equally long columns. The first three columns, when
// present, are interpreted as point coordinates by renderers and mappers.
type TableObject struct {
	Base
	columns []Column
	colors  []uint8
	labels  []string
	coords  []int
}

// NewTableObject creates an empty table
func NewTableObject() *TableObject {
	return &TableObject{}
}

func (t *TableObject) Kind() Kind { return TableKind }

// NumColumns returns the number of columns
func (t *TableObject) NumColumns() int { return len(t.columns) }

// NumRows returns the number of rows
func (t *TableObject) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Values)
}

// NumPrimitives returns the number of rows
func (t *TableObject) NumPrimitives() int { return t.NumRows() }

// AddColumn appends a column; its length must match the existing rows
func (t *TableObject) AddColumn(label string, values []float64) error {
	if len(t.columns) > 0 && len(values) != t.NumRows() {
		return fmt.Errorf("column %q has %d rows, table has %d: %w", label, len(values), t.NumRows(), core.ErrInputMismatch)
	}
	c := Column{Label: label, Values: values}
	if len(values) > 0 {
		c.MinValue, c.MaxValue = stats.Bounds(values)
	}
	t.columns = append(t.columns, c)
	t.updateBounds()
	t.Touch()
	return nil
}

// Column returns column i
func (t *TableObject) Column(i int) Column { return t.columns[i] }

// ColumnIndex returns the index of the column with the given label, or -1
func (t *TableObject) ColumnIndex(label string) int {
	for i, c := range t.columns {
		if c.Label == label {
			return i
		}
	}
	return -1
}

// SetMinMaxValues overrides the range of column i
func (t *TableObject) SetMinMaxValues(i int, minValue, maxValue float64) {
	t.columns[i].MinValue = minValue
	t.columns[i].MaxValue = maxValue
}

// Row copies row r into dst, growing it as needed
func (t *TableObject) Row(r int, dst []float64) []float64 {
	dst = dst[:0]
	for _, c := range t.columns {
		dst = append(dst, c.Values[r])
	}
	return dst
}

// Colors returns per-row RGB colors, or nil when unset
func (t *TableObject) Colors() []uint8 { return t.colors }

// SetColors sets per-row RGB colors
func (t *TableObject) SetColors(colors []uint8) {
	t.colors = colors
	t.Touch()
}

// Color returns the color of row r in [0,1]
func (t *TableObject) Color(r int) core.Vec3 { return colorAt(t.colors, r) }

// Labels returns the per-row labels, or nil when unset
func (t *TableObject) Labels() []string { return t.labels }

// SetLabels sets per-row labels
func (t *TableObject) SetLabels(labels []string) { t.labels = labels }

// SetCoordColumns selects up to three columns used as point coordinates
func (t *TableObject) SetCoordColumns(columns ...int) error {
	if len(columns) > 3 {
		return fmt.Errorf("%d coordinate columns: %w", len(columns), core.ErrInputMismatch)
	}
	for _, c := range columns {
		if c < 0 || c >= len(t.columns) {
			return fmt.Errorf("coordinate column %d of %d: %w", c, len(t.columns), core.ErrInputMismatch)
		}
	}
	t.coords = columns
	t.updateBounds()
	t.Touch()
	return nil
}

// CoordColumns returns the columns used as coordinates, by default the
// first three
func (t *TableObject) CoordColumns() []int {
	if t.coords != nil {
		return t.coords
	}
	cols := make([]int, min(3, len(t.columns)))
	for i := range cols {
		cols[i] = i
	}
	return cols
}

// Coord returns the position of row r. Missing coordinates read as zero.
func (t *TableObject) Coord(r int) core.Vec3 {
	var p [3]float64
	for i, c := range t.CoordColumns() {
		p[i] = t.columns[c].Values[r]
	}
	return core.NewVec3(p[0], p[1], p[2])
}

func (t *TableObject) updateBounds() {
	if t.NumRows() == 0 {
		return
	}
	var lo, hi [3]float64
	for i, c := range t.CoordColumns() {
		lo[i], hi[i] = t.columns[c].MinValue, t.columns[c].MaxValue
	}
	t.SetMinMaxCoords(core.NewAABB(core.NewVec3(lo[0], lo[1], lo[2]), core.NewVec3(hi[0], hi[1], hi[2])))
}

func (t *TableObject) Print(w io.Writer, indent int) {
	t.printHeader(w, indent, "TableObject", TableKind)
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(w, "%sNumber of columns: %d\n", pad, t.NumColumns())
	fmt.Fprintf(w, "%sNumber of rows: %d\n", pad, t.NumRows())
	for i, c := range t.columns {
		fmt.Fprintf(w, "%sColumn %d: %s [%g, %g]\n", pad, i, c.Label, c.MinValue, c.MaxValue)
	}
}
