// Package raster provides the geo-referenced grid type shared by every band
// of the weekly abundance cube and by all derived composites.
//
// Cells hold non-negative abundance values; a missing cell (no prediction
// made) is NaN. Grids are treated as immutable once built: every derived
// product is a fresh allocation.
package raster

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// Ref describes the spatial reference of a grid: lower-left origin, cell
// size, dimensions, and projection (Proj4 string). Row 0 is the southernmost
// row; y increases with row index.
type Ref struct {
	X0, Y0 float64 // lower-left corner of the grid
	Dx, Dy float64 // cell size in projection units
	Nx, Ny int
	Proj4  string
}

// Equal reports whether two references describe the same grid geometry.
func (r Ref) Equal(o Ref) bool {
	return r.X0 == o.X0 && r.Y0 == o.Y0 &&
		r.Dx == o.Dx && r.Dy == o.Dy &&
		r.Nx == o.Nx && r.Ny == o.Ny &&
		r.Proj4 == o.Proj4
}

// Bounds returns the spatial extent of the grid.
func (r Ref) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: r.X0, Y: r.Y0},
		Max: geom.Point{
			X: r.X0 + r.Dx*float64(r.Nx),
			Y: r.Y0 + r.Dy*float64(r.Ny),
		},
	}
}

// CellArea returns the area of one grid cell in projection units.
func (r Ref) CellArea() float64 { return r.Dx * r.Dy }

// CellPolygon returns the cell at (row, col) as a counter-clockwise polygon.
func (r Ref) CellPolygon(row, col int) geom.Polygon {
	x0 := r.X0 + r.Dx*float64(col)
	x1 := x0 + r.Dx
	y0 := r.Y0 + r.Dy*float64(row)
	y1 := y0 + r.Dy
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}}
}

// CellBounds returns the bounding box of the cell at (row, col).
func (r Ref) CellBounds(row, col int) *geom.Bounds {
	x0 := r.X0 + r.Dx*float64(col)
	y0 := r.Y0 + r.Dy*float64(row)
	return &geom.Bounds{
		Min: geom.Point{X: x0, Y: y0},
		Max: geom.Point{X: x0 + r.Dx, Y: y0 + r.Dy},
	}
}

// Grid is a single 2D raster band.
type Grid struct {
	Ref
	Data *sparse.DenseArray // shape (Ny, Nx); NaN marks missing cells
}

// New creates a grid with every cell marked missing.
func New(ref Ref) Grid {
	d := sparse.ZerosDense(ref.Ny, ref.Nx)
	for i := range d.Elements {
		d.Elements[i] = math.NaN()
	}
	return Grid{Ref: ref, Data: d}
}

// Value returns the cell value at (row, col); NaN means missing.
func (g Grid) Value(row, col int) float64 { return g.Data.Get(row, col) }

// SetValue assigns the cell value at (row, col).
func (g Grid) SetValue(v float64, row, col int) { g.Data.Set(v, row, col) }

// IsMissing reports whether v is the missing-cell marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Aggregate reduces the grid by the given factor, replacing each factor×factor
// block with the mean of its non-missing cells. Blocks that are missing
// everywhere stay missing. Edge blocks may cover fewer source cells. A factor
// of 1 or less returns the grid unchanged.
func (g Grid) Aggregate(factor int) Grid {
	if factor <= 1 {
		return g
	}
	ref := Ref{
		X0: g.X0, Y0: g.Y0,
		Dx: g.Dx * float64(factor), Dy: g.Dy * float64(factor),
		Nx: (g.Nx + factor - 1) / factor,
		Ny: (g.Ny + factor - 1) / factor,
		Proj4: g.Proj4,
	}
	out := New(ref)
	for row := 0; row < ref.Ny; row++ {
		for col := 0; col < ref.Nx; col++ {
			var sum float64
			var n int
			for r := row * factor; r < (row+1)*factor && r < g.Ny; r++ {
				for c := col * factor; c < (col+1)*factor && c < g.Nx; c++ {
					v := g.Data.Get(r, c)
					if IsMissing(v) {
						continue
					}
					sum += v
					n++
				}
			}
			if n > 0 {
				out.Data.Set(sum/float64(n), row, col)
			}
		}
	}
	return out
}

// MismatchError reports grids whose spatial references disagree, or a band
// stack of the wrong size. It aborts the operation that detected it; other
// independent computations may still proceed.
type MismatchError struct {
	Op   string
	Want Ref
	Got  Ref
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("raster: %s: grid reference mismatch: want %+v, got %+v", e.Op, e.Want, e.Got)
}

// CheckSame returns a MismatchError if the two references differ.
func CheckSame(op string, want, got Ref) error {
	if !want.Equal(got) {
		return &MismatchError{Op: op, Want: want, Got: got}
	}
	return nil
}
