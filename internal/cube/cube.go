// Package cube holds the weekly abundance cube: a stack of 52 raster bands,
// one per week of the reference year, sharing a single spatial reference.
package cube

import (
	"fmt"

	"github.com/veerylabs/rangemap/internal/raster"
)

// WeeksPerYear is the fixed band count of an abundance cube. Bands may be
// entirely missing (species absent from the domain that week) but are never
// dropped from the stack itself.
const WeeksPerYear = 52

// Cube is a read-only weekly abundance stack.
type Cube struct {
	Ref   raster.Ref
	Bands []raster.Grid // always WeeksPerYear bands
}

// New validates band count and per-band references and assembles a Cube.
func New(bands []raster.Grid) (Cube, error) {
	if len(bands) != WeeksPerYear {
		return Cube{}, fmt.Errorf("cube: expected %d weekly bands, got %d", WeeksPerYear, len(bands))
	}
	ref := bands[0].Ref
	for i, b := range bands {
		if err := raster.CheckSame(fmt.Sprintf("cube band %d", i+1), ref, b.Ref); err != nil {
			return Cube{}, err
		}
	}
	return Cube{Ref: ref, Bands: bands}, nil
}

// Band returns the grid for the 1-indexed week.
func (c Cube) Band(week int) raster.Grid { return c.Bands[week-1] }

// Aggregate returns a new cube with every band block-averaged by factor.
func (c Cube) Aggregate(factor int) Cube {
	if factor <= 1 {
		return c
	}
	bands := make([]raster.Grid, len(c.Bands))
	for i, b := range c.Bands {
		bands[i] = b.Aggregate(factor)
	}
	return Cube{Ref: bands[0].Ref, Bands: bands}
}
