package rangepoly

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/season"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRef(nx, ny int) raster.Ref {
	return raster.Ref{Dx: 10, Dy: 10, Nx: nx, Ny: ny, Proj4: "+proj=merc"}
}

// maskGrid builds a grid where listed cells hold 1 and everything else is
// missing.
func maskGrid(ref raster.Ref, cells [][2]int) raster.Grid {
	g := raster.New(ref)
	for _, rc := range cells {
		g.SetValue(1, rc[0], rc[1])
	}
	return g
}

func block(r0, c0, r1, c1 int) [][2]int {
	var cells [][2]int
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			cells = append(cells, [2]int{r, c})
		}
	}
	return cells
}

func totalArea(p geom.Polygon) float64 {
	var sum float64
	for _, ring := range p {
		sum += signedArea(ring)
	}
	return sum
}

func TestTraceMask(t *testing.T) {
	t.Run("single cell square", func(t *testing.T) {
		ref := testRef(4, 4)
		poly := traceMask(ref, func(r, c int) bool { return r == 1 && c == 2 })
		require.Len(t, poly, 1)
		assert.InDelta(t, 100.0, signedArea(poly[0]), 1e-9)
		assert.Positive(t, signedArea(poly[0]), "outer ring must be counter-clockwise")
	})

	t.Run("donut has clockwise hole", func(t *testing.T) {
		ref := testRef(5, 5)
		poly := traceMask(ref, func(r, c int) bool {
			inOuter := r >= 0 && r <= 2 && c >= 0 && c <= 2
			return inOuter && !(r == 1 && c == 1)
		})
		require.Len(t, poly, 2)
		areas := []float64{signedArea(poly[0]), signedArea(poly[1])}
		assert.InDelta(t, 800.0, areas[0]+areas[1], 1e-9, "net area is 8 cells")
	})

	t.Run("diagonal cells stay separate rings", func(t *testing.T) {
		ref := testRef(4, 4)
		poly := traceMask(ref, func(r, c int) bool {
			return (r == 0 && c == 0) || (r == 1 && c == 1)
		})
		require.Len(t, poly, 2)
	})

	t.Run("empty mask is nil", func(t *testing.T) {
		poly := traceMask(testRef(3, 3), func(r, c int) bool { return false })
		assert.Nil(t, poly)
	})

	t.Run("deterministic", func(t *testing.T) {
		ref := testRef(8, 8)
		mask := func(r, c int) bool { return (r+c)%3 != 0 }
		assert.Equal(t, traceMask(ref, mask), traceMask(ref, mask))
	})
}

func TestClean(t *testing.T) {
	ref := testRef(8, 8)
	minArea := CrumbAreaFactor * ref.CellArea() // 150

	t.Run("crumbs removed", func(t *testing.T) {
		cells := append(block(0, 0, 2, 2), [2]int{6, 6}) // 3x3 blob + isolated cell
		g := maskGrid(ref, cells)
		poly := traceMask(ref, func(r, c int) bool { return !raster.IsMissing(g.Value(r, c)) })
		cleaned := clean(poly, minArea)
		require.Len(t, cleaned, 1, "isolated single cell is below the crumb threshold")
		for _, ring := range cleaned {
			assert.GreaterOrEqual(t, math.Abs(signedArea(ring)), minArea)
		}
	})

	t.Run("small holes filled", func(t *testing.T) {
		g := maskGrid(ref, block(0, 0, 2, 2))
		g.SetValue(math.NaN(), 1, 1) // 1-cell hole, 100 < 150
		poly := traceMask(ref, func(r, c int) bool { return !raster.IsMissing(g.Value(r, c)) })
		cleaned := clean(poly, minArea)
		require.Len(t, cleaned, 1)
		assert.InDelta(t, 900.0, totalArea(cleaned), 1e-9, "filled hole restores full blob area")
	})

	t.Run("large holes survive", func(t *testing.T) {
		g := maskGrid(ref, block(0, 0, 3, 3))
		for _, rc := range block(1, 1, 2, 2) { // 2x2 hole, 400 >= 150
			g.SetValue(math.NaN(), rc[0], rc[1])
		}
		poly := traceMask(ref, func(r, c int) bool { return !raster.IsMissing(g.Value(r, c)) })
		cleaned := clean(poly, minArea)
		require.Len(t, cleaned, 2)
		assert.InDelta(t, 1200.0, totalArea(cleaned), 1e-9)
	})
}

func TestSmooth(t *testing.T) {
	square := geom.Polygon{{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: 0},
	}}

	smoothed := smooth(square, SmoothingIterations)
	require.Len(t, smoothed, 1)
	assert.Greater(t, len(smoothed[0]), len(square[0]), "corner cutting adds vertices")
	a := signedArea(smoothed[0])
	assert.Positive(t, a, "orientation preserved")
	assert.Less(t, a, 100.0, "cut corners shrink the square slightly")
	assert.Greater(t, a, 80.0, "two passes must not collapse the shape")

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, smooth(square, 2), smooth(square, 2))
	})
}

func TestBuilderBuild(t *testing.T) {
	ref := testRef(8, 8)
	b := &Builder{AggFactor: 1, Logger: discardLogger()}

	comp := raster.New(ref)
	for _, rc := range block(0, 0, 3, 3) {
		comp.SetValue(2.5, rc[0], rc[1])
	}
	for _, rc := range block(4, 0, 5, 3) {
		comp.SetValue(0, rc[0], rc[1]) // predicted zero: prediction area only
	}

	layers := b.Build(season.Breeding, comp)
	require.Len(t, layers, 2)

	var rangeLayer, predLayer Range
	for _, l := range layers {
		switch l.Kind {
		case KindRange:
			rangeLayer = l
		case KindPredictionArea:
			predLayer = l
		}
	}
	assert.Equal(t, season.Breeding, rangeLayer.Season)
	assert.False(t, rangeLayer.Empty())
	assert.False(t, predLayer.Empty())
	assert.Greater(t, totalArea(predLayer.Geom), totalArea(rangeLayer.Geom),
		"prediction area includes predicted-zero cells the range excludes")

	t.Run("idempotent re-run", func(t *testing.T) {
		again := b.Build(season.Breeding, comp)
		assert.Equal(t, layers, again)
	})

	t.Run("empty composite yields explicit empty layers", func(t *testing.T) {
		empty := raster.New(ref)
		layers := b.Build(season.Nonbreeding, empty)
		require.Len(t, layers, 2)
		assert.True(t, layers[0].Empty())
		assert.True(t, layers[1].Empty())
		assert.Equal(t, season.Nonbreeding, layers[0].Season,
			"empty seasons still report, distinguishing no range from not computed")
	})

	t.Run("clipped to boundary", func(t *testing.T) {
		// Boundary covering the left half of the blob.
		boundary := geom.Polygon{{
			{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 80}, {X: 0, Y: 80}, {X: 0, Y: 0},
		}}
		clipped := &Builder{AggFactor: 1, Boundary: boundary, Logger: discardLogger()}
		layers := clipped.Build(season.Breeding, comp)
		for _, l := range layers {
			if l.Empty() {
				continue
			}
			bounds := l.Geom.Bounds()
			limit := 20.0
			if l.Kind == KindRange {
				limit += CoastBufferCells * ref.Dx // buffered clip keeps coastal overhang
			}
			assert.LessOrEqual(t, bounds.Max.X, limit+1e-6)
		}
	})
}
