package zonal

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/regions"
	"github.com/veerylabs/rangemap/internal/season"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRef(nx, ny int) raster.Ref {
	return raster.Ref{Dx: 10, Dy: 10, Nx: nx, Ny: ny, Proj4: "+proj=merc"}
}

// rect builds a rectangular region polygon in projection coordinates.
func rect(id string, x0, y0, x1, y1 float64) regions.Region {
	return regions.Region{ID: id, Geom: geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}}}
}

func statByKind(t *testing.T, stats []Stat, id string, kind Kind) Stat {
	t.Helper()
	for _, s := range stats {
		if s.RegionID == id && s.Kind == kind {
			return s
		}
	}
	t.Fatalf("no %s stat for region %s", kind, id)
	return Stat{}
}

func TestNewIndex(t *testing.T) {
	ref := testRef(4, 4)

	t.Run("cells assigned by majority coverage", func(t *testing.T) {
		// Covers columns 0-1 fully, and 40% of column 2.
		idx := NewIndex(ref, []regions.Region{rect("west", 0, 0, 24, 40)})
		require.Equal(t, []string{"west"}, idx.RegionIDs())
		cells := idx.regions[0].cells
		require.Len(t, cells, 8, "column 2 is only 40%% covered and must be excluded")
		for _, rc := range cells {
			assert.Less(t, rc[1], 2)
		}
	})

	t.Run("exact half coverage excluded", func(t *testing.T) {
		idx := NewIndex(ref, []regions.Region{rect("half", 0, 0, 5, 10)})
		assert.Empty(t, idx.regions[0].cells, "membership requires strictly more than half a cell")
	})

	t.Run("region outside the grid has no cells", func(t *testing.T) {
		idx := NewIndex(ref, []regions.Region{rect("far", 100, 100, 150, 150)})
		assert.Empty(t, idx.regions[0].cells)
	})

	t.Run("cells sorted row major", func(t *testing.T) {
		idx := NewIndex(ref, []regions.Region{rect("all", 0, 0, 40, 40)})
		cells := idx.regions[0].cells
		require.Len(t, cells, 16)
		for i := 1; i < len(cells); i++ {
			prev, cur := cells[i-1], cells[i]
			assert.True(t, prev[0] < cur[0] || (prev[0] == cur[0] && prev[1] < cur[1]))
		}
	})
}

func TestSeasonStats(t *testing.T) {
	ref := testRef(4, 4)
	frozen := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { SetClock(nil) })

	t.Run("whole domain region matches domain totals", func(t *testing.T) {
		comp := raster.New(ref)
		// 4 positive cells, 4 zero cells, 8 missing.
		for c := 0; c < 4; c++ {
			comp.SetValue(2.0, 0, c)
			comp.SetValue(0, 1, c)
		}
		idx := NewIndex(ref, []regions.Region{rect("domain", 0, 0, 40, 40)})
		eng := NewEngine(idx, discardLogger())

		stats, err := eng.SeasonStats(season.Breeding, comp)
		require.NoError(t, err)
		require.Len(t, stats, 4)

		assert.InDelta(t, 1.0, statByKind(t, stats, "domain", MeanAbundance).Value, 1e-12)
		assert.InDelta(t, 1.0, statByKind(t, stats, "domain", PctPopulation).Value, 1e-12)
		assert.InDelta(t, 0.5, statByKind(t, stats, "domain", PctOccupied).Value, 1e-12)
		assert.InDelta(t, 1.0, statByKind(t, stats, "domain", PctRangeInRegion).Value, 1e-12)
		assert.Equal(t, frozen, stats[0].ProducedAt)
	})

	t.Run("two regions split population", func(t *testing.T) {
		comp := raster.New(ref)
		comp.SetValue(3.0, 0, 0) // west
		comp.SetValue(1.0, 0, 2) // east
		idx := NewIndex(ref, []regions.Region{
			rect("west", 0, 0, 20, 40),
			rect("east", 20, 0, 40, 40),
		})
		eng := NewEngine(idx, discardLogger())

		stats, err := eng.SeasonStats(season.Nonbreeding, comp)
		require.NoError(t, err)
		assert.InDelta(t, 0.75, statByKind(t, stats, "west", PctPopulation).Value, 1e-12)
		assert.InDelta(t, 0.25, statByKind(t, stats, "east", PctPopulation).Value, 1e-12)
		assert.InDelta(t, 0.5, statByKind(t, stats, "west", PctRangeInRegion).Value, 1e-12)
	})

	t.Run("missing cells excluded from denominators", func(t *testing.T) {
		comp := raster.New(ref)
		comp.SetValue(4.0, 0, 0)
		comp.SetValue(0, 0, 1)
		// The rest of the region is missing.
		idx := NewIndex(ref, []regions.Region{rect("r", 0, 0, 40, 40)})
		eng := NewEngine(idx, discardLogger())

		stats, err := eng.SeasonStats(season.Breeding, comp)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, statByKind(t, stats, "r", MeanAbundance).Value, 1e-12)
		assert.InDelta(t, 0.5, statByKind(t, stats, "r", PctOccupied).Value, 1e-12)
	})

	t.Run("all missing composite reports zeros", func(t *testing.T) {
		idx := NewIndex(ref, []regions.Region{rect("r", 0, 0, 40, 40)})
		eng := NewEngine(idx, discardLogger())

		stats, err := eng.SeasonStats(season.Breeding, raster.New(ref))
		require.NoError(t, err)
		for _, s := range stats {
			assert.Zero(t, s.Value, string(s.Kind))
			assert.False(t, math.IsNaN(s.Value))
		}
	})

	t.Run("reference mismatch rejected", func(t *testing.T) {
		idx := NewIndex(ref, []regions.Region{rect("r", 0, 0, 40, 40)})
		eng := NewEngine(idx, discardLogger())

		_, err := eng.SeasonStats(season.Breeding, raster.New(testRef(3, 3)))
		var mm *raster.MismatchError
		require.ErrorAs(t, err, &mm)
	})
}

func TestWeekOccupancy(t *testing.T) {
	ref := testRef(4, 4)
	idx := NewIndex(ref, []regions.Region{rect("r", 0, 0, 40, 40)})
	eng := NewEngine(idx, discardLogger())

	t.Run("exact threshold is not occupied", func(t *testing.T) {
		// 20 valid cells with one positive: fraction exactly 0.05.
		ref20 := testRef(5, 4)
		idx20 := NewIndex(ref20, []regions.Region{rect("r", 0, 0, 50, 40)})
		eng20 := NewEngine(idx20, discardLogger())

		band := raster.New(ref20)
		for r := 0; r < 4; r++ {
			for c := 0; c < 5; c++ {
				band.SetValue(0, r, c)
			}
		}
		band.SetValue(1, 0, 0)
		recs := eng20.weekOccupancy(1, band)
		require.Len(t, recs, 1)
		assert.InDelta(t, OccupancyThreshold, recs[0].Fraction, 1e-12)
		assert.False(t, recs[0].Occupied, "the comparison is strictly greater-than")

		band.SetValue(1, 0, 1) // 2/20 = 0.10
		recs = eng20.weekOccupancy(1, band)
		assert.True(t, recs[0].Occupied)
	})

	t.Run("all missing week counts as unoccupied", func(t *testing.T) {
		recs := eng.weekOccupancy(1, raster.New(ref))
		require.Len(t, recs, 1)
		assert.Zero(t, recs[0].Fraction)
		assert.False(t, recs[0].Occupied)
	})
}

func TestWeekIterator(t *testing.T) {
	ref := testRef(2, 2)
	idx := NewIndex(ref, []regions.Region{rect("r", 0, 0, 20, 20)})
	eng := NewEngine(idx, discardLogger())

	bands := make([]raster.Grid, 4)
	for i := range bands {
		bands[i] = raster.New(ref)
	}
	labels := []season.Name{season.Breeding, season.Unassigned, season.Breeding, season.Nonbreeding}

	t.Run("skips unassigned weeks", func(t *testing.T) {
		it, err := eng.Weeks(bands, labels, 1)
		require.NoError(t, err)
		var weeks []int
		for {
			_, week, _, ok := it.Next()
			if !ok {
				break
			}
			weeks = append(weeks, week)
		}
		assert.Equal(t, []int{1, 3, 4}, weeks)
	})

	t.Run("restartable at a week boundary", func(t *testing.T) {
		it, err := eng.Weeks(bands, labels, 3)
		require.NoError(t, err)
		_, week, label, ok := it.Next()
		require.True(t, ok)
		assert.Equal(t, 3, week)
		assert.Equal(t, season.Breeding, label)
	})

	t.Run("band and label counts must agree", func(t *testing.T) {
		_, err := eng.Weeks(bands, labels[:3], 1)
		require.Error(t, err)
	})
}

func TestDaysOfOccupation(t *testing.T) {
	ref := testRef(4, 4)
	idx := NewIndex(ref, []regions.Region{rect("r", 0, 0, 40, 40)})
	eng := NewEngine(idx, discardLogger())

	// occupiedBand makes every cell valid with n positive cells.
	occupiedBand := func(n int) raster.Grid {
		g := raster.New(ref)
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				g.SetValue(0, r, c)
			}
		}
		for i := 0; i < n; i++ {
			g.SetValue(1, i/4, i%4)
		}
		return g
	}

	t.Run("seven days per occupied week", func(t *testing.T) {
		bands := []raster.Grid{
			occupiedBand(4),       // breeding, occupied (0.25)
			occupiedBand(0),       // breeding, not occupied
			occupiedBand(2),       // breeding, occupied (0.125)
			raster.New(ref),       // breeding, all missing: not occupied
			occupiedBand(8),       // nonbreeding, occupied
			occupiedBand(1),       // unassigned: never counted
			occupiedBand(16),      // nonbreeding, occupied
			occupiedBand(16),      // unassigned
		}
		labels := []season.Name{
			season.Breeding, season.Breeding, season.Breeding, season.Breeding,
			season.Nonbreeding, season.Unassigned, season.Nonbreeding, season.Unassigned,
		}

		stats, err := eng.DaysOfOccupation(bands, labels, nil)
		require.NoError(t, err)
		assert.InDelta(t, 14.0, statByKind(t, stats, "r", DaysOccupation).Value, 1e-12,
			"breeding sorts first: 2 occupied weeks of 4")
		for _, s := range stats {
			if s.Season == season.Nonbreeding {
				assert.InDelta(t, 14.0, s.Value, 1e-12)
			}
		}
	})

	t.Run("year_round weeks are reported", func(t *testing.T) {
		bands := []raster.Grid{occupiedBand(8), occupiedBand(0)}
		labels := []season.Name{season.YearRound, season.YearRound}

		stats, err := eng.DaysOfOccupation(bands, labels, nil)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, season.YearRound, stats[0].Season)
		assert.InDelta(t, 7.0, stats[0].Value, 1e-12, "one occupied week of two")
	})

	t.Run("zero week season reports zero days", func(t *testing.T) {
		bands := []raster.Grid{occupiedBand(8)}
		labels := []season.Name{season.Breeding}

		stats, err := eng.DaysOfOccupation(bands, labels, []season.Name{season.Breeding, season.Nonbreeding})
		require.NoError(t, err)
		require.Len(t, stats, 2)
		var nb Stat
		for _, s := range stats {
			if s.Season == season.Nonbreeding {
				nb = s
			}
		}
		assert.Equal(t, DaysOccupation, nb.Kind)
		assert.Zero(t, nb.Value, "a defined season with no assigned weeks still reports")
	})

	t.Run("reference mismatch rejected", func(t *testing.T) {
		_, err := eng.DaysOfOccupation([]raster.Grid{raster.New(testRef(2, 2))}, []season.Name{season.Breeding}, nil)
		var mm *raster.MismatchError
		require.ErrorAs(t, err, &mm)
	})
}
