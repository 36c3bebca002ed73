package composite

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/season"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// grid4 builds a 4-cell grid from the given values (NaN encoded as -1 is not
// used; pass raster missing via math.NaN at call sites when needed).
func grid4(values [4]float64) raster.Grid {
	g := raster.New(testRef())
	g.SetValue(values[0], 0, 0)
	g.SetValue(values[1], 0, 1)
	g.SetValue(values[2], 1, 0)
	g.SetValue(values[3], 1, 1)
	return g
}

func TestSplitMigration(t *testing.T) {
	t.Run("disjoint footprints split", func(t *testing.T) {
		s := Set{Seasons: map[season.Name]raster.Grid{
			season.PrebreedingMigration:  grid4([4]float64{1, 1, 0, 0}),
			season.PostbreedingMigration: grid4([4]float64{0, 0, 1, 1}),
		}}
		flags := Classify(s, discardLogger())
		assert.True(t, flags.SplitMigration)
	})

	t.Run("identical footprints merge", func(t *testing.T) {
		s := Set{Seasons: map[season.Name]raster.Grid{
			season.PrebreedingMigration:  grid4([4]float64{1, 1, 0, 0}),
			season.PostbreedingMigration: grid4([4]float64{2, 3, 0, 0}),
		}}
		flags := Classify(s, discardLogger())
		assert.False(t, flags.SplitMigration)
	})

	t.Run("missing one migration season defaults to split", func(t *testing.T) {
		s := Set{Seasons: map[season.Name]raster.Grid{
			season.PrebreedingMigration: grid4([4]float64{1, 1, 0, 0}),
		}}
		flags := Classify(s, discardLogger())
		assert.True(t, flags.SplitMigration)
	})

	t.Run("zero presence cells default to merged, no panic", func(t *testing.T) {
		s := Set{Seasons: map[season.Name]raster.Grid{
			season.PrebreedingMigration:  grid4([4]float64{0, 0, 0, 0}),
			season.PostbreedingMigration: grid4([4]float64{0, 0, 0, 0}),
		}}
		flags := Classify(s, discardLogger())
		assert.False(t, flags.SplitMigration)
	})

	t.Run("ratio at threshold splits", func(t *testing.T) {
		// nAll=4 presence cells, nJust=2 exclusive: ratio 0.5 >= 0.4.
		s := Set{Seasons: map[season.Name]raster.Grid{
			season.PrebreedingMigration:  grid4([4]float64{1, 1, 1, 0}),
			season.PostbreedingMigration: grid4([4]float64{0, 1, 1, 1}),
		}}
		flags := Classify(s, discardLogger())
		assert.True(t, flags.SplitMigration)
	})
}

func TestShowYearRound(t *testing.T) {
	fourSeasons := func(pre, post, breed, nonbreed [4]float64) Set {
		return Set{
			Seasons: map[season.Name]raster.Grid{
				season.PrebreedingMigration:  grid4(pre),
				season.PostbreedingMigration: grid4(post),
				season.Breeding:              grid4(breed),
				season.Nonbreeding:           grid4(nonbreed),
			},
			Annual: grid4([4]float64{1, 1, 1, 1}),
		}
	}

	t.Run("simultaneous presence above threshold", func(t *testing.T) {
		s := fourSeasons(
			[4]float64{1, 1, 0, 0},
			[4]float64{1, 1, 0, 0},
			[4]float64{1, 0, 1, 0},
			[4]float64{1, 0, 0, 1},
		)
		// Cell 0 is positive in all four seasons: 1 of 4 annual cells = 25% >= 1%.
		flags := Classify(s, discardLogger())
		assert.True(t, flags.ShowYearRound)
	})

	t.Run("no simultaneous presence", func(t *testing.T) {
		s := fourSeasons(
			[4]float64{1, 0, 0, 0},
			[4]float64{0, 1, 0, 0},
			[4]float64{0, 0, 1, 0},
			[4]float64{0, 0, 0, 1},
		)
		flags := Classify(s, discardLogger())
		assert.False(t, flags.ShowYearRound)
	})

	t.Run("fewer than four seasons never shows year-round", func(t *testing.T) {
		s := Set{
			Seasons: map[season.Name]raster.Grid{
				season.Breeding:    grid4([4]float64{1, 1, 1, 1}),
				season.Nonbreeding: grid4([4]float64{1, 1, 1, 1}),
			},
			Annual: grid4([4]float64{1, 1, 1, 1}),
		}
		flags := Classify(s, discardLogger())
		assert.False(t, flags.ShowYearRound)
	})

	t.Run("zero annual presence defaults to false", func(t *testing.T) {
		s := fourSeasons(
			[4]float64{1, 1, 1, 1},
			[4]float64{1, 1, 1, 1},
			[4]float64{1, 1, 1, 1},
			[4]float64{1, 1, 1, 1},
		)
		s.Annual = grid4([4]float64{0, 0, 0, 0})
		flags := Classify(s, discardLogger())
		assert.False(t, flags.ShowYearRound)
	})
}
