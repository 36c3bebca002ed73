package composite

import (
	"log/slog"

	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/season"
)

// Threshold constants are ecological semantics, not tuning knobs; changing
// them changes what the published maps mean.
const (
	// SplitMigrationThreshold is the minimum fraction of migration presence
	// cells that must be exclusive to one direction before the two migration
	// seasons render with separate palettes.
	SplitMigrationThreshold = 0.4

	// YearRoundThreshold is the minimum fraction of annually-positive cells
	// that must be occupied in all four seasons before a distinct year-round
	// class is shown.
	YearRoundThreshold = 0.01
)

// Flags are pure derived rendering gates; the composites themselves are
// never mutated.
type Flags struct {
	// SplitMigration is true when pre- and post-breeding migration should be
	// drawn as separate classes.
	SplitMigration bool

	// ShowYearRound is true when a distinct year-round class should be drawn.
	ShowYearRound bool
}

// Classify derives the rendering flags from the season composites. Ratio
// denominators of zero are degenerate, not fatal: the corresponding flag
// defaults to false and processing continues.
func Classify(s Set, logger *slog.Logger) Flags {
	return Flags{
		SplitMigration: splitMigration(s, logger),
		ShowYearRound:  showYearRound(s, logger),
	}
}

// present reports a positive, non-missing abundance value.
func present(v float64) bool { return !raster.IsMissing(v) && v > 0 }

// splitMigration is true unless both migration composites exist and their
// positive footprints mostly coincide: when the fraction of cells present in
// exactly one direction falls below SplitMigrationThreshold, the two seasons
// merge into a single migration class.
func splitMigration(s Set, logger *slog.Logger) bool {
	pre, okPre := s.Seasons[season.PrebreedingMigration]
	post, okPost := s.Seasons[season.PostbreedingMigration]
	if !okPre || !okPost {
		return true
	}

	var nJust, nAll int
	for i := range pre.Data.Elements {
		p := present(pre.Data.Elements[i])
		q := present(post.Data.Elements[i])
		if p || q {
			nAll++
		}
		if p != q {
			nJust++
		}
	}
	if nAll == 0 {
		logger.Warn("no migration presence cells, defaulting to merged migration palette")
		return false
	}
	return float64(nJust)/float64(nAll) >= SplitMigrationThreshold
}

// showYearRound is true only when all four seasonal composites exist and the
// cells positive in all four of them cover at least YearRoundThreshold of the
// annually-positive footprint.
func showYearRound(s Set, logger *slog.Logger) bool {
	grids := make([]raster.Grid, 0, len(season.SeasonalNames))
	for _, name := range season.SeasonalNames {
		g, ok := s.Seasons[name]
		if !ok {
			return false
		}
		grids = append(grids, g)
	}

	var nYr, nAn int
	for i := range s.Annual.Data.Elements {
		if !present(s.Annual.Data.Elements[i]) {
			continue
		}
		nAn++
		all := true
		for _, g := range grids {
			if !present(g.Data.Elements[i]) {
				all = false
				break
			}
		}
		if all {
			nYr++
		}
	}
	if nAn == 0 {
		logger.Warn("no annually-positive cells, hiding year-round class")
		return false
	}
	return float64(nYr)/float64(nAn) >= YearRoundThreshold
}
