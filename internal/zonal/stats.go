package zonal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/season"
)

// Kind names one of the five regional summary statistics.
type Kind string

const (
	MeanAbundance    Kind = "mean_abundance"
	PctPopulation    Kind = "pct_population"
	PctOccupied      Kind = "pct_occupied"
	PctRangeInRegion Kind = "pct_range_in_region"
	DaysOccupation   Kind = "days_occupation"
)

const (
	// OccupancyThreshold is the minimum fraction of positive region cells for
	// a region-week to count as occupied. The comparison is strict: a region
	// sitting exactly at the threshold is not occupied.
	OccupancyThreshold = 0.05

	// DaysPerWeek converts occupied week counts to days of occupation.
	DaysPerWeek = 7
)

// Stat is one (region, season, statistic) value.
type Stat struct {
	RegionID   string      `json:"region_id"`
	Season     season.Name `json:"season"`
	Kind       Kind        `json:"statistic"`
	Value      float64     `json:"value"`
	ProducedAt time.Time   `json:"produced_at"`
}

// Engine computes zonal statistics against a prebuilt region index.
type Engine struct {
	idx    *Index
	logger *slog.Logger
}

// NewEngine creates an Engine over the given index.
func NewEngine(idx *Index, logger *slog.Logger) *Engine {
	return &Engine{idx: idx, logger: logger}
}

// SeasonStats computes the four composite-based statistics for every region
// against one season composite:
//
//   - mean_abundance: mean of non-missing composite cells in the region
//   - pct_population: region's share of the domain-wide abundance sum
//   - pct_occupied: positive fraction of the region's valid cells
//   - pct_range_in_region: region's share of the domain-wide positive cells
//
// Zero domain-wide denominators are degenerate, not fatal: the affected
// statistic reports 0 and a warning is logged.
func (e *Engine) SeasonStats(name season.Name, comp raster.Grid) ([]Stat, error) {
	if err := raster.CheckSame("zonal season stats", e.idx.Ref(), comp.Ref); err != nil {
		return nil, err
	}

	var domainSum float64
	var domainPositive int
	for _, v := range comp.Data.Elements {
		if raster.IsMissing(v) {
			continue
		}
		domainSum += v
		if v > 0 {
			domainPositive++
		}
	}
	if domainSum == 0 {
		e.logger.Warn("season composite sums to zero, population shares report 0", "season", string(name))
	}
	if domainPositive == 0 {
		e.logger.Warn("season composite has no positive cells, range shares report 0", "season", string(name))
	}

	now := clock.Now()
	stats := make([]Stat, 0, 4*len(e.idx.regions))
	for _, reg := range e.idx.regions {
		var sum float64
		var valid, positive int
		for _, rc := range reg.cells {
			v := comp.Value(rc[0], rc[1])
			if raster.IsMissing(v) {
				continue
			}
			valid++
			sum += v
			if v > 0 {
				positive++
			}
		}

		mean, pctPop, pctOcc, pctRange := 0.0, 0.0, 0.0, 0.0
		if valid > 0 {
			mean = sum / float64(valid)
			pctOcc = float64(positive) / float64(valid)
		}
		if domainSum > 0 {
			pctPop = sum / domainSum
		}
		if domainPositive > 0 {
			pctRange = float64(positive) / float64(domainPositive)
		}

		stats = append(stats,
			Stat{RegionID: reg.id, Season: name, Kind: MeanAbundance, Value: mean, ProducedAt: now},
			Stat{RegionID: reg.id, Season: name, Kind: PctPopulation, Value: pctPop, ProducedAt: now},
			Stat{RegionID: reg.id, Season: name, Kind: PctOccupied, Value: pctOcc, ProducedAt: now},
			Stat{RegionID: reg.id, Season: name, Kind: PctRangeInRegion, Value: pctRange, ProducedAt: now},
		)
	}
	return stats, nil
}

// WeekOccupancy is the occupancy classification of one region for one week.
type WeekOccupancy struct {
	RegionID string
	Week     int // 1-indexed band number
	Fraction float64
	Occupied bool
}

// weekOccupancy classifies every region against a single weekly band. A
// region with no valid cells that week has fraction 0, not missing; this is
// the single sanctioned missing-to-zero coercion in the pipeline.
func (e *Engine) weekOccupancy(week int, band raster.Grid) []WeekOccupancy {
	out := make([]WeekOccupancy, 0, len(e.idx.regions))
	for _, reg := range e.idx.regions {
		var valid, positive int
		for _, rc := range reg.cells {
			v := band.Value(rc[0], rc[1])
			if raster.IsMissing(v) {
				continue
			}
			valid++
			if v > 0 {
				positive++
			}
		}
		frac := 0.0
		if valid > 0 {
			frac = float64(positive) / float64(valid)
		}
		out = append(out, WeekOccupancy{
			RegionID: reg.id,
			Week:     week,
			Fraction: frac,
			Occupied: frac > OccupancyThreshold,
		})
	}
	return out
}

// WeekIterator yields per-region occupancy one week at a time. Each week's
// classification touches only that week's band, so memory stays bounded by
// one band's worth of results regardless of region count. Iteration is
// restartable at any week boundary via the start argument to Weeks.
type WeekIterator struct {
	engine *Engine
	bands  []raster.Grid
	labels []season.Name
	next   int // 0-based index into bands
}

// Weeks returns an iterator over the labelled weekly bands, starting at the
// 1-indexed week start. Unassigned weeks are skipped.
func (e *Engine) Weeks(bands []raster.Grid, labels []season.Name, start int) (*WeekIterator, error) {
	if len(bands) != len(labels) {
		return nil, fmt.Errorf("zonal: %d bands but %d labels", len(bands), len(labels))
	}
	if start < 1 {
		start = 1
	}
	return &WeekIterator{engine: e, bands: bands, labels: labels, next: start - 1}, nil
}

// Next returns the occupancy records and season label for the next assigned
// week. ok is false when the iterator is exhausted.
func (it *WeekIterator) Next() (recs []WeekOccupancy, week int, label season.Name, ok bool) {
	for it.next < len(it.bands) {
		i := it.next
		it.next++
		if it.labels[i] == season.Unassigned {
			continue
		}
		return it.engine.weekOccupancy(i+1, it.bands[i]), i + 1, it.labels[i], true
	}
	return nil, 0, season.Unassigned, false
}

// DaysOfOccupation streams the labelled weekly bands and returns, for every
// region and every season in names, 7 days per occupied week. A season with
// zero assigned weeks still reports, with 0 days. When names is empty the
// seasons present in labels are reported instead.
func (e *Engine) DaysOfOccupation(bands []raster.Grid, labels []season.Name, names []season.Name) ([]Stat, error) {
	for i, b := range bands {
		if err := raster.CheckSame(fmt.Sprintf("zonal week %d", i+1), e.idx.Ref(), b.Ref); err != nil {
			return nil, err
		}
	}

	seasons := map[season.Name]bool{}
	for _, n := range names {
		seasons[n] = true
	}
	if len(seasons) == 0 {
		for _, l := range labels {
			if l != season.Unassigned {
				seasons[l] = true
			}
		}
	}

	// occupied[region id][season] = occupied week count.
	occupied := make(map[string]map[season.Name]int, len(e.idx.regions))
	for _, reg := range e.idx.regions {
		occupied[reg.id] = make(map[season.Name]int, len(seasons))
	}

	it, err := e.Weeks(bands, labels, 1)
	if err != nil {
		return nil, err
	}
	for {
		recs, _, label, ok := it.Next()
		if !ok {
			break
		}
		for _, rec := range recs {
			if rec.Occupied {
				occupied[rec.RegionID][label]++
			}
		}
	}

	now := clock.Now()
	stats := make([]Stat, 0, len(e.idx.regions)*len(seasons))
	for _, reg := range e.idx.regions {
		for _, name := range season.AssignableNames {
			if !seasons[name] {
				continue
			}
			stats = append(stats, Stat{
				RegionID:   reg.id,
				Season:     name,
				Kind:       DaysOccupation,
				Value:      float64(occupied[reg.id][name] * DaysPerWeek),
				ProducedAt: now,
			})
		}
	}
	return stats, nil
}
