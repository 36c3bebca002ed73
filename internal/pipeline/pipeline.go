// Package pipeline orchestrates one species run: season assignment,
// compositing, bin computation, range polygonization, and zonal statistics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctessum/geom"
	"github.com/veerylabs/rangemap/internal/bins"
	"github.com/veerylabs/rangemap/internal/composite"
	"github.com/veerylabs/rangemap/internal/cube"
	"github.com/veerylabs/rangemap/internal/observability"
	"github.com/veerylabs/rangemap/internal/rangepoly"
	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/regions"
	"github.com/veerylabs/rangemap/internal/season"
	"github.com/veerylabs/rangemap/internal/zonal"
)

// Pipeline runs the full derivation chain for one species at a time.
type Pipeline struct {
	boundary  geom.Polygonal
	aggFactor int
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline. boundary may be nil (no clipping); aggFactor of one
// or less disables pre-aggregation before polygonization and zonal
// statistics.
func New(boundary geom.Polygonal, aggFactor int, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		boundary:  boundary,
		aggFactor: aggFactor,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once at least one species run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no species run has completed yet")
	}
	return nil
}

// Result holds every product of one species run.
type Result struct {
	Species    string
	Labels     []season.Name
	Composites composite.Set
	Flags      composite.Flags
	Bins       bins.Spec
	Ranges     []rangepoly.Range
	Stats      []zonal.Stat
}

// Run executes the full chain for one species. A season-table problem or a
// grid mismatch aborts the run with no partial result; degenerate data
// (nothing positive anywhere) downgrades to warnings and empty products.
func (p *Pipeline) Run(ctx context.Context, species string, c cube.Cube, defs []season.Definition, regs []regions.Region) (*Result, error) {
	p.logger.Info("species run started", "species", species, "agg_factor", p.aggFactor, "regions", len(regs))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	res := &Result{Species: species}

	err := p.stage(ctx, "assign", func() error {
		labels, err := season.Assign(species, defs)
		if err != nil {
			return err
		}
		res.Labels = labels
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, "composite", func() error {
		set, err := composite.Build(c, res.Labels)
		if err != nil {
			return err
		}
		res.Composites = set
		var assigned int
		for _, l := range res.Labels {
			if l != season.Unassigned {
				assigned++
			}
		}
		p.metrics.BandsComposited.Add(float64(assigned))
		res.Flags = composite.Classify(set, p.logger)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, "bins", func() error {
		grids := make([]raster.Grid, 0, len(res.Composites.Seasons))
		for _, name := range res.Composites.Names() {
			grids = append(grids, res.Composites.Seasons[name])
		}
		spec, err := bins.Compute(grids...)
		switch {
		case errors.Is(err, bins.ErrNoPositiveCells), errors.Is(err, bins.ErrDegenerate):
			// Legends cannot be built, but polygons and statistics still can.
			p.logger.Warn("bin breakpoints unavailable", "reason", err)
			return nil
		case err != nil:
			return err
		}
		res.Bins = spec
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, "polygonize", func() error {
		res.Ranges = p.buildRanges(res.Composites)
		for _, r := range res.Ranges {
			p.metrics.PolygonsBuilt.WithLabelValues(string(r.Kind)).Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(regs) > 0 {
		err = p.stage(ctx, "zonal", func() error {
			stats, err := p.zonalStats(c, res.Labels, res.Composites, regs)
			if err != nil {
				return err
			}
			res.Stats = stats
			for _, s := range stats {
				p.metrics.ZonalStats.WithLabelValues(string(s.Kind)).Inc()
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		p.logger.Info("no regions configured, skipping zonal statistics")
	}

	p.ready.Store(true)
	p.logger.Info("species run complete",
		"species", species,
		"seasons", len(res.Composites.Seasons),
		"ranges", len(res.Ranges),
		"stats", len(res.Stats),
	)
	return res, nil
}

// stage runs one pipeline step, recording its duration and honoring
// cancellation between stages.
func (p *Pipeline) stage(ctx context.Context, name string, f func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline: canceled before %s: %w", name, err)
	}
	start := time.Now()
	err := f()
	elapsed := time.Since(start)
	p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		p.logger.Error("stage failed", "stage", name, "error", err)
		return fmt.Errorf("pipeline: %s: %w", name, err)
	}
	p.logger.Debug("stage complete", "stage", name, "duration", elapsed)
	return nil
}

// buildRanges polygonizes every present season in parallel. Output order is
// season order, not completion order.
func (p *Pipeline) buildRanges(set composite.Set) []rangepoly.Range {
	names := set.Names()
	b := &rangepoly.Builder{Boundary: p.boundary, AggFactor: p.aggFactor, Logger: p.logger}

	perSeason := make([][]rangepoly.Range, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name season.Name) {
			defer wg.Done()
			perSeason[i] = b.Build(name, set.Seasons[name])
		}(i, name)
	}
	wg.Wait()

	var out []rangepoly.Range
	for _, layers := range perSeason {
		out = append(out, layers...)
	}
	return out
}

// zonalStats computes the composite statistics per season plus the streaming
// days-of-occupation pass. The cube and composites are block-averaged by the
// aggregation factor first, so the cell index and the weekly occupancy pass
// run at the same bounded resolution as polygonization; the weekly pass walks
// only the working cube of season-assigned bands.
func (p *Pipeline) zonalStats(c cube.Cube, labels []season.Name, set composite.Set, regs []regions.Region) ([]zonal.Stat, error) {
	ac := c.Aggregate(p.aggFactor)
	idx := zonal.NewIndex(ac.Ref, regs)
	eng := zonal.NewEngine(idx, p.logger)

	var out []zonal.Stat
	for _, name := range set.Names() {
		stats, err := eng.SeasonStats(name, set.Seasons[name].Aggregate(p.aggFactor))
		if err != nil {
			return nil, err
		}
		out = append(out, stats...)
	}

	w := season.Filter(ac, labels)
	days, err := eng.DaysOfOccupation(w.Bands, w.Labels, set.Names())
	if err != nil {
		return nil, err
	}
	return append(out, days...), nil
}
