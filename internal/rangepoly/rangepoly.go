// Package rangepoly converts thresholded season composites into cleaned,
// smoothed range boundaries.
//
// For every season two layers are produced: the range proper (cells with
// positive abundance) and the prediction area (cells where any prediction was
// made, whatever its value). Boundaries are traced from the aggregated grid,
// de-crumbed, hole-filled, smoothed, and clipped to the analysis extent.
package rangepoly

import (
	"log/slog"
	"math"

	"github.com/ctessum/geom"
	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/season"
)

// Kind distinguishes the two boundary layers per season.
type Kind string

const (
	KindRange          Kind = "range"
	KindPredictionArea Kind = "prediction_area"
)

const (
	// CrumbAreaFactor scales the aggregated cell area into the minimum
	// surviving fragment (and hole) area.
	CrumbAreaFactor = 1.5

	// CoastBufferCells is the outward buffer applied to the analysis extent
	// before clipping range layers, in units of aggregated cell widths.
	// Coastal cells straddle the land boundary; clipping them away would
	// erase real coastal populations.
	CoastBufferCells = 0.5
)

// Range is one boundary layer for one season. Geom is an explicit empty
// polygon when the season has no qualifying cells, so consumers can tell
// "no range" apart from "not computed".
type Range struct {
	Season season.Name
	Kind   Kind
	Geom   geom.Polygon
}

// Empty reports whether the layer has no geometry.
func (r Range) Empty() bool { return len(r.Geom) == 0 }

// Builder polygonizes season composites. The zero Boundary means no
// clipping; AggFactor of one or less means no pre-aggregation.
type Builder struct {
	Boundary  geom.Polygonal // analysis extent in the composite's projection
	AggFactor int
	Logger    *slog.Logger
}

// Build produces the range and prediction-area layers for one season
// composite. Identical inputs produce identical geometry.
func (b *Builder) Build(name season.Name, comp raster.Grid) []Range {
	g := comp.Aggregate(b.AggFactor)
	minArea := CrumbAreaFactor * g.CellArea()

	rangeLayer := b.layer(name, KindRange, g, minArea, func(v float64) bool {
		return !raster.IsMissing(v) && v > 0
	})
	predLayer := b.layer(name, KindPredictionArea, g, minArea, func(v float64) bool {
		return !raster.IsMissing(v)
	})

	if b.Boundary != nil {
		// Range layers are clipped to the boundary pushed outward by half a
		// cell; prediction areas to the boundary as-is.
		buffered := buffer(b.Boundary, CoastBufferCells*g.Dx)
		rangeLayer.Geom = clip(rangeLayer.Geom, buffered)
		predLayer.Geom = clip(predLayer.Geom, b.Boundary)
	}

	if rangeLayer.Empty() {
		b.Logger.Warn("season has an empty range boundary", "season", string(name))
	}
	return []Range{rangeLayer, predLayer}
}

func (b *Builder) layer(name season.Name, kind Kind, g raster.Grid, minArea float64, keep func(float64) bool) Range {
	poly := traceMask(g.Ref, func(row, col int) bool {
		return keep(g.Value(row, col))
	})
	poly = clean(poly, minArea)
	poly = smooth(poly, SmoothingIterations)
	return Range{Season: name, Kind: kind, Geom: poly}
}

func clip(poly geom.Polygon, boundary geom.Polygonal) geom.Polygon {
	if len(poly) == 0 {
		return poly
	}
	return poly.Intersection(boundary).(geom.Polygon)
}

// buffer grows a polygon outward by distance d using a square-join Minkowski
// approximation: the union of the polygon with a d-wide quad along every edge
// and a d-sized square at every vertex. At half-cell distances the square
// join is indistinguishable from a round one.
func buffer(p geom.Polygonal, d float64) geom.Polygonal {
	if p == nil || d <= 0 {
		return p
	}
	acc := geom.Polygon{}
	for _, poly := range p.Polygons() {
		acc = acc.Union(poly).(geom.Polygon)
		for _, ring := range poly {
			n := len(ring)
			for i := 0; i < n; i++ {
				a := ring[i]
				b := ring[(i+1)%n]
				if quad, ok := edgeQuad(a, b, d); ok {
					acc = acc.Union(quad).(geom.Polygon)
				}
				acc = acc.Union(vertexSquare(a, d)).(geom.Polygon)
			}
		}
	}
	return acc
}

// edgeQuad returns the rectangle of half-width d centered on segment ab.
func edgeQuad(a, b geom.Point, d float64) (geom.Polygon, bool) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil, false
	}
	nx, ny := -dy/length*d, dx/length*d
	return geom.Polygon{{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	}}, true
}

func vertexSquare(p geom.Point, d float64) geom.Polygon {
	return geom.Polygon{{
		{X: p.X - d, Y: p.Y - d},
		{X: p.X + d, Y: p.Y - d},
		{X: p.X + d, Y: p.Y + d},
		{X: p.X - d, Y: p.Y + d},
	}}
}
