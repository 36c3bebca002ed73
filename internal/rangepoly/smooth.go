package rangepoly

import "github.com/ctessum/geom"

// SmoothingIterations fixes how many Chaikin corner-cutting passes are
// applied to every ring. Two passes reduce the stair-step curvature of
// rasterized boundaries without visibly shrinking the range.
const SmoothingIterations = 2

// chaikinWeight is the classic quarter-point corner-cutting ratio.
const chaikinWeight = 0.25

// smooth applies Chaikin corner cutting to every ring of the polygon.
// The operation is deterministic and preserves ring orientation.
func smooth(poly geom.Polygon, iterations int) geom.Polygon {
	out := make(geom.Polygon, len(poly))
	for i, ring := range poly {
		out[i] = smoothRing(ring, iterations)
	}
	return out
}

// smoothRing cuts each corner of a closed ring, replacing every vertex with
// two points at chaikinWeight and 1-chaikinWeight along its incident edges.
func smoothRing(ring []geom.Point, iterations int) []geom.Point {
	// Work on the open form; the closing point is re-appended at the end.
	open := ring
	if len(open) > 1 && open[0] == open[len(open)-1] {
		open = open[:len(open)-1]
	}
	if len(open) < 3 {
		return ring
	}

	for it := 0; it < iterations; it++ {
		next := make([]geom.Point, 0, 2*len(open))
		n := len(open)
		for i := 0; i < n; i++ {
			a := open[i]
			b := open[(i+1)%n]
			next = append(next,
				geom.Point{
					X: a.X + (b.X-a.X)*chaikinWeight,
					Y: a.Y + (b.Y-a.Y)*chaikinWeight,
				},
				geom.Point{
					X: a.X + (b.X-a.X)*(1-chaikinWeight),
					Y: a.Y + (b.Y-a.Y)*(1-chaikinWeight),
				},
			)
		}
		open = next
	}
	return append(open, open[0])
}
