package rangepoly

import (
	"math"

	"github.com/ctessum/geom"
)

// signedArea computes the shoelace area of a ring: positive for
// counter-clockwise (outer) rings, negative for clockwise (hole) rings.
func signedArea(ring []geom.Point) float64 {
	var sum float64
	n := len(ring)
	for i := 0; i < n-1; i++ {
		sum += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return sum / 2
}

type ringInfo struct {
	ring   []geom.Point
	area   float64 // absolute
	bounds *geom.Bounds
}

func ringBounds(ring []geom.Point) *geom.Bounds {
	b := &geom.Bounds{Min: ring[0], Max: ring[0]}
	for _, p := range ring[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

func boundsContain(outer, inner *geom.Bounds) bool {
	return outer.Min.X <= inner.Min.X && outer.Min.Y <= inner.Min.Y &&
		outer.Max.X >= inner.Max.X && outer.Max.Y >= inner.Max.Y
}

// clean removes crumbs and fills small holes: outer rings below minArea
// vanish along with every hole inside them, and hole rings below minArea are
// filled. Rasterization of a thresholded composite reliably produces both
// kinds of noise at the range margin.
func clean(poly geom.Polygon, minArea float64) geom.Polygon {
	if len(poly) == 0 {
		return poly
	}

	var outers, holes []ringInfo
	for _, ring := range poly {
		a := signedArea(ring)
		info := ringInfo{ring: ring, area: math.Abs(a), bounds: ringBounds(ring)}
		if a >= 0 {
			outers = append(outers, info)
		} else {
			holes = append(holes, info)
		}
	}

	var out geom.Polygon
	for _, o := range outers {
		if o.area < minArea {
			continue
		}
		out = append(out, o.ring)
	}

	for _, h := range holes {
		if h.area < minArea {
			continue
		}
		// The hole survives only if its enclosing outer ring survived. Rings
		// never cross, so bounds containment against the smallest enclosing
		// outer is exact here.
		owner := smallestEnclosing(outers, h.bounds)
		if owner == nil || owner.area < minArea {
			continue
		}
		out = append(out, h.ring)
	}
	return out
}

// smallestEnclosing returns the smallest outer ring whose bounds contain b,
// or nil when none does.
func smallestEnclosing(outers []ringInfo, b *geom.Bounds) *ringInfo {
	var best *ringInfo
	for i := range outers {
		o := &outers[i]
		if !boundsContain(o.bounds, b) {
			continue
		}
		if best == nil || o.area < best.area {
			best = o
		}
	}
	return best
}
