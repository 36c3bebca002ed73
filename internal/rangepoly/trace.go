package rangepoly

import (
	"sort"

	"github.com/ctessum/geom"
	"github.com/veerylabs/rangemap/internal/raster"
)

// Boundary tracing works on integer cell-corner coordinates so vertex
// identity is exact; conversion to projection units happens only once rings
// are assembled. Every boundary edge is directed with the mask interior on
// its left, so outer rings come out counter-clockwise and holes clockwise.

type vertex struct{ x, y int }

type edge struct{ from, to vertex }

func (e edge) dir() vertex { return vertex{e.to.x - e.from.x, e.to.y - e.from.y} }

// traceMask extracts the dissolved boundary of all cells where mask is true,
// as a polygon whose rings repeat their first point. Diagonally touching
// cells are kept as separate rings (4-connectivity).
func traceMask(ref raster.Ref, mask func(row, col int) bool) geom.Polygon {
	inside := func(row, col int) bool {
		if row < 0 || col < 0 || row >= ref.Ny || col >= ref.Nx {
			return false
		}
		return mask(row, col)
	}

	var edges []edge
	for row := 0; row < ref.Ny; row++ {
		for col := 0; col < ref.Nx; col++ {
			if !mask(row, col) {
				continue
			}
			if !inside(row-1, col) { // south edge, west to east
				edges = append(edges, edge{vertex{col, row}, vertex{col + 1, row}})
			}
			if !inside(row, col+1) { // east edge, south to north
				edges = append(edges, edge{vertex{col + 1, row}, vertex{col + 1, row + 1}})
			}
			if !inside(row+1, col) { // north edge, east to west
				edges = append(edges, edge{vertex{col + 1, row + 1}, vertex{col, row + 1}})
			}
			if !inside(row, col-1) { // west edge, north to south
				edges = append(edges, edge{vertex{col, row + 1}, vertex{col, row}})
			}
		}
	}
	if len(edges) == 0 {
		return nil
	}

	// Stable walk order so identical masks always produce identical rings.
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.from.y != b.from.y {
			return a.from.y < b.from.y
		}
		if a.from.x != b.from.x {
			return a.from.x < b.from.x
		}
		if a.to.y != b.to.y {
			return a.to.y < b.to.y
		}
		return a.to.x < b.to.x
	})

	outgoing := map[vertex][]int{}
	for i, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], i)
	}

	used := make([]bool, len(edges))
	var rings [][]vertex
	for start := range edges {
		if used[start] {
			continue
		}
		ring := walkRing(edges, outgoing, used, start)
		if len(ring) >= 4 {
			rings = append(rings, ring)
		}
	}

	poly := make(geom.Polygon, 0, len(rings))
	for _, ring := range rings {
		poly = append(poly, toWorld(ref, dropCollinear(ring)))
	}
	return poly
}

// walkRing follows directed edges from start until the ring closes. At a
// vertex where two boundary cells touch diagonally there are two outgoing
// edges; taking the sharpest left turn keeps the walk on the boundary of the
// current 4-connected component.
func walkRing(edges []edge, outgoing map[vertex][]int, used []bool, start int) []vertex {
	var ring []vertex
	cur := start
	for {
		used[cur] = true
		ring = append(ring, edges[cur].from)
		at := edges[cur].to
		next := -1
		for _, d := range turnPreference(edges[cur].dir()) {
			for _, cand := range outgoing[at] {
				if used[cand] || edges[cand].dir() != d {
					continue
				}
				next = cand
				break
			}
			if next >= 0 {
				break
			}
		}
		if next < 0 {
			break
		}
		cur = next
	}
	return ring
}

// turnPreference orders candidate directions left-first relative to the
// incoming direction d.
func turnPreference(d vertex) []vertex {
	left := vertex{-d.y, d.x}
	right := vertex{d.y, -d.x}
	return []vertex{left, d, right}
}

// dropCollinear removes ring vertices that lie on a straight run. The walk
// emits unit-length edges, so straight boundary stretches produce many
// redundant vertices.
func dropCollinear(ring []vertex) []vertex {
	n := len(ring)
	out := make([]vertex, 0, n)
	for i := 0; i < n; i++ {
		prev := ring[(i-1+n)%n]
		next := ring[(i+1)%n]
		cur := ring[i]
		// Cross product of the two incident edge vectors.
		cross := (cur.x-prev.x)*(next.y-cur.y) - (cur.y-prev.y)*(next.x-cur.x)
		if cross != 0 {
			out = append(out, cur)
		}
	}
	return out
}

// toWorld converts integer cell-corner coordinates to projection units and
// closes the ring.
func toWorld(ref raster.Ref, ring []vertex) []geom.Point {
	out := make([]geom.Point, 0, len(ring)+1)
	for _, v := range ring {
		out = append(out, geom.Point{
			X: ref.X0 + ref.Dx*float64(v.x),
			Y: ref.Y0 + ref.Dy*float64(v.y),
		})
	}
	if len(out) > 0 {
		out = append(out, out[0])
	}
	return out
}
