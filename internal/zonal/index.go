// Package zonal aggregates cube cells against region polygons to produce the
// per-region summary statistics: mean abundance, population share, occupied
// fraction, range share, and days of occupation.
package zonal

import (
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/regions"
)

// coverageCutoff decides cell membership: a cell belongs to a region when the
// region covers more than half of it, the area-weighted analogue of the usual
// center-point rasterization rule.
const coverageCutoff = 0.5

// gridCell is an rtree entry for one raster cell.
type gridCell struct {
	geom.Polygonal
	row, col int
}

// regionCells caches which grid cells belong to one region.
type regionCells struct {
	id    string
	cells [][2]int // (row, col), in row-major order
}

// Index precomputes cell membership for every region against one grid
// reference. Building it costs one polygon intersection per candidate cell;
// every statistic afterwards is a plain array walk, which is what lets the
// weekly occupancy pass stream band by band.
type Index struct {
	ref     raster.Ref
	regions []regionCells
}

// NewIndex intersects every region with the grid's cell polygons. Cells are
// held in an rtree so only the cells overlapping a region's bounding box are
// tested.
func NewIndex(ref raster.Ref, regs []regions.Region) *Index {
	tree := rtree.NewTree(25, 50)
	for row := 0; row < ref.Ny; row++ {
		for col := 0; col < ref.Nx; col++ {
			tree.Insert(&gridCell{Polygonal: ref.CellPolygon(row, col), row: row, col: col})
		}
	}

	cellArea := ref.CellArea()
	idx := &Index{ref: ref, regions: make([]regionCells, 0, len(regs))}
	for _, reg := range regs {
		rc := regionCells{id: reg.ID}
		for _, item := range tree.SearchIntersect(reg.Geom.Bounds()) {
			cell := item.(*gridCell)
			isect := cell.Intersection(reg.Geom)
			if isect == nil {
				continue
			}
			if isect.Area()/cellArea > coverageCutoff {
				rc.cells = append(rc.cells, [2]int{cell.row, cell.col})
			}
		}
		// Row-major order so results do not depend on rtree traversal order.
		sort.Slice(rc.cells, func(i, j int) bool {
			if rc.cells[i][0] != rc.cells[j][0] {
				return rc.cells[i][0] < rc.cells[j][0]
			}
			return rc.cells[i][1] < rc.cells[j][1]
		})
		idx.regions = append(idx.regions, rc)
	}
	return idx
}

// Ref returns the grid reference the index was built against.
func (x *Index) Ref() raster.Ref { return x.ref }

// RegionIDs returns the region identifiers in input order.
func (x *Index) RegionIDs() []string {
	ids := make([]string, len(x.regions))
	for i, r := range x.regions {
		ids[i] = r.id
	}
	return ids
}
