// Package regions loads the polygon partitions (counties, provinces, custom
// analysis units) that the zonal statistics engine aggregates against.
//
// Regions are opaque to the rest of the pipeline beyond a stable identifier
// and a polygonal geometry in the cube's projection.
package regions

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
)

// Region is one externally supplied polygon with a stable identifier.
type Region struct {
	ID   string
	Geom geom.Polygonal
}

// LoadShapefile reads regions from a shapefile, taking identifiers from
// idField and reprojecting every geometry into targetProj4 (the cube's
// spatial reference). Non-polygonal rows are rejected: zonal aggregation is
// defined over areas only.
func LoadShapefile(path, idField, targetProj4 string) ([]Region, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("regions: opening %s: %w", path, err)
	}
	defer dec.Close()

	srcSR, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("regions: reading spatial reference of %s: %w", path, err)
	}
	dstSR, err := proj.Parse(targetProj4)
	if err != nil {
		return nil, fmt.Errorf("regions: parsing target projection: %w", err)
	}
	trans, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, fmt.Errorf("regions: creating transform for %s: %w", path, err)
	}

	var out []Region
	for {
		g, fields, more := dec.DecodeRowFields(idField)
		if !more {
			break
		}
		id, ok := fields[idField]
		if !ok || id == "" {
			return nil, fmt.Errorf("regions: %s: missing or empty attribute %q", path, idField)
		}
		gg, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("regions: reprojecting region %q: %w", id, err)
		}
		poly, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("regions: region %q is not polygonal", id)
		}
		out = append(out, Region{ID: id, Geom: poly})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("regions: decoding %s: %w", path, err)
	}
	return out, nil
}

// LoadBoundary reads an analysis-extent shapefile and returns the union of
// its polygons, reprojected into targetProj4. Attributes are ignored;
// non-polygonal rows are rejected.
func LoadBoundary(path, targetProj4 string) (geom.Polygonal, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("regions: opening boundary %s: %w", path, err)
	}
	defer dec.Close()

	srcSR, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("regions: reading spatial reference of %s: %w", path, err)
	}
	dstSR, err := proj.Parse(targetProj4)
	if err != nil {
		return nil, fmt.Errorf("regions: parsing target projection: %w", err)
	}
	trans, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, fmt.Errorf("regions: creating transform for %s: %w", path, err)
	}

	acc := geom.Polygon{}
	for {
		g, _, more := dec.DecodeRowFields()
		if !more {
			break
		}
		gg, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("regions: reprojecting boundary row: %w", err)
		}
		poly, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("regions: boundary %s contains a non-polygonal row", path)
		}
		for _, p := range poly.Polygons() {
			acc = acc.Union(p).(geom.Polygon)
		}
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("regions: decoding %s: %w", path, err)
	}
	if len(acc) == 0 {
		return nil, fmt.Errorf("regions: boundary %s is empty", path)
	}
	return acc, nil
}
