// Package export writes the finished products of a species run to disk:
// range polygons as GeoJSON, zonal statistics as CSV, composites as NetCDF,
// and the shared bin breakpoints as JSON.
package export

import (
	"encoding/json"
	"fmt"
	"os"

	geojson "github.com/paulmach/go.geojson"
	"github.com/veerylabs/rangemap/internal/rangepoly"
)

// RangesFeatureCollection converts range layers to a GeoJSON feature
// collection. Empty layers are carried as null-geometry features so consumers
// can tell an empty season from a missing one.
func RangesFeatureCollection(species string, ranges []rangepoly.Range) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range ranges {
		var f *geojson.Feature
		if r.Empty() {
			f = geojson.NewFeature(nil)
		} else {
			f = geojson.NewPolygonFeature(polygonCoords(r))
		}
		f.SetProperty("species", species)
		f.SetProperty("season", string(r.Season))
		f.SetProperty("layer", string(r.Kind))
		fc.AddFeature(f)
	}
	return fc
}

// WriteRangesGeoJSON writes the range layers to path.
func WriteRangesGeoJSON(path, species string, ranges []rangepoly.Range) error {
	data, err := json.MarshalIndent(RangesFeatureCollection(species, ranges), "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshaling range layers: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: writing %s: %w", path, err)
	}
	return nil
}

func polygonCoords(r rangepoly.Range) [][][]float64 {
	coords := make([][][]float64, len(r.Geom))
	for i, ring := range r.Geom {
		out := make([][]float64, len(ring))
		for j, pt := range ring {
			out[j] = []float64{pt.X, pt.Y}
		}
		coords[i] = out
	}
	return coords
}
