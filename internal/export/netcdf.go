package export

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/veerylabs/rangemap/internal/composite"
	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/season"
)

// compositeFill replaces NaN cells on disk; NetCDF readers key missing data
// off the _FillValue attribute rather than NaN payloads.
const compositeFill = float32(-9999)

// annualVar names the full-year composite variable.
const annualVar = "annual"

// WriteComposites writes every season composite plus the annual composite to
// a NetCDF file, one (y, x) variable each, with the grid geometry as global
// attributes.
func WriteComposites(path, species string, set composite.Set) error {
	ref := set.Annual.Ref

	h := cdf.NewHeader([]string{"y", "x"}, []int{ref.Ny, ref.Nx})
	h.AddAttribute("", "title", "seasonal relative abundance composites")
	h.AddAttribute("", "species", species)
	h.AddAttribute("", "x0", []float64{ref.X0})
	h.AddAttribute("", "y0", []float64{ref.Y0})
	h.AddAttribute("", "dx", []float64{ref.Dx})
	h.AddAttribute("", "dy", []float64{ref.Dy})
	h.AddAttribute("", "proj4", ref.Proj4)

	// Sorted variable order so identical runs produce identical files.
	names := make([]string, 0, len(set.Seasons)+1)
	for n := range set.Seasons {
		names = append(names, string(n))
	}
	sort.Strings(names)
	names = append(names, annualVar)

	for _, name := range names {
		h.AddVariable(name, []string{"y", "x"}, []float32{0})
		h.AddAttribute(name, "_FillValue", []float32{compositeFill})
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", path, err)
	}
	defer f.Close()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("export: writing NetCDF header: %w", err)
	}
	for _, name := range names {
		g := set.Annual
		if name != annualVar {
			g = set.Seasons[season.Name(name)]
		}
		if err := writeVariable(nc, name, g); err != nil {
			return fmt.Errorf("export: writing variable %s: %w", name, err)
		}
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		return fmt.Errorf("export: finalizing %s: %w", path, err)
	}
	return nil
}

func writeVariable(nc *cdf.File, name string, g raster.Grid) error {
	data := make([]float32, len(g.Data.Elements))
	for i, v := range g.Data.Elements {
		if raster.IsMissing(v) {
			data[i] = compositeFill
			continue
		}
		data[i] = float32(v)
	}
	end := nc.Header.Lengths(name)
	start := make([]int, len(end))
	w := nc.Writer(name, start, end)
	_, err := w.Write(data)
	return err
}
