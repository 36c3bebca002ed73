package cube

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/veerylabs/rangemap/internal/raster"
)

// abundanceVar is the NetCDF variable holding the weekly cube, with
// dimensions (week, y, x) and row 0 at the southern edge.
const abundanceVar = "abundance"

// Load reads a weekly abundance cube from a NetCDF file. The file carries the
// grid geometry as global attributes (x0, y0, dx, dy, proj4) and missing
// cells as the variable's _FillValue, which is rewritten to NaN.
func Load(path string) (Cube, error) {
	f, err := os.Open(path)
	if err != nil {
		return Cube{}, fmt.Errorf("cube: opening %s: %w", path, err)
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		return Cube{}, fmt.Errorf("cube: reading NetCDF header of %s: %w", path, err)
	}

	dims := nc.Header.Lengths(abundanceVar)
	if len(dims) != 3 {
		return Cube{}, fmt.Errorf("cube: variable %q must have dimensions (week, y, x), got %d dimensions", abundanceVar, len(dims))
	}
	nweeks, ny, nx := dims[0], dims[1], dims[2]
	if nweeks != WeeksPerYear {
		return Cube{}, fmt.Errorf("cube: %s holds %d weekly bands, want %d", path, nweeks, WeeksPerYear)
	}

	ref := raster.Ref{
		X0:    floatAttr(nc, "x0"),
		Y0:    floatAttr(nc, "y0"),
		Dx:    floatAttr(nc, "dx"),
		Dy:    floatAttr(nc, "dy"),
		Nx:    nx,
		Ny:    ny,
		Proj4: stringAttr(nc, "proj4"),
	}
	if ref.Dx <= 0 || ref.Dy <= 0 {
		return Cube{}, fmt.Errorf("cube: %s has non-positive cell size dx=%g dy=%g", path, ref.Dx, ref.Dy)
	}

	fill := fillValue(nc)

	r := nc.Reader(abundanceVar, nil, nil)
	tmp := make([]float32, nweeks*ny*nx)
	if _, err := r.Read(tmp); err != nil {
		return Cube{}, fmt.Errorf("cube: reading %q from %s: %w", abundanceVar, path, err)
	}

	bands := make([]raster.Grid, nweeks)
	for w := 0; w < nweeks; w++ {
		g := raster.New(ref)
		base := w * ny * nx
		for i := 0; i < ny*nx; i++ {
			v := float64(tmp[base+i])
			if v == fill {
				v = math.NaN()
			}
			g.Data.Elements[i] = v
		}
		bands[w] = g
	}
	return New(bands)
}

func floatAttr(f *cdf.File, name string) float64 {
	switch v := f.Header.GetAttribute("", name).(type) {
	case []float64:
		if len(v) > 0 {
			return v[0]
		}
	case []float32:
		if len(v) > 0 {
			return float64(v[0])
		}
	}
	return 0
}

func stringAttr(f *cdf.File, name string) string {
	if s, ok := f.Header.GetAttribute("", name).(string); ok {
		return s
	}
	return ""
}

// fillValue returns the variable's missing-value sentinel, defaulting to a
// value that never matches real data when the attribute is absent.
func fillValue(f *cdf.File) float64 {
	switch v := f.Header.GetAttribute(abundanceVar, "_FillValue").(type) {
	case []float32:
		if len(v) > 0 {
			return float64(v[0])
		}
	case []float64:
		if len(v) > 0 {
			return v[0]
		}
	}
	return math.Inf(-1)
}
