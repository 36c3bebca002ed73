// Package composite reduces the weekly abundance cube to one grid per
// reviewed season plus a full-year composite, and derives the two flags that
// gate downstream rendering choices.
package composite

import (
	"fmt"
	"sort"
	"sync"

	"github.com/veerylabs/rangemap/internal/cube"
	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/season"
)

// Set holds the per-season composites and the annual composite. A season that
// ended up with zero assigned weeks is simply absent.
type Set struct {
	Seasons map[season.Name]raster.Grid
	Annual  raster.Grid
}

// Names returns the present seasons in stable order.
func (s Set) Names() []season.Name {
	names := make([]season.Name, 0, len(s.Seasons))
	for n := range s.Seasons {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Build composites the cube. Each season composite is the cell-wise mean of
// its assigned weekly bands ignoring missing values; a cell missing in every
// contributing band stays missing, which distinguishes "never any prediction"
// from "predicted zero". The annual composite always averages the full
// unfiltered 52-band cube. Seasons are composited in parallel; they are
// independent.
func Build(c cube.Cube, labels []season.Name) (Set, error) {
	if len(labels) != cube.WeeksPerYear {
		return Set{}, fmt.Errorf("composite: got %d band labels, want %d", len(labels), cube.WeeksPerYear)
	}

	bySeason := map[season.Name][]raster.Grid{}
	for i, label := range labels {
		if label == season.Unassigned {
			continue
		}
		bySeason[label] = append(bySeason[label], c.Bands[i])
	}

	out := Set{Seasons: make(map[season.Name]raster.Grid, len(bySeason))}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, bands := range bySeason {
		wg.Add(1)
		go func(name season.Name, bands []raster.Grid) {
			defer wg.Done()
			g := meanAcross(c.Ref, bands)
			mu.Lock()
			out.Seasons[name] = g
			mu.Unlock()
		}(name, bands)
	}
	wg.Wait()

	out.Annual = meanAcross(c.Ref, c.Bands)
	return out, nil
}

// meanAcross computes the cell-wise mean over bands, ignoring missing values.
func meanAcross(ref raster.Ref, bands []raster.Grid) raster.Grid {
	out := raster.New(ref)
	n := ref.Nx * ref.Ny
	for i := 0; i < n; i++ {
		var sum float64
		var count int
		for _, b := range bands {
			v := b.Data.Elements[i]
			if raster.IsMissing(v) {
				continue
			}
			sum += v
			count++
		}
		if count > 0 {
			out.Data.Elements[i] = sum / float64(count)
		}
	}
	return out
}
