// Command inspect prints a summary of a weekly abundance cube: grid geometry,
// per-band coverage, and the season each band would be assigned for a species.
//
// Usage:
//
//	go run ./cmd/inspect -cube data/veery_abundance.nc \
//	  -seasons data/seasons.yaml -species veery
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/veerylabs/rangemap/internal/cube"
	"github.com/veerylabs/rangemap/internal/raster"
	"github.com/veerylabs/rangemap/internal/season"
)

func main() {
	cubePath := flag.String("cube", "", "path to the weekly abundance NetCDF cube")
	seasonsPath := flag.String("seasons", "", "path to the season reference table (optional)")
	species := flag.String("species", "", "species code for season assignment (with -seasons)")
	flag.Parse()

	if *cubePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*cubePath, *seasonsPath, *species); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(cubePath, seasonsPath, species string) error {
	c, err := cube.Load(cubePath)
	if err != nil {
		return err
	}

	fmt.Printf("cube: %s\n", cubePath)
	fmt.Printf("grid: %dx%d cells, %g x %g units, origin (%g, %g)\n",
		c.Ref.Nx, c.Ref.Ny, c.Ref.Dx, c.Ref.Dy, c.Ref.X0, c.Ref.Y0)
	fmt.Printf("proj: %s\n\n", c.Ref.Proj4)

	labels := make([]season.Name, cube.WeeksPerYear)
	if seasonsPath != "" {
		if species == "" {
			return fmt.Errorf("-species is required with -seasons")
		}
		defs, err := season.LoadDefinitions(seasonsPath, species)
		if err != nil {
			return err
		}
		labels, err = season.Assign(species, defs)
		if err != nil {
			return err
		}
	}

	fmt.Printf("%-5s %-11s %-23s %9s %9s\n", "band", "date", "season", "valid", "positive")
	for i, band := range c.Bands {
		valid, positive := coverage(band)
		label := string(labels[i])
		if label == "" {
			label = "-"
		}
		fmt.Printf("%-5d %-11s %-23s %8.1f%% %8.1f%%\n",
			i+1,
			season.BandDate(i+1).Format("2006-01-02"),
			label,
			100*valid,
			100*positive,
		)
	}
	return nil
}

// coverage returns the valid and positive cell fractions of one band.
func coverage(g raster.Grid) (valid, positive float64) {
	var nValid, nPositive int
	for _, v := range g.Data.Elements {
		if raster.IsMissing(v) {
			continue
		}
		nValid++
		if v > 0 {
			nPositive++
		}
	}
	n := float64(len(g.Data.Elements))
	return float64(nValid) / n, float64(nPositive) / n
}
