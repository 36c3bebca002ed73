// Package bins computes the non-linear color-bin breakpoints shared by every
// composite of a species, so legends stay comparable across seasons.
//
// Ecological abundance is strongly right-skewed: most positive cells carry a
// small fraction of the maximum. Linear breaks would collapse nearly all of
// them into the first bucket. Breaks are therefore spaced evenly in a
// power-transformed domain, with the exponent chosen so the bucket
// populations come out roughly balanced. Zero is never part of the positive
// distribution; it is an explicit separate category for rendering.
package bins

import (
	"errors"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/veerylabs/rangemap/internal/raster"
	"gonum.org/v1/gonum/floats"
)

// NumBins is the fixed number of positive-abundance buckets.
const NumBins = 9

// Candidate exponents, scanned low to high. The scan is a fixed grid so the
// result is reproducible bit-for-bit on identical inputs.
var candidatePowers = []float64{
	0.05, 0.10, 0.15, 0.20, 0.25, 0.30, 0.35, 0.40, 0.45, 0.50,
	0.55, 0.60, 0.65, 0.70, 0.75, 0.80, 0.85, 0.90, 0.95, 1.00,
}

// ErrNoPositiveCells means every input cell was zero or missing, so no
// positive-value distribution exists to bin.
var ErrNoPositiveCells = errors.New("bins: no positive cells in input grids")

// ErrDegenerate means all positive cells share one value; breakpoints cannot
// be strictly increasing.
var ErrDegenerate = errors.New("bins: all positive cells share a single value")

// Spec is an ordered set of NumBins+1 strictly increasing breakpoints plus
// the exponent that spaced them.
type Spec struct {
	Breaks []float64
	Power  float64
}

// Compute pools the positive, non-missing cells of the input grids and
// returns breakpoints spaced evenly in the Power-transformed domain. The
// exponent is the candidate minimizing bucket-population imbalance;
// identical inputs always produce identical output.
func Compute(grids ...raster.Grid) (Spec, error) {
	var pool []float64
	for _, g := range grids {
		for _, v := range g.Data.Elements {
			if raster.IsMissing(v) || v <= 0 {
				continue
			}
			pool = append(pool, v)
		}
	}
	if len(pool) == 0 {
		return Spec{}, ErrNoPositiveCells
	}

	lo, err := stats.Min(pool)
	if err != nil {
		return Spec{}, err
	}
	hi, err := stats.Max(pool)
	if err != nil {
		return Spec{}, err
	}
	if lo == hi {
		return Spec{}, ErrDegenerate
	}

	best := Spec{}
	bestScore := math.Inf(1)
	for _, p := range candidatePowers {
		breaks := powerBreaks(lo, hi, p)
		score := imbalance(pool, breaks)
		if score < bestScore {
			bestScore = score
			best = Spec{Breaks: breaks, Power: p}
		}
	}
	return best, nil
}

// powerBreaks spaces NumBins+1 breakpoints evenly between lo^p and hi^p,
// mapped back through the inverse transform.
func powerBreaks(lo, hi, p float64) []float64 {
	tlo, thi := math.Pow(lo, p), math.Pow(hi, p)
	breaks := make([]float64, NumBins+1)
	for k := 0; k <= NumBins; k++ {
		t := tlo + (thi-tlo)*float64(k)/float64(NumBins)
		breaks[k] = math.Pow(t, 1/p)
	}
	// Guard against floating-point drift at the endpoints.
	breaks[0] = lo
	breaks[NumBins] = hi
	return breaks
}

// imbalance scores how unevenly the pooled values fill the buckets: the
// squared distance of the bucket counts from a perfectly uniform fill.
func imbalance(pool []float64, breaks []float64) float64 {
	counts := make([]float64, NumBins)
	for _, v := range pool {
		counts[bucket(breaks, v)]++
	}
	uniform := make([]float64, NumBins)
	for i := range uniform {
		uniform[i] = float64(len(pool)) / NumBins
	}
	d := floats.Distance(counts, uniform, 2)
	return d * d
}

// bucket returns the bin index for v, with the final bin closed on the right.
func bucket(breaks []float64, v float64) int {
	for k := 1; k < len(breaks)-1; k++ {
		if v < breaks[k] {
			return k - 1
		}
	}
	return len(breaks) - 2
}
