package bins

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veerylabs/rangemap/internal/raster"
)

func gridFrom(values []float64) raster.Grid {
	n := len(values)
	g := raster.New(raster.Ref{Dx: 1, Dy: 1, Nx: n, Ny: 1, Proj4: "+proj=longlat"})
	for i, v := range values {
		g.Data.Elements[i] = v
	}
	return g
}

// skewedGrid mimics right-skewed abundance: many small values, few large.
func skewedGrid(n int, seed int64) raster.Grid {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		v := math.Pow(rng.Float64(), 4) * 100
		values[i] = v
	}
	return gridFrom(values)
}

func TestCompute(t *testing.T) {
	t.Run("deterministic on identical input", func(t *testing.T) {
		g := skewedGrid(500, 42)
		a, err := Compute(g)
		require.NoError(t, err)
		b, err := Compute(g)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("breaks strictly increasing", func(t *testing.T) {
		spec, err := Compute(skewedGrid(500, 7))
		require.NoError(t, err)
		require.Len(t, spec.Breaks, NumBins+1)
		for i := 1; i < len(spec.Breaks); i++ {
			assert.Greater(t, spec.Breaks[i], spec.Breaks[i-1])
		}
	})

	t.Run("zero and missing cells excluded", func(t *testing.T) {
		g := gridFrom([]float64{0, 0, math.NaN(), 1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024})
		spec, err := Compute(g)
		require.NoError(t, err)
		assert.Equal(t, 1.0, spec.Breaks[0], "lowest break anchored at smallest positive value, not zero")
		assert.Equal(t, 1024.0, spec.Breaks[NumBins])
	})

	t.Run("pools across multiple grids", func(t *testing.T) {
		a := gridFrom([]float64{1, 2, 3})
		b := gridFrom([]float64{50, 100, 200})
		spec, err := Compute(a, b)
		require.NoError(t, err)
		assert.Equal(t, 1.0, spec.Breaks[0])
		assert.Equal(t, 200.0, spec.Breaks[NumBins])
	})

	t.Run("skewed data picks a compressive exponent", func(t *testing.T) {
		spec, err := Compute(skewedGrid(2000, 99))
		require.NoError(t, err)
		assert.Less(t, spec.Power, 1.0,
			"right-skewed data should choose a power below linear")
	})

	t.Run("all zero or missing", func(t *testing.T) {
		g := gridFrom([]float64{0, math.NaN(), 0})
		_, err := Compute(g)
		assert.ErrorIs(t, err, ErrNoPositiveCells)
	})

	t.Run("single distinct positive value", func(t *testing.T) {
		g := gridFrom([]float64{5, 5, 5})
		_, err := Compute(g)
		assert.ErrorIs(t, err, ErrDegenerate)
	})
}

func TestBucket(t *testing.T) {
	breaks := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 0, bucket(breaks, 1))
	assert.Equal(t, 0, bucket(breaks, 1.9))
	assert.Equal(t, 1, bucket(breaks, 2))
	assert.Equal(t, 8, bucket(breaks, 10))
	assert.Equal(t, 8, bucket(breaks, 9.5))
}
