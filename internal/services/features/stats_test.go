package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
}

func TestMeanStdDev(t *testing.T) {
	m, sd := MeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, m, 1e-12)
	assert.InDelta(t, 2.0, sd, 1e-12)
}

func TestMedianOddAndEven(t *testing.T) {
	assert.InDelta(t, 0.5, Median([]float64{0.7, 0.3, 0.5}), 1e-12)
	assert.InDelta(t, 0.4, Median([]float64{0.5, 0.3}), 1e-12)
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	xs := []float64{3, 1, 2}
	_ = Median(xs)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}

func TestMinMax(t *testing.T) {
	lo, hi := MinMax([]float64{0.2, -1.5, 3})
	assert.Equal(t, -1.5, lo)
	assert.Equal(t, 3.0, hi)

	lo, hi = MinMax(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(1.7, 0, 1))
	assert.Equal(t, 0.0, Clamp(-0.2, 0, 1))
	assert.Equal(t, 0.3, Clamp(0.3, 0, 1))
	assert.True(t, math.IsNaN(Clamp(math.NaN(), 0, 1)))
}
