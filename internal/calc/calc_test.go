package calc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPct_ZeroDenominator(t *testing.T) {
	assert.Equal(t, 0.0, Pct(5, 0))
	assert.Equal(t, 0.0, Pct(0, 0))
	assert.False(t, math.IsNaN(Pct(0, 0)))
}

func TestPct(t *testing.T) {
	assert.InDelta(t, 50.0, Pct(1, 2), 1e-9)
	assert.InDelta(t, 83.333333, Pct(10, 12), 1e-4)
}

func TestRatio_ZeroDenominator(t *testing.T) {
	assert.Equal(t, 0.0, Ratio(100, 0))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 83.33, Round2(Pct(10, 12)))
	assert.Equal(t, 33.33, Round2(Pct(2, 6)))
	assert.Equal(t, 0.0, Round2(0))
}
