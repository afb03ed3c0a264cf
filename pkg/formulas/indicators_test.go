package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSI_RequiresHistory(t *testing.T) {
	assert.Nil(t, RSI([]float64{100, 101, 102}, 14))
}

func TestRSI_UptrendReadsHigh(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	rsi := RSI(closes, 14)
	require.NotNil(t, rsi)
	assert.Greater(t, *rsi, 70.0, "a straight uptrend should read overbought")
	assert.LessOrEqual(t, *rsi, 100.0)
}

func TestRSI_DowntrendReadsLow(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 130 - float64(i)
	}

	rsi := RSI(closes, 14)
	require.NotNil(t, rsi)
	assert.Less(t, *rsi, 30.0)
	assert.GreaterOrEqual(t, *rsi, 0.0)
}

func TestMomentum(t *testing.T) {
	closes := []float64{100, 102, 104, 110}

	m := Momentum(closes, 3)
	require.NotNil(t, m)
	assert.InDelta(t, 0.10, *m, 1e-12)

	assert.Nil(t, Momentum(closes, 4), "window longer than history")
}
