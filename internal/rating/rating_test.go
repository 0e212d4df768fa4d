package rating_test

import (
	"facerank/internal/rating"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpected(t *testing.T) {
	assert.InDelta(t, 0.5, rating.Expected(1200, 1200), 1e-12)
	assert.InDelta(t, 1/(1+0.1), rating.Expected(1400, 1000), 1e-12)
	assert.InDelta(t, 1/(1+10.0), rating.Expected(1000, 1400), 1e-12)

	// Expectations of both sides always sum to one.
	for _, v := range [][2]float64{{1200, 1200}, {1532.25, 987.5}, {800, 2100}} {
		assert.InDelta(t, 1, rating.Expected(v[0], v[1])+rating.Expected(v[1], v[0]), 1e-12)
	}
}

func TestEloUpdate(t *testing.T) {
	cases := []struct {
		name                string
		k                   float64
		winner, loser       float64
		newWinner, newLoser float64
	}{
		{"even", 32, 1200, 1200, 1216, 1184},
		{"favorite wins", 32, 1400, 1000, 1402.91, 997.09},
		{"upset", 32, 1000, 1400, 1029.09, 1370.91},
		{"small K", 16, 1200, 1200, 1208, 1192},
		{"large gap", 32, 2000, 1000, 2000.1, 999.9},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			w, l := rating.Elo{K: c.k}.Update(c.winner, c.loser)
			assert.Equal(t, c.newWinner, w)
			assert.Equal(t, c.newLoser, l)
		})
	}
}

func TestEloUpdateBounds(t *testing.T) {
	elo := rating.Elo{K: 32}

	w, l := elo.Update(1400, 1000)
	assert.Greater(t, w-1400, 0.0)
	assert.Less(t, w-1400, 16.0)

	// The favorite losing pays more than an even match would.
	w, l = elo.Update(1000, 1400)
	assert.Greater(t, 1400-l, 16.0)
	assert.InDelta(t, w-1000, 1400-l, 1e-9)
}

func TestEloUpdateIsZeroSum(t *testing.T) {
	elo := rating.Elo{K: 32}
	ratings := []float64{900, 1000, 1184.37, 1200, 1216, 1750.5}

	for _, a := range ratings {
		for _, b := range ratings {
			w, l := elo.Update(a, b)
			assert.InDelta(t, a+b, w+l, 0.011, "%v vs %v", a, b)
		}
	}
}

func TestUpdateUncertainty(t *testing.T) {
	init := rating.InitialUncertainty()
	w, l := rating.UpdateUncertainty(1200, init, 1200, init)

	require.Less(t, w.Deviation, init.Deviation)
	require.Less(t, l.Deviation, init.Deviation)
	assert.Greater(t, w.Volatility, 0.0)
	assert.Greater(t, l.Volatility, 0.0)

	// Deterministic: a replay must be able to reproduce stored values.
	w2, l2 := rating.UpdateUncertainty(1200, init, 1200, init)
	assert.Equal(t, w, w2)
	assert.Equal(t, l, l2)
}
