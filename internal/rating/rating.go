// Package rating holds the pure rating computations applied to the outcome of
// a single comparison: the ELO update that orders photos, and the Glicko-2
// uncertainty tracked alongside it.
package rating

import (
	"math"

	glicko "github.com/zelenin/go-glicko2"
)

// Defaults used when the configuration does not override them.
const (
	DefaultInitialRating = 1200.0
	DefaultKFactor       = 32.0
)

// Elo updates ratings after one outcome, K controls the volatility.
type Elo struct {
	K float64
}

// Expected returns the probability of a photo rated ra beating one rated rb.
func Expected(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

// Update returns the new ratings of the winner and the loser.
// Both are rounded to two decimals so a stored rating is exactly what a replay
// of the same outcomes computes.
func (e Elo) Update(winner, loser float64) (newWinner, newLoser float64) {
	delta := e.K * (1 - Expected(winner, loser))

	return Round(winner + delta), Round(loser - delta)
}

// Round rounds r to two decimals.
func Round(r float64) float64 {
	return math.Round(r*100) / 100
}

// Uncertainty is the Glicko-2 confidence attached to a rating.
type Uncertainty struct {
	Deviation  float64
	Volatility float64
}

// InitialUncertainty is the uncertainty of a photo that was never compared.
func InitialUncertainty() Uncertainty {
	return Uncertainty{
		Deviation:  glicko.RATING_BASE_RD,
		Volatility: glicko.RATING_BASE_SIGMA,
	}
}

// UpdateUncertainty runs a single-match Glicko-2 rating period between the
// winner and the loser and returns their new uncertainties. The ratings
// given are the ones before the ELO update.
func UpdateUncertainty(
	winnerRating float64, winner Uncertainty,
	loserRating float64, loser Uncertainty,
) (Uncertainty, Uncertainty) {
	p1 := glicko.NewPlayer(glicko.NewRating(winnerRating, winner.Deviation, winner.Volatility))
	p2 := glicko.NewPlayer(glicko.NewRating(loserRating, loser.Deviation, loser.Volatility))

	period := glicko.NewRatingPeriod()
	period.AddPlayer(p1)
	period.AddPlayer(p2)
	period.AddMatch(p1, p2, glicko.MATCH_RESULT_WIN)
	period.Calculate()

	return uncertaintyOf(p1), uncertaintyOf(p2)
}

func uncertaintyOf(p *glicko.Player) Uncertainty {
	r := p.Rating()

	return Uncertainty{
		Deviation:  r.Rd(),
		Volatility: r.Sigma(),
	}
}
