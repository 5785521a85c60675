package strategy

import (
	"errors"
	"fmt"
	"math"

	"survivor-go/internal/instrument"
)

// ErrNoStrike is returned when no listed strike lies within tolerance of the target.
var ErrNoStrike = errors.New("no strike within tolerance")

// Selector maps a target strike onto a listed option of the series.
type Selector struct {
	tolerance  float64
	candidates [2][]instrument.Instrument
}

// NewSelector precomputes per-side candidates from catalog, restricted to exchange's options segment.
func NewSelector(catalog *instrument.Catalog, exchange string) *Selector {
	segment := instrument.OptionsSegment(exchange)
	s := &Selector{tolerance: catalog.StrikeSpacing() / 2}
	for _, side := range sides {
		s.candidates[side] = catalog.Options(side.OptionType(), segment)
	}
	return s
}

// Tolerance is half the series strike spacing.
func (s *Selector) Tolerance() float64 { return s.tolerance }

// Candidates reports how many instruments a side can choose from.
func (s *Selector) Candidates(side Side) int { return len(s.candidates[side]) }

// Select returns the instrument nearest to price - dir*offset.
// Ties keep the first candidate in catalog order.
func (s *Selector) Select(side Side, price, offset float64) (instrument.Instrument, error) {
	target := price - side.dir()*offset
	var (
		best     instrument.Instrument
		bestDist = math.Inf(1)
		found    bool
	)
	for _, inst := range s.candidates[side] {
		dist := math.Abs(inst.Strike - target)
		if dist > s.tolerance {
			continue
		}
		if dist < bestDist {
			best, bestDist, found = inst, dist, true
		}
	}
	if !found {
		return instrument.Instrument{}, fmt.Errorf("%w: %s target %.2f (tolerance %.2f)", ErrNoStrike, side, target, s.tolerance)
	}
	return best, nil
}
