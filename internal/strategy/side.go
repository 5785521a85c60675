package strategy

import (
	"math"

	"survivor-go/internal/instrument"
)

// Side identifies which leg of the straddle-writing grid is being evaluated.
type Side int

const (
	// PutSide sells puts as the underlying rallies above its anchor.
	PutSide Side = iota
	// CallSide sells calls as the underlying falls below its anchor.
	CallSide
)

var sides = [2]Side{PutSide, CallSide}

func (s Side) String() string { return string(s.OptionType()) }

// OptionType maps the side onto the option contract it writes.
func (s Side) OptionType() instrument.OptionType {
	if s == CallSide {
		return instrument.Call
	}
	return instrument.Put
}

// dir is +1 for puts and -1 for calls. Every mirrored formula is written once in terms of it.
func (s Side) dir() float64 {
	if s == CallSide {
		return -1
	}
	return 1
}

// Trigger is the outcome of a breach beyond a side's gap.
type Trigger struct {
	Side       Side
	Diff       float64
	Multiplier int
	PrevAnchor float64
	Anchor     float64
}

// evaluate fires when price has moved more than gap past anchor in the side's direction.
// The returned anchor lands on the gap grid, never on the raw price.
func evaluate(side Side, price, anchor, gap float64) (Trigger, bool) {
	breach := side.dir() * (price - anchor)
	if breach <= 0 {
		return Trigger{}, false
	}
	diff := math.RoundToEven(breach)
	if diff <= gap {
		return Trigger{}, false
	}
	mult := int(math.Floor(diff / gap))
	return Trigger{
		Side:       side,
		Diff:       diff,
		Multiplier: mult,
		PrevAnchor: anchor,
		Anchor:     anchor + side.dir()*gap*float64(mult),
	}, true
}

// resetAnchor snaps an armed side's anchor back toward price once the retrace exceeds resetGap.
func resetAnchor(side Side, price, anchor, resetGap float64, armed bool) (float64, bool) {
	if !armed {
		return anchor, false
	}
	if side.dir()*(anchor-price) <= resetGap {
		return anchor, false
	}
	return price + side.dir()*resetGap, true
}
