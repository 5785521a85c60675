package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// SideParams holds the knobs that exist once per side.
type SideParams struct {
	Gap        float64 // index move past the anchor required to trigger
	SymbolGap  float64 // initial distance from index to the strike sold
	ResetGap   float64 // retrace required to re-anchor an armed side
	Quantity   int     // base quantity per multiplier unit, lot-aligned
	StartPoint float64 // 0 seeds the anchor from the first tick
}

// Params is the immutable configuration of one Survivor instance.
type Params struct {
	SymbolInitials          string
	IndexSymbol             string
	Exchange                string
	Tag                     string
	Put                     SideParams
	Call                    SideParams
	MinPriceToSell          float64
	SellMultiplierThreshold int
}

// Side returns the per-side knobs.
func (p Params) Side(s Side) SideParams {
	if s == CallSide {
		return p.Call
	}
	return p.Put
}

// Validate reports every missing or out-of-range parameter.
func (p Params) Validate() error {
	var errs []error
	if strings.TrimSpace(p.SymbolInitials) == "" {
		errs = append(errs, errors.New("symbol_initials is required"))
	}
	if strings.TrimSpace(p.Exchange) == "" {
		errs = append(errs, errors.New("exchange is required"))
	}
	if strings.TrimSpace(p.Tag) == "" {
		errs = append(errs, errors.New("tag is required"))
	}
	if p.MinPriceToSell < 0 {
		errs = append(errs, errors.New("min_price_to_sell must be >= 0"))
	}
	if p.SellMultiplierThreshold < 1 {
		errs = append(errs, errors.New("sell_multiplier_threshold must be >= 1"))
	}
	for _, s := range sides {
		sp := p.Side(s)
		prefix := strings.ToLower(s.String())
		if sp.Gap <= 0 {
			errs = append(errs, fmt.Errorf("%s_gap must be > 0", prefix))
		}
		if sp.SymbolGap < 0 {
			errs = append(errs, fmt.Errorf("%s_symbol_gap must be >= 0", prefix))
		}
		if sp.ResetGap < 0 {
			errs = append(errs, fmt.Errorf("%s_reset_gap must be >= 0", prefix))
		}
		if sp.Quantity <= 0 {
			errs = append(errs, fmt.Errorf("%s_quantity must be > 0", prefix))
		}
		if sp.StartPoint < 0 {
			errs = append(errs, fmt.Errorf("%s_start_point must be >= 0", prefix))
		}
	}
	return errors.Join(errs...)
}
