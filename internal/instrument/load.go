package instrument

import (
	"fmt"
	"math"
	"os"
	"strconv"

	json "github.com/goccy/go-json"
)

// LoadFile reads a JSON array of instrument records (Kite dump field names).
func LoadFile(path string) ([]Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments: %w", err)
	}
	var out []Instrument
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}
	return out, nil
}

// ChainSpec describes a synthetic option chain centred on an index level.
type ChainSpec struct {
	Prefix   string
	Exchange string
	Center   float64
	Spacing  float64
	Strikes  int // per side of the centre
	LotSize  int
}

// GenerateChain builds PE and CE contracts for every strike in the spec, ordered by strike then type.
func GenerateChain(spec ChainSpec) []Instrument {
	if spec.Spacing <= 0 || spec.Strikes <= 0 {
		return nil
	}
	lot := spec.LotSize
	if lot < 1 {
		lot = 1
	}
	atm := math.Round(spec.Center/spec.Spacing) * spec.Spacing
	segment := OptionsSegment(spec.Exchange)

	out := make([]Instrument, 0, (2*spec.Strikes+1)*2)
	for i := -spec.Strikes; i <= spec.Strikes; i++ {
		strike := atm + float64(i)*spec.Spacing
		for _, typ := range []OptionType{Put, Call} {
			out = append(out, Instrument{
				Symbol:     spec.Prefix + strconv.FormatFloat(strike, 'f', -1, 64) + string(typ),
				Exchange:   spec.Exchange,
				Strike:     strike,
				OptionType: typ,
				Segment:    segment,
				LotSize:    lot,
			})
		}
	}
	return out
}
