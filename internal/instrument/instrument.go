// Package instrument holds the option-series catalog the strategy selects strikes from.
package instrument

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// OptionType distinguishes puts from calls using exchange notation.
type OptionType string

const (
	// Put options (PE).
	Put OptionType = "PE"
	// Call options (CE).
	Call OptionType = "CE"
)

// ErrNoInstruments signals that no tradable instrument matched a series prefix.
var ErrNoInstruments = errors.New("no instruments for series")

// Instrument is an immutable option contract record.
type Instrument struct {
	Symbol     string     `json:"tradingsymbol"`
	Exchange   string     `json:"exchange"`
	Strike     float64    `json:"strike"`
	OptionType OptionType `json:"instrument_type"`
	Segment    string     `json:"segment"`
	LotSize    int        `json:"lot_size"`
}

// QualifiedSymbol prefixes symbol with exchange unless it is already qualified.
func QualifiedSymbol(exchange, symbol string) string {
	if strings.Contains(symbol, ":") || exchange == "" {
		return symbol
	}
	return exchange + ":" + symbol
}

// OptionsSegment names the options segment of an exchange, e.g. NFO -> NFO-OPT.
func OptionsSegment(exchange string) string {
	return strings.ToUpper(strings.TrimSpace(exchange)) + "-OPT"
}

// Catalog is a read-only snapshot of one expiry series.
type Catalog struct {
	prefix      string
	instruments []Instrument
	spacing     float64
}

// NewCatalog keeps the instruments whose symbol starts with prefix, preserving input order.
// Strike spacing is computed here once and cached for the life of the catalog.
func NewCatalog(prefix string, all []Instrument) (*Catalog, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("catalog: empty series prefix")
	}
	kept := make([]Instrument, 0, len(all))
	for _, inst := range all {
		if hasSeriesPrefix(inst.Symbol, prefix) {
			kept = append(kept, inst)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoInstruments, prefix)
	}
	return &Catalog{prefix: prefix, instruments: kept, spacing: strikeSpacing(kept)}, nil
}

func hasSeriesPrefix(symbol, prefix string) bool {
	if idx := strings.LastIndex(symbol, ":"); idx >= 0 {
		symbol = symbol[idx+1:]
	}
	return strings.HasPrefix(symbol, prefix)
}

// strikeSpacing is the smallest gap between adjacent distinct strikes of one option type.
// Zero means the series has fewer than two strikes of every type.
func strikeSpacing(instruments []Instrument) float64 {
	byType := map[OptionType][]float64{}
	for _, inst := range instruments {
		byType[inst.OptionType] = append(byType[inst.OptionType], inst.Strike)
	}
	best := math.Inf(1)
	for _, strikes := range byType {
		sort.Float64s(strikes)
		for i := 1; i < len(strikes); i++ {
			if gap := strikes[i] - strikes[i-1]; gap > 0 && gap < best {
				best = gap
			}
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}

// InSegment narrows the catalog to the options traded in segment, recomputing the strike spacing
// over them alone. It fails with ErrNoInstruments when the series has no options there.
func (c *Catalog) InSegment(segment string) (*Catalog, error) {
	kept := make([]Instrument, 0, len(c.instruments))
	for _, inst := range c.instruments {
		if inst.Segment != segment {
			continue
		}
		if inst.OptionType == Put || inst.OptionType == Call {
			kept = append(kept, inst)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w %q in segment %s", ErrNoInstruments, c.prefix, segment)
	}
	return &Catalog{prefix: c.prefix, instruments: kept, spacing: strikeSpacing(kept)}, nil
}

// Prefix returns the series prefix the catalog was built for.
func (c *Catalog) Prefix() string { return c.prefix }

// Len reports how many instruments belong to the series.
func (c *Catalog) Len() int { return len(c.instruments) }

// StrikeSpacing returns the cached inter-strike spacing.
func (c *Catalog) StrikeSpacing() float64 { return c.spacing }

// LotSize returns the lot size of the first instrument in the catalog; narrow with InSegment first.
func (c *Catalog) LotSize() int {
	return c.instruments[0].LotSize
}

// Options returns, in catalog order, the instruments of optType traded in segment.
func (c *Catalog) Options(optType OptionType, segment string) []Instrument {
	out := make([]Instrument, 0, len(c.instruments)/2+1)
	for _, inst := range c.instruments {
		if inst.OptionType == optType && inst.Segment == segment {
			out = append(out, inst)
		}
	}
	return out
}
