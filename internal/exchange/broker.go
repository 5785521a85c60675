package exchange

import (
	"context"
	"errors"
	"strings"

	"survivor-go/internal/execution"
	"survivor-go/internal/instrument"
)

const (
	// BrokerPaper fills orders locally against modeled premiums.
	BrokerPaper = "paper"
	// BrokerBridge talks to a broker HTTP bridge (quotes, instruments, orders).
	BrokerBridge = "bridge"
)

// ErrNoQuote is returned when a venue has no usable last price for a symbol.
var ErrNoQuote = errors.New("no quote")

// Quote is the subset of a market quote the engine consumes.
type Quote struct {
	LastPrice float64 `json:"last_price"`
}

// Broker is the venue surface the engine runs against.
type Broker interface {
	Name() string
	Quote(ctx context.Context, symbol string) (Quote, error)
	Instruments(ctx context.Context) ([]instrument.Instrument, error)
	PlaceOrder(ctx context.Context, order execution.Order) (execution.Response, error)
}

// bareSymbol strips an "EXCH:" qualifier.
func bareSymbol(symbol string) string {
	if idx := strings.LastIndex(symbol, ":"); idx >= 0 {
		return symbol[idx+1:]
	}
	return symbol
}
