package paper

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"survivor-go/internal/execution"
)

// FillRecorder captures paper fills for later inspection.
type FillRecorder interface {
	Record(execution.Fill)
}

type shortPosition struct {
	Qty        int
	AvgPremium decimal.Decimal
}

// Account tracks premium collected, realized PnL and open short option positions in paper mode.
type Account struct {
	mu             sync.Mutex
	maxQtyPerSymbol int
	premium        decimal.Decimal
	realizedPnL    decimal.Decimal
	positions      map[string]shortPosition
}

// PositionSnapshot exposes a read-only view of a single short position.
type PositionSnapshot struct {
	Qty        int
	AvgPremium float64
	Mark       float64
	Unrealized float64
}

// Snapshot is a point-in-time copy of the account, marked with the supplied option prices.
type Snapshot struct {
	PremiumCollected float64
	RealizedPnL      float64
	UnrealizedPnL    float64
	Positions        map[string]PositionSnapshot
}

// NewAccount builds an empty account; maxQtyPerSymbol <= 0 means uncapped.
func NewAccount(maxQtyPerSymbol int) *Account {
	return &Account{
		maxQtyPerSymbol: maxQtyPerSymbol,
		positions:       make(map[string]shortPosition),
	}
}

// MarketFill applies a fill: sells open or add to a short, buys cover it.
func (a *Account) MarketFill(symbol string, side execution.Side, qty int, price float64) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pos := a.positions[symbol]
	px := decimal.NewFromFloat(price)
	q := decimal.NewFromInt(int64(qty))

	switch side {
	case execution.Sell:
		newQty := pos.Qty + qty
		if a.maxQtyPerSymbol > 0 && newQty > a.maxQtyPerSymbol {
			return errors.New("position limit exceeded")
		}
		total := pos.AvgPremium.Mul(decimal.NewFromInt(int64(pos.Qty))).Add(px.Mul(q))
		a.positions[symbol] = shortPosition{Qty: newQty, AvgPremium: total.Div(decimal.NewFromInt(int64(newQty)))}
		a.premium = a.premium.Add(px.Mul(q))

	case execution.Buy:
		if pos.Qty < qty {
			return errors.New("insufficient short position to cover")
		}
		a.realizedPnL = a.realizedPnL.Add(pos.AvgPremium.Sub(px).Mul(q))
		a.premium = a.premium.Sub(px.Mul(q))
		if pos.Qty == qty {
			delete(a.positions, symbol)
		} else {
			a.positions[symbol] = shortPosition{Qty: pos.Qty - qty, AvgPremium: pos.AvgPremium}
		}

	default:
		return errors.New("unknown order side")
	}
	return nil
}

// Snapshot returns balances marked with marks; positions without a mark carry no unrealized PnL.
func (a *Account) Snapshot(marks map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	unrealized := decimal.Zero
	positions := make(map[string]PositionSnapshot, len(a.positions))
	for sym, pos := range a.positions {
		snap := PositionSnapshot{Qty: pos.Qty, AvgPremium: pos.AvgPremium.InexactFloat64()}
		if mark, ok := marks[sym]; ok && mark > 0 {
			u := pos.AvgPremium.Sub(decimal.NewFromFloat(mark)).Mul(decimal.NewFromInt(int64(pos.Qty)))
			snap.Mark = mark
			snap.Unrealized = u.InexactFloat64()
			unrealized = unrealized.Add(u)
		}
		positions[sym] = snap
	}

	return Snapshot{
		PremiumCollected: a.premium.InexactFloat64(),
		RealizedPnL:      a.realizedPnL.InexactFloat64(),
		UnrealizedPnL:    unrealized.InexactFloat64(),
		Positions:        positions,
	}
}

// Position returns the open short quantity for symbol.
func (a *Account) Position(symbol string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Qty
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL.InexactFloat64()
}
