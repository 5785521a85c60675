package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"survivor-go/internal/execution"
	"survivor-go/internal/instrument"
	"survivor-go/internal/paper"
	"survivor-go/internal/signal"
)

// PaperPricing models option premiums from the last observed underlying price.
// premium = intrinsic + TimeValue * exp(-|strike-underlying| / Decay)
type PaperPricing struct {
	TimeValue float64
	Decay     float64
}

func (p PaperPricing) premium(inst instrument.Instrument, underlying float64) float64 {
	intrinsic := 0.0
	switch inst.OptionType {
	case instrument.Put:
		intrinsic = math.Max(inst.Strike-underlying, 0)
	case instrument.Call:
		intrinsic = math.Max(underlying-inst.Strike, 0)
	}
	decay := p.Decay
	if decay <= 0 {
		decay = 1
	}
	extrinsic := p.TimeValue * math.Exp(-math.Abs(inst.Strike-underlying)/decay)
	return math.Round((intrinsic+extrinsic)*20) / 20
}

// PaperBroker fills market orders locally at the current modeled premium.
type PaperBroker struct {
	log         zerolog.Logger
	account     *paper.Account
	recorder    paper.FillRecorder
	pricing     PaperPricing
	instruments []instrument.Instrument
	bySymbol    map[string]instrument.Instrument
	now         func() time.Time

	mu         sync.RWMutex
	quotes     map[string]float64
	underlying float64
}

// PaperOption configures a PaperBroker.
type PaperOption func(*PaperBroker)

// WithPricing overrides the premium model.
func WithPricing(p PaperPricing) PaperOption {
	return func(b *PaperBroker) { b.pricing = p }
}

// WithRecorder forwards every fill to r.
func WithRecorder(r paper.FillRecorder) PaperOption {
	return func(b *PaperBroker) { b.recorder = r }
}

// WithClock replaces time.Now for fill timestamps.
func WithClock(now func() time.Time) PaperOption {
	return func(b *PaperBroker) {
		if now != nil {
			b.now = now
		}
	}
}

// NewPaperBroker serves the given instruments and books fills into account.
func NewPaperBroker(log zerolog.Logger, instruments []instrument.Instrument, account *paper.Account, opts ...PaperOption) *PaperBroker {
	if account == nil {
		account = paper.NewAccount(0)
	}
	b := &PaperBroker{
		log:         log,
		account:     account,
		pricing:     PaperPricing{TimeValue: 120, Decay: 150},
		instruments: append([]instrument.Instrument(nil), instruments...),
		bySymbol:    make(map[string]instrument.Instrument, len(instruments)),
		now:         time.Now,
		quotes:      make(map[string]float64),
	}
	for _, inst := range instruments {
		b.bySymbol[inst.Symbol] = inst
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements Broker.
func (b *PaperBroker) Name() string { return BrokerPaper }

// Account exposes the short-premium book.
func (b *PaperBroker) Account() *paper.Account { return b.account }

// SetQuote pins the premium of symbol, overriding the model.
func (b *PaperBroker) SetQuote(symbol string, price float64) {
	b.mu.Lock()
	b.quotes[bareSymbol(symbol)] = price
	b.mu.Unlock()
}

// Observe records the latest underlying price used by the premium model.
func (b *PaperBroker) Observe(tick signal.Tick) {
	b.mu.Lock()
	b.underlying = tick.Price
	b.mu.Unlock()
}

// Quote implements Broker.
func (b *PaperBroker) Quote(ctx context.Context, symbol string) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}
	sym := bareSymbol(symbol)
	b.mu.RLock()
	pinned, ok := b.quotes[sym]
	underlying := b.underlying
	b.mu.RUnlock()
	if ok {
		return Quote{LastPrice: pinned}, nil
	}
	inst, known := b.bySymbol[sym]
	if !known || underlying <= 0 {
		return Quote{}, fmt.Errorf("%w for %s", ErrNoQuote, symbol)
	}
	return Quote{LastPrice: b.pricing.premium(inst, underlying)}, nil
}

// Instruments implements Broker.
func (b *PaperBroker) Instruments(ctx context.Context) ([]instrument.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]instrument.Instrument(nil), b.instruments...), nil
}

// PlaceOrder fills at the current quote. Fills the account refuses come back as an error response.
func (b *PaperBroker) PlaceOrder(ctx context.Context, order execution.Order) (execution.Response, error) {
	quote, err := b.Quote(ctx, order.Symbol)
	if err != nil {
		if errors.Is(err, ErrNoQuote) {
			return execution.Response{OrderID: execution.InvalidOrderID, Status: execution.StatusError}, nil
		}
		return execution.Response{}, err
	}
	if err := b.account.MarketFill(order.Symbol, order.Side, order.Qty, quote.LastPrice); err != nil {
		b.log.Warn().Err(err).Str("sym", order.Symbol).Int("qty", order.Qty).Msg("paper fill refused")
		return execution.Response{OrderID: execution.InvalidOrderID, Status: execution.StatusError}, nil
	}
	fill := execution.Fill{
		OrderID:  uuid.NewString(),
		ClientID: order.ClientID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Qty:      order.Qty,
		Price:    quote.LastPrice,
		Tag:      order.Tag,
		Ts:       b.now(),
	}
	if b.recorder != nil {
		b.recorder.Record(fill)
	}
	b.log.Debug().Str("sym", fill.Symbol).Float64("px", fill.Price).Int("qty", fill.Qty).Msg("paper fill")
	return execution.Response{OrderID: fill.OrderID, Status: "complete"}, nil
}
