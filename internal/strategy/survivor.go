package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"survivor-go/internal/exchange"
	"survivor-go/internal/execution"
	"survivor-go/internal/instrument"
	"survivor-go/internal/metrics"
	"survivor-go/internal/risk"
	"survivor-go/internal/signal"
)

var (
	// ErrNoEligibleInstrument is returned when the premium-floor search runs out of offset.
	ErrNoEligibleInstrument = errors.New("no eligible instrument")
	// ErrLotMisaligned rejects base quantities that are not a multiple of the series lot size.
	ErrLotMisaligned = errors.New("quantity not a multiple of lot size")
)

// QuoteProvider fetches live premiums for exchange-qualified symbols.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (exchange.Quote, error)
}

// Submitter places a single order. *execution.Executor satisfies it.
type Submitter interface {
	Submit(ctx context.Context, order execution.Order) (execution.Response, error)
}

// SideReport describes what one side did on a tick.
type SideReport struct {
	Side         Side
	Seeded       bool
	Triggered    bool
	Trigger      Trigger
	RiskRejected bool
	Symbol       string
	Premium      float64
	Quantity     int
	OrderID      string
	Placed       bool
	Reset        bool
	Anchor       float64
	Err          error
}

// Report is the per-tick outcome of both sides.
type Report struct {
	Price   float64
	Skipped bool
	Sides   [2]SideReport
}

// Side returns the report of one side.
func (r Report) Side(s Side) SideReport { return r.Sides[s] }

// Snapshot is a read-only copy of the reference state.
type Snapshot struct {
	PutAnchor  float64 `json:"pe_anchor"`
	CallAnchor float64 `json:"ce_anchor"`
	PutArmed   bool    `json:"pe_armed"`
	CallArmed  bool    `json:"ce_armed"`
}

type referenceState struct {
	anchor [2]float64
	seeded [2]bool
	armed  [2]bool
}

// Survivor writes options against index moves on a fixed gap grid.
// It is not safe for concurrent use; one goroutine owns each instance.
type Survivor struct {
	name        string
	params      Params
	log         zerolog.Logger
	selector    *Selector
	lotSize     int
	limits      risk.Limits
	quotes      QuoteProvider
	orders      Submitter
	callTimeout time.Duration
	state       referenceState
}

// Option configures optional Survivor collaborators.
type Option func(*Survivor)

// WithCallTimeout bounds every quote lookup.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Survivor) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithName labels the instance in logs and metrics.
func WithName(name string) Option {
	return func(s *Survivor) {
		if name != "" {
			s.name = name
		}
	}
}

// NewSurvivor validates params and builds the series catalog from instruments.
func NewSurvivor(params Params, instruments []instrument.Instrument, quotes QuoteProvider, orders Submitter, log zerolog.Logger, opts ...Option) (*Survivor, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("survivor params: %w", err)
	}
	if quotes == nil || orders == nil {
		return nil, errors.New("survivor: quote provider and submitter are required")
	}
	series, err := instrument.NewCatalog(params.SymbolInitials, instruments)
	if err != nil {
		return nil, err
	}
	catalog, err := series.InSegment(instrument.OptionsSegment(params.Exchange))
	if err != nil {
		return nil, err
	}
	lot := catalog.LotSize()
	if lot <= 0 {
		return nil, fmt.Errorf("survivor: series %s has no lot size", params.SymbolInitials)
	}
	for _, side := range sides {
		if q := params.Side(side).Quantity; q%lot != 0 {
			return nil, fmt.Errorf("%w: %s quantity %d, lot %d", ErrLotMisaligned, side, q, lot)
		}
	}

	selector := NewSelector(catalog, params.Exchange)
	for _, side := range sides {
		if selector.Candidates(side) == 0 {
			return nil, fmt.Errorf("%w: no %s options for %s in %s",
				instrument.ErrNoInstruments, side, catalog.Prefix(), instrument.OptionsSegment(params.Exchange))
		}
	}

	s := &Survivor{
		name:     params.SymbolInitials,
		params:   params,
		selector: selector,
		lotSize:  lot,
		limits:   risk.Limits{SellMultiplierThreshold: params.SellMultiplierThreshold},
		quotes:   quotes,
		orders:   orders,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = log.With().Str("instance", s.name).Logger()

	for _, side := range sides {
		if start := params.Side(side).StartPoint; start > 0 {
			s.state.anchor[side] = start
			s.state.seeded[side] = true
		}
	}
	if s.selector.Tolerance() == 0 {
		s.log.Warn().Str("series", catalog.Prefix()).Msg("strike spacing unknown, selecting exact strikes only")
	}
	s.log.Info().
		Int("instruments", catalog.Len()).
		Float64("strike_spacing", catalog.StrikeSpacing()).
		Int("lot_size", lot).
		Float64("pe_anchor", s.state.anchor[PutSide]).
		Float64("ce_anchor", s.state.anchor[CallSide]).
		Msg("survivor ready")
	s.publishAnchors()
	return s, nil
}

// Name returns the instance label.
func (s *Survivor) Name() string { return s.name }

// Snapshot copies the current reference state.
func (s *Survivor) Snapshot() Snapshot {
	return Snapshot{
		PutAnchor:  s.state.anchor[PutSide],
		CallAnchor: s.state.anchor[CallSide],
		PutArmed:   s.state.armed[PutSide],
		CallArmed:  s.state.armed[CallSide],
	}
}

// OnTick runs both sides' trigger pipelines and then the reset pass.
func (s *Survivor) OnTick(ctx context.Context, tick signal.Tick) Report {
	rep := Report{Price: tick.Price}
	if !usablePrice(tick.Price) {
		rep.Skipped = true
		for _, side := range sides {
			rep.Sides[side] = SideReport{Side: side, Anchor: s.state.anchor[side]}
		}
		s.log.Warn().Float64("price", tick.Price).Str("sym", tick.Symbol).Msg("ignoring tick without a usable price")
		return rep
	}
	for _, side := range sides {
		rep.Sides[side] = s.handleSide(ctx, side, tick.Price)
	}
	if !rep.Sides[PutSide].Triggered && !rep.Sides[CallSide].Triggered {
		s.logStable(tick.Price)
	}
	for _, side := range sides {
		rep.Sides[side].Reset = s.reset(side, tick.Price)
		rep.Sides[side].Anchor = s.state.anchor[side]
	}
	s.publishAnchors()
	return rep
}

func usablePrice(px float64) bool {
	return px > 0 && !math.IsInf(px, 1)
}

func (s *Survivor) handleSide(ctx context.Context, side Side, price float64) SideReport {
	rep := SideReport{Side: side}
	sp := s.params.Side(side)

	if !s.state.seeded[side] {
		s.state.anchor[side] = price
		s.state.seeded[side] = true
		rep.Seeded = true
		s.log.Info().Str("side", side.String()).Float64("anchor", price).Msg("anchor seeded from first tick")
		return rep
	}

	trig, ok := evaluate(side, price, s.state.anchor[side], sp.Gap)
	if !ok {
		return rep
	}
	s.state.anchor[side] = trig.Anchor
	rep.Triggered = true
	rep.Trigger = trig
	metrics.TriggersTotal.WithLabelValues(side.String()).Inc()

	if !s.limits.Allow(trig.Multiplier) {
		rep.RiskRejected = true
		metrics.RiskRejectionsTotal.WithLabelValues(side.String()).Inc()
		s.log.Warn().
			Str("side", side.String()).
			Int("multiplier", trig.Multiplier).
			Int("threshold", s.params.SellMultiplierThreshold).
			Float64("anchor", trig.Anchor).
			Msg("sell multiplier breached threshold")
		return rep
	}

	rep.Quantity = trig.Multiplier * sp.Quantity
	inst, premium, err := s.findEligible(ctx, side, price, sp.SymbolGap)
	if err != nil {
		rep.Err = err
		s.log.Warn().Err(err).Str("side", side.String()).Float64("price", price).Msg("no instrument to sell")
		return rep
	}
	rep.Symbol = inst.Symbol
	rep.Premium = premium

	s.log.Info().
		Str("side", side.String()).
		Str("sym", inst.Symbol).
		Int("qty", rep.Quantity).
		Int("multiplier", trig.Multiplier).
		Float64("premium", premium).
		Msg("execute sell")
	resp, err := s.orders.Submit(ctx, execution.Order{
		Symbol:   inst.Symbol,
		Exchange: s.params.Exchange,
		Side:     execution.Sell,
		Type:     execution.Market,
		Product:  execution.ProductMargin,
		Qty:      rep.Quantity,
		Tag:      s.params.Tag,
	})
	rep.OrderID = resp.OrderID
	if err == nil && !resp.OK() {
		err = fmt.Errorf("%w: %s id=%q", execution.ErrOrderRejected, inst.Symbol, resp.OrderID)
	}
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.Placed = true
	s.state.armed[side] = true
	return rep
}

// findEligible walks the offset toward the money by one lot until a premium clears the floor.
func (s *Survivor) findEligible(ctx context.Context, side Side, price, symbolGap float64) (instrument.Instrument, float64, error) {
	for offset := symbolGap; offset >= 0; offset -= float64(s.lotSize) {
		inst, err := s.selector.Select(side, price, offset)
		if err != nil {
			return instrument.Instrument{}, 0, err
		}
		key := instrument.QualifiedSymbol(s.params.Exchange, inst.Symbol)
		quote, err := s.quote(ctx, key)
		if err != nil {
			return instrument.Instrument{}, 0, fmt.Errorf("quote %s: %w", key, err)
		}
		if quote.LastPrice >= s.params.MinPriceToSell {
			return inst, quote.LastPrice, nil
		}
		s.log.Info().
			Str("sym", inst.Symbol).
			Float64("premium", quote.LastPrice).
			Float64("min_price_to_sell", s.params.MinPriceToSell).
			Msg("premium below floor, moving closer")
	}
	return instrument.Instrument{}, 0, fmt.Errorf("%w: %s from offset %.0f", ErrNoEligibleInstrument, side, symbolGap)
}

func (s *Survivor) quote(ctx context.Context, symbol string) (exchange.Quote, error) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	return s.quotes.Quote(ctx, symbol)
}

func (s *Survivor) reset(side Side, price float64) bool {
	if !s.state.seeded[side] {
		return false
	}
	prev := s.state.anchor[side]
	next, ok := resetAnchor(side, price, prev, s.params.Side(side).ResetGap, s.state.armed[side])
	if !ok {
		return false
	}
	s.state.anchor[side] = next
	metrics.ResetsTotal.WithLabelValues(side.String()).Inc()
	s.log.Info().Str("side", side.String()).Float64("from", prev).Float64("to", next).Msg("resetting anchor")
	return true
}

func (s *Survivor) logStable(price float64) {
	s.log.Debug().
		Float64("pe_anchor", s.state.anchor[PutSide]).
		Float64("ce_anchor", s.state.anchor[CallSide]).
		Float64("price", price).
		Float64("pe_gap", s.params.Put.Gap).
		Float64("ce_gap", s.params.Call.Gap).
		Msg("market under control")
}

func (s *Survivor) publishAnchors() {
	for _, side := range sides {
		metrics.Anchor.WithLabelValues(s.name, side.String()).Set(s.state.anchor[side])
	}
}
