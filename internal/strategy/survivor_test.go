package strategy

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"survivor-go/internal/exchange"
	"survivor-go/internal/execution"
	"survivor-go/internal/instrument"
	"survivor-go/internal/signal"
)

type fakeQuotes struct {
	prices map[string]float64
	err    error
	asked  []string
}

func (f *fakeQuotes) Quote(_ context.Context, symbol string) (exchange.Quote, error) {
	f.asked = append(f.asked, symbol)
	if f.err != nil {
		return exchange.Quote{}, f.err
	}
	px, ok := f.prices[symbol]
	if !ok {
		return exchange.Quote{}, exchange.ErrNoQuote
	}
	return exchange.Quote{LastPrice: px}, nil
}

type fakeOrders struct {
	orders []execution.Order
	resp   execution.Response
	err    error
}

func (f *fakeOrders) Submit(_ context.Context, order execution.Order) (execution.Response, error) {
	f.orders = append(f.orders, order)
	if f.err != nil {
		return execution.Response{}, f.err
	}
	if f.resp.OrderID == "" {
		return execution.Response{OrderID: "250807000001", Status: "complete"}, nil
	}
	return f.resp, nil
}

func testChain() []instrument.Instrument {
	return instrument.GenerateChain(instrument.ChainSpec{
		Prefix: "NIFTY25807", Exchange: "NFO", Center: 24500, Spacing: 50, Strikes: 12, LotSize: 75,
	})
}

func testParams() Params {
	return Params{
		SymbolInitials:          "NIFTY25807",
		IndexSymbol:             "NSE:NIFTY 50",
		Exchange:                "NFO",
		Tag:                     "Survivor",
		Put:                     SideParams{Gap: 25, SymbolGap: 200, ResetGap: 50, Quantity: 75},
		Call:                    SideParams{Gap: 25, SymbolGap: 200, ResetGap: 50, Quantity: 75},
		MinPriceToSell:          5,
		SellMultiplierThreshold: 3,
	}
}

func newTestSurvivor(t *testing.T, params Params, quotes *fakeQuotes, orders *fakeOrders) *Survivor {
	t.Helper()
	s, err := NewSurvivor(params, testChain(), quotes, orders, zerolog.Nop(), WithCallTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewSurvivor: %v", err)
	}
	return s
}

func feed(s *Survivor, prices ...float64) []Report {
	out := make([]Report, 0, len(prices))
	for _, px := range prices {
		out = append(out, s.OnTick(context.Background(), signal.Tick{Symbol: "NSE:NIFTY 50", Price: px}))
	}
	return out
}

func TestSurvivorEndToEndPutTrigger(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{"NFO:NIFTY2580724350PE": 20}}
	orders := &fakeOrders{}
	s := newTestSurvivor(t, testParams(), quotes, orders)

	reports := feed(s, 24500, 24520, 24561)

	if !reports[0].Side(PutSide).Seeded || !reports[0].Side(CallSide).Seeded {
		t.Fatalf("first tick should seed both anchors")
	}
	if reports[1].Side(PutSide).Triggered || reports[1].Side(CallSide).Triggered {
		t.Fatalf("diff 20 must not trigger")
	}
	put := reports[2].Side(PutSide)
	if !put.Triggered || put.Trigger.Multiplier != 2 {
		t.Fatalf("expected multiplier 2 put trigger, got %+v", put)
	}
	if put.Quantity != 150 || !put.Placed {
		t.Fatalf("expected 150 placed, got %+v", put)
	}
	if reports[2].Side(CallSide).Triggered {
		t.Fatalf("call must stay stable on a rally")
	}

	snap := s.Snapshot()
	if snap.PutAnchor != 24550 || !snap.PutArmed {
		t.Fatalf("unexpected state %+v", snap)
	}
	if snap.CallAnchor != 24500 || snap.CallArmed {
		t.Fatalf("call state should be untouched: %+v", snap)
	}

	if len(orders.orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders.orders))
	}
	got := orders.orders[0]
	want := execution.Order{
		Symbol: "NIFTY2580724350PE", Exchange: "NFO", Side: execution.Sell, Type: execution.Market,
		Product: execution.ProductMargin, Qty: 150, Tag: "Survivor",
	}
	if got != want {
		t.Fatalf("unexpected order\n got %+v\nwant %+v", got, want)
	}
	if len(quotes.asked) != 1 || quotes.asked[0] != "NFO:NIFTY2580724350PE" {
		t.Fatalf("expected exchange-qualified quote lookup, got %v", quotes.asked)
	}
}

func TestSurvivorCallTriggerSellsAboveMarket(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{"NFO:NIFTY2580724650CE": 11}}
	orders := &fakeOrders{}
	s := newTestSurvivor(t, testParams(), quotes, orders)

	reports := feed(s, 24500, 24460)
	call := reports[1].Side(CallSide)
	if !call.Triggered || call.Trigger.Multiplier != 1 || call.Symbol != "NIFTY2580724650CE" {
		t.Fatalf("unexpected call report %+v", call)
	}
	if s.Snapshot().CallAnchor != 24475 || !s.Snapshot().CallArmed {
		t.Fatalf("unexpected call state %+v", s.Snapshot())
	}
}

func TestSurvivorRiskBoundary(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{
		"NFO:NIFTY2580724400PE": 15,
		"NFO:NIFTY2580724600PE": 15,
	}}
	orders := &fakeOrders{}
	s := newTestSurvivor(t, testParams(), quotes, orders)

	// diff 76 -> multiplier 3 == threshold: accepted
	reports := feed(s, 24500, 24576)
	put := reports[1].Side(PutSide)
	if put.RiskRejected || !put.Placed || put.Quantity != 225 {
		t.Fatalf("multiplier at threshold should trade, got %+v", put)
	}
	if s.Snapshot().PutAnchor != 24575 {
		t.Fatalf("expected anchor 24575, got %.2f", s.Snapshot().PutAnchor)
	}

	// diff 100 -> multiplier 4 > threshold: rejected, anchor still advanced
	reports = feed(s, 24675)
	put = reports[0].Side(PutSide)
	if !put.RiskRejected || put.Placed {
		t.Fatalf("multiplier above threshold should be rejected, got %+v", put)
	}
	if s.Snapshot().PutAnchor != 24675 {
		t.Fatalf("rejected trigger must keep the advanced anchor, got %.2f", s.Snapshot().PutAnchor)
	}
	if len(orders.orders) != 1 {
		t.Fatalf("expected only the accepted order, got %d", len(orders.orders))
	}

	// the grid advance restores stability on the next tick
	reports = feed(s, 24680)
	if reports[0].Side(PutSide).Triggered {
		t.Fatalf("expected stability after rejected trigger")
	}
}

func TestSurvivorQuoteFailureKeepsAnchorAndDisarmed(t *testing.T) {
	quotes := &fakeQuotes{err: errors.New("bridge timeout")}
	orders := &fakeOrders{}
	s := newTestSurvivor(t, testParams(), quotes, orders)

	reports := feed(s, 24500, 24520, 24561)
	put := reports[2].Side(PutSide)
	if !put.Triggered || put.Placed || put.Err == nil {
		t.Fatalf("expected failed trigger, got %+v", put)
	}
	if !strings.Contains(put.Err.Error(), "bridge timeout") {
		t.Fatalf("expected quote error to surface, got %v", put.Err)
	}
	if len(orders.orders) != 0 {
		t.Fatalf("no order may be produced when the quote fails")
	}
	snap := s.Snapshot()
	if snap.PutAnchor != 24550 || snap.PutArmed {
		t.Fatalf("anchor must advance while armed stays false: %+v", snap)
	}
}

func TestSurvivorPremiumFloorMovesCloser(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{
		"NFO:NIFTY2580724350PE": 3,
		"NFO:NIFTY2580724450PE": 8,
	}}
	orders := &fakeOrders{}
	s := newTestSurvivor(t, testParams(), quotes, orders)

	reports := feed(s, 24500, 24561)
	put := reports[1].Side(PutSide)
	if !put.Placed || put.Symbol != "NIFTY2580724450PE" || put.Premium != 8 {
		t.Fatalf("expected closer strike after premium floor, got %+v", put)
	}
	want := []string{"NFO:NIFTY2580724350PE", "NFO:NIFTY2580724450PE"}
	if len(quotes.asked) != 2 || quotes.asked[0] != want[0] || quotes.asked[1] != want[1] {
		t.Fatalf("unexpected quote sequence %v", quotes.asked)
	}
}

func TestSurvivorPremiumFloorExhausted(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{
		"NFO:NIFTY2580724350PE": 1,
		"NFO:NIFTY2580724450PE": 1,
		"NFO:NIFTY2580724500PE": 1,
	}}
	orders := &fakeOrders{}
	s := newTestSurvivor(t, testParams(), quotes, orders)

	reports := feed(s, 24500, 24561)
	put := reports[1].Side(PutSide)
	if !errors.Is(put.Err, ErrNoEligibleInstrument) {
		t.Fatalf("expected ErrNoEligibleInstrument, got %v", put.Err)
	}
	// offsets 200, 125, 50 then negative
	if len(quotes.asked) != 3 {
		t.Fatalf("expected three lookups, got %v", quotes.asked)
	}
	if s.Snapshot().PutArmed {
		t.Fatalf("side must stay disarmed")
	}
}

func TestSurvivorOrderFailureWithholdsArm(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{"NFO:NIFTY2580724350PE": 20}}

	for name, orders := range map[string]*fakeOrders{
		"error":      {err: execution.ErrOrderRejected},
		"invalid id": {resp: execution.Response{OrderID: execution.InvalidOrderID, Status: "ok"}},
		"status err": {resp: execution.Response{OrderID: "1", Status: execution.StatusError}},
	} {
		t.Run(name, func(t *testing.T) {
			s := newTestSurvivor(t, testParams(), quotes, orders)
			reports := feed(s, 24500, 24561)
			put := reports[1].Side(PutSide)
			if put.Placed || !errors.Is(put.Err, execution.ErrOrderRejected) {
				t.Fatalf("expected rejected order, got %+v", put)
			}
			if s.Snapshot().PutArmed {
				t.Fatalf("failed placement must not arm the side")
			}
		})
	}
}

func TestSurvivorResetAfterRetrace(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{"NFO:NIFTY2580724350PE": 20}}
	orders := &fakeOrders{}
	s := newTestSurvivor(t, testParams(), quotes, orders)

	feed(s, 24500, 24561)
	if s.Snapshot().PutAnchor != 24550 {
		t.Fatalf("setup: expected anchor 24550, got %.2f", s.Snapshot().PutAnchor)
	}
	reports := feed(s, 24480)
	put := reports[0].Side(PutSide)
	if !put.Reset || put.Anchor != 24530 {
		t.Fatalf("expected reset to 24530, got %+v", put)
	}
	if !s.Snapshot().PutArmed {
		t.Fatalf("armed flag stays set after a reset")
	}
	if reports[0].Side(CallSide).Triggered {
		t.Fatalf("diff 20 on the call side must not trigger")
	}
}

func TestSurvivorUnarmedSideNeverResets(t *testing.T) {
	s := newTestSurvivor(t, testParams(), &fakeQuotes{}, &fakeOrders{})
	reports := feed(s, 24500, 24400)
	if reports[1].Side(PutSide).Reset {
		t.Fatalf("unarmed put must not reset")
	}
	if s.Snapshot().PutAnchor != 24500 {
		t.Fatalf("put anchor moved: %.2f", s.Snapshot().PutAnchor)
	}
}

func TestSurvivorStartPoints(t *testing.T) {
	params := testParams()
	params.Put.StartPoint = 24400
	params.SellMultiplierThreshold = 5
	quotes := &fakeQuotes{prices: map[string]float64{"NFO:NIFTY2580724300PE": 25}}
	orders := &fakeOrders{}
	s := newTestSurvivor(t, params, quotes, orders)

	if s.Snapshot().PutAnchor != 24400 {
		t.Fatalf("expected configured start point")
	}
	reports := feed(s, 24500)
	put := reports[0].Side(PutSide)
	if put.Seeded || !put.Triggered || put.Trigger.Multiplier != 4 || put.Quantity != 300 {
		t.Fatalf("expected multiplier 4 trigger from start point, got %+v", put)
	}
	if !reports[0].Side(CallSide).Seeded {
		t.Fatalf("call side without start point should seed from the tick")
	}
}

func TestSurvivorIgnoresUnusablePrices(t *testing.T) {
	orders := &fakeOrders{}
	s := newTestSurvivor(t, testParams(), &fakeQuotes{}, orders)

	reports := feed(s, 0, -1, 24500)
	for i, rep := range reports[:2] {
		if !rep.Skipped || rep.Side(PutSide).Seeded || rep.Side(CallSide).Seeded {
			t.Fatalf("tick %d should be skipped without seeding, got %+v", i, rep)
		}
	}
	if !reports[2].Side(PutSide).Seeded || s.Snapshot().CallAnchor != 24500 {
		t.Fatalf("first usable tick should seed both sides, got %+v", s.Snapshot())
	}

	before := s.Snapshot()
	reports = feed(s, 0, math.NaN(), math.Inf(1), 24490)
	for _, rep := range reports[:3] {
		if !rep.Skipped || rep.Side(CallSide).Triggered || rep.Side(CallSide).Anchor != before.CallAnchor {
			t.Fatalf("unusable tick touched the call side: %+v", rep)
		}
	}
	if got := s.Snapshot(); got != before {
		t.Fatalf("reference state changed from %+v to %+v", before, got)
	}
	if reports[3].Skipped || reports[3].Side(CallSide).Triggered {
		t.Fatalf("24490 is inside the call gap, got %+v", reports[3])
	}
	if len(orders.orders) != 0 {
		t.Fatalf("no orders expected, got %+v", orders.orders)
	}
}

func TestNewSurvivorValidation(t *testing.T) {
	quotes, orders := &fakeQuotes{}, &fakeOrders{}

	params := testParams()
	params.Put.Quantity = 100
	if _, err := NewSurvivor(params, testChain(), quotes, orders, zerolog.Nop()); !errors.Is(err, ErrLotMisaligned) {
		t.Fatalf("expected ErrLotMisaligned, got %v", err)
	}

	params = testParams()
	params.SymbolInitials = "BANKNIFTY25807"
	if _, err := NewSurvivor(params, testChain(), quotes, orders, zerolog.Nop()); !errors.Is(err, instrument.ErrNoInstruments) {
		t.Fatalf("expected ErrNoInstruments, got %v", err)
	}

	params = testParams()
	params.Exchange = "NSE"
	if _, err := NewSurvivor(params, testChain(), quotes, orders, zerolog.Nop()); !errors.Is(err, instrument.ErrNoInstruments) {
		t.Fatalf("expected ErrNoInstruments for a segment without options, got %v", err)
	}

	putsOnly := make([]instrument.Instrument, 0, len(testChain()))
	for _, inst := range testChain() {
		if inst.OptionType == instrument.Put {
			putsOnly = append(putsOnly, inst)
		}
	}
	if _, err := NewSurvivor(testParams(), putsOnly, quotes, orders, zerolog.Nop()); !errors.Is(err, instrument.ErrNoInstruments) {
		t.Fatalf("expected ErrNoInstruments without call options, got %v", err)
	}

	params = testParams()
	params.Call.Gap = 0
	params.Exchange = ""
	_, err := NewSurvivor(params, testChain(), quotes, orders, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "ce_gap") || !strings.Contains(err.Error(), "exchange") {
		t.Fatalf("expected joined validation errors, got %v", err)
	}

	if _, err := NewSurvivor(testParams(), testChain(), nil, orders, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without quote provider")
	}
}

func TestSurvivorLogsInstanceName(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	quotes := &fakeQuotes{prices: map[string]float64{"NFO:NIFTY2580724350PE": 20}}
	s, err := NewSurvivor(testParams(), testChain(), quotes, &fakeOrders{}, log, WithName("weekly"))
	if err != nil {
		t.Fatalf("NewSurvivor: %v", err)
	}
	feed(s, 24500, 24561)
	out := buf.String()
	if !strings.Contains(out, `"instance":"weekly"`) || !strings.Contains(out, "execute sell") {
		t.Fatalf("unexpected log output: %s", out)
	}
	if s.Name() != "weekly" {
		t.Fatalf("unexpected name %s", s.Name())
	}
}
