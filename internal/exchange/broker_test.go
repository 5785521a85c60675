package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"survivor-go/internal/execution"
	"survivor-go/internal/instrument"
	"survivor-go/internal/paper"
	"survivor-go/internal/signal"
)

func paperChain() []instrument.Instrument {
	return instrument.GenerateChain(instrument.ChainSpec{
		Prefix: "NIFTY25807", Exchange: "NFO", Center: 24500, Spacing: 50, Strikes: 4, LotSize: 75,
	})
}

func TestPaperBrokerQuoteModel(t *testing.T) {
	broker := NewPaperBroker(zerolog.Nop(), paperChain(), nil)
	ctx := context.Background()

	if _, err := broker.Quote(ctx, "NFO:NIFTY2580724400PE"); !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote before any tick, got %v", err)
	}

	broker.Observe(signal.Tick{Price: 24500})
	near, err := broker.Quote(ctx, "NFO:NIFTY2580724450PE")
	if err != nil {
		t.Fatalf("quote error: %v", err)
	}
	far, err := broker.Quote(ctx, "NFO:NIFTY2580724300PE")
	if err != nil {
		t.Fatalf("quote error: %v", err)
	}
	if far.LastPrice >= near.LastPrice {
		t.Fatalf("expected farther OTM put to be cheaper: near=%.2f far=%.2f", near.LastPrice, far.LastPrice)
	}

	broker.SetQuote("NIFTY2580724300PE", 3.5)
	pinned, err := broker.Quote(ctx, "NFO:NIFTY2580724300PE")
	if err != nil || pinned.LastPrice != 3.5 {
		t.Fatalf("expected pinned quote 3.5, got %+v err=%v", pinned, err)
	}

	if _, err := broker.Quote(ctx, "NFO:UNKNOWN"); !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote for unknown symbol, got %v", err)
	}
}

func TestPaperBrokerPlaceOrderBooksFill(t *testing.T) {
	ledger := paper.NewLedger(4)
	fixed := time.Date(2025, 8, 7, 10, 0, 0, 0, time.UTC)
	broker := NewPaperBroker(zerolog.Nop(), paperChain(), paper.NewAccount(150),
		WithRecorder(ledger), WithClock(func() time.Time { return fixed }))
	broker.SetQuote("NIFTY2580724300PE", 12)

	order := execution.Order{Symbol: "NIFTY2580724300PE", Exchange: "NFO", Side: execution.Sell, Type: execution.Market, Qty: 150, Tag: "Survivor"}
	resp, err := broker.PlaceOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("place order error: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected accepted order, got %+v", resp)
	}
	fills := ledger.Snapshot()
	if len(fills) != 1 || fills[0].Price != 12 || !fills[0].Ts.Equal(fixed) || fills[0].OrderID != resp.OrderID {
		t.Fatalf("unexpected fills %+v", fills)
	}
	if broker.Account().Position("NIFTY2580724300PE") != 150 {
		t.Fatalf("expected 150 short")
	}

	// account limit reached: refused as an error response
	resp, err = broker.PlaceOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if resp.OK() || resp.OrderID != execution.InvalidOrderID {
		t.Fatalf("expected refused order, got %+v", resp)
	}
}

func TestPaperBrokerInstrumentsCopy(t *testing.T) {
	broker := NewPaperBroker(zerolog.Nop(), paperChain(), nil)
	list, err := broker.Instruments(context.Background())
	if err != nil {
		t.Fatalf("instruments error: %v", err)
	}
	if len(list) != 18 {
		t.Fatalf("expected 18 instruments, got %d", len(list))
	}
	list[0].Symbol = "mutated"
	again, _ := broker.Instruments(context.Background())
	if again[0].Symbol == "mutated" {
		t.Fatalf("instruments should be copied")
	}
}

func TestBridgeBroker(t *testing.T) {
	var gotOrder map[string]any
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/quote":
			if r.URL.Query().Get("i") == "NFO:MISSING" {
				_, _ = w.Write([]byte(`{"status":"success","data":{}}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"success","data":{"NFO:NIFTY2580724300PE":{"last_price":14.25}}}`))
		case "/instruments":
			_, _ = w.Write([]byte(`{"status":"success","data":[{"tradingsymbol":"NIFTY2580724300PE","exchange":"NFO","strike":24300,"instrument_type":"PE","segment":"NFO-OPT","lot_size":75}]}`))
		case "/orders":
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &gotOrder)
			if gotOrder["tradingsymbol"] == "BAD" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"status":"error","message":"invalid symbol"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"success","data":{"order_id":"250807000123"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	broker := NewBridgeBroker(server.URL+"/", BridgeAuth{APIKey: "k", AccessToken: "t"}, time.Second, zerolog.Nop())
	ctx := context.Background()

	q, err := broker.Quote(ctx, "NFO:NIFTY2580724300PE")
	if err != nil || q.LastPrice != 14.25 {
		t.Fatalf("unexpected quote %+v err=%v", q, err)
	}
	if gotAuth != "token k:t" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if _, err := broker.Quote(ctx, "NFO:MISSING"); !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}

	list, err := broker.Instruments(ctx)
	if err != nil || len(list) != 1 || list[0].LotSize != 75 || list[0].OptionType != instrument.Put {
		t.Fatalf("unexpected instruments %+v err=%v", list, err)
	}

	resp, err := broker.PlaceOrder(ctx, execution.Order{
		Symbol: "NFO:NIFTY2580724300PE", Exchange: "NFO", Side: execution.Sell,
		Type: execution.Market, Product: execution.ProductMargin, Qty: 75, Tag: "Survivor",
	})
	if err != nil || !resp.OK() || resp.OrderID != "250807000123" {
		t.Fatalf("unexpected order response %+v err=%v", resp, err)
	}
	if gotOrder["tradingsymbol"] != "NIFTY2580724300PE" || gotOrder["transaction_type"] != "SELL" || gotOrder["product"] != "NRML" {
		t.Fatalf("unexpected order body %+v", gotOrder)
	}

	resp, err = broker.PlaceOrder(ctx, execution.Order{Symbol: "BAD", Side: execution.Sell, Qty: 75})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if resp.OK() {
		t.Fatalf("expected failed response, got %+v", resp)
	}
}
