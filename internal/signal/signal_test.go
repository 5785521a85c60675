package signal

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeTicksAcceptsBothPriceFields(t *testing.T) {
	now := time.Unix(1700000000, 0)

	ticks, err := DecodeTicks([]byte(`{"symbol":"NIFTY","last_price":24500.5}`), "", now)
	if err != nil {
		t.Fatalf("decode last_price: %v", err)
	}
	if len(ticks) != 1 || ticks[0].Price != 24500.5 || ticks[0].Symbol != "NIFTY" {
		t.Fatalf("unexpected ticks %+v", ticks)
	}

	ticks, err = DecodeTicks([]byte(`{"ltp":24480}`), "NSE:NIFTY 50", now)
	if err != nil {
		t.Fatalf("decode ltp: %v", err)
	}
	if ticks[0].Price != 24480 || ticks[0].Symbol != "NSE:NIFTY 50" {
		t.Fatalf("unexpected ltp tick %+v", ticks[0])
	}
	if !ticks[0].Ts.Equal(now) {
		t.Fatalf("expected fallback timestamp")
	}
}

func TestDecodeTicksArraySkipsPricelessRecords(t *testing.T) {
	payload := []byte(`[{"symbol":"A"},{"symbol":"B","ltp":10,"exchange_timestamp_ms":1700000000000}]`)
	ticks, err := DecodeTicks(payload, "", time.Now())
	if err != nil {
		t.Fatalf("decode array: %v", err)
	}
	if len(ticks) != 1 || ticks[0].Symbol != "B" {
		t.Fatalf("expected only B, got %+v", ticks)
	}
	if ticks[0].Ts.UnixMilli() != 1700000000000 {
		t.Fatalf("expected exchange timestamp, got %v", ticks[0].Ts)
	}
}

func TestDecodeTicksWithoutPrice(t *testing.T) {
	_, err := DecodeTicks([]byte(`{"symbol":"NIFTY","volume":10}`), "", time.Now())
	if !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}
	if _, err := DecodeTicks([]byte(`{not json`), "", time.Now()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDecodeTicksDropsNonPositivePrices(t *testing.T) {
	if _, err := DecodeTicks([]byte(`{"ltp":0}`), "NSE:NIFTY 50", time.Now()); !errors.Is(err, ErrNoPrice) {
		t.Fatalf("pre-open zero ltp should be ErrNoPrice, got %v", err)
	}
	ticks, err := DecodeTicks([]byte(`[{"symbol":"A","last_price":-5},{"symbol":"B","ltp":0},{"symbol":"C","ltp":24490}]`), "", time.Now())
	if err != nil {
		t.Fatalf("decode array: %v", err)
	}
	if len(ticks) != 1 || ticks[0].Symbol != "C" {
		t.Fatalf("expected only C, got %+v", ticks)
	}
}
