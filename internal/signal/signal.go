// Package signal standardizes payloads shared between data ingestion and strategy layers.
package signal

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Tick models one underlying price observation consumed by strategies.
type Tick struct {
	Symbol string
	Price  float64
	Ts     time.Time
}

// ErrNoPrice is returned when no record carries a positive last_price or ltp.
var ErrNoPrice = errors.New("tick has no positive last_price or ltp")

// wireTick accepts both field spellings brokers use for the last traded price.
type wireTick struct {
	Symbol          string   `json:"symbol"`
	LastPrice       *float64 `json:"last_price"`
	LTP             *float64 `json:"ltp"`
	ExchangeTsMilli int64    `json:"exchange_timestamp_ms"`
}

func (w wireTick) price() (float64, bool) {
	if w.LastPrice != nil {
		return *w.LastPrice, true
	}
	if w.LTP != nil {
		return *w.LTP, true
	}
	return 0, false
}

// DecodeTicks parses a single JSON object or an array of objects into ticks.
// Records without a positive price (pre-open ltp 0) are skipped; ErrNoPrice is returned only if none had one.
// fallback names ticks whose payload carries no symbol.
func DecodeTicks(payload []byte, fallback string, now time.Time) ([]Tick, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, ErrNoPrice
	}

	var records []wireTick
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil, fmt.Errorf("decode tick array: %w", err)
		}
	} else {
		var one wireTick
		if err := json.Unmarshal(payload, &one); err != nil {
			return nil, fmt.Errorf("decode tick: %w", err)
		}
		records = append(records, one)
	}

	out := make([]Tick, 0, len(records))
	for _, rec := range records {
		px, ok := rec.price()
		if !ok || !(px > 0) {
			continue
		}
		sym := rec.Symbol
		if sym == "" {
			sym = fallback
		}
		ts := now
		if rec.ExchangeTsMilli > 0 {
			ts = time.UnixMilli(rec.ExchangeTsMilli)
		}
		out = append(out, Tick{Symbol: sym, Price: px, Ts: ts})
	}
	if len(out) == 0 {
		return nil, ErrNoPrice
	}
	return out, nil
}
