// Package exchange hosts broker connectors and underlying tick sources.
package exchange

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"survivor-go/internal/metrics"
	"survivor-go/internal/signal"
)

const (
	// ProviderStub emits synthetic ticks (scripted or random walk), useful for tests/offline work.
	ProviderStub = "stub"
	// ProviderWebsocket streams ticks from a broker websocket bridge.
	ProviderWebsocket = "websocket"
)

const (
	defaultStubInterval      = 500 * time.Millisecond
	defaultReconnectInterval = 500 * time.Millisecond
	defaultMaxReconnect      = 30 * time.Second
)

// Feed represents a pluggable underlying price stream for one index.
type Feed struct {
	provider string
	symbol   string
	log      zerolog.Logger

	interval time.Duration
	script   []float64
	start    float64
	step     float64
	seed     uint64

	url          string
	subscribe    string
	reconnect    time.Duration
	maxReconnect time.Duration
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithInterval sets the stub emission cadence. Zero emits as fast as the consumer reads.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d >= 0 {
			f.interval = d
		}
	}
}

// WithScript makes the stub replay prices once and then stop.
func WithScript(prices []float64) Option {
	return func(f *Feed) { f.script = append([]float64(nil), prices...) }
}

// WithRandomWalk makes the stub wander from start by at most step per tick.
func WithRandomWalk(start, step float64, seed uint64) Option {
	return func(f *Feed) {
		f.start = start
		f.step = step
		f.seed = seed
	}
}

// WithWebsocket points the websocket provider at url and sends subscribe after every connect.
func WithWebsocket(url, subscribe string) Option {
	return func(f *Feed) {
		f.url = strings.TrimSpace(url)
		f.subscribe = subscribe
	}
}

// WithReconnect bounds the redial backoff of the websocket provider.
func WithReconnect(initial, max time.Duration) Option {
	return func(f *Feed) {
		if initial > 0 {
			f.reconnect = initial
		}
		if max > 0 {
			f.maxReconnect = max
		}
	}
}

// NewFeed constructs a feed for symbol backed by the requested provider.
func NewFeed(provider, symbol string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:     strings.ToLower(provider),
		symbol:       strings.TrimSpace(symbol),
		log:          log,
		interval:     defaultStubInterval,
		start:        24500,
		step:         10,
		seed:         1,
		reconnect:    defaultReconnectInterval,
		maxReconnect: defaultMaxReconnect,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Symbol returns the underlying the feed is tracking.
func (f *Feed) Symbol() string { return f.symbol }

// Run pushes ticks onto the provided channel until the context is canceled.
// A scripted stub returns nil once its script is exhausted.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Tick) error {
	switch f.provider {
	case ProviderWebsocket:
		return f.runWebsocket(ctx, out)
	case ProviderStub:
		if len(f.script) > 0 {
			return f.runScript(ctx, out)
		}
		return f.runWalk(ctx, out)
	default:
		return fmt.Errorf("unknown feed provider %q", f.provider)
	}
}

func (f *Feed) emit(ctx context.Context, out chan<- signal.Tick, tick signal.Tick) error {
	select {
	case out <- tick:
		metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Feed) wait(ctx context.Context) error {
	if f.interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(f.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *Feed) runScript(ctx context.Context, out chan<- signal.Tick) error {
	for i, px := range f.script {
		if i > 0 {
			if err := f.wait(ctx); err != nil {
				return err
			}
		}
		if err := f.emit(ctx, out, signal.Tick{Symbol: f.symbol, Price: px, Ts: time.Now()}); err != nil {
			return err
		}
	}
	f.log.Info().Int("ticks", len(f.script)).Msg("stub script finished")
	return nil
}

func (f *Feed) runWalk(ctx context.Context, out chan<- signal.Tick) error {
	rng := rand.New(rand.NewPCG(f.seed, f.seed^0x9e3779b97f4a7c15))
	px := f.start
	for {
		if err := f.emit(ctx, out, signal.Tick{Symbol: f.symbol, Price: px, Ts: time.Now()}); err != nil {
			return err
		}
		if err := f.wait(ctx); err != nil {
			return err
		}
		px += (rng.Float64()*2 - 1) * f.step
		px = math.Round(px*20) / 20
	}
}
