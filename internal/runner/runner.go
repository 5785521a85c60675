// Package runner drives strategy instances from their tick sources.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"survivor-go/internal/signal"
	"survivor-go/internal/strategy"
)

const defaultBuffer = 256

// TickSource streams underlying ticks until ctx ends or the source is exhausted.
type TickSource interface {
	Run(ctx context.Context, out chan<- signal.Tick) error
}

// TickObserver sees every tick before the strategy does.
type TickObserver interface {
	Observe(tick signal.Tick)
}

// Status is a point-in-time view of one instance.
type Status struct {
	Name      string            `json:"name"`
	Running   bool              `json:"running"`
	Ticks     int64             `json:"ticks"`
	LastPrice float64           `json:"last_price"`
	LastTick  time.Time         `json:"last_tick"`
	Triggers  int               `json:"triggers"`
	Orders    int               `json:"orders"`
	State     strategy.Snapshot `json:"state"`
	Err       string            `json:"error,omitempty"`
}

// Instance owns one strategy and consumes its ticks strictly in arrival order.
type Instance struct {
	name      string
	strat     strategy.Strategy
	source    TickSource
	buffer    int
	observers []TickObserver
	log       zerolog.Logger

	mu     sync.RWMutex
	status Status
}

// Option configures an Instance.
type Option func(*Instance)

// WithBuffer sizes the hand-off queue between source and strategy.
func WithBuffer(n int) Option {
	return func(i *Instance) {
		if n > 0 {
			i.buffer = n
		}
	}
}

// WithObserver registers a tick observer, e.g. the paper broker's premium model.
func WithObserver(o TickObserver) Option {
	return func(i *Instance) {
		if o != nil {
			i.observers = append(i.observers, o)
		}
	}
}

// NewInstance pairs a strategy with its tick source.
func NewInstance(strat strategy.Strategy, source TickSource, log zerolog.Logger, opts ...Option) *Instance {
	i := &Instance{
		name:   strat.Name(),
		strat:  strat,
		source: source,
		buffer: defaultBuffer,
		log:    log.With().Str("instance", strat.Name()).Logger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.status = Status{Name: i.name, State: strat.Snapshot()}
	return i
}

// Name returns the strategy instance label.
func (i *Instance) Name() string { return i.name }

// Status returns a copy of the latest status.
func (i *Instance) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// Run blocks until the source ends or ctx is canceled. Cancellation is not an error.
func (i *Instance) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticks := make(chan signal.Tick, i.buffer)
	sourceErr := make(chan error, 1)
	go func() {
		defer close(ticks)
		sourceErr <- i.source.Run(ctx, ticks)
	}()

	i.setRunning(true, nil)
	i.log.Info().Int("buffer", i.buffer).Msg("instance started")

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case tick, ok := <-ticks:
			if !ok {
				break loop
			}
			for _, o := range i.observers {
				o.Observe(tick)
			}
			i.record(tick, i.strat.OnTick(ctx, tick))
		}
	}
	cancel()
	err := <-sourceErr
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		err = fmt.Errorf("%s: tick source: %w", i.name, err)
	}
	i.setRunning(false, err)
	i.log.Info().Err(err).Msg("instance stopped")
	return err
}

func (i *Instance) setRunning(running bool, err error) {
	i.mu.Lock()
	i.status.Running = running
	if err != nil {
		i.status.Err = err.Error()
	}
	i.mu.Unlock()
}

func (i *Instance) record(tick signal.Tick, rep strategy.Report) {
	snap := i.strat.Snapshot()
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status.Ticks++
	i.status.LastPrice = tick.Price
	i.status.LastTick = tick.Ts
	i.status.State = snap
	for _, side := range rep.Sides {
		if side.Triggered {
			i.status.Triggers++
		}
		if side.Placed {
			i.status.Orders++
		}
	}
}

// RunAll runs every instance concurrently and joins their errors.
func RunAll(ctx context.Context, instances []*Instance) error {
	var (
		wg   conc.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, inst := range instances {
		wg.Go(func() {
			if err := inst.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// StatusHandler serves the status of every instance as JSON.
func StatusHandler(instances []*Instance) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		out := make([]Status, 0, len(instances))
		for _, inst := range instances {
			out = append(out, inst.Status())
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
