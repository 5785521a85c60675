// Package execution handles order lifecycle and interaction with venues.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"survivor-go/internal/metrics"
	"survivor-go/internal/risk"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy covers or opens a long position.
	Buy Side = "BUY"
	// Sell writes options.
	Sell Side = "SELL"
)

// OrderType enumerates supported pricing instructions.
type OrderType string

// Market orders carry no price.
const Market OrderType = "MARKET"

// ProductMargin is the carry-forward derivatives product.
const ProductMargin = "NRML"

const (
	// InvalidOrderID is the id brokers report for orders they never accepted.
	InvalidOrderID = "-1"
	// StatusError is the broker status for a failed placement.
	StatusError = "error"
)

// ErrOrderRejected marks placements the broker answered without a usable order id.
var ErrOrderRejected = errors.New("order rejected")

// Order is the intent handed to a venue.
type Order struct {
	Symbol   string
	Exchange string
	Side     Side
	Type     OrderType
	Product  string
	Qty      int
	Tag      string
	ClientID string
}

// Response is the venue's answer to a placement.
type Response struct {
	OrderID string
	Status  string
}

// OK reports whether the venue accepted the order.
func (r Response) OK() bool {
	if r.OrderID == "" || r.OrderID == InvalidOrderID {
		return false
	}
	return !strings.EqualFold(r.Status, StatusError)
}

// Fill records an executed order for paper accounting.
type Fill struct {
	OrderID  string    `json:"order_id"`
	ClientID string    `json:"client_id,omitempty"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Qty      int       `json:"qty"`
	Price    float64   `json:"price"`
	Tag      string    `json:"tag,omitempty"`
	Ts       time.Time `json:"ts"`
}

// Placer is the order-submission collaborator.
type Placer interface {
	PlaceOrder(ctx context.Context, order Order) (Response, error)
}

// Executor submits orders once, without retries, and reports the outcome.
type Executor struct {
	log      zerolog.Logger
	placer   Placer
	throttle *risk.Throttle
	timeout  time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithThrottle spaces submissions using the provided throttle.
func WithThrottle(t *risk.Throttle) Option {
	return func(e *Executor) { e.throttle = t }
}

// WithTimeout bounds each placement call.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewExecutor wraps a venue placer.
func NewExecutor(log zerolog.Logger, placer Placer, opts ...Option) *Executor {
	e := &Executor{log: log, placer: placer}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit places the order. A non-nil error means the order must be treated as not placed.
func (executor *Executor) Submit(ctx context.Context, order Order) (Response, error) {
	if order.Qty <= 0 {
		return Response{}, fmt.Errorf("submit %s: quantity must be positive", order.Symbol)
	}
	if order.ClientID == "" {
		order.ClientID = uuid.NewString()
	}
	side := string(order.Side)

	if err := executor.throttle.Wait(ctx); err != nil {
		metrics.OrdersTotal.WithLabelValues(side, "throttled").Inc()
		return Response{}, err
	}

	callCtx := ctx
	if executor.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, executor.timeout)
		defer cancel()
	}

	resp, err := executor.placer.PlaceOrder(callCtx, order)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(side, "error").Inc()
		executor.log.Error().Err(err).Str("sym", order.Symbol).Int("qty", order.Qty).Msg("order placement failed")
		return resp, fmt.Errorf("place %s: %w", order.Symbol, err)
	}
	if !resp.OK() {
		metrics.OrdersTotal.WithLabelValues(side, "rejected").Inc()
		executor.log.Error().Str("sym", order.Symbol).Int("qty", order.Qty).Str("order_id", resp.OrderID).Str("status", resp.Status).Msg("order placement failed")
		return resp, fmt.Errorf("%w: %s id=%q status=%q", ErrOrderRejected, order.Symbol, resp.OrderID, resp.Status)
	}

	metrics.OrdersTotal.WithLabelValues(side, "placed").Inc()
	executor.log.Info().
		Str("sym", order.Symbol).
		Str("side", side).
		Int("qty", order.Qty).
		Str("type", string(order.Type)).
		Str("tag", order.Tag).
		Str("order_id", resp.OrderID).
		Str("client_id", order.ClientID).
		Msg("submit order")
	return resp, nil
}
