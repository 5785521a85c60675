// Package strategy turns underlying ticks into option-writing decisions.
package strategy

import (
	"context"

	"survivor-go/internal/signal"
)

// Strategy is the tick consumer a runner drives.
type Strategy interface {
	Name() string
	OnTick(ctx context.Context, t signal.Tick) Report
	Snapshot() Snapshot
}

var _ Strategy = (*Survivor)(nil)
