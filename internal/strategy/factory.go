package strategy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"survivor-go/internal/instrument"
)

// KindSurvivor is the gap-trigger writer and the default kind.
const KindSurvivor = "survivor"

// Supported reports whether Build knows the configured kind.
func Supported(kind string) bool {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindSurvivor:
		return true
	default:
		return false
	}
}

// Build returns a strategy implementation matching the configured kind.
func Build(kind string, params Params, instruments []instrument.Instrument, quotes QuoteProvider, orders Submitter, log zerolog.Logger, opts ...Option) (Strategy, error) {
	if !Supported(kind) {
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}
	s, err := NewSurvivor(params, instruments, quotes, orders, log, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}
