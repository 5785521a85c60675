package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"survivor-go/internal/signal"
)

const (
	wsReadTimeout  = 30 * time.Second
	wsPingInterval = 15 * time.Second
)

func (f *Feed) runWebsocket(ctx context.Context, out chan<- signal.Tick) error {
	if f.url == "" {
		return fmt.Errorf("websocket feed requires a url")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.reconnect
	bo.MaxInterval = f.maxReconnect

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := f.consumeWebsocket(ctx, out, bo.Reset)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sleep := bo.NextBackOff()
		if sleep == backoff.Stop {
			sleep = f.maxReconnect
		}
		f.log.Warn().Err(err).Dur("retry_in", sleep).Msg("tick feed disconnected, retrying")
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (f *Feed) consumeWebsocket(ctx context.Context, out chan<- signal.Tick, connected func()) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	if f.subscribe != "" {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f.subscribe)); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}
	connected()
	f.log.Info().Str("provider", ProviderWebsocket).Str("symbol", f.symbol).Msg("connected tick feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					f.log.Warn().Err(err).Msg("tick feed ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	// closing the conn unblocks ReadMessage on cancel
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		ticks, err := signal.DecodeTicks(message, f.symbol, time.Now())
		if err != nil {
			if !errors.Is(err, signal.ErrNoPrice) {
				f.log.Warn().Err(err).Msg("failed to decode tick message")
			}
			continue
		}
		for _, tick := range ticks {
			if !f.tracks(tick.Symbol) {
				continue
			}
			if err := f.emit(ctx, out, tick); err != nil {
				return err
			}
		}
	}
}

func (f *Feed) tracks(symbol string) bool {
	if f.symbol == "" || symbol == f.symbol {
		return true
	}
	return bareSymbol(symbol) == bareSymbol(f.symbol)
}
