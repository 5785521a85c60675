package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"survivor-go/internal/execution"
	"survivor-go/internal/instrument"
)

const defaultBridgeTimeout = 5 * time.Second

// BridgeAuth carries broker credentials forwarded on every bridge request.
type BridgeAuth struct {
	APIKey      string
	AccessToken string
}

func (a BridgeAuth) header() string {
	if a.APIKey == "" && a.AccessToken == "" {
		return ""
	}
	return "token " + a.APIKey + ":" + a.AccessToken
}

// BridgeBroker relays quotes, instruments, and orders through an HTTP bridge.
type BridgeBroker struct {
	client *resty.Client
	log    zerolog.Logger
}

type bridgeEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type bridgeOrder struct {
	TradingSymbol   string `json:"tradingsymbol"`
	Exchange        string `json:"exchange"`
	TransactionType string `json:"transaction_type"`
	Quantity        int    `json:"quantity"`
	OrderType       string `json:"order_type"`
	Product         string `json:"product"`
	Tag             string `json:"tag,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
}

type bridgeOrderResult struct {
	OrderID string `json:"order_id"`
}

// NewBridgeBroker builds a resty client rooted at baseURL.
func NewBridgeBroker(baseURL string, auth BridgeAuth, timeout time.Duration, log zerolog.Logger) *BridgeBroker {
	if timeout <= 0 {
		timeout = defaultBridgeTimeout
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(baseURL, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	if h := auth.header(); h != "" {
		client.SetHeader("Authorization", h)
	}
	return &BridgeBroker{client: client, log: log}
}

// Name implements Broker.
func (b *BridgeBroker) Name() string { return BrokerBridge }

func (b *BridgeBroker) decode(resp *resty.Response, what string) (bridgeEnvelope, error) {
	var env bridgeEnvelope
	if resp.StatusCode() != http.StatusOK {
		return env, fmt.Errorf("%s: bridge status %d: %s", what, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return env, fmt.Errorf("%s: decode envelope: %w", what, err)
	}
	return env, nil
}

// Quote fetches the last price of an exchange-qualified symbol.
func (b *BridgeBroker) Quote(ctx context.Context, symbol string) (Quote, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("i", symbol).
		Get("/quote")
	if err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	env, err := b.decode(resp, "quote "+symbol)
	if err != nil {
		return Quote{}, err
	}
	var quotes map[string]Quote
	if err := json.Unmarshal(env.Data, &quotes); err != nil {
		return Quote{}, fmt.Errorf("quote %s: decode data: %w", symbol, err)
	}
	q, ok := quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("%w for %s", ErrNoQuote, symbol)
	}
	return q, nil
}

// Instruments downloads the full instrument dump.
func (b *BridgeBroker) Instruments(ctx context.Context) ([]instrument.Instrument, error) {
	resp, err := b.client.R().SetContext(ctx).Get("/instruments")
	if err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}
	env, err := b.decode(resp, "instruments")
	if err != nil {
		return nil, err
	}
	var out []instrument.Instrument
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("instruments: decode data: %w", err)
	}
	b.log.Info().Int("count", len(out)).Msg("loaded instruments from bridge")
	return out, nil
}

// PlaceOrder posts a single order. Bridge-level failures come back as an error response, not a Go error.
func (b *BridgeBroker) PlaceOrder(ctx context.Context, order execution.Order) (execution.Response, error) {
	body, err := json.Marshal(bridgeOrder{
		TradingSymbol:   bareSymbol(order.Symbol),
		Exchange:        order.Exchange,
		TransactionType: string(order.Side),
		Quantity:        order.Qty,
		OrderType:       string(order.Type),
		Product:         order.Product,
		Tag:             order.Tag,
		ClientID:        order.ClientID,
	})
	if err != nil {
		return execution.Response{}, fmt.Errorf("encode order: %w", err)
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/orders")
	if err != nil {
		return execution.Response{}, fmt.Errorf("place order %s: %w", order.Symbol, err)
	}
	env, err := b.decode(resp, "place order "+order.Symbol)
	if err != nil {
		b.log.Warn().Err(err).Str("sym", order.Symbol).Msg("bridge rejected order")
		return execution.Response{OrderID: execution.InvalidOrderID, Status: execution.StatusError}, nil
	}
	var result bridgeOrderResult
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return execution.Response{}, fmt.Errorf("place order %s: decode data: %w", order.Symbol, err)
		}
	}
	if result.OrderID == "" {
		result.OrderID = execution.InvalidOrderID
	}
	return execution.Response{OrderID: result.OrderID, Status: env.Status}, nil
}
