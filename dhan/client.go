// Package dhan implements broker.Client for the Dhan v2 trading API.
package dhan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/internal/adapter"
	"github.com/samarthkathal/broker-go/mapping"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/samarthkathal/broker-go/transport"
)

// Client is the Dhan adapter
type Client struct {
	core          adapter.Core
	baseURL       string
	authURL       string
	partnerID     string
	partnerSecret string
	doer          transport.Doer
	session       *auth.Session
	resolver      symbols.Lookup
	mapper        *Mapper
}

var _ broker.Client = (*Client)(nil)

// New creates a Dhan client. Authenticate with Login (partner consent) or
// Session().Restore with a portal access token.
func New(opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:        DefaultBaseURL,
		authURL:        DefaultAuthURL,
		scripMasterURL: DefaultScripMasterURL,
		logger:         zerolog.Nop(),
		timeout:        transport.DefaultTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	doer := cfg.doer
	if doer == nil {
		topts := []transport.Option{
			transport.WithLogger(cfg.logger),
			transport.WithMetrics(cfg.collector),
			transport.WithTimeout(cfg.timeout),
		}
		if cfg.httpClient != nil {
			topts = append(topts, transport.WithHTTPClient(cfg.httpClient))
		}
		if cfg.rateLimiter != nil {
			topts = append(topts, transport.WithRateLimiter(cfg.rateLimiter))
		}
		doer = transport.New(BrokerName, topts...)
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.baseURL, "/"),
		authURL:       strings.TrimRight(cfg.authURL, "/"),
		partnerID:     cfg.partnerID,
		partnerSecret: cfg.partnerSecret,
		doer:          doer,
	}
	c.session = auth.NewSession(BrokerName, &authenticator{c: c},
		auth.WithLogger(cfg.logger),
		auth.WithClock(cfg.now),
	)

	table := mapping.NewTable(BrokerName, Fields,
		mapping.WithMode(cfg.mode),
		mapping.WithLogger(cfg.logger),
		mapping.WithFallbackHook(cfg.collector.RecordEnumFallback),
	)

	c.resolver = cfg.resolver
	if c.resolver == nil {
		httpClient := cfg.httpClient
		if httpClient == nil {
			httpClient = transport.NewHTTPClient(transport.ScripMasterConfig())
		}
		c.resolver = symbols.NewResolver(BrokerName, NewScripMaster(httpClient, cfg.scripMasterURL), Segment,
			symbols.WithStore(cfg.store),
			symbols.WithLogger(cfg.logger),
			symbols.WithReloadHook(cfg.collector.RecordSymbolReload),
		)
	}
	c.mapper = NewMapper(table, c.resolver, cfg.now)

	c.core = adapter.Core{
		Broker:            BrokerName,
		Session:           c.session,
		Transport:         doer,
		Metrics:           cfg.collector,
		Logger:            cfg.logger,
		UnauthorizedCodes: unauthorizedCodes,
	}
	return c
}

// Name implements broker.Client
func (c *Client) Name() string { return BrokerName }

// Session exposes the session for Restore, State and Logout
func (c *Client) Session() *auth.Session { return c.session }

// Resolver returns the symbol resolver in use
func (c *Client) Resolver() symbols.Lookup { return c.resolver }

// Login consumes the consent tokenId and starts the session
func (c *Client) Login(ctx context.Context, tokenID string) error {
	return c.session.Login(ctx, auth.LoginRequest{Extra: map[string]string{TokenIDKey: tokenID}})
}

func orderPath(orderID string) (string, error) {
	if strings.TrimSpace(orderID) == "" {
		return "", broker.NewErrorResponse(broker.ErrInvalidOrderField, "", "order id is required", nil)
	}
	id, err := runtime.StyleParamWithLocation("simple", false, "order-id", runtime.ParamLocationPath, orderID)
	if err != nil {
		return "", broker.NewErrorResponse(broker.ErrInvalidOrderField, "", fmt.Sprintf("invalid order id %q: %v", orderID, err), nil)
	}
	return routeOrder + id, nil
}

// PlaceOrder implements broker.Client
func (c *Client) PlaceOrder(ctx context.Context, order broker.Order) (*broker.OrderResponse, error) {
	return adapter.Run(ctx, &c.core, "PlaceOrder", func(ctx context.Context, cred auth.Credential) broker.Result[*broker.OrderResponse] {
		payload, err := c.mapper.PlaceOrder(ctx, order, cred)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		resp, err := c.send(ctx, http.MethodPost, routeOrders, "PlaceOrder", payload, cred, false)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		return ParseOrderResponse(resp.StatusCode, resp.Body, broker.ParseContext{Symbol: order.TradingSymbol})
	})
}

// ModifyOrder implements broker.Client
func (c *Client) ModifyOrder(ctx context.Context, orderID string, order broker.Order) (*broker.OrderResponse, error) {
	return adapter.Run(ctx, &c.core, "ModifyOrder", func(ctx context.Context, cred auth.Credential) broker.Result[*broker.OrderResponse] {
		route, err := orderPath(orderID)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		payload, err := c.mapper.ModifyOrder(ctx, orderID, order, cred)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		resp, err := c.send(ctx, http.MethodPut, route, "ModifyOrder", payload, cred, false)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		return ParseOrderResponse(resp.StatusCode, resp.Body, broker.ParseContext{Symbol: order.TradingSymbol, OrderID: orderID})
	})
}

// CancelOrder implements broker.Client. Dhan cancels by id alone; variety
// is ignored.
func (c *Client) CancelOrder(ctx context.Context, orderID string, _ broker.Variety) (*broker.OrderResponse, error) {
	return adapter.Run(ctx, &c.core, "CancelOrder", func(ctx context.Context, cred auth.Credential) broker.Result[*broker.OrderResponse] {
		route, err := orderPath(orderID)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		resp, err := c.send(ctx, http.MethodDelete, route, "CancelOrder", nil, cred, false)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		return ParseOrderResponse(resp.StatusCode, resp.Body, broker.ParseContext{OrderID: orderID})
	})
}

// GetOrderBook implements broker.Client
func (c *Client) GetOrderBook(ctx context.Context) (*broker.OrderBookResponse, error) {
	return read(ctx, c, "GetOrderBook", routeOrders, broker.ParseContext{}, ParseOrderBook)
}

// GetTradeBook implements broker.Client
func (c *Client) GetTradeBook(ctx context.Context) (*broker.TradeBookResponse, error) {
	return read(ctx, c, "GetTradeBook", routeTrades, broker.ParseContext{}, ParseTradeBook)
}

// GetHolding implements broker.Client
func (c *Client) GetHolding(ctx context.Context) (*broker.HoldingResponse, error) {
	return read(ctx, c, "GetHolding", routeHoldings, broker.ParseContext{}, ParseHolding)
}

// GetPosition implements broker.Client
func (c *Client) GetPosition(ctx context.Context) (*broker.PositionResponse, error) {
	return read(ctx, c, "GetPosition", routePositions, broker.ParseContext{}, ParsePosition)
}

// GetFunds implements broker.Client
func (c *Client) GetFunds(ctx context.Context) (*broker.FundsResponse, error) {
	return read(ctx, c, "GetFunds", routeFunds, broker.ParseContext{}, ParseFunds)
}

// GetOrderStatus implements broker.Client
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*broker.OrderStatusResponse, error) {
	route, err := orderPath(orderID)
	if err != nil {
		return nil, err
	}
	return read(ctx, c, "GetOrderStatus", route, broker.ParseContext{OrderID: orderID}, ParseOrderStatus)
}

func read[T any](ctx context.Context, c *Client, op, route string, pctx broker.ParseContext, parse func(int, []byte, broker.ParseContext) broker.Result[T]) (T, error) {
	return adapter.Run(ctx, &c.core, op, func(ctx context.Context, cred auth.Credential) broker.Result[T] {
		resp, err := c.send(ctx, http.MethodGet, route, op, nil, cred, true)
		if err != nil {
			return broker.Failure[T](err)
		}
		return parse(resp.StatusCode, resp.Body, pctx)
	})
}

func (c *Client) send(ctx context.Context, method, route, endpoint string, payload map[string]any, cred auth.Credential, idempotent bool) (*transport.Response, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("%w: encode %s payload: %v", broker.ErrInvalidOrderField, endpoint, err)
		}
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("access-token", cred.AccessToken)
	if cred.ClientID != "" {
		h.Set("client-id", cred.ClientID)
	}

	return c.core.Send(ctx, cred, &transport.Request{
		Method:     method,
		URL:        c.baseURL + route,
		Header:     h,
		Body:       body,
		Idempotent: idempotent,
		Endpoint:   endpoint,
	})
}
