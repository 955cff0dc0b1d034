// Package angelone implements broker.Client for AngelOne SmartAPI.
package angelone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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

// Client is the AngelOne adapter
type Client struct {
	core      adapter.Core
	apiKey    string
	baseURL   string
	clientCtx broker.ClientContext
	doer      transport.Doer
	session   *auth.Session
	table     *mapping.Table
	resolver  symbols.Lookup
	mapper    *Mapper
}

var (
	_ broker.Client                 = (*Client)(nil)
	_ broker.ProfileProvider        = (*Client)(nil)
	_ broker.HoldingSummaryProvider = (*Client)(nil)
)

// New creates an AngelOne client for the SmartAPI key apiKey. The session
// starts unauthenticated; call Login or Session().Restore before trading.
func New(apiKey string, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:        DefaultBaseURL,
		scripMasterURL: DefaultScripMasterURL,
		clientCtx:      broker.DefaultClientContext(),
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
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(cfg.baseURL, "/"),
		clientCtx: cfg.clientCtx,
		doer:      doer,
	}
	c.session = auth.NewSession(BrokerName, &authenticator{c: c},
		auth.WithLogger(cfg.logger),
		auth.WithClock(cfg.now),
	)

	c.table = mapping.NewTable(BrokerName, Fields,
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
	c.mapper = NewMapper(c.table, c.resolver)

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

// Login authenticates with client code, PIN and TOTP (or TOTP secret)
func (c *Client) Login(ctx context.Context, req auth.LoginRequest) error {
	return c.session.Login(ctx, req)
}

// Logout terminates the SmartAPI session
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// PlaceOrder implements broker.Client
func (c *Client) PlaceOrder(ctx context.Context, order broker.Order) (*broker.OrderResponse, error) {
	return adapter.Run(ctx, &c.core, "PlaceOrder", func(ctx context.Context, cred auth.Credential) broker.Result[*broker.OrderResponse] {
		payload, err := c.mapper.PlaceOrder(ctx, order, cred)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		resp, err := c.send(ctx, http.MethodPost, routePlaceOrder, "PlaceOrder", payload, cred, false)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		return ParseOrderResponse(resp.StatusCode, resp.Body, broker.ParseContext{Symbol: order.TradingSymbol})
	})
}

// ModifyOrder implements broker.Client
func (c *Client) ModifyOrder(ctx context.Context, orderID string, order broker.Order) (*broker.OrderResponse, error) {
	return adapter.Run(ctx, &c.core, "ModifyOrder", func(ctx context.Context, cred auth.Credential) broker.Result[*broker.OrderResponse] {
		payload, err := c.mapper.ModifyOrder(ctx, orderID, order, cred)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		resp, err := c.send(ctx, http.MethodPost, routeModifyOrder, "ModifyOrder", payload, cred, false)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		return ParseOrderResponse(resp.StatusCode, resp.Body, broker.ParseContext{Symbol: order.TradingSymbol, OrderID: orderID})
	})
}

// CancelOrder implements broker.Client
func (c *Client) CancelOrder(ctx context.Context, orderID string, variety broker.Variety) (*broker.OrderResponse, error) {
	return adapter.Run(ctx, &c.core, "CancelOrder", func(ctx context.Context, cred auth.Credential) broker.Result[*broker.OrderResponse] {
		payload, err := c.mapper.CancelOrder(orderID, variety)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		resp, err := c.send(ctx, http.MethodPost, routeCancelOrder, "CancelOrder", payload, cred, false)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		return ParseOrderResponse(resp.StatusCode, resp.Body, broker.ParseContext{OrderID: orderID})
	})
}

// GetOrderBook implements broker.Client
func (c *Client) GetOrderBook(ctx context.Context) (*broker.OrderBookResponse, error) {
	return read(ctx, c, "GetOrderBook", routeOrderBook, ParseOrderBook)
}

// GetTradeBook implements broker.Client
func (c *Client) GetTradeBook(ctx context.Context) (*broker.TradeBookResponse, error) {
	return read(ctx, c, "GetTradeBook", routeTradeBook, ParseTradeBook)
}

// GetHolding implements broker.Client
func (c *Client) GetHolding(ctx context.Context) (*broker.HoldingResponse, error) {
	return read(ctx, c, "GetHolding", routeHolding, ParseHolding)
}

// GetHoldingSummary returns the portfolio totals from getAllHolding
func (c *Client) GetHoldingSummary(ctx context.Context) (*broker.HoldingSummaryResponse, error) {
	return read(ctx, c, "GetHoldingSummary", routeAllHolding, ParseHoldingSummary)
}

// GetProfile returns the logged-in user's profile. SmartAPI keys the lookup
// on the session's refresh token.
func (c *Client) GetProfile(ctx context.Context) (*broker.ProfileResponse, error) {
	return adapter.Run(ctx, &c.core, "GetProfile", func(ctx context.Context, cred auth.Credential) broker.Result[*broker.ProfileResponse] {
		route := routeProfile + "?" + url.Values{"refreshToken": {cred.RefreshToken}}.Encode()
		resp, err := c.send(ctx, http.MethodGet, route, "GetProfile", nil, cred, true)
		if err != nil {
			return broker.Failure[*broker.ProfileResponse](err)
		}
		return ParseProfile(resp.StatusCode, resp.Body, broker.ParseContext{})
	})
}

// GetPosition implements broker.Client
func (c *Client) GetPosition(ctx context.Context) (*broker.PositionResponse, error) {
	return read(ctx, c, "GetPosition", routePosition, ParsePosition)
}

// GetFunds implements broker.Client using getRMS
func (c *Client) GetFunds(ctx context.Context) (*broker.FundsResponse, error) {
	return read(ctx, c, "GetFunds", routeFunds, ParseFunds)
}

// GetOrderStatus implements broker.Client. orderID is the uniqueorderid
// returned by PlaceOrder.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*broker.OrderStatusResponse, error) {
	id, err := runtime.StyleParamWithLocation("simple", false, "uniqueorderid", runtime.ParamLocationPath, orderID)
	if err != nil || orderID == "" {
		er := broker.NewErrorResponse(broker.ErrInvalidOrderField, "", fmt.Sprintf("invalid unique order id %q", orderID), nil)
		return nil, er
	}
	return read(ctx, c, "GetOrderStatus", routeOrderDetails+id, ParseOrderStatus)
}

func read[T any](ctx context.Context, c *Client, op, route string, parse func(int, []byte, broker.ParseContext) broker.Result[T]) (T, error) {
	return adapter.Run(ctx, &c.core, op, func(ctx context.Context, cred auth.Credential) broker.Result[T] {
		resp, err := c.send(ctx, http.MethodGet, route, op, nil, cred, true)
		if err != nil {
			return broker.Failure[T](err)
		}
		return parse(resp.StatusCode, resp.Body, broker.ParseContext{})
	})
}

func (c *Client) send(ctx context.Context, method, route, endpoint string, payload map[string]any, cred auth.Credential, idempotent bool) (*transport.Response, error) {
	req, err := c.request(method, route, endpoint, payload, &cred, idempotent)
	if err != nil {
		return nil, err
	}
	return c.core.Send(ctx, cred, req)
}

func (c *Client) request(method, route, endpoint string, payload map[string]any, cred *auth.Credential, idempotent bool) (*transport.Request, error) {
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
	h.Set("X-ClientLocalIP", c.clientCtx.LocalIP)
	h.Set("X-ClientPublicIP", c.clientCtx.PublicIP)
	h.Set("X-MACAddress", c.clientCtx.MACAddress)
	h.Set("X-PrivateKey", c.apiKey)
	h.Set("X-UserType", c.clientCtx.UserType)
	h.Set("X-SourceID", c.clientCtx.SourceID)
	if cred != nil && cred.AccessToken != "" {
		h.Set("Authorization", "Bearer "+strings.TrimPrefix(cred.AccessToken, "Bearer "))
	}

	return &transport.Request{
		Method:     method,
		URL:        c.baseURL + route,
		Header:     h,
		Body:       body,
		Idempotent: idempotent,
		Endpoint:   endpoint,
	}, nil
}
