// Package oswal implements broker.Client for the Motilal Oswal OpenAPI.
package oswal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/internal/adapter"
	"github.com/samarthkathal/broker-go/mapping"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/samarthkathal/broker-go/transport"
)

// Client is the Motilal Oswal adapter. Every call is a POST carrying the
// client code.
type Client struct {
	core      adapter.Core
	apiKey    string
	baseURL   string
	clientCtx broker.ClientContext
	doer      transport.Doer
	session   *auth.Session
	resolver  symbols.Lookup
	mapper    *Mapper
}

var (
	_ broker.Client          = (*Client)(nil)
	_ broker.ProfileProvider = (*Client)(nil)
)

// New creates a client for the OpenAPI key apiKey
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
		c.resolver = symbols.NewResolver(BrokerName, NewScripMaster(httpClient, cfg.scripMasterURL, cfg.scripExchanges...), Segment,
			symbols.WithStore(cfg.store),
			symbols.WithLogger(cfg.logger),
			symbols.WithReloadHook(cfg.collector.RecordSymbolReload),
		)
	}
	c.mapper = NewMapper(table, c.resolver)

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

// Login signs in with the password, second factor and TOTP. otp is only
// used when the upstream asks for mobile OTP verification.
func (c *Client) Login(ctx context.Context, clientCode, password, twoFA, totp, otp string) error {
	return c.session.Login(ctx, auth.LoginRequest{
		ClientID: clientCode,
		Password: password,
		TOTP:     totp,
		OTP:      otp,
		Extra:    map[string]string{TwoFAKey: twoFA},
	})
}

// Logout ends the session upstream and locally
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
		resp, err := c.send(ctx, routePlaceOrder, "PlaceOrder", payload, cred, false)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		return ParseOrderResponse(resp.StatusCode, resp.Body, broker.ParseContext{Symbol: order.TradingSymbol})
	})
}

// ModifyOrder implements broker.Client. Once the order maps cleanly the live
// order is read for the lastmodifiedtime and traded quantity the modify must
// carry.
func (c *Client) ModifyOrder(ctx context.Context, orderID string, order broker.Order) (*broker.OrderResponse, error) {
	return adapter.Run(ctx, &c.core, "ModifyOrder", func(ctx context.Context, cred auth.Credential) broker.Result[*broker.OrderResponse] {
		if strings.TrimSpace(orderID) == "" {
			return broker.Failure[*broker.OrderResponse](
				broker.NewErrorResponse(broker.ErrInvalidOrderField, "", "order id is required", nil))
		}
		pctx := broker.ParseContext{Symbol: order.TradingSymbol, OrderID: orderID}

		payload, err := c.mapper.ModifyOrder(ctx, orderID, order, cred)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}

		resp, err := c.send(ctx, routeOrderDetail, "GetOrderStatus", detailPayload(orderID, cred), cred, true)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		prev, err := ParseOrderState(resp.StatusCode, resp.Body, pctx).Get()
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		SetOrderState(payload, prev)

		resp, err = c.send(ctx, routeModifyOrder, "ModifyOrder", payload, cred, false)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		return ParseOrderResponse(resp.StatusCode, resp.Body, pctx)
	})
}

// CancelOrder implements broker.Client. Orders are cancelled by unique
// order id alone; variety is ignored.
func (c *Client) CancelOrder(ctx context.Context, orderID string, _ broker.Variety) (*broker.OrderResponse, error) {
	return adapter.Run(ctx, &c.core, "CancelOrder", func(ctx context.Context, cred auth.Credential) broker.Result[*broker.OrderResponse] {
		payload, err := c.mapper.CancelOrder(orderID, cred)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		resp, err := c.send(ctx, routeCancelOrder, "CancelOrder", payload, cred, false)
		if err != nil {
			return broker.Failure[*broker.OrderResponse](err)
		}
		return ParseOrderResponse(resp.StatusCode, resp.Body, broker.ParseContext{OrderID: orderID})
	})
}

// GetProfile returns the profile of the logged-in client code
func (c *Client) GetProfile(ctx context.Context) (*broker.ProfileResponse, error) {
	return read(ctx, c, "GetProfile", routeProfile, nil, broker.ParseContext{}, ParseProfile)
}

// GetOrderBook implements broker.Client
func (c *Client) GetOrderBook(ctx context.Context) (*broker.OrderBookResponse, error) {
	return read(ctx, c, "GetOrderBook", routeOrderBook, nil, broker.ParseContext{}, ParseOrderBook)
}

// GetTradeBook implements broker.Client
func (c *Client) GetTradeBook(ctx context.Context) (*broker.TradeBookResponse, error) {
	return read(ctx, c, "GetTradeBook", routeTradeBook, nil, broker.ParseContext{}, ParseTradeBook)
}

// GetHolding implements broker.Client using the DP holdings report
func (c *Client) GetHolding(ctx context.Context) (*broker.HoldingResponse, error) {
	return read(ctx, c, "GetHolding", routeHolding, nil, broker.ParseContext{}, ParseHolding)
}

// GetPosition implements broker.Client
func (c *Client) GetPosition(ctx context.Context) (*broker.PositionResponse, error) {
	return read(ctx, c, "GetPosition", routePosition, nil, broker.ParseContext{}, ParsePosition)
}

// GetFunds implements broker.Client using the margin summary report
func (c *Client) GetFunds(ctx context.Context) (*broker.FundsResponse, error) {
	return read(ctx, c, "GetFunds", routeFunds, nil, broker.ParseContext{}, ParseFunds)
}

// GetOrderStatus implements broker.Client. orderID is the uniqueorderid.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*broker.OrderStatusResponse, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, broker.NewErrorResponse(broker.ErrInvalidOrderField, "", "order id is required", nil)
	}
	return read(ctx, c, "GetOrderStatus", routeOrderDetail, map[string]any{"uniqueorderid": orderID},
		broker.ParseContext{OrderID: orderID}, ParseOrderStatus)
}

func detailPayload(orderID string, cred auth.Credential) map[string]any {
	return map[string]any{"clientcode": cred.ClientID, "uniqueorderid": orderID}
}

// read posts a query. extra is merged over the clientcode body.
func read[T any](ctx context.Context, c *Client, op, route string, extra map[string]any, pctx broker.ParseContext, parse func(int, []byte, broker.ParseContext) broker.Result[T]) (T, error) {
	return adapter.Run(ctx, &c.core, op, func(ctx context.Context, cred auth.Credential) broker.Result[T] {
		payload := map[string]any{"clientcode": cred.ClientID}
		for k, v := range extra {
			payload[k] = v
		}
		resp, err := c.send(ctx, route, op, payload, cred, true)
		if err != nil {
			return broker.Failure[T](err)
		}
		return parse(resp.StatusCode, resp.Body, pctx)
	})
}

func (c *Client) send(ctx context.Context, route, endpoint string, payload map[string]any, cred auth.Credential, idempotent bool) (*transport.Response, error) {
	req, err := c.request(route, endpoint, payload, cred, idempotent)
	if err != nil {
		return nil, err
	}
	return c.core.Send(ctx, cred, req)
}

func (c *Client) request(route, endpoint string, payload map[string]any, cred auth.Credential, idempotent bool) (*transport.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s payload: %v", broker.ErrInvalidOrderField, endpoint, err)
	}

	cc := c.clientCtx
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("User-Agent", cc.UserAgent)
	h.Set("ApiKey", c.apiKey)
	h.Set("ClientLocalIp", cc.LocalIP)
	h.Set("ClientPublicIp", cc.PublicIP)
	h.Set("MacAddress", cc.MACAddress)
	h.Set("SourceId", cc.SourceID)
	h.Set("osname", cc.OSName)
	h.Set("osversion", cc.OSVersion)
	h.Set("devicemodel", cc.DeviceModel)
	h.Set("manufacturer", cc.Manufacturer)
	h.Set("productname", cc.ProductName)
	h.Set("productversion", cc.ProductVersion)
	h.Set("browsername", cc.BrowserName)
	h.Set("browserversion", cc.BrowserVersion)
	if cred.ClientID != "" {
		h.Set("vendorinfo", cred.ClientID)
		h.Set("userid", cred.ClientID)
	}
	if cred.AccessToken != "" {
		h.Set("Authorization", cred.AccessToken)
	}

	return &transport.Request{
		Method:     http.MethodPost,
		URL:        c.baseURL + route,
		Header:     h,
		Body:       body,
		Idempotent: idempotent,
		Endpoint:   endpoint,
	}, nil
}
