// Package broker defines the broker-independent order model, normalized
// responses and the Client contract implemented by the angelone, dhan and
// oswal adapters.
package broker

import "context"

// Client is the uniform contract every broker adapter implements.
//
// A non-nil error is always a *ErrorResponse; use errors.Is against the
// package sentinels to branch on the failure kind.
type Client interface {
	// Name returns the broker identifier used in logs and metrics
	Name() string

	PlaceOrder(ctx context.Context, order Order) (*OrderResponse, error)
	ModifyOrder(ctx context.Context, orderID string, order Order) (*OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string, variety Variety) (*OrderResponse, error)

	GetOrderBook(ctx context.Context) (*OrderBookResponse, error)
	GetTradeBook(ctx context.Context) (*TradeBookResponse, error)
	GetHolding(ctx context.Context) (*HoldingResponse, error)
	GetPosition(ctx context.Context) (*PositionResponse, error)
	GetOrderStatus(ctx context.Context, orderID string) (*OrderStatusResponse, error)
	GetFunds(ctx context.Context) (*FundsResponse, error)
}

// ProfileProvider is implemented by adapters whose broker exposes the
// account profile
type ProfileProvider interface {
	GetProfile(ctx context.Context) (*ProfileResponse, error)
}

// HoldingSummaryProvider is implemented by adapters whose broker reports
// portfolio totals
type HoldingSummaryProvider interface {
	GetHoldingSummary(ctx context.Context) (*HoldingSummaryResponse, error)
}

// ClientContext carries the caller network and device identity some brokers
// require as request headers.
type ClientContext struct {
	LocalIP    string
	PublicIP   string
	MACAddress string
	UserType   string
	SourceID   string
	UserAgent  string

	OSName         string
	OSVersion      string
	DeviceModel    string
	Manufacturer   string
	ProductName    string
	ProductVersion string
	BrowserName    string
	BrowserVersion string
}

// DefaultClientContext returns a loopback identity suitable for development
func DefaultClientContext() ClientContext {
	return ClientContext{
		LocalIP:        "127.0.0.1",
		PublicIP:       "127.0.0.1",
		MACAddress:     "00:00:00:00:00:00",
		UserType:       "USER",
		SourceID:       "WEB",
		UserAgent:      "MOSL/V.1.1.0",
		OSName:         "Linux",
		OSVersion:      "6.0",
		DeviceModel:    "server",
		Manufacturer:   "generic",
		ProductName:    "broker-go",
		ProductVersion: "V.1.1.0",
		BrowserName:    "Chrome",
		BrowserVersion: "105.0",
	}
}
