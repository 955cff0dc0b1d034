package dhan

import (
	"github.com/samarthkathal/broker-go/internal/limiter"
)

// BrokerName identifies Dhan in logs, metrics and the symbol store
const BrokerName = "dhan"

const (
	// DefaultBaseURL is the Dhan v2 trading API root
	DefaultBaseURL = "https://api.dhan.co"
	// DefaultAuthURL serves the partner consent flow
	DefaultAuthURL = "https://auth.dhan.co"
	// DefaultScripMasterURL is the published instrument list
	DefaultScripMasterURL = "https://images.dhan.co/api-data/api-scrip-master.csv"
)

const (
	routeGenerateConsent = "/partner/generate-consent"
	routeConsentLogin    = "/consent-login"
	routeConsumeConsent  = "/consume-consent"

	routeOrders    = "/v2/orders"
	routeOrder     = "/v2/orders/"
	routeTrades    = "/v2/trades"
	routeHoldings  = "/v2/holdings"
	routePositions = "/v2/positions"
	routeFunds     = "/v2/fundlimit"
)

// DH-901: client ID or access token invalid or expired
var unauthorizedCodes = []string{"DH-901"}

var endpointCategories = map[string]limiter.EndpointCategory{
	routeOrders:    limiter.CategoryOrder,
	routeOrder:     limiter.CategoryOrder,
	routeTrades:    limiter.CategoryNonTrading,
	routeHoldings:  limiter.CategoryNonTrading,
	routePositions: limiter.CategoryNonTrading,
	routeFunds:     limiter.CategoryNonTrading,
}

// NewRateLimiter returns a limiter configured with Dhan's published limits
func NewRateLimiter() *limiter.HTTPRateLimiter {
	return limiter.NewHTTPRateLimiter(limiter.DhanLimits(), endpointCategories)
}
