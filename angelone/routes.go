package angelone

import (
	"github.com/samarthkathal/broker-go/internal/limiter"
)

// BrokerName identifies AngelOne in logs, metrics and the symbol store
const BrokerName = "angelone"

const (
	// DefaultBaseURL is the SmartAPI root
	DefaultBaseURL = "https://apiconnect.angelbroking.com"
	// DefaultScripMasterURL is the published OpenAPI scrip master
	DefaultScripMasterURL = "https://margincalculator.angelbroking.com/OpenAPI_File/files/OpenAPIScripMaster.json"
)

const (
	routeLogin   = "/rest/auth/angelbroking/user/v1/loginByPassword"
	routeRefresh = "/rest/auth/angelbroking/jwt/v1/generateTokens"
	routeLogout  = "/rest/secure/angelbroking/user/v1/logout"
	routeProfile = "/rest/secure/angelbroking/user/v1/getProfile"

	routePlaceOrder   = "/rest/secure/angelbroking/order/v1/placeOrder"
	routeModifyOrder  = "/rest/secure/angelbroking/order/v1/modifyOrder"
	routeCancelOrder  = "/rest/secure/angelbroking/order/v1/cancelOrder"
	routeOrderBook    = "/rest/secure/angelbroking/order/v1/getOrderBook"
	routeTradeBook    = "/rest/secure/angelbroking/order/v1/getTradeBook"
	routeHolding      = "/rest/secure/angelbroking/portfolio/v1/getHolding"
	routeAllHolding   = "/rest/secure/angelbroking/portfolio/v1/getAllHolding"
	routePosition     = "/rest/secure/angelbroking/order/v1/getPosition"
	routeOrderDetails = "/rest/secure/angelbroking/order/v1/details/"
	routeFunds        = "/rest/secure/angelbroking/user/v1/getRMS"
)

// invalid or expired jwt
var unauthorizedCodes = []string{"AG8001", "AG8002", "AB1010"}

var endpointCategories = map[string]limiter.EndpointCategory{
	routePlaceOrder:   limiter.CategoryOrder,
	routeModifyOrder:  limiter.CategoryOrder,
	routeCancelOrder:  limiter.CategoryOrder,
	routeOrderBook:    limiter.CategoryData,
	routeTradeBook:    limiter.CategoryData,
	routeHolding:      limiter.CategoryData,
	routeAllHolding:   limiter.CategoryData,
	routePosition:     limiter.CategoryData,
	routeOrderDetails: limiter.CategoryData,
	routeFunds:        limiter.CategoryNonTrading,
	routeProfile:      limiter.CategoryNonTrading,
}

// NewRateLimiter returns a limiter configured with SmartAPI's limits
func NewRateLimiter() *limiter.HTTPRateLimiter {
	return limiter.NewHTTPRateLimiter(limiter.AngelOneLimits(), endpointCategories)
}
