package oswal

import (
	"github.com/samarthkathal/broker-go/internal/limiter"
)

// BrokerName identifies Motilal Oswal in logs, metrics and the symbol store
const BrokerName = "oswal"

const (
	// DefaultBaseURL is the OpenAPI root
	DefaultBaseURL = "https://openapi.motilaloswal.com"
	// DefaultScripMasterURL serves one CSV per exchange, selected with ?name=
	DefaultScripMasterURL = "https://openapi.motilaloswal.com/getscripmastercsv"
)

// DefaultScripExchanges are the exchange files downloaded on a reload
var DefaultScripExchanges = []string{"NSE", "BSE", "NSEFO", "BSEFO", "NSECD", "MCX"}

const (
	routeLogin     = "/rest/login/v3/authdirectapi"
	routeVerifyOTP = "/rest/login/v3/verifyotp"
	routeLogout    = "/rest/login/v1/logout"
	routeProfile   = "/rest/login/v1/getprofile"

	routePlaceOrder  = "/rest/trans/v1/placeorder"
	routeModifyOrder = "/rest/trans/v2/modifyorder"
	routeCancelOrder = "/rest/trans/v1/cancelorder"
	routeOrderBook   = "/rest/book/v2/getorderbook"
	routeTradeBook   = "/rest/book/v1/gettradebook"
	routeHolding     = "/rest/report/v1/getdpholding"
	routePosition    = "/rest/book/v1/getposition"
	routeOrderDetail = "/rest/book/v2/getorderdetailbyuniqueorderid"
	routeFunds       = "/rest/report/v1/getreportmarginsummary"
)

// missing or rejected AuthToken
var unauthorizedCodes = []string{"MO9999"}

var endpointCategories = map[string]limiter.EndpointCategory{
	routePlaceOrder:  limiter.CategoryOrder,
	routeModifyOrder: limiter.CategoryOrder,
	routeCancelOrder: limiter.CategoryOrder,
	routeOrderBook:   limiter.CategoryData,
	routeTradeBook:   limiter.CategoryData,
	routeHolding:     limiter.CategoryData,
	routePosition:    limiter.CategoryData,
	routeOrderDetail: limiter.CategoryData,
	routeFunds:       limiter.CategoryNonTrading,
	routeProfile:     limiter.CategoryNonTrading,
}

// NewRateLimiter returns a limiter configured with the OpenAPI limits
func NewRateLimiter() *limiter.HTTPRateLimiter {
	return limiter.NewHTTPRateLimiter(limiter.OswalLimits(), endpointCategories)
}
