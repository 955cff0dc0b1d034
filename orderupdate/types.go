package orderupdate

import (
	"strings"

	broker "github.com/samarthkathal/broker-go"
)

// Dhan order statuses carried by order_alert messages
const (
	StatusTransit   = "TRANSIT"
	StatusPending   = "PENDING"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
	StatusTraded    = "TRADED"
	StatusExpired   = "EXPIRED"
)

// Handler receives every normalized order alert
type Handler func(broker.OrderBookEntry)

// ErrorHandler receives parse failures and connection errors
type ErrorHandler func(error)

// loginRequest is the first frame the stream expects
type loginRequest struct {
	LoginReq struct {
		MsgCode  int    `json:"MsgCode"`
		ClientID string `json:"ClientId"`
		Token    string `json:"Token"`
	} `json:"LoginReq"`
	UserType string `json:"UserType"`
}

const loginMsgCode = 42

// IsTerminal reports whether an order in status will see no further updates
func IsTerminal(status string) bool {
	switch strings.ToUpper(status) {
	case StatusRejected, StatusCancelled, StatusTraded, StatusExpired:
		return true
	}
	return false
}

// IsPartiallyFilled reports an order with both traded and remaining quantity
func IsPartiallyFilled(e broker.OrderBookEntry) bool {
	return e.FilledShares != nil && *e.FilledShares > 0 &&
		e.UnfilledShares != nil && *e.UnfilledShares > 0
}
