package angelone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSmartAPI struct {
	*httptest.Server
	orders atomic.Int32
	// placeBody overrides the placeOrder response
	placeBody string
}

func newFakeSmartAPI(t *testing.T) *fakeSmartAPI {
	t.Helper()
	f := &fakeSmartAPI{}
	mux := http.NewServeMux()

	mux.HandleFunc(routeLogin, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["password"] != "1234" {
			w.Write([]byte(`{"status":false,"message":"Invalid credentials","errorcode":"AB1007","data":null}`))
			return
		}
		assert.Len(t, req["totp"], 6)
		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":{"jwtToken":"Bearer tok-1","refreshToken":"ref-1","feedToken":"feed-1"}}`))
	})
	mux.HandleFunc(routeRefresh, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"message":"Invalid refresh token","errorcode":"AB1010","data":null}`))
	})
	mux.HandleFunc(routePlaceOrder, func(w http.ResponseWriter, r *http.Request) {
		f.orders.Add(1)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "api-key", r.Header.Get("X-PrivateKey"))
		assert.Equal(t, "USER", r.Header.Get("X-UserType"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SBIN-EQ", req["tradingsymbol"])
		assert.Equal(t, "3045", req["symboltoken"])

		if f.placeBody != "" {
			w.Write([]byte(f.placeBody))
			return
		}
		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":{"script":"SBIN-EQ","orderid":"200910000000111","uniqueorderid":"34reqfachdfih"}}`))
	})
	mux.HandleFunc(routeOrderBook, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid Token","errorcode":"AG8001","status":false}`))
	})
	mux.HandleFunc(routeOrderDetails, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, routeOrderDetails+"34reqfachdfih", r.URL.Path)
		w.Write([]byte(`{"status":true,"message":"SUCCESS","data":{"orderid":"111","status":"complete","uniqueorderid":"34reqfachdfih"}}`))
	})
	mux.HandleFunc(routeProfile, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ref-1", r.URL.Query().Get("refreshToken"))
		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":{"clientcode":"A123","name":"TEST USER",
			"email":"","mobileno":"","exchanges":["NSE","BSE","NFO"],"products":["MARGIN","MIS","NRML","CNC"],"brokerid":"B2C"}}`))
	})
	mux.HandleFunc(routeAllHolding, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":{"holdings":[],"totalholding":{
			"totalholdingvalue":5294,"totalinvvalue":5116,"totalprofitandloss":178.14,"totalpnlpercentage":3.48}}}`))
	})
	mux.HandleFunc(routeLogout, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":""}`))
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestClient(f *fakeSmartAPI) *Client {
	return New("api-key", WithBaseURL(f.URL), WithResolver(testResolver()))
}

func login(t *testing.T, c *Client) {
	t.Helper()
	require.NoError(t, c.Login(context.Background(), auth.LoginRequest{
		ClientID:   "A123",
		Password:   "1234",
		TOTPSecret: "JBSWY3DPEHPK3PXP",
	}))
}

func TestLoginAndPlaceOrder(t *testing.T) {
	f := newFakeSmartAPI(t)
	c := newTestClient(f)
	login(t, c)

	assert.Equal(t, auth.Authenticated, c.Session().State())
	cred, err := c.Session().Credential()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", cred.AccessToken)
	assert.Equal(t, "feed-1", cred.FeedToken)

	resp, err := c.PlaceOrder(context.Background(), sbinOrder())
	require.NoError(t, err)
	assert.Equal(t, "200910000000111", resp.OrderID)
	assert.Equal(t, "34reqfachdfih", resp.UniqueOrderID)
}

func TestLoginFailureKeepsSessionUnauthenticated(t *testing.T) {
	f := newFakeSmartAPI(t)
	c := newTestClient(f)

	err := c.Login(context.Background(), auth.LoginRequest{ClientID: "A123", Password: "bad", TOTP: "123456"})
	require.Error(t, err)

	var er *broker.ErrorResponse
	require.ErrorAs(t, err, &er)
	assert.Equal(t, "AB1007", er.ErrorCode)
	assert.Equal(t, auth.Unauthenticated, c.Session().State())
}

func TestOperationsFailFastWithoutSession(t *testing.T) {
	f := newFakeSmartAPI(t)
	c := newTestClient(f)

	_, err := c.PlaceOrder(context.Background(), sbinOrder())
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
	assert.Zero(t, f.orders.Load())

	_, err = c.GetFunds(context.Background())
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
}

func TestUnauthorizedStatusExpiresSession(t *testing.T) {
	f := newFakeSmartAPI(t)
	c := newTestClient(f)
	login(t, c)

	_, err := c.GetOrderBook(context.Background())
	require.Error(t, err)

	var er *broker.ErrorResponse
	require.ErrorAs(t, err, &er)
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
	assert.Equal(t, "AG8001", er.ErrorCode)
	assert.Equal(t, auth.Expired, c.Session().State())

	_, err = c.GetOrderBook(context.Background())
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
}

func TestUnauthorizedErrorCodeInBody(t *testing.T) {
	f := newFakeSmartAPI(t)
	f.placeBody = `{"status":false,"message":"Invalid Token","errorcode":"AG8001","data":""}`
	c := newTestClient(f)
	login(t, c)

	_, err := c.PlaceOrder(context.Background(), sbinOrder())
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
	assert.Equal(t, auth.Expired, c.Session().State())
}

func TestUpstreamRejection(t *testing.T) {
	f := newFakeSmartAPI(t)
	f.placeBody = `{"status":false,"message":"Insufficient funds","errorcode":"RMS001","data":null}`
	c := newTestClient(f)
	login(t, c)

	_, err := c.PlaceOrder(context.Background(), sbinOrder())
	var er *broker.ErrorResponse
	require.ErrorAs(t, err, &er)
	assert.Equal(t, broker.StatusFailure, er.Status)
	assert.Equal(t, "RMS001", er.ErrorCode)
	assert.Equal(t, "Insufficient funds", er.Message)
	assert.Equal(t, auth.Authenticated, c.Session().State())
}

func TestGetOrderStatus(t *testing.T) {
	f := newFakeSmartAPI(t)
	c := newTestClient(f)
	login(t, c)

	v, err := c.GetOrderStatus(context.Background(), "34reqfachdfih")
	require.NoError(t, err)
	assert.Equal(t, "complete", v.OrderStatus)

	_, err = c.GetOrderStatus(context.Background(), "")
	assert.ErrorIs(t, err, broker.ErrInvalidOrderField)
}

func TestGetProfileAndHoldingSummary(t *testing.T) {
	f := newFakeSmartAPI(t)
	c := newTestClient(f)
	login(t, c)
	ctx := context.Background()

	p, err := c.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A123", p.ClientID)
	assert.Equal(t, "TEST USER", p.Name)
	assert.Equal(t, []string{"NSE", "BSE", "NFO"}, p.Exchanges)

	sum, err := c.GetHoldingSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "178.14", sum.PnL.Decimal.String())
	assert.Equal(t, "5116", sum.InvestedValue.Decimal.String())
}

func TestLogout(t *testing.T) {
	f := newFakeSmartAPI(t)
	c := newTestClient(f)
	login(t, c)

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, auth.Expired, c.Session().State())
	assert.Equal(t, BrokerName, c.Name())
}
