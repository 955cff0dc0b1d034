package orderupdate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeStream checks the login frame, then pushes frames and keeps
// reading until the client closes
func newFakeStream(t *testing.T, frames ...string) (*httptest.Server, chan loginRequest) {
	t.Helper()
	logins := make(chan loginRequest, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var login loginRequest
		if json.Unmarshal(data, &login) == nil {
			logins <- login
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, logins
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

var testCred = auth.Credential{ClientID: "1000000001", AccessToken: "tok"}

func TestStreamDeliversAlerts(t *testing.T) {
	srv, logins := newFakeStream(t, `{"Type":"heartbeat"}`, `garbage`, alertFrame)

	alerts := make(chan broker.OrderBookEntry, 1)
	errs := make(chan error, 4)
	c := New(testCred,
		WithURL(wsURL(srv)),
		WithPingInterval(50*time.Millisecond, time.Second),
		WithHandler(func(e broker.OrderBookEntry) { alerts <- e }),
		WithErrorHandler(func(err error) { errs <- err }),
	)
	require.NoError(t, c.Connect(context.Background()))

	login := <-logins
	assert.Equal(t, 42, login.LoginReq.MsgCode)
	assert.Equal(t, "1000000001", login.LoginReq.ClientID)
	assert.Equal(t, "tok", login.LoginReq.Token)
	assert.Equal(t, "SELF", login.UserType)

	select {
	case e := <-alerts:
		assert.Equal(t, "112111182045", e.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("no alert delivered")
	}

	err := <-errs
	assert.ErrorIs(t, err, broker.ErrParse)

	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	default:
		t.Fatal("read loop still running after Close")
	}
	assert.Empty(t, errs)
}

func TestConnectNeedsCredential(t *testing.T) {
	err := New(auth.Credential{ClientID: "1000000001"}).Connect(context.Background())
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
}

func TestConnectDialFailure(t *testing.T) {
	c := New(testCred, WithURL("ws://127.0.0.1:1"))
	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, broker.ErrTransport)
	assert.NoError(t, c.Close())
}

func TestConcurrentConnectDialsOnce(t *testing.T) {
	srv, logins := newFakeStream(t)
	c := New(testCred, WithURL(wsURL(srv)))

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- c.Connect(context.Background()) }()
	}
	first, second := <-errs, <-errs

	if first == nil {
		assert.Error(t, second)
	} else {
		assert.NoError(t, second)
	}
	<-logins
	assert.Empty(t, logins)

	require.NoError(t, c.Close())
	<-c.Done()
}
