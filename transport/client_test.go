package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	broker "github.com/samarthkathal/broker-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSendsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/orders", r.URL.Path)
		assert.Equal(t, "token", r.Header.Get("access-token"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.JSONEq(t, `{"a":1}`, string(body))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"orderId":"1"}`))
	}))
	defer srv.Close()

	c := New("dhan", WithHTTPClient(srv.Client()))
	resp, err := c.Do(context.Background(), &Request{
		Method:   http.MethodPost,
		URL:      srv.URL + "/v2/orders",
		Header:   http.Header{"access-token": []string{"token"}},
		Body:     []byte(`{"a":1}`),
		Endpoint: "PlaceOrder",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"orderId":"1"}`, string(resp.Body))
}

func TestMutationNotRetriedOn5xx(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New("dhan", WithHTTPClient(srv.Client()), WithRetryBackoff(time.Millisecond))
	resp, err := c.Do(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestIdempotentRetriedOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New("dhan", WithHTTPClient(srv.Client()), WithRetryBackoff(time.Millisecond))
	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL, Idempotent: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestIdempotentRetryStopsAfterOne(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New("dhan", WithHTTPClient(srv.Client()), WithRetryBackoff(time.Millisecond))
	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL, Idempotent: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestTimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := New("dhan", WithHTTPClient(srv.Client()), WithTimeout(20*time.Millisecond))
	_, err := c.Do(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrTransport)
}

func TestHTTPClientPresets(t *testing.T) {
	for _, cfg := range []*HTTPClientConfig{DefaultConfig(), OrderEntryConfig(), ScripMasterConfig(), nil} {
		hc := NewHTTPClient(cfg)
		tr, ok := hc.Transport.(*http.Transport)
		require.True(t, ok)
		assert.EqualValues(t, 0x0303, tr.TLSClientConfig.MinVersion)
	}

	assert.Less(t, OrderEntryConfig().ResponseHeaderTimeout, DefaultConfig().ResponseHeaderTimeout)
	assert.Equal(t, 5*time.Minute, NewHTTPClient(ScripMasterConfig()).Timeout)
	assert.Zero(t, NewHTTPClient(nil).Timeout)
}
