package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/metrics"
	"github.com/samarthkathal/broker-go/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDoer struct {
	calls int
	resp  *transport.Response
	err   error
}

func (s *stubDoer) Do(context.Context, *transport.Request) (*transport.Response, error) {
	s.calls++
	return s.resp, s.err
}

func newCore(doer transport.Doer) *Core {
	s := auth.NewSession("test", nil)
	s.Restore(auth.Credential{AccessToken: "tok"})
	return &Core{
		Broker:            "test",
		Session:           s,
		Transport:         doer,
		Metrics:           metrics.NewCollector(nil),
		Logger:            zerolog.Nop(),
		UnauthorizedCodes: []string{"AG8001"},
	}
}

func sendOp(c *Core) func(context.Context, auth.Credential) broker.Result[string] {
	return func(ctx context.Context, cred auth.Credential) broker.Result[string] {
		resp, err := c.Send(ctx, cred, &transport.Request{Method: http.MethodGet, URL: "http://x"})
		if err != nil {
			return broker.Failure[string](err)
		}
		return broker.Success(string(resp.Body) + ":" + cred.AccessToken)
	}
}

func TestRunSuccess(t *testing.T) {
	doer := &stubDoer{resp: &transport.Response{StatusCode: 200, Body: []byte("ok")}}
	c := newCore(doer)

	v, err := Run(context.Background(), c, "Op", sendOp(c))
	require.NoError(t, err)
	assert.Equal(t, "ok:tok", v)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Operations.WithLabelValues("test", "Op", metrics.OutcomeSuccess)))
}

func TestRun401ExpiresAndNextCallFailsFast(t *testing.T) {
	doer := &stubDoer{resp: &transport.Response{StatusCode: 401, Body: []byte(`{"errorCode":"DH-901","errorMessage":"Invalid token"}`)}}
	c := newCore(doer)

	_, err := Run(context.Background(), c, "Op", sendOp(c))
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
	er := broker.AsErrorResponse(err)
	assert.Equal(t, "DH-901", er.ErrorCode)
	assert.Equal(t, "Invalid token", er.Message)
	assert.Equal(t, auth.Expired, c.Session.State())

	_, err = Run(context.Background(), c, "Op", sendOp(c))
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
	assert.Equal(t, 1, doer.calls, "no network call once expired")
}

func TestLate401KeepsReplacedCredential(t *testing.T) {
	doer := &stubDoer{resp: &transport.Response{StatusCode: 401, Body: []byte(`{"errorCode":"DH-901"}`)}}
	c := newCore(doer)

	_, err := Run(context.Background(), c, "Op", func(ctx context.Context, cred auth.Credential) broker.Result[string] {
		c.Session.Restore(auth.Credential{AccessToken: "tok-2"})
		return sendOp(c)(ctx, cred)
	})
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
	assert.Equal(t, auth.Authenticated, c.Session.State())

	cur, err := c.Session.Credential()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", cur.AccessToken)
}

func TestRunUnauthorizedCode(t *testing.T) {
	c := newCore(&stubDoer{})
	_, err := Run(context.Background(), c, "Op", func(context.Context, auth.Credential) broker.Result[string] {
		return broker.Failure[string](broker.UpstreamFailure("AG8001", "Invalid Token", nil))
	})
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
	assert.Equal(t, "AG8001", broker.AsErrorResponse(err).ErrorCode)
	assert.Equal(t, auth.Expired, c.Session.State())
}

func TestRunTransportError(t *testing.T) {
	c := newCore(&stubDoer{err: fmt.Errorf("%w: dial tcp: refused", broker.ErrTransport)})
	_, err := Run(context.Background(), c, "Op", sendOp(c))
	assert.ErrorIs(t, err, broker.ErrTransport)
	assert.Equal(t, broker.CodeTransport, broker.AsErrorResponse(err).ErrorCode)
}

func TestRunRecoversPanic(t *testing.T) {
	c := newCore(&stubDoer{})
	_, err := Run(context.Background(), c, "Op", func(context.Context, auth.Credential) broker.Result[int] {
		var m map[string]int
		m["x"] = 1
		return broker.Success(1)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrParse)
	var er *broker.ErrorResponse
	require.True(t, errors.As(err, &er))
	assert.Equal(t, "unable to parse test response", er.Message)
}

func TestParseEchoesPayload(t *testing.T) {
	body := []byte(`{"data":[1,2]}`)
	res := Parse("dhan", body, func() broker.Result[int] {
		var arr []int
		return broker.Success(arr[3])
	})
	require.False(t, res.OK())
	assert.Equal(t, broker.CodeParse, res.Err().ErrorCode)
	assert.JSONEq(t, string(body), string(res.Err().Data))
}
