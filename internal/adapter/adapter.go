// Package adapter holds the orchestration shared by the broker adapters:
// credential check, send, unauthorized handling, panic recovery, metrics and
// logging around every operation.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/internal/jsonx"
	"github.com/samarthkathal/broker-go/metrics"
	"github.com/samarthkathal/broker-go/transport"
)

// Core is embedded by every broker client
type Core struct {
	Broker    string
	Session   *auth.Session
	Transport transport.Doer
	Metrics   *metrics.Collector
	Logger    zerolog.Logger
	// UnauthorizedCodes are broker error codes meaning the token was rejected
	UnauthorizedCodes []string
}

// Send issues req signed with cred. A 401 expires cred's session and fails
// with broker.ErrNotAuthenticated; other statuses are left to the parser.
func (c *Core) Send(ctx context.Context, cred auth.Credential, req *transport.Request) (*transport.Response, error) {
	req.Broker = c.Broker

	resp, err := c.Transport.Do(ctx, req)
	if err != nil {
		return nil, broker.AsErrorResponse(err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.Session.OnUnauthorized(ctx, cred)
		code, msg := errorFields(resp.Body)
		if msg == "" {
			msg = fmt.Sprintf("%s rejected the session", c.Broker)
		}
		return nil, broker.NewErrorResponse(broker.ErrNotAuthenticated, code, msg, broker.RawData(resp.Body))
	}
	return resp, nil
}

func errorFields(body []byte) (code, message string) {
	obj, err := jsonx.DecodeObject(body)
	if err != nil {
		return "", ""
	}
	return obj.First("errorcode", "errorCode"), obj.First("message", "errorMessage", "internalErrorMessage")
}

// Run executes one adapter operation. fn receives the live credential and
// returns the parsed result. The returned error is always a
// *broker.ErrorResponse.
func Run[T any](ctx context.Context, c *Core, op string, fn func(ctx context.Context, cred auth.Credential) broker.Result[T]) (T, error) {
	start := time.Now()

	var res broker.Result[T]
	cred, err := c.Session.Credential()
	if err != nil {
		res = broker.Failure[T](err)
	} else {
		res = guard(c, op, func() broker.Result[T] { return fn(ctx, cred) })
	}

	if er := res.Err(); er != nil && !errors.Is(er, broker.ErrNotAuthenticated) && slices.Contains(c.UnauthorizedCodes, er.ErrorCode) {
		c.Session.OnUnauthorized(ctx, cred)
		res = broker.Failure[T](broker.NewErrorResponse(broker.ErrNotAuthenticated, er.ErrorCode, er.Message, er.Data))
	}

	v, err := res.Get()
	c.Metrics.RecordOperation(c.Broker, op, err)
	if err != nil {
		er := res.Err()
		c.Logger.Warn().
			Str("broker", c.Broker).
			Str("op", op).
			Str("code", er.ErrorCode).
			Dur("took", time.Since(start)).
			Msg(er.Message)
		return v, er
	}

	c.Logger.Debug().
		Str("broker", c.Broker).
		Str("op", op).
		Dur("took", time.Since(start)).
		Msg("operation succeeded")
	return v, nil
}

func guard[T any](c *Core, op string, fn func() broker.Result[T]) (res broker.Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error().
				Str("broker", c.Broker).
				Str("op", op).
				Bytes("stack", debug.Stack()).
				Msgf("recovered from panic: %v", r)
			res = broker.Failure[T](broker.NewErrorResponse(broker.ErrParse, broker.CodeParse,
				fmt.Sprintf("unable to parse %s response", c.Broker), nil))
		}
	}()
	return fn()
}

// Parse runs a response parser, turning any panic into the broker's
// PARSE_ERROR with the raw payload echoed
func Parse[T any](brokerName string, body []byte, fn func() broker.Result[T]) (res broker.Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = broker.Failure[T](broker.ParseFailure(brokerName, body))
		}
	}()
	return fn()
}

// Decode parses a JSON object body. A non-JSON body on an HTTP error status
// is reported as an upstream failure, anything else unparseable as
// PARSE_ERROR.
func Decode(brokerName string, status int, body []byte) (jsonx.Object, *broker.ErrorResponse) {
	obj, err := jsonx.DecodeObject(body)
	if err == nil {
		return obj, nil
	}
	if status >= http.StatusBadRequest {
		return nil, broker.UpstreamFailure(broker.CodeUpstream,
			fmt.Sprintf("%s returned HTTP %d", brokerName, status), broker.RawData(body))
	}
	return nil, broker.ParseFailure(brokerName, body)
}

// List returns the array of objects at key. A missing key or non-array is
// PARSE_ERROR; a null array is an empty list.
func List(brokerName string, body []byte, obj jsonx.Object, key string) ([]jsonx.Object, *broker.ErrorResponse) {
	arr, ok := obj.Array(key)
	if !ok {
		return nil, broker.ParseFailure(brokerName, body)
	}
	items, err := jsonx.Objects(arr)
	if err != nil {
		return nil, broker.ParseFailure(brokerName, body)
	}
	return items, nil
}
