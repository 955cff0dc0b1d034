package orderupdate

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Option configures a Client
type Option func(*Client)

// WithURL overrides the stream endpoint
func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

// WithDialer sets the websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "orderupdate").Logger()
	}
}

// WithPingInterval sets how often pings are sent. The read deadline is
// pongWait past the last pong.
func WithPingInterval(ping, pongWait time.Duration) Option {
	return func(c *Client) {
		c.pingInterval = ping
		c.pongWait = pongWait
	}
}

// WithHandler registers an order alert handler
func WithHandler(h Handler) Option {
	return func(c *Client) {
		c.handlers = append(c.handlers, h)
	}
}

// WithErrorHandler registers an error handler
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Client) {
		c.errorHandlers = append(c.errorHandlers, h)
	}
}
