// Package orderupdate streams Dhan order alerts over websocket and hands
// them to callers as broker.OrderBookEntry values.
package orderupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
)

// DefaultURL is the Dhan order update endpoint
const DefaultURL = "wss://api-order-update.dhan.co"

const (
	defaultPingInterval = 10 * time.Second
	defaultPongWait     = 40 * time.Second
	writeTimeout        = 10 * time.Second
)

// Client is a single order update connection. It is not restartable: after
// Close or a dropped connection create a new Client.
type Client struct {
	url          string
	cred         auth.Credential
	dialer       *websocket.Dialer
	logger       zerolog.Logger
	pingInterval time.Duration
	pongWait     time.Duration

	handlers      []Handler
	errorHandlers []ErrorHandler

	mu         sync.Mutex
	conn       *websocket.Conn
	connecting bool
	closing    bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a client for the session in cred. Connect opens the stream.
func New(cred auth.Credential, opts ...Option) *Client {
	c := &Client{
		url:  DefaultURL,
		cred: cred,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		logger:       zerolog.Nop(),
		pingInterval: defaultPingInterval,
		pongWait:     defaultPongWait,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the stream, sends the login frame and starts reading. Only
// the first call on a Client may connect.
func (c *Client) Connect(ctx context.Context) error {
	if c.cred.ClientID == "" || c.cred.AccessToken == "" {
		return broker.NewErrorResponse(broker.ErrNotAuthenticated, "", "order update needs a client id and access token", nil)
	}

	c.mu.Lock()
	if c.connecting || c.closing {
		c.mu.Unlock()
		return errors.New("order update client already used")
	}
	c.connecting = true
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial order update: %v", broker.ErrTransport, err)
	}

	var login loginRequest
	login.LoginReq.MsgCode = loginMsgCode
	login.LoginReq.ClientID = c.cred.ClientID
	login.LoginReq.Token = c.cred.AccessToken
	login.UserType = "SELF"
	frame, err := json.Marshal(login)
	if err != nil {
		conn.Close()
		return fmt.Errorf("encode login: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		conn.Close()
		return fmt.Errorf("%w: send login: %v", broker.ErrTransport, err)
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		conn.Close()
		return errors.New("order update client closed during connect")
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info().Str("client_id", c.cred.ClientID).Msg("order update connected")

	go c.readLoop(conn)
	go c.pingLoop(conn)
	return nil
}

// Done is closed when the read loop exits
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.done)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(c.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosing() {
				c.logger.Warn().Err(err).Msg("order update read failed")
				c.notifyError(fmt.Errorf("%w: order update read: %v", broker.ErrTransport, err))
			}
			return
		}

		entry, ok, err := ParseOrderAlert(data)
		if err != nil {
			c.logger.Debug().Err(err).Msg("order update frame dropped")
			c.notifyError(err)
			continue
		}
		if !ok {
			continue
		}
		for _, h := range c.handlers {
			h(entry)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.logger.Debug().Err(err).Msg("order update ping failed")
				return
			}
		}
	}
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *Client) notifyError(err error) {
	for _, h := range c.errorHandlers {
		h(err)
	}
}

// Close sends a close frame and waits for the read loop to finish
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		conn := c.conn
		c.mu.Unlock()
		close(c.stop)

		if conn == nil {
			close(c.done)
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))

		select {
		case <-c.done:
		case <-time.After(5 * time.Second):
			conn.Close()
			<-c.done
		}
		c.logger.Info().Msg("order update closed")
	})
	return nil
}
