// Package transport keeps a websocket connection to the AI backend open,
// redialing after failures and reporting frames and status to a Handler.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rcliao/agent-bridge/internal/logging"
	"github.com/rcliao/agent-bridge/internal/metrics"
)

// ErrNotConnected is returned by Send while no connection is up.
var ErrNotConnected = errors.New("transport not connected")

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("transport closed")

// Handler receives connection events. Calls come from the Run goroutine,
// one at a time.
type Handler interface {
	HandleMessage(text string)
	HandleConnectedChanged(connected bool)
	HandleTransportError(text string)
}

// Options configures a Client. Zero durations fall back to defaults.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	Dialer         *websocket.Dialer
	Logger         *zerolog.Logger
}

// Client is a reconnecting websocket client.
type Client struct {
	opts    Options
	handler Handler
	logger  zerolog.Logger
	limiter *rate.Limiter

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// New returns a client for opts.URL. It does not dial until Run.
func New(opts Options, h Handler) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	logger := logging.WithComponent("transport")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		opts:    opts,
		handler: h,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(opts.ReconnectDelay), 1),
		closed:  make(chan struct{}),
	}
}

// Run dials and serves the connection until ctx is done or Close is called,
// redialing at most once per ReconnectDelay.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.exitErr(ctx)
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.exitErr(ctx)
			}
			metrics.DialAttempts.WithLabelValues("error").Inc()
			c.logger.Warn().Err(err).Str("url", c.opts.URL).Msg("dial failed")
			c.handler.HandleTransportError(err.Error())
			continue
		}
		metrics.DialAttempts.WithLabelValues("ok").Inc()

		c.serve(ctx, conn)

		if ctx.Err() != nil {
			return c.exitErr(ctx)
		}
	}
}

func (c *Client) exitErr(ctx context.Context) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
		return ctx.Err()
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	return conn, nil
}

// serve owns one live connection until it drops.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info().Str("url", c.opts.URL).Msg("connected")
	c.handler.HandleConnectedChanged(true)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	pingDone := make(chan struct{})
	pingStop := make(chan struct{})
	go c.pingLoop(conn, pingStop, pingDone)

	err := c.readLoop(conn)

	close(pingStop)
	<-pingDone
	stop()

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	conn.Close()

	if err != nil && ctx.Err() == nil {
		c.logger.Warn().Err(err).Msg("connection lost")
		c.handler.HandleTransportError(err.Error())
	} else {
		c.logger.Info().Msg("disconnected")
	}
	c.handler.HandleConnectedChanged(false)
}

// readLoop returns nil on a normal close.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.handler.HandleMessage(string(data))
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

// IsConnected reports whether a connection is currently up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes one text frame. It fails with ErrNotConnected instead of
// queueing while offline.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close stops Run and closes the current connection with a normal close
// frame. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
			c.writeMu.Unlock()
		}
	})
	return nil
}
