package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/erc4361/walletcore/pkg/log"
)

var (
	ErrAlreadyConnected = errors.New("bridge: already connected")
	ErrNotConnected     = errors.New("bridge: not connected")
	ErrNoResponse       = errors.New("bridge: no response")
)

// Invoker is the caller side of the bridge. Implementations must be safe for
// concurrent use.
type Invoker interface {
	// Invoke calls a route by name with pre-encoded string arguments and
	// waits for the response.
	Invoke(ctx context.Context, route string, args ...any) (*Response, error)
	// IsConnected reports whether an underlying transport is established.
	IsConnected() bool
}

// ClientConfig tunes the websocket client.
type ClientConfig struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
}

// DefaultClientConfig provides sensible defaults.
var DefaultClientConfig = ClientConfig{
	HandshakeTimeout: 5 * time.Second,
	PingInterval:     15 * time.Second,
}

// Client is a websocket Invoker. One request is matched to one response by
// request id; unsolicited messages are dropped.
type Client struct {
	cfg ClientConfig

	nextID        atomic.Uint64
	mu            sync.RWMutex // protects connCtx and responseSinks
	connCtx       *clientConn
	responseSinks map[uint64]chan *Response
	writeMu       sync.Mutex // serializes websocket writes
}

type clientConn struct {
	ctx  context.Context
	conn *websocket.Conn
	lg   log.Logger
}

var _ Invoker = (*Client)(nil)

// NewClient creates a disconnected bridge client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		cfg:           cfg,
		responseSinks: make(map[uint64]chan *Response),
	}
}

// Dial connects to the bridge host at url and blocks a background read loop
// on the connection. handleClosure is invoked once when the connection ends,
// with the first error observed, if any.
func (c *Client) Dial(parentCtx context.Context, url string, handleClosure func(err error)) error {
	if c.IsConnected() {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  c.cfg.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, _, err := dialer.DialContext(parentCtx, url, nil)
	if err != nil {
		return errors.Wrap(err, "bridge: websocket dial failed")
	}

	childCtx, cancel := context.WithCancel(parentCtx)

	var once sync.Once
	finish := func(err error) {
		cancel()
		once.Do(func() { handleClosure(err) })
	}

	c.mu.Lock()
	c.connCtx = &clientConn{
		ctx:  childCtx,
		conn: conn,
		lg:   log.FromContext(parentCtx).WithName("bridge-client"),
	}
	c.mu.Unlock()

	go c.closeOnDone(childCtx, conn)
	go c.readLoop(childCtx, conn, finish)
	go c.pingLoop(childCtx, conn, finish)

	return nil
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connCtx != nil && c.connCtx.ctx.Err() == nil
}

func (c *Client) closeOnDone(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	_ = conn.Close()

	c.mu.Lock()
	for _, sink := range c.responseSinks {
		close(sink)
	}
	c.responseSinks = make(map[uint64]chan *Response)
	c.mu.Unlock()
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, finish func(error)) {
	c.mu.RLock()
	lg := c.connCtx.lg
	c.mu.RUnlock()

	for {
		_, data, err := conn.ReadMessage()
		if ctx.Err() != nil {
			finish(nil)
			return
		} else if _, ok := err.(net.Error); ok {
			finish(errors.Wrap(err, "bridge: connection timeout"))
			return
		} else if err != nil {
			finish(errors.Wrap(err, "bridge: read failed"))
			return
		}

		var res Response
		if err := json.Unmarshal(data, &res); err != nil {
			lg.Warn("malformed bridge message", "message", string(data), "error", err)
			continue
		}

		c.mu.Lock()
		sink, exists := c.responseSinks[res.ID]
		c.mu.Unlock()
		if !exists {
			lg.Debug("dropping unsolicited bridge message", "id", res.ID, "route", res.Route)
			continue
		}

		select {
		case <-ctx.Done():
			finish(nil)
			return
		case sink <- &res:
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, finish func(error)) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.HandshakeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				finish(errors.Wrap(err, "bridge: ping failed"))
				return
			}
		}
	}
}

// Invoke calls a route with the given arguments and waits for the matching
// response or context cancellation.
func (c *Client) Invoke(ctx context.Context, route string, args ...any) (*Response, error) {
	req, err := NewRequest(c.nextID.Add(1), route, args...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.connCtx == nil || c.connCtx.ctx.Err() != nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := c.connCtx.conn
	connCtx := c.connCtx.ctx
	sink := make(chan *Response, 1)
	c.responseSinks[req.ID] = sink
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.responseSinks, req.ID)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "bridge: failed to marshal request")
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "bridge: failed to send request")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-connCtx.Done():
		return nil, ErrNotConnected
	case res, ok := <-sink:
		if !ok || res == nil {
			return nil, fmt.Errorf("%w for request %d", ErrNoResponse, req.ID)
		}
		return res, nil
	}
}
