// Package bridge is the client side of the simulator bridge: a websocket
// connection over which the scene script's functions (path planning, IK,
// joint targets, suction, camera and detector) are called by name.
//
// Messages are JSON objects. A request is {"id", "method", "params"} with
// positional params; a response is {"id", "result"} or {"id", "error"}.
// Calls are serialized; the bridge answers them in order.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultCallTimeout bounds a single call when the context has no deadline.
const DefaultCallTimeout = 30 * time.Second

// Transport errors.
var (
	ErrClosed = errors.New("bridge connection is closed")
	ErrBroken = errors.New("bridge connection is broken")
)

// RemoteError is an error reported by the scene script.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge %s: %s", e.Method, e.Message)
}

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// Client is a connection to the bridge. It is safe for concurrent use; calls
// are executed one at a time.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
	closed bool
	broken error

	callTimeout time.Duration
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCallTimeout bounds calls whose context carries no deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithLogger sets the logger used for call tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Dial connects to the bridge at addr (ws:// or wss://).
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", addr, err)
	}
	c := &Client{
		conn:        conn,
		callTimeout: DefaultCallTimeout,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Close closes the connection. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}

// Call invokes method with positional params and decodes the result into
// result, which may be nil to discard it. A JSON null result leaves result
// untouched; use CallRaw to tell null apart.
func (c *Client) Call(ctx context.Context, method string, result any, params ...any) error {
	raw, err := c.CallRaw(ctx, method, params...)
	if err != nil {
		return err
	}
	if result == nil || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("bridge %s: decoding result: %w", method, err)
	}
	return nil
}

// CallRaw invokes method and returns the undecoded result.
func (c *Client) CallRaw(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.broken != nil {
		return nil, fmt.Errorf("%w: %v", ErrBroken, c.broken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params == nil {
		params = []any{}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.callTimeout)
	}

	c.nextID++
	id := c.nextID
	start := time.Now()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := c.conn.WriteJSON(request{ID: id, Method: method, Params: params}); err != nil {
		c.broken = err
		return nil, fmt.Errorf("bridge %s: send: %w", method, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	// Cancellation unblocks the read below by expiring its deadline.
	cancelled := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(cancelled)
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			<-cancelled
		}
	}()

	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			// A websocket that failed a read cannot be read again.
			c.broken = err
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("bridge %s: receive: %w", method, err)
		}
		if resp.ID != id {
			c.logger.Debug("discarding stale bridge response", zap.Uint64("id", resp.ID), zap.Uint64("want", id))
			continue
		}
		c.logger.Debug("bridge call",
			zap.String("method", method),
			zap.Duration("took", time.Since(start)),
			zap.Bool("error", resp.Error != ""))
		if resp.Error != "" {
			return nil, &RemoteError{Method: method, Message: resp.Error}
		}
		return resp.Result, nil
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
