package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrTransportClosed is returned to any pending completion when the
// socket drops or disconnect() is called, per the production-hardening
// requirement the source's original design lacked.
var ErrTransportClosed = fmt.Errorf("transport: closed")

const (
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
)

// NotificationHandler is invoked, on the client's single dispatch loop,
// with the "result" field of a subscription notification.
type NotificationHandler func(result json.RawMessage)

// Client is a reconnecting JSON-RPC/WebSocket client multiplexing pending
// requests and active subscriptions over one socket. All exported methods
// are safe for concurrent use; dispatch of responses and notifications
// happens serially on one internal read loop per connection, matching the
// single logical task loop the design calls for.
type Client struct {
	url       string
	reconnect bool

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	pending map[int64]chan rpcResult
	subs    map[string]NotificationHandler
	backoff time.Duration
	closed  bool

	nextID int64
	lat    *latencyTracker
}

const latencySampleCapacity = 256

// Latency returns the tail latency of recent Send round trips.
func (c *Client) Latency() TailLatency { return c.lat.snapshot() }

type rpcResult struct {
	result json.RawMessage
	err    error
}

// New constructs a Client for url. reconnect controls whether an
// unexpected socket close schedules a backoff-and-redial loop; it is true
// for normal operation and false for tests exercising a single
// connection's failure behavior in isolation.
func New(url string, reconnect bool) *Client {
	return &Client{
		url:       url,
		reconnect: reconnect,
		pending:   make(map[int64]chan rpcResult),
		subs:      make(map[string]NotificationHandler),
		backoff:   initialBackoff,
		lat:       newLatencyTracker(latencySampleCapacity),
	}
}

// Connect is idempotent: if a connection is already open it returns
// immediately, otherwise it dials and waits for the socket to open before
// returning.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrTransportClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.backoff = initialBackoff
	c.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump(conn)
	go c.pingLoop(conn)
	return nil
}

// readPump is the single dispatch loop for one connection: it owns frame
// classification and routes every response/notification serially.
func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onConnectionLost(conn)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.writeMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		c.writeMu.Unlock()
		if err != nil {
			return
		}
		c.mu.Lock()
		stillCurrent := c.conn == conn
		c.mu.Unlock()
		if !stillCurrent {
			return
		}
	}
}

func (c *Client) dispatch(data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return // not valid JSON: ignore, per "anything else: ignore"
	}

	if env.ID != nil {
		c.completeResponse(*env.ID, env.Result, env.Error)
		return
	}

	if env.Method != "" {
		var params notificationParams
		if err := json.Unmarshal(env.Params, &params); err != nil || len(params.Subscription) == 0 {
			return
		}
		c.dispatchNotification(string(params.Subscription), params.Result)
		return
	}
}

func (c *Client) completeResponse(id int64, result json.RawMessage, rpcErr *RPCError) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if rpcErr != nil {
		ch <- rpcResult{err: rpcErr}
		return
	}
	ch <- rpcResult{result: result}
}

func (c *Client) dispatchNotification(subKey string, result json.RawMessage) {
	c.mu.Lock()
	handler, ok := c.subs[subKey]
	c.mu.Unlock()
	if !ok {
		return // unknown subscription: silently dropped, e.g. post-unsubscribe race
	}
	handler(result)
}

// onConnectionLost fails every currently pending completion with
// ErrTransportClosed and, if reconnect is enabled, redials after a
// backoff that doubles (up to maxBackoff) after each failed attempt, until
// a dial succeeds, another connection is already open, or the client is
// disconnected. It never resubscribes or re-issues pending
// requests: that is the caller's contract.
func (c *Client) onConnectionLost(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return // already superseded by a newer connection
	}
	c.conn = nil
	pending := c.pending
	c.pending = make(map[int64]chan rpcResult)
	closed := c.closed
	reconnect := c.reconnect
	backoff := c.backoff
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- rpcResult{err: ErrTransportClosed}
	}

	if closed || !reconnect {
		return
	}

	for {
		time.Sleep(backoff)
		c.mu.Lock()
		if c.closed || c.conn != nil {
			c.mu.Unlock()
			return
		}
		next := backoff * 2
		if next > maxBackoff {
			next = maxBackoff
		}
		c.backoff = next
		c.mu.Unlock()

		if c.dial(context.Background()) == nil {
			return
		}
		backoff = next
	}
}

// Send issues a JSON-RPC request and blocks until a matching response
// arrives, ctx is done, or the transport closes.
func (c *Client) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan rpcResult, 1)
	c.mu.Lock()
	c.pending[id] = ch
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrTransportClosed
	}

	req := Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("transport: marshal request: %w", err)
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	writeErr := conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("transport: write request: %w", writeErr)
	}

	sentAt := time.Now()
	select {
	case res := <-ch:
		c.lat.record(time.Since(sentAt))
		return res.result, res.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Subscribe sends method/params, registers handler under the returned
// subscription id, and returns an unsubscribe closure. Calling the
// closure more than once is a no-op after the first call: no exception,
// no additional RPC.
func (c *Client) Subscribe(ctx context.Context, method, unsubscribeMethod string, params any, handler NotificationHandler) (func(), error) {
	raw, err := c.Send(ctx, method, params)
	if err != nil {
		return nil, err
	}
	subKey := string(raw)

	c.mu.Lock()
	c.subs[subKey] = handler
	c.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, subKey)
			c.mu.Unlock()
			var subID any
			if err := json.Unmarshal(raw, &subID); err == nil {
				_, _ = c.Send(context.Background(), unsubscribeMethod, []any{subID})
			}
		})
	}
	return unsubscribe, nil
}

// Disconnect sets reconnect=false, closes the socket, and fails all
// pending completions with ErrTransportClosed. It is the implementer of
// the design's required "explicit disconnect()" hardening.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.reconnect = false
	conn := c.conn
	pending := c.pending
	c.pending = make(map[int64]chan rpcResult)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- rpcResult{err: ErrTransportClosed}
	}
	if conn != nil {
		conn.Close()
	}
}
