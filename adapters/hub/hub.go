// Package hub is the push connection to the notification hub: the JSON hub
// protocol over a gorilla websocket, with keepalive pings and automatic
// reconnection after a dropped connection.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lborres/shopfront/core"
)

var (
	ErrAlreadyStarted    = errors.New("hub connection already started")
	ErrStopped           = errors.New("hub connection stopped")
	ErrNotConnected      = errors.New("hub connection not established")
	ErrHandshakeRejected = errors.New("hub rejected handshake")
	ErrInvocationFailed  = errors.New("hub invocation failed")
	ErrConnectionLost    = errors.New("hub connection lost")
)

// DefaultReconnectDelays are the waits before each automatic reconnect
// attempt. When all attempts fail the connection reports PushClosed.
var DefaultReconnectDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

const (
	DefaultKeepAliveInterval = 15 * time.Second
	DefaultServerTimeout     = 30 * time.Second
	DefaultHandshakeTimeout  = 15 * time.Second
	DefaultInvokeTimeout     = 30 * time.Second

	writeTimeout    = 10 * time.Second
	eventBufferSize = 16
)

type Options struct {
	ReconnectDelays   []time.Duration
	KeepAliveInterval time.Duration
	ServerTimeout     time.Duration // no frame for this long drops the connection
	HandshakeTimeout  time.Duration
	InvokeTimeout     time.Duration // used when the caller's context has no deadline
	Logger            *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelays == nil {
		o.ReconnectDelays = DefaultReconnectDelays
	}
	if o.KeepAliveInterval <= 0 {
		o.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if o.ServerTimeout <= 0 {
		o.ServerTimeout = DefaultServerTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.InvokeTimeout <= 0 {
		o.InvokeTimeout = DefaultInvokeTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Dialer returns a core.PushDialer building hub connections with opts.
func Dialer(opts Options) core.PushDialer {
	return func(hubURL string, src core.CredentialSource) core.PushConnection {
		return NewConnection(hubURL, src, opts)
	}
}

type completion struct {
	err error
}

// closeError is a close message sent by the hub.
type closeError struct {
	reason         string
	allowReconnect bool
}

func (e *closeError) Error() string {
	if e.reason == "" {
		return "hub closed the connection"
	}
	return "hub closed the connection: " + e.reason
}

// Connection implements core.PushConnection.
type Connection struct {
	hubURL      string
	credentials core.CredentialSource
	opts        Options
	logger      *slog.Logger
	dialer      *websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc

	events chan core.PushEvent
	queue  *eventQueue

	mu      sync.Mutex
	ws      *websocket.Conn
	started bool
	pending map[string]chan completion

	writeMu sync.Mutex

	stopOnce sync.Once
	done     chan struct{} // supervisor exited
	pumped   chan struct{} // pump exited
}

var _ core.PushConnection = (*Connection)(nil)

func NewConnection(hubURL string, src core.CredentialSource, opts Options) *Connection {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		hubURL:      hubURL,
		credentials: src,
		opts:        opts,
		logger:      opts.Logger.With("component", "hub"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan core.PushEvent, eventBufferSize),
		queue:   newEventQueue(),
		pending: make(map[string]chan completion),
		done:    make(chan struct{}),
		pumped:  make(chan struct{}),
	}
}

// Events is the single ordered queue of hub events. It is closed after
// PushClosed or Stop.
func (c *Connection) Events() <-chan core.PushEvent {
	return c.events
}

// Start connects and completes the protocol handshake.
func (c *Connection) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()
	if c.ctx.Err() != nil {
		return ErrStopped
	}

	ws, leftover, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		_ = ws.Close()
		return ErrStopped
	}
	c.ws = ws
	c.started = true
	c.mu.Unlock()

	c.logger.Debug("hub connected", "url", c.hubURL)
	go c.pump()
	go c.supervise(ws, leftover)
	return nil
}

// Invoke calls a hub method and waits for its completion.
func (c *Connection) Invoke(ctx context.Context, method string, args ...any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.InvokeTimeout)
		defer cancel()
	}

	id := uuid.NewString()
	ch := make(chan completion, 1)

	c.mu.Lock()
	ws := c.ws
	if ws == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if args == nil {
		args = []any{}
	}
	if err := c.write(ws, invocation{Type: typeInvocation, InvocationID: id, Target: method, Arguments: args}); err != nil {
		return fmt.Errorf("failed to invoke %s: %w", method, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return fmt.Errorf("%s: %w", method, res.err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrStopped
	}
}

// Stop closes the connection and the event queue. Safe to call more than
// once and before Start.
func (c *Connection) Stop() error {
	c.stopOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		ws, started := c.ws, c.started
		c.mu.Unlock()

		if ws != nil {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = ws.Close()
		}

		if !started {
			close(c.events)
			return
		}
		<-c.done
		<-c.pumped
		c.logger.Debug("hub connection stopped")
	})
	return nil
}

func (c *Connection) credential() string {
	if c.credentials == nil {
		return ""
	}
	return c.credentials()
}

// dial opens the websocket and performs the handshake. Records that
// arrived in the same frame as the handshake response are returned.
func (c *Connection) dial(ctx context.Context) (*websocket.Conn, [][]byte, error) {
	target, err := endpoint(c.hubURL, c.credential())
	if err != nil {
		return nil, nil, err
	}

	ws, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, nil, fmt.Errorf("failed to connect to hub: %w (status %d)", err, resp.StatusCode)
		}
		return nil, nil, fmt.Errorf("failed to connect to hub: %w", err)
	}

	leftover, err := c.handshake(ws)
	if err != nil {
		_ = ws.Close()
		return nil, nil, err
	}
	return ws, leftover, nil
}

func (c *Connection) handshake(ws *websocket.Conn) ([][]byte, error) {
	deadline := time.Now().Add(c.opts.HandshakeTimeout)

	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteMessage(websocket.TextMessage, frame(handshakeRecord)); err != nil {
		return nil, fmt.Errorf("failed to send handshake: %w", err)
	}

	_ = ws.SetReadDeadline(deadline)
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read handshake response: %w", err)
	}

	records := splitRecords(data)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrHandshakeRejected)
	}

	var resp handshakeResponse
	if err := json.Unmarshal(records[0], &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrHandshakeRejected, resp.Error)
	}

	return records[1:], nil
}

func (c *Connection) write(ws *websocket.Conn, v any) error {
	record, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeRaw(ws, record)
}

func (c *Connection) writeRaw(ws *websocket.Conn, record []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteMessage(websocket.TextMessage, frame(record))
}

// supervise serves ws until it drops, then reconnects through the
// configured delays.
func (c *Connection) supervise(ws *websocket.Conn, leftover [][]byte) {
	defer close(c.done)
	defer c.queue.close()

	for {
		err := c.serve(ws, leftover)
		c.failPending(err)
		if c.ctx.Err() != nil {
			return
		}

		var ce *closeError
		if errors.As(err, &ce) && !ce.allowReconnect {
			c.emit(core.PushEvent{Kind: core.PushClosed, Err: err})
			return
		}

		c.logger.Warn("hub connection dropped", "err", err)
		c.emit(core.PushEvent{Kind: core.PushReconnecting, Err: err})

		ws, leftover, err = c.reconnect()
		if err != nil {
			if c.ctx.Err() == nil {
				c.emit(core.PushEvent{Kind: core.PushClosed, Err: err})
			}
			return
		}
		c.emit(core.PushEvent{Kind: core.PushReconnected})
	}
}

func (c *Connection) reconnect() (*websocket.Conn, [][]byte, error) {
	var lastErr error

	for attempt, delay := range c.opts.ReconnectDelays {
		if !c.sleep(delay) {
			return nil, nil, ErrStopped
		}

		ws, leftover, err := c.dial(c.ctx)
		if err == nil {
			c.mu.Lock()
			c.ws = ws
			c.mu.Unlock()
			c.logger.Info("hub reconnected", "attempt", attempt+1)
			return ws, leftover, nil
		}

		lastErr = err
		c.logger.Warn("hub reconnect attempt failed", "attempt", attempt+1, "err", err)
	}

	if lastErr == nil {
		lastErr = ErrConnectionLost
	}
	return nil, nil, lastErr
}

func (c *Connection) sleep(d time.Duration) bool {
	if d <= 0 {
		return c.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// serve reads records from ws until an error or a close message.
func (c *Connection) serve(ws *websocket.Conn, leftover [][]byte) error {
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() { c.keepAlive(ws, quit) })
	defer func() {
		close(quit)
		_ = ws.Close()
		wg.Wait()
	}()

	for _, record := range leftover {
		if err := c.dispatch(record); err != nil {
			return err
		}
	}

	for {
		_ = ws.SetReadDeadline(time.Now().Add(c.opts.ServerTimeout))
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		for _, record := range splitRecords(data) {
			if err := c.dispatch(record); err != nil {
				return err
			}
		}
	}
}

func (c *Connection) keepAlive(ws *websocket.Conn, quit <-chan struct{}) {
	ticker := time.NewTicker(c.opts.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-c.ctx.Done():
			_ = ws.Close()
			return
		case <-ticker.C:
			if err := c.writeRaw(ws, pingRecord); err != nil {
				return
			}
		}
	}
}

func (c *Connection) dispatch(record []byte) error {
	var msg message
	if err := json.Unmarshal(record, &msg); err != nil {
		c.logger.Warn("dropping malformed hub record", "err", err)
		return nil
	}

	switch msg.Type {
	case typeInvocation:
		c.emit(decodeInvocation(msg, c.logger))
	case typeCompletion:
		c.complete(msg)
	case typePing:
	case typeClose:
		return &closeError{reason: msg.Error, allowReconnect: msg.AllowReconnect}
	default:
		c.logger.Debug("ignoring hub message", "type", msg.Type)
	}
	return nil
}

// decodeInvocation reads the (message, payload?) argument convention.
func decodeInvocation(msg message, logger *slog.Logger) core.PushEvent {
	ev := core.PushEvent{Kind: core.PushMessage, Target: msg.Target}

	if len(msg.Arguments) > 0 {
		if err := json.Unmarshal(msg.Arguments[0], &ev.Message); err != nil {
			ev.Message = string(msg.Arguments[0])
		}
	}
	if len(msg.Arguments) > 1 && string(msg.Arguments[1]) != "null" {
		var n core.Notification
		if err := json.Unmarshal(msg.Arguments[1], &n); err != nil {
			logger.Warn("dropping undecodable hub payload", "target", msg.Target, "err", err)
		} else {
			ev.Notification = &n
		}
	}

	return ev
}

func (c *Connection) complete(msg message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.InvocationID]
	delete(c.pending, msg.InvocationID)
	c.mu.Unlock()

	if !ok {
		return
	}
	var res completion
	if msg.Error != "" {
		res.err = fmt.Errorf("%w: %s", ErrInvocationFailed, msg.Error)
	}
	ch <- res
}

func (c *Connection) failPending(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ch := range c.pending {
		ch <- completion{err: fmt.Errorf("%w: %v", ErrConnectionLost, cause)}
		delete(c.pending, id)
	}
}

func (c *Connection) emit(ev core.PushEvent) {
	c.queue.push(ev)
}

// pump forwards queued events to the Events channel in order.
func (c *Connection) pump() {
	defer close(c.pumped)
	defer close(c.events)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.queue.ready:
		}

		items, closed := c.queue.drain()
		for _, ev := range items {
			select {
			case c.events <- ev:
			case <-c.ctx.Done():
				return
			}
		}
		if closed {
			return
		}
	}
}
