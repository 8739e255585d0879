// Package asyncmodbus is an asynchronous Modbus client. A Client writes
// request frames to a TCP, UDP or serial connection and resolves the pending
// call of every request when the matching response arrives.
package asyncmodbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rwirdemann/asyncmodbus/message"
	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
	"github.com/rwirdemann/asyncmodbus/scheduler"
	"github.com/rwirdemann/asyncmodbus/transaction"
)

// State is the connection state of a client.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Client correlates requests and responses on one connection at a time.
// All methods are safe for concurrent use. Completion handlers of pending
// calls never run under a client lock and may call the client again.
type Client struct {
	dialer      modbus.Dialer
	framer      Framer
	scheduler   scheduler.Scheduler
	table       *transaction.Table
	ids         transaction.Allocator
	logger      Logger
	metrics     clientMetrics
	port        ProtocolPort
	resyncDelay time.Duration

	// mu guards the fields below as well as framer and ids.
	mu     sync.Mutex
	state  State
	conn   modbus.Connection
	reg    scheduler.Registration
	resync scheduler.Timer
	epoch  uint64

	// writeMu keeps frames of concurrent calls from interleaving.
	writeMu sync.Mutex
}

type ClientOption func(*Client)

func WithLogger(l Logger) ClientOption {
	return func(c *Client) {
		c.logger = defaultLogger(l)
	}
}

func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m.forTransport(c.dialer.String())
	}
}

// WithProtocolPort traces every frame sent and received to p.
func WithProtocolPort(p ProtocolPort) ClientOption {
	return func(c *Client) {
		if p != nil {
			c.port = p
		}
	}
}

// WithResyncDelay sets how long a stalled framer waits before it continues
// with the bytes it still holds.
func WithResyncDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.resyncDelay = d
	}
}

// NewClient creates a disconnected client. Responses and timers are
// delivered through sched.
func NewClient(dialer modbus.Dialer, framer Framer, sched scheduler.Scheduler, opts ...ClientOption) *Client {
	c := &Client{
		dialer:    dialer,
		framer:    framer,
		scheduler: sched,
		ids:       transaction.NewAllocator(framer.Addressing()),
		logger:    defaultLogger(nil),
		port:      nopPort{},
	}
	c.metrics = (*Metrics)(nil).forTransport(dialer.String())
	// The gate is evaluated by Register, which is only called with c.mu held.
	c.table = transaction.NewTable(func() bool { return c.state == Connected })
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the transport and starts reading from it. Connecting an
// already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Connected:
		c.mu.Unlock()
		return nil
	case Connecting:
		c.mu.Unlock()
		return ErrConnecting
	}
	c.state = Connecting
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connecting {
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("%w: closed while connecting to %s", ErrConnectionFailure, c.dialer)
	}
	if err != nil {
		c.state = Disconnected
		c.metrics.failures.Inc()
		c.logger.Error("connect failed", "transport", c.dialer.String(), "error", err)
		return fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}

	c.epoch++
	epoch := c.epoch
	c.conn = conn
	c.ids = transaction.NewAllocator(c.framer.Addressing())
	c.framer.Reset()
	c.state = Connected
	c.reg = c.scheduler.OnReadable(conn,
		func(data []byte) { c.receive(epoch, data) },
		func(err error) { c.lost(epoch, err) },
	)
	c.logger.Info("connected", "transport", c.dialer.String(), "backend", c.scheduler.Loop().Name())
	return nil
}

// Execute sends req and returns its pending call. While the client is not
// connected the call is returned already failed with ErrConnectionFailure,
// a request that doesn't fit into a frame fails with modbus.ErrInvalidPDU.
func (c *Client) Execute(req *modbus.PDU) *transaction.PendingCall {
	if err := req.Validate(); err != nil {
		return transaction.Failed(0, err)
	}
	c.mu.Lock()
	id, err := c.ids.Next(req, c.table.Has)
	var frame []byte
	if err == nil {
		frame, err = c.framer.Encode(req, uint16(id))
	}
	if err != nil && c.state == Connected {
		c.mu.Unlock()
		return transaction.Failed(id, err)
	}
	call := c.table.Register(id)
	conn, epoch := c.conn, c.epoch
	c.mu.Unlock()
	if call.IsDone() {
		return call
	}

	c.metrics.pending.Set(float64(c.table.Count()))
	c.port.InfoX(message.Raw("TX", frame))
	c.port.InfoX(message.Decoded("TX", uint16(id), req))

	c.writeMu.Lock()
	_, err = conn.Write(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.lost(epoch, err)
		return call
	}
	c.metrics.requests.Inc()
	return call
}

// OnReceive feeds bytes read from the current connection to the framer and
// resolves the pending calls of all complete frames. Empty data is ignored.
func (c *Client) OnReceive(data []byte) {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()
	c.receive(epoch, data)
}

func (c *Client) receive(epoch uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	if c.epoch != epoch || c.state != Connected {
		c.mu.Unlock()
		return
	}
	c.port.InfoX(message.Raw("RX", data))
	frames, err := c.framer.Feed(data)
	c.scheduleResyncLocked(epoch)
	c.mu.Unlock()

	c.dispatch(frames)
	if err != nil {
		c.lost(epoch, err)
	}
}

func (c *Client) resume(epoch uint64) {
	c.mu.Lock()
	c.resync = nil
	if c.epoch != epoch || c.state != Connected {
		c.mu.Unlock()
		return
	}
	frames, err := c.framer.Resume()
	c.scheduleResyncLocked(epoch)
	c.mu.Unlock()

	c.dispatch(frames)
	if err != nil {
		c.lost(epoch, err)
	}
}

func (c *Client) scheduleResyncLocked(epoch uint64) {
	if c.resync != nil || !c.framer.Stalled() {
		return
	}
	c.resync = c.scheduler.AfterFunc(c.resyncDelay, func() { c.resume(epoch) })
}

func (c *Client) dispatch(frames []modbus.Frame) {
	for _, f := range frames {
		if f.Err != nil {
			if c.table.Fail(transaction.ID(f.TransactionId), f.Err) {
				c.logger.Warn("response not decodable",
					"transport", c.dialer.String(),
					"transaction", f.TransactionId,
					"error", f.Err)
			}
			continue
		}
		c.port.InfoX(message.Decoded("RX", f.TransactionId, f.PDU))
		if !c.table.Resolve(transaction.ID(f.TransactionId), f.PDU) {
			c.metrics.unmatched.Inc()
			c.logger.Debug("response without pending call",
				"transport", c.dialer.String(),
				"transaction", f.TransactionId,
				"pdu", f.PDU.String())
			continue
		}
		c.metrics.responses.Inc()
	}
	if len(frames) > 0 {
		c.metrics.pending.Set(float64(c.table.Count()))
	}
}

func (c *Client) discarded(fe *modbus.FramingError) {
	c.metrics.discards.Inc()
	c.logger.Warn("bytes discarded", "transport", c.dialer.String(), "reason", fe.Reason, "bytes", fe.Discarded)
}

// lost closes the connection of epoch after a transport or framing error.
func (c *Client) lost(epoch uint64, err error) {
	c.mu.Lock()
	if c.epoch != epoch || c.state != Connected {
		c.mu.Unlock()
		return
	}
	pending, conn := c.disconnectLocked()
	c.mu.Unlock()

	c.metrics.failures.Inc()
	c.logger.Error("connection lost", "transport", c.dialer.String(), "error", err)
	_ = c.release(conn, pending, fmt.Errorf("%w: %w", ErrConnectionFailure, err))
}

// Close drops the connection and fails every pending call with
// ErrConnectionFailure. Closing a disconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return nil
	}
	pending, conn := c.disconnectLocked()
	c.mu.Unlock()

	c.logger.Info("disconnected", "transport", c.dialer.String(), "pending", len(pending))
	return c.release(conn, pending, fmt.Errorf("%w: connection closed", ErrConnectionFailure))
}

func (c *Client) disconnectLocked() (transaction.Pending, modbus.Connection) {
	c.state = Disconnected
	if c.reg != nil {
		c.reg.Cancel()
		c.reg = nil
	}
	if c.resync != nil {
		c.resync.Stop()
		c.resync = nil
	}
	conn := c.conn
	c.conn = nil
	c.framer.Reset()
	return c.table.Detach(), conn
}

func (c *Client) release(conn modbus.Connection, pending transaction.Pending, cause error) error {
	pending.FailAll(cause)
	c.metrics.pending.Set(0)
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Cancel gives up waiting for call and fails it with err. Its id becomes
// free again.
func (c *Client) Cancel(call *transaction.PendingCall, err error) bool {
	if !c.table.Cancel(call, err) {
		return false
	}
	c.metrics.pending.Set(float64(c.table.Count()))
	return true
}

// IsConnected reports whether requests are currently accepted.
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PendingCount returns the number of calls waiting for a response.
func (c *Client) PendingCount() int {
	return c.table.Count()
}

// String returns the transport endpoint.
func (c *Client) String() string {
	return c.dialer.String()
}
