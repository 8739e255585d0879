// Package transaction correlates responses with the calls waiting for them.
package transaction

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rwirdemann/asyncmodbus/future"
	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
)

// ID is the correlation key echoed by the peer. It is scoped to one
// connection.
type ID uint16

var (
	// ErrConnectionFailure resolves calls made or outstanding while the
	// connection is down.
	ErrConnectionFailure = errors.New("modbus: connection failure")
	// ErrTransactionInFlight is returned for a call whose id is still
	// pending.
	ErrTransactionInFlight = errors.New("modbus: transaction already in flight")
	// ErrNoFreeTransactionID is returned when every id is pending.
	ErrNoFreeTransactionID = errors.New("modbus: no free transaction id")
)

// PendingCall is the placeholder of one request.
type PendingCall struct {
	ID ID
	*future.Future[*modbus.PDU]
}

func newPendingCall(id ID) *PendingCall {
	return &PendingCall{ID: id, Future: future.New[*modbus.PDU]()}
}

// Failed returns a call for id that already holds err. It is not part of
// any table.
func Failed(id ID, err error) *PendingCall {
	return &PendingCall{ID: id, Future: future.Failed[*modbus.PDU](err)}
}

// Pending is a batch of calls taken out of a table.
type Pending []*PendingCall

// FailAll resolves every call in p with err and returns how many were
// still unresolved.
func (p Pending) FailAll(err error) int {
	n := 0
	for _, c := range p {
		if c.Fail(err) {
			n++
		}
	}
	return n
}

// Table maps transaction ids to pending calls. A table never resolves a
// call while holding its lock, so completion handlers may call back into the
// owner.
type Table struct {
	mu        sync.Mutex
	connected func() bool
	calls     map[ID]*PendingCall
}

// NewTable creates a table gated by connected. connected is evaluated on
// every Register; calls registered while it reports false are failed
// immediately and never stored.
func NewTable(connected func() bool) *Table {
	return &Table{connected: connected, calls: make(map[ID]*PendingCall)}
}

// Register creates the pending call for id.
func (t *Table) Register(id ID) *PendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected() {
		return Failed(id, fmt.Errorf("%w: not connected", ErrConnectionFailure))
	}
	if _, exists := t.calls[id]; exists {
		return Failed(id, fmt.Errorf("%w: id %d", ErrTransactionInFlight, id))
	}
	c := newPendingCall(id)
	t.calls[id] = c
	return c
}

// Resolve completes the call waiting for id with pdu and forgets it. It
// reports false when nobody waits for id; the table is left unchanged.
func (t *Table) Resolve(id ID, pdu *modbus.PDU) bool {
	c := t.take(id)
	if c == nil {
		return false
	}
	return c.Complete(pdu)
}

// Fail fails the call waiting for id with err and forgets it.
func (t *Table) Fail(id ID, err error) bool {
	c := t.take(id)
	if c == nil {
		return false
	}
	return c.Fail(err)
}

func (t *Table) take(id ID) *PendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, exists := t.calls[id]
	if exists {
		delete(t.calls, id)
	}
	return c
}

// Cancel fails call with err if it is still the pending call of its id and
// forgets it. A late response for the id is then unmatched.
func (t *Table) Cancel(call *PendingCall, err error) bool {
	t.mu.Lock()
	c, exists := t.calls[call.ID]
	if exists && c == call {
		delete(t.calls, call.ID)
	}
	t.mu.Unlock()

	if !exists || c != call {
		return false
	}
	return c.Fail(err)
}

// Detach removes and returns every pending call.
func (t *Table) Detach() Pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.calls) == 0 {
		return nil
	}
	p := make(Pending, 0, len(t.calls))
	for id, c := range t.calls {
		p = append(p, c)
		delete(t.calls, id)
	}
	return p
}

// FailAll resolves every pending call with err and empties the table.
func (t *Table) FailAll(err error) int {
	return t.Detach().FailAll(err)
}

// Has reports whether id is pending.
func (t *Table) Has(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.calls[id]
	return exists
}

// Count is the number of pending calls.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
