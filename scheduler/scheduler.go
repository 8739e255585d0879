// Package scheduler adapts an event loop backend to the three operations the
// client engine needs: deliver bytes when a connection is readable, run a
// callback later, and expose the loop itself.
package scheduler

import (
	"io"
	"sync/atomic"
	"time"
)

// readBufferSize fits the largest Modbus ADU with room to spare, so a
// single read usually carries whole frames.
const readBufferSize = 512

// Registration stops deliveries for one reader. Cancel is idempotent and
// never blocks; a read that is in progress completes but is not delivered.
type Registration interface {
	Cancel()
}

// Timer is a scheduled callback.
type Timer interface {
	Stop() bool
}

// Loop is the handle of a running backend.
type Loop interface {
	Name() string
	// Stop ends callback dispatch. It does not close registered readers.
	Stop()
	// Done is closed once the loop stopped.
	Done() <-chan struct{}
	// Wait blocks until the loop and all reader goroutines have returned.
	Wait() error
}

// Scheduler is implemented once per backend. Implementations are safe for
// concurrent registration from many clients.
type Scheduler interface {
	// OnReadable reads from r until it fails. onData receives every chunk
	// that was read; onError receives the terminal read error once. Both run
	// in the scheduler's callback context, never concurrently with other
	// callbacks of the same scheduler.
	OnReadable(r io.Reader, onData func([]byte), onError func(error)) Registration

	// AfterFunc runs f in the callback context once d elapsed.
	AfterFunc(d time.Duration, f func()) Timer

	Loop() Loop
}

type registration struct {
	cancelled atomic.Bool
}

func (r *registration) Cancel() {
	r.cancelled.Store(true)
}

func (r *registration) active() bool {
	return !r.cancelled.Load()
}

// readLoop hands each chunk to deliver until deliver refuses or r fails.
func readLoop(r io.Reader, deliver func([]byte) bool, fail func(error)) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !deliver(data) {
				return
			}
		}
		if err != nil {
			fail(err)
			return
		}
	}
}
