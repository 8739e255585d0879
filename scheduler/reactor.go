package scheduler

import (
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"
)

// Reactor dispatches callbacks directly on the goroutine that observed the
// event. One lock serializes all callbacks of a reactor.
type Reactor struct {
	clock clock.Clock
	mu    sync.Mutex
	quit  chan struct{}

	group    errgroup.Group
	stopOnce sync.Once
}

func NewReactor(clk clock.Clock) *Reactor {
	if clk == nil {
		clk = clock.New()
	}
	return &Reactor{clock: clk, quit: make(chan struct{})}
}

func (r *Reactor) stopped() bool {
	select {
	case <-r.quit:
		return true
	default:
		return false
	}
}

// dispatch runs f under the reactor lock unless the reactor or reg is
// done.
func (r *Reactor) dispatch(reg *registration, f func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped() || (reg != nil && !reg.active()) {
		return false
	}
	f()
	return true
}

func (r *Reactor) OnReadable(rd io.Reader, onData func([]byte), onError func(error)) Registration {
	reg := &registration{}
	r.group.Go(func() error {
		readLoop(rd, func(data []byte) bool {
			return r.dispatch(reg, func() { onData(data) })
		}, func(err error) {
			r.dispatch(reg, func() { onError(err) })
		})
		return nil
	})
	return reg
}

func (r *Reactor) AfterFunc(d time.Duration, f func()) Timer {
	return r.clock.AfterFunc(d, func() {
		r.dispatch(nil, f)
	})
}

func (r *Reactor) Loop() Loop {
	return r
}

func (r *Reactor) Name() string {
	return "reactor"
}

func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
}

func (r *Reactor) Done() <-chan struct{} {
	return r.quit
}

func (r *Reactor) Wait() error {
	return r.group.Wait()
}
