package scheduler

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"
)

const taskQueueSize = 256

// EventLoop runs every callback on a single goroutine. Reader goroutines and
// timers only post work to it, so client state touched from callbacks has a
// single owner.
type EventLoop struct {
	clock clock.Clock
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}

	group     errgroup.Group
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewEventLoop(clk clock.Clock) *EventLoop {
	if clk == nil {
		clk = clock.New()
	}
	return &EventLoop{
		clock: clk,
		tasks: make(chan func(), taskQueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the loop goroutine. Further calls do nothing.
func (l *EventLoop) Start() {
	l.startOnce.Do(func() {
		l.group.Go(func() error {
			l.run()
			return nil
		})
		slog.Debug("event loop started")
	})
}

func (l *EventLoop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case task := <-l.tasks:
			task()
		}
	}
}

// Post queues task for the loop goroutine. It reports false once the loop
// is stopped.
func (l *EventLoop) Post(task func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case <-l.quit:
		return false
	case l.tasks <- task:
		return true
	}
}

func (l *EventLoop) OnReadable(r io.Reader, onData func([]byte), onError func(error)) Registration {
	reg := &registration{}
	l.group.Go(func() error {
		readLoop(r, func(data []byte) bool {
			if !reg.active() {
				return false
			}
			return l.Post(func() {
				if reg.active() {
					onData(data)
				}
			})
		}, func(err error) {
			l.Post(func() {
				if reg.active() {
					onError(err)
				}
			})
		})
		return nil
	})
	return reg
}

func (l *EventLoop) AfterFunc(d time.Duration, f func()) Timer {
	return l.clock.AfterFunc(d, func() {
		l.Post(f)
	})
}

func (l *EventLoop) Loop() Loop {
	return l
}

func (l *EventLoop) Name() string {
	return "eventloop"
}

// Stop ends the loop. Tasks still queued are dropped.
func (l *EventLoop) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
		slog.Debug("event loop stopped")
	})
}

func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

func (l *EventLoop) Wait() error {
	return l.group.Wait()
}
