package asyncmodbus

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goburrow/serial"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rwirdemann/asyncmodbus/future"
	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
	"github.com/rwirdemann/asyncmodbus/rtu"
	"github.com/rwirdemann/asyncmodbus/scheduler"
	"github.com/rwirdemann/asyncmodbus/tcp"
	"github.com/rwirdemann/asyncmodbus/udp"
)

// Backend selects how callbacks are scheduled.
type Backend string

const (
	// BackendEventLoop runs all callbacks on one loop goroutine.
	BackendEventLoop Backend = "eventloop"
	// BackendReactor runs callbacks on the reading goroutines under one
	// reactor lock.
	BackendReactor Backend = "reactor"
)

// Kind selects the transport.
type Kind string

const (
	KindTCP Kind = "tcp"
	KindUDP Kind = "udp"
	KindRTU Kind = "rtu"
)

var supported = map[Backend]map[Kind]bool{
	BackendEventLoop: {KindTCP: true, KindUDP: true, KindRTU: true},
	BackendReactor:   {KindTCP: true, KindRTU: true},
}

// Supports reports whether b can drive transport k.
func Supports(b Backend, k Kind) bool {
	return supported[b][k]
}

// Options configure a client built by New.
type Options struct {
	Backend Backend
	Kind    Kind

	// Address is host[:port] for tcp and udp and the device path for rtu.
	Address string
	// Serial holds the line settings for rtu. Zero values take the
	// defaults of rtu.DefaultConfig.
	Serial serial.Config
	// Timeout bounds dialing.
	Timeout time.Duration

	MaxBuffer     int
	StrictFraming bool
	// ResyncDelay overrides the silent interval after which a stalled
	// serial framer continues.
	ResyncDelay time.Duration

	Decoder      modbus.Decoder
	Clock        clock.Clock
	Logger       Logger
	Registerer   prometheus.Registerer
	ProtocolPort ProtocolPort
}

// New validates the backend and transport combination, starts the scheduler
// and connects a client in the background. The returned future completes
// with the connected client or fails with the connect error. Unsupported
// combinations fail before anything is started.
func New(ctx context.Context, opts Options) (scheduler.Loop, *future.Future[*Client], error) {
	client, sched, err := build(opts)
	if err != nil {
		return nil, nil, err
	}
	if l, ok := sched.(*scheduler.EventLoop); ok {
		l.Start()
	}

	f := future.New[*Client]()
	go func() {
		if err := client.Connect(ctx); err != nil {
			f.Fail(err)
			return
		}
		f.Complete(client)
	}()
	return sched.Loop(), f, nil
}

func build(opts Options) (*Client, scheduler.Scheduler, error) {
	kinds, ok := supported[opts.Backend]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	switch opts.Kind {
	case KindTCP, KindUDP, KindRTU:
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTransport, opts.Kind)
	}
	if !kinds[opts.Kind] {
		return nil, nil, fmt.Errorf("%w: %s with %s", ErrUnsupportedCombination, opts.Backend, opts.Kind)
	}

	decoder := opts.Decoder
	if decoder == nil {
		decoder = modbus.NewClientDecoder()
	}

	var c *Client
	framerOpts := []modbus.FramerOption{
		modbus.MaxBuffer(opts.MaxBuffer),
		modbus.OnDiscard(func(fe *modbus.FramingError) { c.discarded(fe) }),
	}
	if opts.StrictFraming {
		framerOpts = append(framerOpts, modbus.Strict())
	}

	var (
		dialer      modbus.Dialer
		framer      Framer
		resyncDelay = opts.ResyncDelay
	)
	switch opts.Kind {
	case KindTCP:
		d, err := tcp.NewDialer(opts.Address, opts.Timeout)
		if err != nil {
			return nil, nil, err
		}
		dialer, framer = d, tcp.NewFramer(decoder, framerOpts...)
	case KindUDP:
		d, err := udp.NewDialer(opts.Address, opts.Timeout)
		if err != nil {
			return nil, nil, err
		}
		dialer, framer = d, tcp.NewFramer(decoder, framerOpts...)
	case KindRTU:
		d := rtu.NewDialer(serialConfig(opts))
		if resyncDelay <= 0 {
			resyncDelay = rtu.SilentInterval(d.BaudRate())
		}
		dialer, framer = d, rtu.NewFramer(decoder, framerOpts...)
	}

	var sched scheduler.Scheduler
	switch opts.Backend {
	case BackendEventLoop:
		sched = scheduler.NewEventLoop(opts.Clock)
	case BackendReactor:
		sched = scheduler.NewReactor(opts.Clock)
	}

	c = NewClient(dialer, framer, sched,
		WithLogger(opts.Logger),
		WithMetrics(NewMetrics(opts.Registerer)),
		WithProtocolPort(opts.ProtocolPort),
		WithResyncDelay(resyncDelay),
	)
	return c, sched, nil
}

func serialConfig(opts Options) serial.Config {
	cfg := rtu.DefaultConfig(opts.Address)
	if opts.Serial.BaudRate > 0 {
		cfg.BaudRate = opts.Serial.BaudRate
	}
	if opts.Serial.DataBits > 0 {
		cfg.DataBits = opts.Serial.DataBits
	}
	if opts.Serial.StopBits > 0 {
		cfg.StopBits = opts.Serial.StopBits
	}
	if opts.Serial.Parity != "" {
		cfg.Parity = opts.Serial.Parity
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	return cfg
}
