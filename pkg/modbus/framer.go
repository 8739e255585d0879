package modbus

import (
	"errors"
	"fmt"
)

// DefaultMaxBuffer caps the undecoded bytes a framer keeps between feeds.
const DefaultMaxBuffer = 4096

// ErrBufferOverflow is returned by a framer whose undecoded bytes exceed the
// configured maximum. The connection can't be trusted after that.
var ErrBufferOverflow = errors.New("modbus: frame buffer overflow")

// FramingError describes bytes a framer dropped while looking for a frame
// boundary.
type FramingError struct {
	Reason    string
	Discarded int
	Err       error
}

func (e *FramingError) Error() string {
	s := "modbus: framing error: " + e.Reason
	if e.Discarded > 0 {
		s = fmt.Sprintf("%s (%d bytes discarded)", s, e.Discarded)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// Frame is one decoded response and the transaction id it carried. A frame
// that arrived whole but could not be decoded carries Err instead of a PDU.
type Frame struct {
	TransactionId uint16
	PDU           *PDU
	Err           error
}

// Addressing tells the client how transaction ids are chosen for a framing
// mode.
type Addressing int

const (
	// AddressingCounter uses a per connection counter echoed in the header.
	AddressingCounter Addressing = iota
	// AddressingUnit uses the unit address of the request; there is one
	// implicit slot per unit.
	AddressingUnit
)

func (a Addressing) String() string {
	switch a {
	case AddressingCounter:
		return "counter"
	case AddressingUnit:
		return "unit"
	}
	return fmt.Sprintf("addressing(%d)", int(a))
}

// FramerOptions configure both framing modes.
type FramerOptions struct {
	MaxBuffer int
	OnDiscard func(err *FramingError)
	Strict    bool
}

type FramerOption func(*FramerOptions)

// MaxBuffer sets the maximum number of retained undecoded bytes. Values
// below MaxADULength are raised to it, a partial frame must always fit.
func MaxBuffer(n int) FramerOption {
	return func(o *FramerOptions) {
		o.MaxBuffer = n
	}
}

// OnDiscard registers a callback invoked for every dropped candidate frame.
func OnDiscard(cb func(err *FramingError)) FramerOption {
	return func(o *FramerOptions) {
		o.OnDiscard = cb
	}
}

// Strict makes Feed return framing errors instead of recovering from them.
func Strict() FramerOption {
	return func(o *FramerOptions) {
		o.Strict = true
	}
}

// ApplyFramerOptions resolves opts against the defaults.
func ApplyFramerOptions(opts ...FramerOption) FramerOptions {
	var o FramerOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.MaxBuffer <= 0:
		o.MaxBuffer = DefaultMaxBuffer
	case o.MaxBuffer < MaxADULength:
		o.MaxBuffer = MaxADULength
	}
	if o.OnDiscard == nil {
		o.OnDiscard = func(*FramingError) {}
	}
	return o
}
