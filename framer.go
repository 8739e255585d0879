package asyncmodbus

import (
	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
	"github.com/rwirdemann/asyncmodbus/rtu"
	"github.com/rwirdemann/asyncmodbus/tcp"
)

// Framer turns the byte stream of a connection into response frames and
// requests into wire frames.
type Framer interface {
	// Feed appends data to the buffer and returns every complete frame.
	// Feeding no bytes has no effect.
	Feed(data []byte) ([]modbus.Frame, error)
	// Resume continues a stalled framer without new data.
	Resume() ([]modbus.Frame, error)
	Encode(pdu *modbus.PDU, id uint16) ([]byte, error)
	Buffered() int
	// Stalled reports whether buffered bytes wait for Resume.
	Stalled() bool
	Reset()
	Addressing() modbus.Addressing
}

var (
	_ Framer = (*tcp.Framer)(nil)
	_ Framer = (*rtu.Framer)(nil)
)
