package tcp

import (
	"fmt"
	"log/slog"

	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
)

// Framer splits a Modbus TCP byte stream into MBAP frames. The frame length
// is taken from the header, the transaction id is echoed by the peer.
type Framer struct {
	decoder modbus.Decoder
	opts    modbus.FramerOptions
	buf     []byte
}

func NewFramer(decoder modbus.Decoder, opts ...modbus.FramerOption) *Framer {
	return &Framer{decoder: decoder, opts: modbus.ApplyFramerOptions(opts...)}
}

// Feed appends data and returns every complete frame. An empty feed is a
// no-op.
func (f *Framer) Feed(data []byte) ([]modbus.Frame, error) {
	if len(data) == 0 {
		return nil, nil
	}
	f.buf = append(f.buf, data...)
	return f.extract()
}

// Resume extracts frames from the retained bytes.
func (f *Framer) Resume() ([]modbus.Frame, error) {
	return f.extract()
}

func (f *Framer) extract() ([]modbus.Frame, error) {
	var frames []modbus.Frame
	off := 0
	defer func() { f.compact(off) }()

	for len(f.buf)-off >= modbus.MBAPHeaderLength {
		h, err := modbus.ParseMBAPHeader(f.buf[off:])
		if err != nil {
			// without a valid length there is no boundary to continue from
			fe := &modbus.FramingError{Reason: "invalid mbap header", Discarded: len(f.buf) - off, Err: err}
			off = len(f.buf)
			if err := f.discard(fe); err != nil {
				return frames, err
			}
			break
		}

		n := h.FrameLength()
		if len(f.buf)-off < n {
			break
		}
		frame := f.buf[off : off+n]
		off += n

		pdu, err := f.decoder.Decode(h.UnitId, frame[modbus.MBAPHeaderLength], frame[modbus.MBAPHeaderLength+1:])
		if err != nil {
			fe := &modbus.FramingError{Reason: "undecodable frame", Discarded: n, Err: err}
			if err := f.discard(fe); err != nil {
				return frames, err
			}
			frames = append(frames, modbus.Frame{TransactionId: h.TransactionId, Err: fe})
			continue
		}
		slog.Debug("MBAP frame received", "txid", h.TransactionId, "pdu", pdu)
		frames = append(frames, modbus.Frame{TransactionId: h.TransactionId, PDU: pdu})
	}

	if rest := len(f.buf) - off; rest > f.opts.MaxBuffer {
		return frames, fmt.Errorf("%w: %d bytes buffered, limit %d", modbus.ErrBufferOverflow, rest, f.opts.MaxBuffer)
	}
	return frames, nil
}

func (f *Framer) discard(fe *modbus.FramingError) error {
	f.opts.OnDiscard(fe)
	if f.opts.Strict {
		return fe
	}
	return nil
}

func (f *Framer) compact(off int) {
	if off == 0 {
		return
	}
	f.buf = append(f.buf[:0], f.buf[off:]...)
}

// Encode builds the MBAP frame of pdu under transaction id.
func (f *Framer) Encode(pdu *modbus.PDU, id uint16) ([]byte, error) {
	if err := pdu.Validate(); err != nil {
		return nil, err
	}
	return modbus.AssembleMBAPFrame(id, pdu), nil
}

// Buffered is the number of retained undecoded bytes.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Stalled is always false; a stream framer never holds back a decodable
// frame.
func (f *Framer) Stalled() bool {
	return false
}

func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

func (f *Framer) Addressing() modbus.Addressing {
	return modbus.AddressingCounter
}
