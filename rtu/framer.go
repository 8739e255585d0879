// Package rtu implements Modbus RTU framing and the serial line transport.
package rtu

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
)

// Framer recognizes RTU frames: unit id, function code, data and a CRC16.
// The frame length follows from the function code, a frame is accepted only
// when its checksum validates.
//
// On a checksum mismatch the framer drops the leading byte and stalls. The
// remaining bytes are looked at again on the next Feed or Resume, never
// within the call that found the bad candidate.
type Framer struct {
	decoder modbus.Decoder
	opts    modbus.FramerOptions
	buf     []byte
	stalled bool
}

func NewFramer(decoder modbus.Decoder, opts ...modbus.FramerOption) *Framer {
	return &Framer{decoder: decoder, opts: modbus.ApplyFramerOptions(opts...)}
}

// Feed appends data and returns every complete frame. An empty feed is a
// no-op, even for a stalled framer.
func (f *Framer) Feed(data []byte) ([]modbus.Frame, error) {
	if len(data) == 0 {
		return nil, nil
	}
	f.buf = append(f.buf, data...)
	f.stalled = false
	return f.extract()
}

// Resume continues after a resynchronization stall.
func (f *Framer) Resume() ([]modbus.Frame, error) {
	f.stalled = false
	return f.extract()
}

func (f *Framer) extract() ([]modbus.Frame, error) {
	var frames []modbus.Frame
	off := 0
	defer func() { f.compact(off) }()

	for len(f.buf)-off > 0 {
		adu := f.buf[off:]
		size, ok, err := f.decoder.ResponseSize(adu)
		if err != nil {
			off++
			if err := f.slip(&modbus.FramingError{Reason: fmt.Sprintf("no frame starts at byte 0x%02X", adu[0]), Discarded: 1, Err: err}); err != nil {
				return frames, err
			}
			break
		}
		if !ok || len(adu) < size {
			break
		}

		frame := adu[:size]
		if !checkCRC(frame) {
			off++
			if err := f.slip(&modbus.FramingError{Reason: "crc mismatch", Discarded: 1}); err != nil {
				return frames, err
			}
			break
		}
		off += size

		pdu, err := f.decoder.Decode(frame[0], frame[1], frame[2:size-2])
		if err != nil {
			fe := &modbus.FramingError{Reason: "undecodable frame", Discarded: size, Err: err}
			f.opts.OnDiscard(fe)
			if f.opts.Strict {
				return frames, fe
			}
			frames = append(frames, modbus.Frame{TransactionId: uint16(frame[0]), Err: fe})
			continue
		}
		slog.Debug("RTU frame received", "unitID", frame[0], "pdu", pdu)
		frames = append(frames, modbus.Frame{TransactionId: uint16(frame[0]), PDU: pdu})
	}

	if rest := len(f.buf) - off; rest > f.opts.MaxBuffer {
		return frames, fmt.Errorf("%w: %d bytes buffered, limit %d", modbus.ErrBufferOverflow, rest, f.opts.MaxBuffer)
	}
	return frames, nil
}

func (f *Framer) slip(fe *modbus.FramingError) error {
	f.stalled = true
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

// Encode builds unit id, function code, payload and CRC. RTU frames carry
// no transaction id; id is ignored.
func (f *Framer) Encode(pdu *modbus.PDU, _ uint16) ([]byte, error) {
	if err := pdu.Validate(); err != nil {
		return nil, err
	}
	frame := make([]byte, 0, 4+len(pdu.Payload))
	frame = append(frame, pdu.UnitId, pdu.FunctionCode)
	frame = append(frame, pdu.Payload...)
	return appendCRC(frame), nil
}

func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Stalled reports whether retained bytes wait for a Resume after a
// resynchronization.
func (f *Framer) Stalled() bool {
	return f.stalled && len(f.buf) > 0
}

func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.stalled = false
}

func (f *Framer) Addressing() modbus.Addressing {
	return modbus.AddressingUnit
}

// SilentInterval is the 3.5 character gap that separates RTU frames. Above
// 19200 baud the line uses the fixed 1.75ms.
func SilentInterval(baudRate int) time.Duration {
	if baudRate <= 0 || baudRate > 19200 {
		return 1750 * time.Microsecond
	}
	// 11 bits per character
	return time.Duration(38_500_000_000 / int64(baudRate))
}
