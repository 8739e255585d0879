package modbus

import (
	"errors"
	"fmt"

	"github.com/rwirdemann/asyncmodbus/encoding"
)

var (
	// ErrUnknownFunctionCode is returned for responses the decoder has no
	// shape for.
	ErrUnknownFunctionCode = errors.New("modbus: unknown function code")
	// ErrShortPayload is returned when fewer bytes are present than the
	// function code requires.
	ErrShortPayload = errors.New("modbus: short payload")
)

// Decoder turns the function code and data of a received frame into a PDU.
// The framers consult ResponseSize when the frame length is not carried in a
// header.
type Decoder interface {
	Decode(unitID, functionCode uint8, payload []byte) (*PDU, error)

	// ResponseSize returns the serial frame length (unit id, function code,
	// data and two checksum bytes) of the response starting at adu. ok is
	// false while adu is too short to tell.
	ResponseSize(adu []byte) (size int, ok bool, err error)
}

type shape int

const (
	// data is a one byte count followed by that many bytes
	shapeByteCount shape = iota
	// data is a two byte count followed by that many bytes
	shapeWordCount
	// data has a fixed length
	shapeFixed
)

type responseShape struct {
	kind  shape
	fixed int
}

// ClientDecoder knows the response layouts of the public function codes.
type ClientDecoder struct {
	shapes map[uint8]responseShape
}

func NewClientDecoder() *ClientDecoder {
	return &ClientDecoder{shapes: map[uint8]responseShape{
		FCReadCoils:                  {kind: shapeByteCount},
		FCReadDiscreteInputs:         {kind: shapeByteCount},
		FCReadHoldingRegisters:       {kind: shapeByteCount},
		FCReadInputRegisters:         {kind: shapeByteCount},
		FCReadWriteMultipleRegisters: {kind: shapeByteCount},
		FCReadFIFOQueue:              {kind: shapeWordCount},
		FCWriteSingleCoil:            {kind: shapeFixed, fixed: 4},
		FCWriteSingleRegister:        {kind: shapeFixed, fixed: 4},
		FCWriteMultipleCoils:         {kind: shapeFixed, fixed: 4},
		FCWriteMultipleRegisters:     {kind: shapeFixed, fixed: 4},
		FCDiagnostics:                {kind: shapeFixed, fixed: 4},
		FCGetCommEventCounter:        {kind: shapeFixed, fixed: 4},
		FCMaskWriteRegister:          {kind: shapeFixed, fixed: 6},
		FCReadExceptionStatus:        {kind: shapeFixed, fixed: 1},
	}}
}

func (d *ClientDecoder) lookup(functionCode uint8) (responseShape, error) {
	if functionCode&ExceptionBit != 0 {
		if _, ok := d.shapes[functionCode&^ExceptionBit]; !ok {
			return responseShape{}, fmt.Errorf("%w: 0x%02X", ErrUnknownFunctionCode, functionCode)
		}
		return responseShape{kind: shapeFixed, fixed: 1}, nil
	}
	s, ok := d.shapes[functionCode]
	if !ok {
		return responseShape{}, fmt.Errorf("%w: 0x%02X", ErrUnknownFunctionCode, functionCode)
	}
	return s, nil
}

// Decode checks the minimal length the function code requires. Trailing
// bytes are kept; some devices pad their responses.
func (d *ClientDecoder) Decode(unitID, functionCode uint8, payload []byte) (*PDU, error) {
	s, err := d.lookup(functionCode)
	if err != nil {
		return nil, err
	}

	need := 0
	switch s.kind {
	case shapeByteCount:
		if len(payload) >= 1 {
			need = 1 + int(payload[0])
		} else {
			need = 1
		}
	case shapeWordCount:
		if len(payload) >= 2 {
			need = 2 + int(encoding.BytesToUint16(payload[0:2]))
		} else {
			need = 2
		}
	case shapeFixed:
		need = s.fixed
	}
	if len(payload) < need {
		return nil, fmt.Errorf("%w: fc 0x%02X needs %d bytes, got %d", ErrShortPayload, functionCode, need, len(payload))
	}

	data := make([]byte, len(payload))
	copy(data, payload)
	return &PDU{UnitId: unitID, FunctionCode: functionCode, Payload: data}, nil
}

// ResponseSize implements Decoder.
func (d *ClientDecoder) ResponseSize(adu []byte) (int, bool, error) {
	if len(adu) < 2 {
		return 0, false, nil
	}
	s, err := d.lookup(adu[1])
	if err != nil {
		return 0, false, err
	}

	// unit id + function code + crc
	const overhead = 4
	switch s.kind {
	case shapeByteCount:
		if len(adu) < 3 {
			return 0, false, nil
		}
		return overhead + 1 + int(adu[2]), true, nil
	case shapeWordCount:
		if len(adu) < 4 {
			return 0, false, nil
		}
		return overhead + 2 + int(encoding.BytesToUint16(adu[2:4])), true, nil
	default:
		return overhead + s.fixed, true, nil
	}
}
