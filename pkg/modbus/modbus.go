// Package modbus holds the wire primitives shared by the framers: the PDU,
// the MBAP header and the response decoder of the client side.
package modbus

import (
	"errors"
	"fmt"

	bmodbus "github.com/goburrow/modbus"
	"github.com/rwirdemann/asyncmodbus/encoding"
)

const (
	FCReadCoils                  uint8 = bmodbus.FuncCodeReadCoils
	FCReadDiscreteInputs         uint8 = bmodbus.FuncCodeReadDiscreteInputs
	FCReadHoldingRegisters       uint8 = bmodbus.FuncCodeReadHoldingRegisters
	FCReadInputRegisters         uint8 = bmodbus.FuncCodeReadInputRegisters
	FCWriteSingleCoil            uint8 = bmodbus.FuncCodeWriteSingleCoil
	FCWriteSingleRegister        uint8 = bmodbus.FuncCodeWriteSingleRegister
	FCReadExceptionStatus        uint8 = 0x07
	FCDiagnostics                uint8 = 0x08
	FCGetCommEventCounter        uint8 = 0x0B
	FCWriteMultipleCoils         uint8 = bmodbus.FuncCodeWriteMultipleCoils
	FCWriteMultipleRegisters     uint8 = bmodbus.FuncCodeWriteMultipleRegisters
	FCMaskWriteRegister          uint8 = bmodbus.FuncCodeMaskWriteRegister
	FCReadWriteMultipleRegisters uint8 = bmodbus.FuncCodeReadWriteMultipleRegisters
	FCReadFIFOQueue              uint8 = bmodbus.FuncCodeReadFIFOQueue

	// ExceptionBit is set in the function code of an exception response.
	ExceptionBit uint8 = 0x80
)

const (
	// MBAPHeaderLength is transaction id, protocol id, length and unit id.
	MBAPHeaderLength = 7

	// MaxPDULength is function code plus at most 252 data bytes.
	MaxPDULength = 253

	// MaxADULength is the largest frame of either framing mode, an MBAP
	// header followed by the largest PDU.
	MaxADULength = MBAPHeaderLength + MaxPDULength

	// mbapMinLength covers unit id and function code, mbapMaxLength unit id
	// and the largest PDU.
	mbapMinLength = 2
	mbapMaxLength = 1 + MaxPDULength
)

// ErrInvalidPDU is returned when a PDU can't be put on the wire.
var ErrInvalidPDU = errors.New("modbus: invalid pdu")

// PDU is a struct to represent a Modbus Protocol Data unit. Requests and
// responses share it; the unit id travels with the PDU although it is part
// of the ADU on the wire.
type PDU struct {
	UnitId       uint8
	FunctionCode uint8
	Payload      []byte
}

func (p PDU) String() string {
	return fmt.Sprintf("UnitId:%d FC:%d Payload:% X", p.UnitId, p.FunctionCode, p.Payload)
}

// IsException reports whether p is an exception response.
func (p PDU) IsException() bool {
	return p.FunctionCode&ExceptionBit != 0
}

// Validate checks that p fits into a single frame.
func (p *PDU) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil", ErrInvalidPDU)
	}
	if 1+len(p.Payload) > MaxPDULength {
		return fmt.Errorf("%w: %d payload bytes exceed %d", ErrInvalidPDU, len(p.Payload), MaxPDULength-1)
	}
	return nil
}

// AssembleMBAPFrame turns a PDU into an MBAP frame (MBAP header + PDU) and returns it as bytes.
func AssembleMBAPFrame(txnId uint16, p *PDU) []byte {
	payload := make([]byte, 0, MBAPHeaderLength+1+len(p.Payload))

	// transaction identifier
	payload = append(payload, encoding.Uint16ToBytes(txnId)...)

	// protocol identifier (always 0x0000)
	payload = append(payload, 0x00, 0x00)

	// length (covers unit identifier + function code + payload fields)
	payload = append(payload, encoding.Uint16ToBytes(uint16(2+len(p.Payload)))...)

	// unit identifier
	payload = append(payload, p.UnitId)

	// function code
	payload = append(payload, p.FunctionCode)

	// payload
	payload = append(payload, p.Payload...)

	return payload
}

// MBAPHeader is the decoded 7 byte prefix of a Modbus TCP frame.
type MBAPHeader struct {
	TransactionId uint16
	ProtocolId    uint16
	Length        uint16
	UnitId        uint8
}

// FrameLength is the length of the complete frame announced by the header.
func (h MBAPHeader) FrameLength() int {
	return MBAPHeaderLength - 1 + int(h.Length)
}

// ParseMBAPHeader decodes the header at the start of b. The length field
// must cover at least unit id and function code and at most a full PDU.
func ParseMBAPHeader(b []byte) (MBAPHeader, error) {
	if len(b) < MBAPHeaderLength {
		return MBAPHeader{}, fmt.Errorf("%w: mbap header needs %d bytes, got %d", ErrShortPayload, MBAPHeaderLength, len(b))
	}
	h := MBAPHeader{
		TransactionId: encoding.BytesToUint16(b[0:2]),
		ProtocolId:    encoding.BytesToUint16(b[2:4]),
		Length:        encoding.BytesToUint16(b[4:6]),
		UnitId:        b[6],
	}
	if h.Length < mbapMinLength || h.Length > mbapMaxLength {
		return h, &FramingError{Reason: fmt.Sprintf("mbap length %d out of range", h.Length)}
	}
	return h, nil
}
