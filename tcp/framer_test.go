package tcp

import (
	"errors"
	"testing"

	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCoilsReply(unit uint8) *modbus.PDU {
	return &modbus.PDU{UnitId: unit, FunctionCode: modbus.FCReadCoils, Payload: []byte{0x01, 0x05}}
}

func TestRoundTrip(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	messages := []*modbus.PDU{
		readCoilsReply(1),
		{UnitId: 0xFF, FunctionCode: modbus.FCWriteSingleRegister, Payload: []byte{0x00, 0x01, 0x00, 0x03}},
		{UnitId: 2, FunctionCode: modbus.FCReadHoldingRegisters | modbus.ExceptionBit, Payload: []byte{0x02}},
	}
	for i, m := range messages {
		id := uint16(0xFFF0 + i)
		b, err := f.Encode(m, id)
		require.NoError(t, err)

		frames, err := f.Feed(b)
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, id, frames[0].TransactionId)
		assert.Equal(t, m, frames[0].PDU)
		assert.Equal(t, 0, f.Buffered())
	}
}

func TestFeedEmpty(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	_, err := f.Feed([]byte{0x00, 0x01})
	require.NoError(t, err)

	frames, err := f.Feed(nil)
	assert.NoError(t, err)
	assert.Empty(t, frames)
	frames, err = f.Feed([]byte{})
	assert.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, 2, f.Buffered())
}

func TestFeedPartial(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	b, err := f.Encode(readCoilsReply(1), 3)
	require.NoError(t, err)

	for i := 0; i < len(b)-1; i++ {
		frames, err := f.Feed(b[i : i+1])
		require.NoError(t, err)
		assert.Empty(t, frames)
	}
	frames, err := f.Feed(b[len(b)-1:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint16(3), frames[0].TransactionId)
}

func TestFeedConcatenated(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	first, _ := f.Encode(readCoilsReply(1), 1)
	second, _ := f.Encode(readCoilsReply(2), 2)
	third, _ := f.Encode(readCoilsReply(3), 3)

	data := append(append(append([]byte{}, first...), second...), third[:4]...)
	frames, err := f.Feed(data)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, uint16(1), frames[0].TransactionId)
	assert.Equal(t, uint16(2), frames[1].TransactionId)
	assert.Equal(t, 4, f.Buffered())

	frames, err = f.Feed(third[4:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint8(3), frames[0].PDU.UnitId)
}

func TestFeedForeignProtocolID(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	frames, err := f.Feed([]byte{0x00, 0x00, 0x12, 0x34, 0x00, 0x04, 0xFF, 0x01, 0x01, 0x02})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint16(0), frames[0].TransactionId)
	assert.Equal(t, []byte{0x01, 0x02}, frames[0].PDU.Payload)
}

// Once a length field is out of range nothing in the stream marks where
// the next frame starts, so every retained byte is dropped rather than
// scanning for a header that only looks valid.
func TestInvalidHeaderDropsBuffer(t *testing.T) {
	var discarded []*modbus.FramingError
	f := NewFramer(modbus.NewClientDecoder(), modbus.OnDiscard(func(err *modbus.FramingError) {
		discarded = append(discarded, err)
	}))

	frames, err := f.Feed([]byte{0x00, 0x01, 0x00, 0x00, 0xFF, 0xFF, 0x01, 0x01, 0x01})
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, 0, f.Buffered())
	require.Len(t, discarded, 1)
	assert.Equal(t, 9, discarded[0].Discarded)

	// the framer keeps working afterwards
	b, _ := f.Encode(readCoilsReply(1), 8)
	frames, err = f.Feed(b)
	require.NoError(t, err)
	require.Len(t, frames, 1)
}

func TestUndecodableFrameKeepsTransactionID(t *testing.T) {
	var discarded int
	f := NewFramer(modbus.NewClientDecoder(), modbus.OnDiscard(func(*modbus.FramingError) { discarded++ }))

	unknown, _ := f.Encode(&modbus.PDU{UnitId: 1, FunctionCode: 0x41, Payload: []byte{0x00}}, 1)
	good, _ := f.Encode(readCoilsReply(1), 2)

	frames, err := f.Feed(append(unknown, good...))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, uint16(1), frames[0].TransactionId)
	assert.Nil(t, frames[0].PDU)
	assert.ErrorIs(t, frames[0].Err, modbus.ErrUnknownFunctionCode)
	assert.Equal(t, uint16(2), frames[1].TransactionId)
	assert.NoError(t, frames[1].Err)
	assert.Equal(t, 1, discarded)
	assert.Equal(t, 0, f.Buffered())
}

func TestStrictReturnsFramingError(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder(), modbus.Strict())
	unknown, _ := f.Encode(&modbus.PDU{UnitId: 1, FunctionCode: 0x41}, 1)

	_, err := f.Feed(unknown)
	var fe *modbus.FramingError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, modbus.ErrUnknownFunctionCode)
}

func TestSmallMaxBufferHoldsLargestFrame(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder(), modbus.MaxBuffer(8))

	// 125 registers, the longest read holding registers reply
	reply := &modbus.PDU{UnitId: 1, FunctionCode: modbus.FCReadHoldingRegisters, Payload: append([]byte{0xFA}, make([]byte, 250)...)}
	b, err := f.Encode(reply, 9)
	require.NoError(t, err)
	require.Len(t, b, modbus.MaxADULength-1)

	frames, err := f.Feed(b[:len(b)-1])
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, len(b)-1, f.Buffered())

	frames, err = f.Feed(b[len(b)-1:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint16(9), frames[0].TransactionId)
	assert.Equal(t, reply, frames[0].PDU)
}

func TestEncodeRejectsOversizedPDU(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	_, err := f.Encode(&modbus.PDU{FunctionCode: modbus.FCWriteMultipleRegisters, Payload: make([]byte, 300)}, 1)
	assert.ErrorIs(t, err, modbus.ErrInvalidPDU)
}

func TestReset(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	_, _ = f.Feed([]byte{0x00, 0x01, 0x00})
	f.Reset()
	assert.Equal(t, 0, f.Buffered())
	assert.False(t, f.Stalled())
	assert.Equal(t, modbus.AddressingCounter, f.Addressing())
}
