package rtu

import (
	"testing"
	"time"

	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// read coils reply of unit 1 with one status byte
	replyA = []byte{0x01, 0x01, 0x01, 0x05, 0x91, 0x8B}
	// write single register echo of unit 1 with a zeroed crc
	corrupt = []byte{0x01, 0x06, 0x00, 0x01, 0x00, 0x03, 0x00, 0x00}
	// read holding registers reply of unit 0x11 with one register
	replyC = []byte{0x11, 0x03, 0x02, 0x00, 0x2A, 0xF8, 0x58}
)

func TestCRC(t *testing.T) {
	assert.True(t, checkCRC(replyA))
	assert.True(t, checkCRC(replyC))
	assert.False(t, checkCRC(corrupt))
	assert.Equal(t, replyA, appendCRC([]byte{0x01, 0x01, 0x01, 0x05}))
}

func TestRoundTrip(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	messages := []*modbus.PDU{
		{UnitId: 1, FunctionCode: modbus.FCReadCoils, Payload: []byte{0x01, 0x05}},
		{UnitId: 0x11, FunctionCode: modbus.FCWriteMultipleRegisters, Payload: []byte{0x00, 0x10, 0x00, 0x02}},
		{UnitId: 7, FunctionCode: modbus.FCReadInputRegisters | modbus.ExceptionBit, Payload: []byte{0x02}},
		{UnitId: 7, FunctionCode: modbus.FCReadFIFOQueue, Payload: []byte{0x00, 0x04, 0x00, 0x01, 0x00, 0x2A}},
	}
	for _, m := range messages {
		b, err := f.Encode(m, 0xBEEF)
		require.NoError(t, err)

		frames, err := f.Feed(b)
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, uint16(m.UnitId), frames[0].TransactionId)
		assert.Equal(t, m, frames[0].PDU)
		assert.Equal(t, 0, f.Buffered())
	}
}

func TestFeedEmpty(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	frames, err := f.Feed(nil)
	assert.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, 0, f.Buffered())
}

func TestFeedPartialAndConcatenated(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())

	frames, err := f.Feed(replyA[:3])
	require.NoError(t, err)
	assert.Empty(t, frames)

	data := append(append([]byte{}, replyA[3:]...), replyC...)
	frames, err = f.Feed(data)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, uint16(0x01), frames[0].TransactionId)
	assert.Equal(t, uint16(0x11), frames[1].TransactionId)
}

func TestChecksumMismatchSlipsOneByte(t *testing.T) {
	var discards int
	f := NewFramer(modbus.NewClientDecoder(), modbus.OnDiscard(func(*modbus.FramingError) { discards++ }))

	data := append(append(append([]byte{}, replyA...), corrupt...), replyC...)
	frames, err := f.Feed(data)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint16(0x01), frames[0].TransactionId)

	// the bad candidate lost one byte, the rest waits for a resume
	assert.True(t, f.Stalled())
	assert.Equal(t, len(corrupt)-1+len(replyC), f.Buffered())
	assert.Equal(t, 1, discards)

	var resumed []modbus.Frame
	for i := 0; f.Stalled() && i < 16; i++ {
		got, err := f.Resume()
		require.NoError(t, err)
		resumed = append(resumed, got...)
	}
	require.Len(t, resumed, 1)
	assert.Equal(t, uint16(0x11), resumed[0].TransactionId)
	assert.Equal(t, []byte{0x02, 0x00, 0x2A}, resumed[0].PDU.Payload)
	assert.Equal(t, 0, f.Buffered())
	assert.Equal(t, len(corrupt), discards)
}

func TestFeedClearsStall(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())

	_, err := f.Feed([]byte{0x01, 0x42})
	require.NoError(t, err)
	assert.True(t, f.Stalled())
	assert.Equal(t, 1, f.Buffered())

	// an empty feed changes nothing
	_, err = f.Feed(nil)
	require.NoError(t, err)
	assert.True(t, f.Stalled())

	// 0x42 followed by 0x11 is no frame start either, so the next feed slips again
	frames, err := f.Feed(replyC)
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = f.Resume()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.False(t, f.Stalled())
}

func TestStrict(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder(), modbus.Strict())
	_, err := f.Feed(corrupt)
	var fe *modbus.FramingError
	assert.ErrorAs(t, err, &fe)
}

func TestBufferOverflow(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder(), modbus.MaxBuffer(16))
	// 0x42 is no function code; the framer slips and holds the rest
	_, err := f.Feed(append([]byte{0x01, 0x42}, make([]byte, 300)...))
	assert.ErrorIs(t, err, modbus.ErrBufferOverflow)
}

func TestSmallMaxBufferHoldsSplitReply(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder(), modbus.MaxBuffer(16))
	// read holding registers reply of unit 1 with ten registers
	reply := appendCRC(append([]byte{0x01, 0x03, 0x14}, make([]byte, 20)...))
	require.Len(t, reply, 25)

	frames, err := f.Feed(reply[:18])
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, 18, f.Buffered())

	frames, err = f.Feed(reply[18:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint16(0x01), frames[0].TransactionId)
	assert.Len(t, frames[0].PDU.Payload, 21)
}

func TestReset(t *testing.T) {
	f := NewFramer(modbus.NewClientDecoder())
	_, _ = f.Feed([]byte{0x01, 0x42, 0x00})
	f.Reset()
	assert.False(t, f.Stalled())
	assert.Equal(t, 0, f.Buffered())
	assert.Equal(t, modbus.AddressingUnit, f.Addressing())
}

func TestSilentInterval(t *testing.T) {
	assert.Equal(t, 4010416*time.Nanosecond, SilentInterval(9600))
	assert.Equal(t, 1750*time.Microsecond, SilentInterval(115200))
	assert.Equal(t, 1750*time.Microsecond, SilentInterval(0))
}
