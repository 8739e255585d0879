package main

import (
	"testing"

	bmodbus "github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedHandler struct {
	response []byte
	request  []byte
}

func (h *cannedHandler) Encode(pdu *bmodbus.ProtocolDataUnit) ([]byte, error) {
	return append([]byte{pdu.FunctionCode}, pdu.Data...), nil
}

func (h *cannedHandler) Decode(adu []byte) (*bmodbus.ProtocolDataUnit, error) {
	return &bmodbus.ProtocolDataUnit{FunctionCode: adu[0], Data: adu[1:]}, nil
}

func (h *cannedHandler) Verify(_, _ []byte) error {
	return nil
}

func (h *cannedHandler) Send(adu []byte) ([]byte, error) {
	h.request = adu
	return h.response, nil
}

func TestReadFirmwareVersion(t *testing.T) {
	h := &cannedHandler{response: []byte{0x17, 0x06, 0x00, 0x00, 0x04, 0x03, 0x02, 0x01}}

	version, err := readFirmwareVersion(bmodbus.NewClient(h))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", version)
	assert.Equal(t, []byte{0x17, 0xF1, 0xFF, 0x00, 0x03, 0xF1, 0xFF, 0x00, 0x01, 0x02, 0x01, 0x00}, h.request)
}

func TestReadFirmwareVersionException(t *testing.T) {
	h := &cannedHandler{response: []byte{0x97, 0x02}}

	_, err := readFirmwareVersion(bmodbus.NewClient(h))
	var mbErr *bmodbus.ModbusError
	require.ErrorAs(t, err, &mbErr)
	assert.Equal(t, byte(0x02), mbErr.ExceptionCode)
}
