package console

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rwirdemann/asyncmodbus/message"
)

func newTestProtocolAdapter() (*ProtocolAdapter, *bytes.Buffer) {
	var out bytes.Buffer
	p := NewProtocolAdapter()
	p.SetWriter(&out)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p, &out
}

func TestInfoXFiltersByLoglevel(t *testing.T) {
	p, out := newTestProtocolAdapter()

	p.InfoX(message.NewUnencoded("TX 00 01"))
	p.InfoX(message.NewEncoded("TX tid:1 UnitId:1 FC:3"))
	assert.Equal(t, "2024-05-01 12:00:00 TX 00 01\n", out.String())

	out.Reset()
	p.Toggle()
	p.InfoX(message.NewUnencoded("RX 00 01"))
	p.InfoX(message.NewEncoded("RX tid:1 UnitId:1 FC:3"))
	assert.Equal(t, "loglevel set to 'decoded'\n2024-05-01 12:00:00 RX tid:1 UnitId:1 FC:3\n", out.String())
}

func TestMute(t *testing.T) {
	p, out := newTestProtocolAdapter()

	p.Mute()
	p.Info("hidden")
	p.Println("shown")
	p.Unmute()
	p.Info("visible")
	assert.Equal(t, "shown\n2024-05-01 12:00:00 visible\n", out.String())
}

func TestRepeatedLinesArePrintedOnce(t *testing.T) {
	p, out := newTestProtocolAdapter()

	p.Println("same")
	p.Println("same")
	p.Println("other")
	assert.Equal(t, "same\nother\n", out.String())
}
