package asyncmodbus

import "github.com/rwirdemann/asyncmodbus/message"

// ProtocolPort receives a trace of the traffic a client exchanges with its
// peer. Raw frames are reported as message.Unencoded, interpreted ones as
// message.Encoded.
type ProtocolPort interface {
	InfoX(m message.Message)
	Info(msg string)

	// Println logs the output even when it's muted
	Println(msg string)

	Separator()
	Mute()
	Unmute()
	Toggle()
}

type nopPort struct{}

func (nopPort) InfoX(message.Message) {}
func (nopPort) Info(string)           {}
func (nopPort) Println(string)        {}
func (nopPort) Separator()            {}
func (nopPort) Mute()                 {}
func (nopPort) Unmute()               {}
func (nopPort) Toggle()               {}
