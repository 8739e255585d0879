// Package message carries the lines of a traffic trace.
package message

import "fmt"

// Type selects which trace lines a protocol port shows.
type Type int

const (
	// TypeUnencoded lines show frames as they are on the wire.
	TypeUnencoded Type = iota
	// TypeEncoded lines show the interpreted content of a frame.
	TypeEncoded
)

func (t Type) String() string {
	switch t {
	case TypeUnencoded:
		return "raw"
	case TypeEncoded:
		return "decoded"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

type Message interface {
	String() string
	Type() Type
}

type Unencoded struct {
	Value string
}

func NewUnencoded(value string) Unencoded {
	return Unencoded{Value: value}
}

// Raw is the trace line of frame bytes travelling in direction ("TX", "RX").
func Raw(direction string, frame []byte) Unencoded {
	return Unencoded{Value: fmt.Sprintf("%s % X", direction, frame)}
}

func (m Unencoded) String() string { return m.Value }
func (m Unencoded) Type() Type     { return TypeUnencoded }

type Encoded struct {
	Value string
}

func NewEncoded(value string) Encoded {
	return Encoded{Value: value}
}

// Decoded is the trace line of one transaction.
func Decoded(direction string, transaction uint16, pdu fmt.Stringer) Encoded {
	return Encoded{Value: fmt.Sprintf("%s tid:%d %s", direction, transaction, pdu)}
}

func (m Encoded) String() string { return m.Value }
func (m Encoded) Type() Type     { return TypeEncoded }
