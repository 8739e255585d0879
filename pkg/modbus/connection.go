package modbus

import (
	"context"
	"io"
)

// Connection is an open transport: a TCP or UDP socket or a serial line.
type Connection interface {
	io.ReadWriteCloser
}

// Dialer opens connections for one transport. String names the endpoint in
// logs.
type Dialer interface {
	Dial(ctx context.Context) (Connection, error)
	String() string
}
