// Package udp carries MBAP frames in datagrams. Framing is shared with the
// tcp package; each datagram holds one or more complete frames.
package udp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
	"github.com/rwirdemann/asyncmodbus/tcp"
)

// Dialer binds a connected UDP socket to a Modbus server.
type Dialer struct {
	address string
	timeout time.Duration
}

// NewDialer accepts "host:port", "host" or "udp://host:port".
func NewDialer(url string, timeout time.Duration) (*Dialer, error) {
	address, err := tcp.ParseAddress("udp", url)
	if err != nil {
		return nil, err
	}
	return &Dialer{address: address, timeout: timeout}, nil
}

func (d *Dialer) Dial(ctx context.Context) (modbus.Connection, error) {
	nd := net.Dialer{Timeout: d.timeout}
	conn, err := nd.DialContext(ctx, "udp", d.address)
	if err != nil {
		return nil, fmt.Errorf("failed to bind udp socket for %s: %w", d.address, err)
	}
	slog.Debug("udp socket bound", "local addr", conn.LocalAddr(), "remote addr", conn.RemoteAddr())
	return tcp.NewConnection(conn), nil
}

func (d *Dialer) String() string {
	return "udp://" + d.address
}
