package tcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
)

// DefaultPort is the registered Modbus TCP port.
const DefaultPort = "502"

type Connection struct {
	conn net.Conn
}

func NewConnection(c net.Conn) *Connection {
	return &Connection{conn: c}
}

func (r Connection) Read(p []byte) (n int, err error) {
	return r.conn.Read(p)
}

func (r Connection) Write(b []byte) (n int, err error) {
	return r.conn.Write(b)
}

func (r Connection) Close() error {
	return r.conn.Close()
}

func (r Connection) Name() string {
	return r.conn.RemoteAddr().String()
}

// Dialer connects to a Modbus TCP server.
type Dialer struct {
	network string
	address string
	timeout time.Duration
}

// NewDialer accepts "host:port", "host" or "tcp://host:port".
func NewDialer(url string, timeout time.Duration) (*Dialer, error) {
	address, err := ParseAddress("tcp", url)
	if err != nil {
		return nil, err
	}
	return &Dialer{network: "tcp", address: address, timeout: timeout}, nil
}

// ParseAddress strips an optional scheme and fills in the default port.
func ParseAddress(scheme, url string) (string, error) {
	address := url
	if splitURL := strings.SplitN(url, "://", 2); len(splitURL) == 2 {
		if splitURL[0] != scheme {
			return "", fmt.Errorf("invalid url scheme %q, want %q", splitURL[0], scheme)
		}
		address = splitURL[1]
	}
	if address == "" {
		return "", fmt.Errorf("invalid url format %s", url)
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultPort)
	}
	return address, nil
}

func (d *Dialer) Dial(ctx context.Context) (modbus.Connection, error) {
	nd := net.Dialer{Timeout: d.timeout}
	conn, err := nd.DialContext(ctx, d.network, d.address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.address, err)
	}
	slog.Debug("connected", "network", d.network, "remote addr", conn.RemoteAddr())
	return NewConnection(conn), nil
}

func (d *Dialer) String() string {
	return d.network + "://" + d.address
}
