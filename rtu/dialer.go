package rtu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/goburrow/serial"
	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
)

const (
	// serial reads time out while the line is idle
	errTimeoutText = "serial: timeout"
	idlePoll       = 100 * time.Millisecond
)

// DefaultConfig is 9600 8N1, the settings the Modbus serial specification
// recommends.
func DefaultConfig(address string) serial.Config {
	return serial.Config{
		Address:  address,
		BaudRate: 9600,
		DataBits: 8,
		Parity:   "N",
		StopBits: 1,
		Timeout:  5 * time.Second,
	}
}

// Connection is an open serial port. Read blocks across idle periods until
// data arrives or the port is closed.
type Connection struct {
	port   io.ReadWriteCloser
	name   string
	closed atomic.Bool
}

func NewConnection(port io.ReadWriteCloser, name string) *Connection {
	return &Connection{port: port, name: name}
}

func (c *Connection) Read(p []byte) (int, error) {
	for {
		n, err := c.port.Read(p)
		if c.closed.Load() {
			return n, os.ErrClosed
		}
		if n > 0 || err == nil {
			return n, nil
		}
		if err.Error() != errTimeoutText && err != io.EOF {
			return 0, err
		}
		if err == io.EOF {
			// pseudo terminals report EOF while the other side is silent
			time.Sleep(idlePoll)
		}
	}
}

func (c *Connection) Write(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, os.ErrClosed
	}
	return c.port.Write(b)
}

func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	slog.Debug("Closing serial port", "port", c.name)
	return c.port.Close()
}

func (c *Connection) Name() string {
	return c.name
}

// Dialer opens a serial line.
type Dialer struct {
	config serial.Config
	open   func(*serial.Config) (serial.Port, error)
}

func NewDialer(config serial.Config) *Dialer {
	return &Dialer{config: config, open: serial.Open}
}

func (d *Dialer) Dial(ctx context.Context) (modbus.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	config := d.config
	port, err := d.open(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	slog.Debug("serial port opened", "port", config.Address, "baud", config.BaudRate)
	return NewConnection(port, config.Address), nil
}

// BaudRate is the configured line speed.
func (d *Dialer) BaudRate() int {
	return d.config.BaudRate
}

func (d *Dialer) String() string {
	c := d.config
	return fmt.Sprintf("rtu://%s?baud=%d&format=%d%s%d", c.Address, c.BaudRate, c.DataBits, c.Parity, c.StopBits)
}
