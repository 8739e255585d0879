package rtu

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/goburrow/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort replays scripted reads and records writes.
type fakePort struct {
	mu      sync.Mutex
	reads   []readResult
	written []byte
	closed  bool
}

type readResult struct {
	data []byte
	err  error
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reads) == 0 {
		return 0, errors.New(errTimeoutText)
	}
	r := p.reads[0]
	p.reads = p.reads[1:]
	return copy(b, r.data), r.err
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) Open(*serial.Config) error {
	return nil
}

func TestConnectionSkipsIdleTimeouts(t *testing.T) {
	port := &fakePort{reads: []readResult{
		{err: errors.New(errTimeoutText)},
		{err: errors.New(errTimeoutText)},
		{data: replyA},
	}}
	conn := NewConnection(port, "/dev/ttyp0")

	buf := make([]byte, 32)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, replyA, buf[:n])
}

func TestConnectionReturnsHardErrors(t *testing.T) {
	boom := errors.New("device unplugged")
	conn := NewConnection(&fakePort{reads: []readResult{{err: boom}}}, "/dev/ttyp0")

	_, err := conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, boom)
}

func TestConnectionClose(t *testing.T) {
	port := &fakePort{}
	conn := NewConnection(port, "/dev/ttyp0")

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, port.closed)

	_, err := conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = conn.Write([]byte{0x01})
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestDialer(t *testing.T) {
	port := &fakePort{}
	var opened *serial.Config
	d := NewDialer(DefaultConfig("/dev/ttyp0"))
	d.open = func(c *serial.Config) (serial.Port, error) {
		opened = c
		return port, nil
	}
	assert.Equal(t, "rtu:///dev/ttyp0?baud=9600&format=8N1", d.String())
	assert.Equal(t, 9600, d.BaudRate())

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	require.NotNil(t, opened)
	assert.Equal(t, "/dev/ttyp0", opened.Address)

	_, err = conn.Write(replyA)
	require.NoError(t, err)
	assert.Equal(t, replyA, port.written)
}

func TestDialerFailure(t *testing.T) {
	d := NewDialer(DefaultConfig("/dev/does-not-exist"))
	d.open = func(*serial.Config) (serial.Port, error) {
		return nil, io.ErrUnexpectedEOF
	}
	_, err := d.Dial(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Dial(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
