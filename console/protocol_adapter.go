package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/rwirdemann/asyncmodbus/message"
)

// ProtocolAdapter prints the traffic trace of a client. Only messages of
// the current loglevel are shown; Toggle switches between raw frames and
// decoded PDUs.
type ProtocolAdapter struct {
	mu       sync.Mutex
	lastLine string
	muted    bool
	loglevel message.Type
	writer   io.Writer
	now      func() time.Time
}

func NewProtocolAdapter() *ProtocolAdapter {
	return &ProtocolAdapter{
		loglevel: message.TypeUnencoded,
		writer:   os.Stdout, // Default to stdout
		now:      time.Now,
	}
}

func (p *ProtocolAdapter) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

func (p *ProtocolAdapter) InfoX(m message.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.Type() == p.loglevel {
		p.print(fmt.Sprintf("%s %s", p.now().Format(time.DateTime), m.String()), false)
	}
}

func (p *ProtocolAdapter) Toggle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.loglevel {
	case message.TypeEncoded:
		p.loglevel = message.TypeUnencoded
		p.print("loglevel set to 'raw frames'", true)
	case message.TypeUnencoded:
		p.loglevel = message.TypeEncoded
		p.print("loglevel set to 'decoded'", true)
	}
}

func (p *ProtocolAdapter) Info(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.print(fmt.Sprintf("%s %s", p.now().Format(time.DateTime), msg), false)
}

func (p *ProtocolAdapter) Separator() {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width = w
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.print(strings.Repeat("─", width), false)
}

func (p *ProtocolAdapter) Println(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.print(msg, true)
}

func (p *ProtocolAdapter) Mute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = true
}

func (p *ProtocolAdapter) Unmute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = false
}

func (p *ProtocolAdapter) print(s string, force bool) {
	if !force && p.muted {
		return
	}

	if p.lastLine == s {
		return
	}
	fmt.Fprintln(p.writer, s)
	p.lastLine = s
}
