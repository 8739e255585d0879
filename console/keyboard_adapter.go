package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/rwirdemann/asyncmodbus/encoding"
)

// masterPort is the subset of the goburrow client the console drives.
type masterPort interface {
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
	WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

type tracePort interface {
	Toggle()
	Mute()
	Unmute()
}

// KeyboardAdapter is the interactive console of the master.
type KeyboardAdapter struct {
	master masterPort
	trace  tracePort
	status func() string
	writer io.Writer
}

func NewKeyboardAdapter(master masterPort, trace tracePort, status func() string) *KeyboardAdapter {
	return &KeyboardAdapter{master: master, trace: trace, status: status, writer: os.Stdout}
}

func (a *KeyboardAdapter) SetWriter(w io.Writer) {
	a.writer = w
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("read",
		readline.PcItem("coils"),
		readline.PcItem("discrete"),
		readline.PcItem("holding"),
		readline.PcItem("input"),
		readline.PcItem("float"),
	),
	readline.PcItem("write",
		readline.PcItem("coil"),
		readline.PcItem("coils"),
		readline.PcItem("register"),
		readline.PcItem("float"),
	),
	readline.PcItem("status"),
	readline.PcItem("toggle"),
	readline.PcItem("mute"),
	readline.PcItem("unmute"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

// Start reads commands until quit, EOF or interrupt and calls cancel
// afterwards.
func (a *KeyboardAdapter) Start(cancel context.CancelFunc) error {
	defer cancel()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "modbus> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	a.writer = rl.Stdout()

	fmt.Fprintln(a.writer, "Enter 'h' followed by <enter> for help...")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if a.Handle(line) {
			return nil
		}
	}
}

// Handle executes one command line and reports whether the console should
// terminate.
func (a *KeyboardAdapter) Handle(input string) bool {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(a.writer, "Terminating master...")
		return true
	case "status", "s":
		fmt.Fprintln(a.writer, a.status())
	case "toggle", "t":
		a.trace.Toggle()
	case "mute", "m":
		a.trace.Mute()
	case "unmute", "u":
		a.trace.Unmute()
	case "read", "r":
		a.read(fields[1:])
	case "write", "w":
		a.write(fields[1:])
	case "help", "h":
		fmt.Fprintln(a.writer, "Commands:")
		fmt.Fprintln(a.writer, "  read/r <coils|discrete|holding|input> <address> <quantity>")
		fmt.Fprintln(a.writer, "  read/r float <address>")
		fmt.Fprintln(a.writer, "  write/w <coil|register|float> <address> <value>")
		fmt.Fprintln(a.writer, "  write/w coils <address> <0|1>...")
		fmt.Fprintln(a.writer, "  status/s    - Show connection status")
		fmt.Fprintln(a.writer, "  toggle/t    - Toggle trace between raw and decoded frames")
		fmt.Fprintln(a.writer, "  mute/m      - Mute trace")
		fmt.Fprintln(a.writer, "  unmute/u    - Unmute trace")
		fmt.Fprintln(a.writer, "  quit/exit/q - Quit master")
		fmt.Fprintln(a.writer, "  help/h      - Show help")
	default:
		fmt.Fprintf(a.writer, "Unknown command: %s (use 'h' for help)\n", input)
	}
	return false
}

func (a *KeyboardAdapter) read(args []string) {
	if len(args) == 2 && args[0] == "float" {
		a.readFloat(args[1])
		return
	}
	if len(args) != 3 {
		fmt.Fprintln(a.writer, "usage: read <coils|discrete|holding|input> <address> <quantity>")
		return
	}
	address, quantity, ok := a.parse(args[1], args[2])
	if !ok {
		return
	}

	var fn func(address, quantity uint16) ([]byte, error)
	registers := false
	switch args[0] {
	case "coils":
		fn = a.master.ReadCoils
	case "discrete":
		fn = a.master.ReadDiscreteInputs
	case "holding":
		fn, registers = a.master.ReadHoldingRegisters, true
	case "input":
		fn, registers = a.master.ReadInputRegisters, true
	default:
		fmt.Fprintf(a.writer, "unknown table %q\n", args[0])
		return
	}

	results, err := fn(address, quantity)
	if err != nil {
		fmt.Fprintf(a.writer, "error: %v\n", err)
		return
	}
	if registers {
		fmt.Fprintf(a.writer, "% X %v\n", results, encoding.BytesToUint16s(results))
		return
	}
	fmt.Fprintf(a.writer, "% X %v\n", results, encoding.DecodeBools(results, int(quantity)))
}

func (a *KeyboardAdapter) write(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(a.writer, "usage: write <coil|coils|register|float> <address> <value>...")
		return
	}
	address, ok := a.address(args[1])
	if !ok {
		return
	}

	var (
		results []byte
		err     error
	)
	switch args[0] {
	case "coil":
		value, ok := a.coil(args[2])
		if !ok {
			return
		}
		var v uint16
		if value {
			v = 0xFF00
		}
		results, err = a.master.WriteSingleCoil(address, v)
	case "coils":
		values := make([]bool, 0, len(args)-2)
		for _, arg := range args[2:] {
			value, ok := a.coil(arg)
			if !ok {
				return
			}
			values = append(values, value)
		}
		results, err = a.master.WriteMultipleCoils(address, uint16(len(values)), encoding.EncodeBools(values))
	case "register":
		value, ok := a.address(args[2])
		if !ok {
			return
		}
		results, err = a.master.WriteSingleRegister(address, value)
	case "float":
		f, perr := strconv.ParseFloat(args[2], 32)
		if perr != nil {
			fmt.Fprintf(a.writer, "invalid float %q\n", args[2])
			return
		}
		high, low := encoding.Float32ToRegisters(float32(f))
		value := append(encoding.Uint16ToBytes(high), encoding.Uint16ToBytes(low)...)
		results, err = a.master.WriteMultipleRegisters(address, 2, value)
	default:
		fmt.Fprintf(a.writer, "unknown table %q\n", args[0])
		return
	}
	if err != nil {
		fmt.Fprintf(a.writer, "error: %v\n", err)
		return
	}
	fmt.Fprintf(a.writer, "% X\n", results)
}

// readFloat reads a float32 stored big endian in two holding registers.
func (a *KeyboardAdapter) readFloat(s string) {
	address, ok := a.address(s)
	if !ok {
		return
	}
	results, err := a.master.ReadHoldingRegisters(address, 2)
	if err != nil {
		fmt.Fprintf(a.writer, "error: %v\n", err)
		return
	}
	if len(results) < 4 {
		fmt.Fprintf(a.writer, "short response % X\n", results)
		return
	}
	regs := encoding.BytesToUint16s(results)
	fmt.Fprintf(a.writer, "% X %v\n", results, encoding.RegistersToFloat32(regs[0], regs[1]))
}

func (a *KeyboardAdapter) coil(s string) (bool, bool) {
	switch s {
	case "on", "1", "true":
		return true, true
	case "off", "0", "false":
		return false, true
	}
	fmt.Fprintf(a.writer, "invalid coil value %q, use on or off\n", s)
	return false, false
}

func (a *KeyboardAdapter) address(s string) (uint16, bool) {
	h, err := encoding.NewHex(s)
	if err != nil {
		fmt.Fprintf(a.writer, "invalid number %q: %v\n", s, err)
		return 0, false
	}
	return h.Uint16(), true
}

func (a *KeyboardAdapter) parse(first, second string) (uint16, uint16, bool) {
	x, ok := a.address(first)
	if !ok {
		return 0, 0, false
	}
	y, ok := a.address(second)
	return x, y, ok
}
