package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	bmodbus "github.com/goburrow/modbus"

	"github.com/rwirdemann/asyncmodbus"
	"github.com/rwirdemann/asyncmodbus/config"
	"github.com/rwirdemann/asyncmodbus/console"
	"github.com/rwirdemann/asyncmodbus/encoding"
	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
)

func main() {
	configFile := flag.String("config", "", "TOML config file, replaces the connection flags")
	backend := flag.String("backend", "eventloop", "the scheduler backend (eventloop|reactor)")
	transport := flag.String("transport", "tcp", "the modbus mode (tcp|udp|rtu)")
	url := flag.String("url", "localhost:502", "host:port or serial device")
	baud := flag.Int("baud", 9600, "the rtu baud rate")
	unit := flag.Int("unit", 1, "the unit id")
	timeout := flag.Duration("timeout", time.Second, "the request timeout")
	var addr, value encoding.Hex
	flag.Var(&addr, "address", "0x0000 to 0xFFFF")
	flag.Var(&value, "value", "the value to write")
	quantity := flag.Int("quantity", 1, "the number of coils or registers to read")
	fc := flag.Int("fc", int(modbus.FCReadHoldingRegisters), "the modbus function code (1|3|4|5|6|16)")
	interactive := flag.Bool("i", false, "start the interactive console")
	trace := flag.Bool("trace", false, "print the traffic trace")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			log.Fatal(err)
		}
	} else {
		cfg.Backend = *backend
		cfg.Transport.Type = *transport
		cfg.Transport.Address = *url
		cfg.Transport.BaudRate = *baud
		cfg.Client.UnitID = uint8(*unit)
		cfg.Client.Timeout = *timeout
		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}
	}

	port := console.NewProtocolAdapter()
	if err := run(cfg, port, *trace, *interactive, func(client bmodbus.Client) error {
		return execute(client, *fc, addr.Uint16(), uint16(*quantity), value.Uint16())
	}); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, port *console.ProtocolAdapter, trace, interactive bool, oneShot func(bmodbus.Client) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := cfg.Options()
	if trace || interactive {
		opts.ProtocolPort = port
	}
	loop, f, err := asyncmodbus.New(ctx, opts)
	if err != nil {
		return err
	}
	defer loop.Stop()

	c, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	slog.Debug("connected", "transport", c.String(), "backend", loop.Name())

	client := bmodbus.NewClient(asyncmodbus.NewHandler(c, cfg.Client.UnitID, cfg.Client.Timeout))
	if !interactive {
		return oneShot(client)
	}

	status := func() string {
		return fmt.Sprintf("%s %s pending=%d", c, c.State(), c.PendingCount())
	}
	return console.NewKeyboardAdapter(client, port, status).Start(cancel)
}

func execute(client bmodbus.Client, fc int, address, quantity, value uint16) error {
	var (
		results []byte
		err     error
	)
	switch uint8(fc) {
	case modbus.FCReadCoils:
		results, err = client.ReadCoils(address, quantity)
	case modbus.FCReadHoldingRegisters:
		results, err = client.ReadHoldingRegisters(address, quantity)
	case modbus.FCReadInputRegisters:
		results, err = client.ReadInputRegisters(address, quantity)
	case modbus.FCWriteSingleCoil:
		var v uint16
		if value != 0 {
			v = 0xFF00
		}
		results, err = client.WriteSingleCoil(address, v)
	case modbus.FCWriteSingleRegister:
		results, err = client.WriteSingleRegister(address, value)
	case modbus.FCWriteMultipleRegisters:
		results, err = client.WriteMultipleRegisters(address, 1, encoding.Uint16ToBytes(value))
	default:
		return fmt.Errorf("unknown function code %d", fc)
	}
	if err != nil {
		return err
	}
	fmt.Printf("response: % X\n", results)
	return nil
}
