package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	bmodbus "github.com/goburrow/modbus"

	"github.com/rwirdemann/asyncmodbus"
)

const (
	firmwareRegister = 0xF1FF
	firmwareQuantity = 3
)

func main() {
	slaveID := flag.Int("slave", 101, "the slave id")
	transport := flag.String("transport", "tcp", "the modbus mode (tcp|rtu)")
	url := flag.String("url", "localhost:502", "the url to connect")
	cmd := flag.String("cmd", "read-firmware-version", "read firmware version")
	flag.Parse()

	opts := asyncmodbus.Options{
		Backend: asyncmodbus.BackendEventLoop,
		Kind:    asyncmodbus.Kind(*transport),
		Address: *url,
		Timeout: 5 * time.Second,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loop, f, err := asyncmodbus.New(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer loop.Stop()
	c, err := f.Wait(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	client := bmodbus.NewClient(asyncmodbus.NewHandler(c, uint8(*slaveID), 5*time.Second))
	switch *cmd {
	case "read-firmware-version":
		version, err := readFirmwareVersion(client)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Firmware version: %s\n", version)
	default:
		slog.Error("unknown function command", "cmd", *cmd)
	}
}

// readFirmwareVersion triggers the version register with a write and reads
// it back in the same transaction.
func readFirmwareVersion(client bmodbus.Client) (string, error) {
	bb, err := client.ReadWriteMultipleRegisters(firmwareRegister, firmwareQuantity, firmwareRegister, 1, []byte{0x01, 0x00})
	if err != nil {
		return "", err
	}
	if len(bb) < 6 {
		return "", fmt.Errorf("short firmware version response: % X", bb)
	}
	v := bb[len(bb)-4:]
	return fmt.Sprintf("%d.%d.%d.%d", v[3], v[2], v[1], v[0]), nil
}
