package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rwirdemann/asyncmodbus"
	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
)

// Config represents the client configuration
type Config struct {
	Backend   string    `toml:"backend"` // "eventloop" or "reactor"
	Transport Transport `toml:"transport"`
	Client    Client    `toml:"client"`
}

// Transport defines the connection to the server
type Transport struct {
	Type    string        `toml:"type"`    // "tcp", "udp" or "rtu"
	Address string        `toml:"address"` // For TCP: "localhost:502", for RTU: "/tmp/virtualcom0"
	Timeout time.Duration `toml:"timeout"` // dial timeout, e.g. "5s"

	// serial line settings, RTU only
	BaudRate int    `toml:"baud_rate"`
	DataBits int    `toml:"data_bits"`
	Parity   string `toml:"parity"`
	StopBits int    `toml:"stop_bits"`
}

// Client defines how requests are issued
type Client struct {
	UnitID        uint8         `toml:"unit_id"`
	Timeout       time.Duration `toml:"timeout"` // per request
	MaxBuffer     int           `toml:"max_buffer"`
	StrictFraming bool          `toml:"strict_framing"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Backend:   string(asyncmodbus.BackendEventLoop),
		Transport: Transport{Type: string(asyncmodbus.KindTCP), Address: "localhost:502", Timeout: 5 * time.Second},
		Client:    Client{UnitID: 1, Timeout: asyncmodbus.DefaultTimeout, MaxBuffer: modbus.DefaultMaxBuffer},
	}
}

// Load reads and parses a TOML configuration file. Keys missing in the file
// keep their default.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	backend := asyncmodbus.Backend(c.Backend)
	if backend != asyncmodbus.BackendEventLoop && backend != asyncmodbus.BackendReactor {
		return fmt.Errorf("invalid backend %q, must be 'eventloop' or 'reactor'", c.Backend)
	}

	kind := asyncmodbus.Kind(c.Transport.Type)
	switch kind {
	case asyncmodbus.KindTCP, asyncmodbus.KindUDP, asyncmodbus.KindRTU:
	default:
		return fmt.Errorf("transport: invalid type %q, must be 'tcp', 'udp' or 'rtu'", c.Transport.Type)
	}
	if !asyncmodbus.Supports(backend, kind) {
		return fmt.Errorf("transport: type %q is not supported by backend %q", c.Transport.Type, c.Backend)
	}
	if c.Transport.Address == "" {
		return fmt.Errorf("transport: address is required")
	}
	if c.Transport.Timeout < 0 {
		return fmt.Errorf("transport: negative timeout %v", c.Transport.Timeout)
	}

	if kind == asyncmodbus.KindRTU {
		if c.Transport.BaudRate < 0 {
			return fmt.Errorf("transport: invalid baud rate %d", c.Transport.BaudRate)
		}
		if c.Transport.DataBits != 0 && (c.Transport.DataBits < 5 || c.Transport.DataBits > 8) {
			return fmt.Errorf("transport: invalid data bits %d, must be between 5 and 8", c.Transport.DataBits)
		}
		switch c.Transport.Parity {
		case "", "N", "E", "O":
		default:
			return fmt.Errorf("transport: invalid parity %q, must be 'N', 'E' or 'O'", c.Transport.Parity)
		}
		if c.Transport.StopBits != 0 && c.Transport.StopBits != 1 && c.Transport.StopBits != 2 {
			return fmt.Errorf("transport: invalid stop bits %d, must be 1 or 2", c.Transport.StopBits)
		}
	}

	if c.Client.Timeout < 0 {
		return fmt.Errorf("client: negative timeout %v", c.Client.Timeout)
	}
	if c.Client.MaxBuffer < 0 {
		return fmt.Errorf("client: negative max_buffer %d", c.Client.MaxBuffer)
	}
	if c.Client.MaxBuffer > 0 && c.Client.MaxBuffer < modbus.MaxADULength {
		return fmt.Errorf("client: max_buffer %d is below the largest frame of %d bytes", c.Client.MaxBuffer, modbus.MaxADULength)
	}

	return nil
}

// Options maps the configuration to the client factory options.
func (c *Config) Options() asyncmodbus.Options {
	opts := asyncmodbus.Options{
		Backend:       asyncmodbus.Backend(c.Backend),
		Kind:          asyncmodbus.Kind(c.Transport.Type),
		Address:       c.Transport.Address,
		Timeout:       c.Transport.Timeout,
		MaxBuffer:     c.Client.MaxBuffer,
		StrictFraming: c.Client.StrictFraming,
	}
	opts.Serial.BaudRate = c.Transport.BaudRate
	opts.Serial.DataBits = c.Transport.DataBits
	opts.Serial.Parity = c.Transport.Parity
	opts.Serial.StopBits = c.Transport.StopBits
	return opts
}
