package asyncmodbus

import (
	"errors"

	"github.com/rwirdemann/asyncmodbus/transaction"
)

var (
	// ErrConnectionFailure is the failure every pending call receives when
	// the connection is closed or lost, and the immediate result of a call
	// issued while disconnected.
	ErrConnectionFailure = transaction.ErrConnectionFailure

	ErrUnsupportedCombination = errors.New("modbus: unsupported backend and transport combination")
	ErrUnknownBackend         = errors.New("modbus: unknown backend")
	ErrUnknownTransport       = errors.New("modbus: unknown transport")
	ErrConnecting             = errors.New("modbus: connect already in progress")

	// ErrTimeout is returned by Handler when no response arrived in time.
	ErrTimeout = errors.New("modbus: request timed out")
)
