package encoding

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Hex is a 16 bit register address or value that accepts decimal, 0x-prefixed
// hex and octal notation. It satisfies flag.Value.
type Hex uint16

func NewHex(value string) (*Hex, error) {
	var h = new(Hex)
	if err := h.Set(value); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hex) Uint16() uint16 {
	return uint16(*h)
}

func (h *Hex) Set(value string) error {
	value = strings.TrimSpace(value)
	v, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid register value %q: %w", value, err)
	}
	*h = Hex(v)
	return nil
}

func (h *Hex) String() string {
	if h == nil {
		return "0x0000"
	}
	return fmt.Sprintf("0x%04X", uint16(*h))
}

// HexStringToBytes converts a hex string (e.g., "00FF1234") to a byte array.
// Spaces between bytes are ignored, so the output of "% X" formatting parses
// back to the same bytes.
func HexStringToBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	s = strings.ReplaceAll(s, " ", "")

	if len(s)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even length")
	}

	return hex.DecodeString(s)
}
