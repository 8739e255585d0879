package transaction

import (
	"fmt"

	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
)

// Allocator chooses the id of the next request. Allocators are not safe for
// concurrent use; the owning client serializes them.
type Allocator interface {
	Next(req *modbus.PDU, inUse func(ID) bool) (ID, error)
}

// NewAllocator returns the allocator matching a framing mode.
func NewAllocator(a modbus.Addressing) Allocator {
	if a == modbus.AddressingUnit {
		return Addressed{}
	}
	return &Counter{}
}

// Counter hands out wrapping 16 bit ids and skips ids that are still
// pending, so a slow call is never shadowed after wraparound.
type Counter struct {
	next uint32
}

// Next implements Allocator.
func (c *Counter) Next(_ *modbus.PDU, inUse func(ID) bool) (ID, error) {
	for _i := 0; _i < 1<<16; _i++ {
		id := ID(c.next)
		c.next = (c.next + 1) & 0xFFFF
		if !inUse(id) {
			return id, nil
		}
	}
	return 0, ErrNoFreeTransactionID
}

// Addressed derives the id from the unit address. Serial lines have one
// outstanding request per unit.
type Addressed struct{}

// Next implements Allocator.
func (Addressed) Next(req *modbus.PDU, inUse func(ID) bool) (ID, error) {
	id := ID(req.UnitId)
	if inUse(id) {
		return id, fmt.Errorf("%w: unit %d", ErrTransactionInFlight, req.UnitId)
	}
	return id, nil
}
