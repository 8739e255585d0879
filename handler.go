package asyncmodbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	bmodbus "github.com/goburrow/modbus"

	"github.com/rwirdemann/asyncmodbus/pkg/modbus"
)

// DefaultTimeout bounds a synchronous call made through a Handler.
const DefaultTimeout = 5 * time.Second

// Handler exposes a Client as a github.com/goburrow/modbus ClientHandler so
// the blocking function code API of that package can be used on top of the
// asynchronous engine:
//
//	client := bmodbus.NewClient(asyncmodbus.NewHandler(c, 1, time.Second))
//	results, err := client.ReadHoldingRegisters(0, 2)
//
// The ADU passed between the goburrow client and the handler is the unit id
// followed by the PDU; the wire framing is done by the Client.
type Handler struct {
	client *Client

	SlaveId byte
	Timeout time.Duration
}

var _ bmodbus.ClientHandler = (*Handler)(nil)

func NewHandler(client *Client, slaveId byte, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{client: client, SlaveId: slaveId, Timeout: timeout}
}

func (h *Handler) Encode(pdu *bmodbus.ProtocolDataUnit) ([]byte, error) {
	if 1+len(pdu.Data) > modbus.MaxPDULength {
		return nil, fmt.Errorf("%w: length of data '%v' must not be bigger than '%v'", modbus.ErrInvalidPDU, len(pdu.Data), modbus.MaxPDULength-1)
	}
	adu := make([]byte, 0, 2+len(pdu.Data))
	adu = append(adu, h.SlaveId, pdu.FunctionCode)
	return append(adu, pdu.Data...), nil
}

func (h *Handler) Decode(adu []byte) (*bmodbus.ProtocolDataUnit, error) {
	if len(adu) < 2 {
		return nil, fmt.Errorf("%w: response length '%v' does not meet minimum '2'", modbus.ErrShortPayload, len(adu))
	}
	return &bmodbus.ProtocolDataUnit{FunctionCode: adu[1], Data: adu[2:]}, nil
}

func (h *Handler) Verify(aduRequest, aduResponse []byte) error {
	if len(aduRequest) < 2 || len(aduResponse) < 2 {
		return fmt.Errorf("%w: adu too short", modbus.ErrShortPayload)
	}
	if aduResponse[0] != aduRequest[0] {
		return fmt.Errorf("modbus: response unit id '%v' does not match request '%v'", aduResponse[0], aduRequest[0])
	}
	return nil
}

// Send executes the request and waits for its response or the timeout.
func (h *Handler) Send(aduRequest []byte) ([]byte, error) {
	if len(aduRequest) < 2 {
		return nil, fmt.Errorf("%w: request adu too short", modbus.ErrInvalidPDU)
	}
	call := h.client.Execute(&modbus.PDU{
		UnitId:       aduRequest[0],
		FunctionCode: aduRequest[1],
		Payload:      aduRequest[2:],
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()
	resp, err := call.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		timeout := fmt.Errorf("%w: transaction %d after %v", ErrTimeout, call.ID, h.Timeout)
		if h.client.Cancel(call, timeout) {
			return nil, timeout
		}
		// resolved concurrently
		resp, err = call.Wait(context.Background())
	}
	if err != nil {
		return nil, err
	}

	adu := make([]byte, 0, 2+len(resp.Payload))
	adu = append(adu, resp.UnitId, resp.FunctionCode)
	return append(adu, resp.Payload...), nil
}
