package serialec

import (
	"encoding/binary"
	"fmt"

	"github.com/railgate-project/railgate-go/pkg/firmware"
)

// statusErr maps a response status code to an error.
func statusErr(status byte) error {
	switch status {
	case statusOK:
		return nil
	case statusNotFound:
		return firmware.ErrNotFound
	case statusFailed:
		return ErrFirmware
	default:
		return fmt.Errorf("%w: status %#02x", ErrProtocol, status)
	}
}

// Method resolves a named control method to its embedded controller
// handle.
func (c *Conn) Method(name string) (firmware.Method, error) {
	body, err := c.roundTrip(cmdResolveMethod, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("resolve method %s: %w", name, err)
	}
	if len(body) < 1 {
		return nil, fmt.Errorf("resolve method %s: %w", name, ErrProtocol)
	}
	if err := statusErr(body[0]); err != nil {
		return nil, fmt.Errorf("method %s: %w", name, err)
	}
	if len(body) < 2 {
		return nil, fmt.Errorf("resolve method %s: %w", name, ErrProtocol)
	}
	return &method{conn: c, name: name, handle: body[1]}, nil
}

// WakeEvent resolves a named wake event object to its event number.
func (c *Conn) WakeEvent(name string) (firmware.EventID, error) {
	body, err := c.roundTrip(cmdResolveEvent, []byte(name))
	if err != nil {
		return 0, fmt.Errorf("resolve wake event %s: %w", name, err)
	}
	if len(body) < 1 {
		return 0, fmt.Errorf("resolve wake event %s: %w", name, ErrProtocol)
	}
	if err := statusErr(body[0]); err != nil {
		return 0, fmt.Errorf("wake event %s: %w", name, err)
	}
	if len(body) < 5 {
		return 0, fmt.Errorf("resolve wake event %s: %w", name, ErrProtocol)
	}
	return firmware.EventID(binary.BigEndian.Uint32(body[1:])), nil
}

// Arm enables embedded controller delivery of the wake event.
func (c *Conn) Arm(id firmware.EventID) error {
	if err := c.eventOp(cmdArm, id); err != nil {
		return &firmware.OpError{Op: firmware.OpArmWake, Err: err}
	}
	return nil
}

// Disarm disables embedded controller delivery of the wake event.
func (c *Conn) Disarm(id firmware.EventID) error {
	if err := c.eventOp(cmdDisarm, id); err != nil {
		return &firmware.OpError{Op: firmware.OpDisarmWake, Err: err}
	}
	return nil
}

func (c *Conn) eventOp(cmd byte, id firmware.EventID) error {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, uint32(id))
	resp, err := c.roundTrip(cmd, body)
	if err != nil {
		return err
	}
	if len(resp) < 1 {
		return ErrProtocol
	}
	return statusErr(resp[0])
}

// InstallHandler registers h for id. Handlers run on the reader
// goroutine and must not block.
func (c *Conn) InstallHandler(id firmware.EventID, h firmware.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.handlers[id]; taken {
		return firmware.ErrHandlerInstalled
	}
	c.handlers[id] = h
	return nil
}

// RemoveHandler unregisters the handler for id.
func (c *Conn) RemoveHandler(id firmware.EventID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.handlers[id]; !ok {
		return firmware.ErrNoHandler
	}
	delete(c.handlers, id)
	return nil
}

// method is a resolved control method handle.
type method struct {
	conn   *Conn
	name   string
	handle byte
}

var _ firmware.Method = (*method)(nil)

// Name returns the identifier the method was resolved from.
func (m *method) Name() string { return m.name }

// Call evaluates the method with a single integer argument.
func (m *method) Call(arg uint64) error {
	body := make([]byte, 9)
	body[0] = m.handle
	binary.BigEndian.PutUint64(body[1:], arg)

	resp, err := m.conn.roundTrip(cmdCall, body)
	if err != nil {
		return &firmware.OpError{Op: firmware.OpSetPower, Method: m.name, Err: err}
	}
	if len(resp) < 1 {
		return &firmware.OpError{Op: firmware.OpSetPower, Method: m.name, Err: ErrProtocol}
	}
	if err := statusErr(resp[0]); err != nil {
		return &firmware.OpError{Op: firmware.OpSetPower, Method: m.name, Err: err}
	}
	return nil
}

// Query evaluates the method with no arguments and returns its result.
func (m *method) Query() (uint64, error) {
	resp, err := m.conn.roundTrip(cmdQuery, []byte{m.handle})
	if err != nil {
		return 0, &firmware.OpError{Op: firmware.OpGetPower, Method: m.name, Err: err}
	}
	if len(resp) < 1 {
		return 0, &firmware.OpError{Op: firmware.OpGetPower, Method: m.name, Err: ErrProtocol}
	}
	if err := statusErr(resp[0]); err != nil {
		return 0, &firmware.OpError{Op: firmware.OpGetPower, Method: m.name, Err: err}
	}
	if len(resp) < 9 {
		return 0, &firmware.OpError{Op: firmware.OpGetPower, Method: m.name, Err: ErrProtocol}
	}
	return binary.BigEndian.Uint64(resp[1:]), nil
}
