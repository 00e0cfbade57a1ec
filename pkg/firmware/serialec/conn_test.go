package serialec

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/railgate-project/railgate-go/pkg/firmware"
)

// fakeEC scripts the embedded controller side of a connection.
type fakeEC struct {
	conn net.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	methods  map[string]byte
	events   map[string]uint32
	armed    map[uint32]bool
	powered  bool
	failCall bool
}

func newFakeEC(t *testing.T) (*fakeEC, *Conn) {
	t.Helper()
	host, ecSide := net.Pipe()

	f := &fakeEC{
		conn:    ecSide,
		methods: map[string]byte{"XRPE": 1, "TRPE": 2, "XRIL": 3},
		events:  map[string]uint32{"XRIN": 7},
		armed:   make(map[uint32]bool),
		powered: true,
	}
	go f.serve()

	c := NewConn(host, Config{Timeout: 500 * time.Millisecond})
	t.Cleanup(func() {
		c.Close()
		ecSide.Close()
	})
	return f, c
}

func (f *fakeEC) serve() {
	buf := make([]byte, 0, maxFrameLen)
	one := make([]byte, 1)
	for {
		if _, err := f.conn.Read(one); err != nil {
			return
		}
		b := one[0]
		if b != flagByte {
			buf = append(buf, b)
			continue
		}
		if len(buf) == 0 {
			continue
		}
		ftype, seq, cmd, body, err := decodeFrame(buf)
		buf = buf[:0]
		if err != nil || ftype != frameRequest {
			continue
		}
		f.handle(seq, cmd, body)
	}
}

func (f *fakeEC) handle(seq, cmd byte, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd {
	case cmdResolveMethod:
		if handle, ok := f.methods[string(body)]; ok {
			f.respond(seq, cmd, []byte{statusOK, handle})
		} else {
			f.respond(seq, cmd, []byte{statusNotFound})
		}

	case cmdCall:
		if f.failCall {
			f.respond(seq, cmd, []byte{statusFailed})
			return
		}
		arg := binary.BigEndian.Uint64(body[1:])
		f.powered = arg != 0
		f.respond(seq, cmd, []byte{statusOK})

	case cmdQuery:
		resp := make([]byte, 9)
		resp[0] = statusOK
		if !f.powered {
			binary.BigEndian.PutUint64(resp[1:], 1)
		}
		f.respond(seq, cmd, resp)

	case cmdResolveEvent:
		if id, ok := f.events[string(body)]; ok {
			resp := make([]byte, 5)
			resp[0] = statusOK
			binary.BigEndian.PutUint32(resp[1:], id)
			f.respond(seq, cmd, resp)
		} else {
			f.respond(seq, cmd, []byte{statusNotFound})
		}

	case cmdArm:
		f.armed[binary.BigEndian.Uint32(body)] = true
		f.respond(seq, cmd, []byte{statusOK})

	case cmdDisarm:
		f.armed[binary.BigEndian.Uint32(body)] = false
		f.respond(seq, cmd, []byte{statusOK})
	}
}

func (f *fakeEC) respond(seq, cmd byte, body []byte) {
	frame := encodeFrame(frameResponse, seq, cmd, body)
	f.writeMu.Lock()
	f.conn.Write(frame)
	f.writeMu.Unlock()
}

// fireEvent raises an unsolicited wake event frame.
func (f *fakeEC) fireEvent(id uint32) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, id)
	frame := encodeFrame(frameEvent, 0, 0, body)
	f.writeMu.Lock()
	f.conn.Write(frame)
	f.writeMu.Unlock()
}

func (f *fakeEC) isPowered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.powered
}

func (f *fakeEC) isArmed(id uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed[id]
}

func (f *fakeEC) setFailCall(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCall = v
}

func TestConnResolvesAndCallsMethods(t *testing.T) {
	ec, c := newFakeEC(t)

	setPower, err := c.Method("XRPE")
	if err != nil {
		t.Fatalf("Method(XRPE): %v", err)
	}
	if setPower.Name() != "XRPE" {
		t.Errorf("Name() = %s, want XRPE", setPower.Name())
	}
	getPower, err := c.Method("XRIL")
	if err != nil {
		t.Fatalf("Method(XRIL): %v", err)
	}

	if err := setPower.Call(0); err != nil {
		t.Fatalf("Call(0): %v", err)
	}
	if ec.isPowered() {
		t.Error("chip still powered after power-off call")
	}
	down, err := getPower.Query()
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if down != 1 {
		t.Errorf("Query = %d, want 1 while powered down", down)
	}

	if err := setPower.Call(1); err != nil {
		t.Fatalf("Call(1): %v", err)
	}
	if !ec.isPowered() {
		t.Error("chip not powered after power-on call")
	}
}

func TestConnMethodNotFound(t *testing.T) {
	_, c := newFakeEC(t)

	_, err := c.Method("NOPE")
	if !errors.Is(err, firmware.ErrNotFound) {
		t.Errorf("Method(NOPE) = %v, want ErrNotFound", err)
	}
}

func TestConnWakeEventResolution(t *testing.T) {
	_, c := newFakeEC(t)

	id, err := c.WakeEvent("XRIN")
	if err != nil {
		t.Fatalf("WakeEvent(XRIN): %v", err)
	}
	if id != 7 {
		t.Errorf("event id = %d, want 7", id)
	}

	if _, err := c.WakeEvent("NOPE"); !errors.Is(err, firmware.ErrNotFound) {
		t.Errorf("WakeEvent(NOPE) = %v, want ErrNotFound", err)
	}
}

func TestConnArmDisarm(t *testing.T) {
	ec, c := newFakeEC(t)

	if err := c.Arm(7); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if !ec.isArmed(7) {
		t.Error("event not armed on the embedded controller")
	}
	if err := c.Disarm(7); err != nil {
		t.Fatalf("Disarm: %v", err)
	}
	if ec.isArmed(7) {
		t.Error("event still armed on the embedded controller")
	}
}

func TestConnDispatchesEvents(t *testing.T) {
	ec, c := newFakeEC(t)

	got := make(chan firmware.EventID, 1)
	if err := c.InstallHandler(7, func(id firmware.EventID) { got <- id }); err != nil {
		t.Fatalf("InstallHandler: %v", err)
	}

	ec.fireEvent(7)

	select {
	case id := <-got:
		if id != 7 {
			t.Errorf("handler got event %d, want 7", id)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestConnIgnoresEventsWithoutHandler(t *testing.T) {
	ec, c := newFakeEC(t)

	// No handler installed: the event must be dropped, and the
	// connection must keep working afterwards.
	ec.fireEvent(99)

	if _, err := c.WakeEvent("XRIN"); err != nil {
		t.Fatalf("WakeEvent after stray event: %v", err)
	}
}

func TestConnHandlerLifecycle(t *testing.T) {
	_, c := newFakeEC(t)

	h := func(firmware.EventID) {}
	if err := c.InstallHandler(7, h); err != nil {
		t.Fatalf("InstallHandler: %v", err)
	}
	if err := c.InstallHandler(7, h); !errors.Is(err, firmware.ErrHandlerInstalled) {
		t.Errorf("second InstallHandler = %v, want ErrHandlerInstalled", err)
	}
	if err := c.RemoveHandler(7); err != nil {
		t.Fatalf("RemoveHandler: %v", err)
	}
	if err := c.RemoveHandler(7); !errors.Is(err, firmware.ErrNoHandler) {
		t.Errorf("second RemoveHandler = %v, want ErrNoHandler", err)
	}
}

func TestConnFirmwareFailure(t *testing.T) {
	ec, c := newFakeEC(t)
	setPower, err := c.Method("XRPE")
	if err != nil {
		t.Fatalf("Method: %v", err)
	}

	ec.setFailCall(true)
	err = setPower.Call(1)
	if !errors.Is(err, ErrFirmware) {
		t.Fatalf("Call = %v, want ErrFirmware", err)
	}

	var opErr *firmware.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("Call error %T does not wrap OpError", err)
	}
	if opErr.Op != firmware.OpSetPower || opErr.Method != "XRPE" {
		t.Errorf("OpError = %+v, want SET_POWER on XRPE", opErr)
	}
}

func TestConnTimeout(t *testing.T) {
	host, ecSide := net.Pipe()
	t.Cleanup(func() { ecSide.Close() })

	// The embedded controller consumes requests but never answers.
	go io.Copy(io.Discard, ecSide)

	c := NewConn(host, Config{Timeout: 50 * time.Millisecond})
	t.Cleanup(func() { c.Close() })

	if _, err := c.Method("XRPE"); !errors.Is(err, ErrTimeout) {
		t.Errorf("Method = %v, want ErrTimeout", err)
	}
}

func TestConnClosed(t *testing.T) {
	_, c := newFakeEC(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := c.Method("XRPE"); !errors.Is(err, ErrClosed) {
		t.Errorf("Method after Close = %v, want ErrClosed", err)
	}
}
