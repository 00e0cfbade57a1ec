package serialec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/railgate-project/railgate-go/pkg/firmware"
)

// Connection errors.
var (
	// ErrTimeout indicates the embedded controller did not answer a
	// request within the configured window.
	ErrTimeout = errors.New("embedded controller response timeout")

	// ErrClosed indicates the connection is closed or its reader died.
	ErrClosed = errors.New("embedded controller connection closed")

	// ErrBusy indicates the request window is exhausted.
	ErrBusy = errors.New("too many requests in flight")

	// ErrFirmware indicates the embedded controller reported a failure
	// executing an otherwise well-formed request.
	ErrFirmware = errors.New("firmware call failed")
)

// Config configures a Conn.
type Config struct {
	// Timeout bounds each request round trip.
	Timeout time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Timeout: time.Second}
}

// Conn is one framed connection to the embedded controller. It
// implements firmware.Node and firmware.Events.
type Conn struct {
	cfg Config
	rw  io.ReadWriter

	// writeMu serializes whole frames onto the link.
	writeMu sync.Mutex

	mu       sync.Mutex
	seq      uint8
	pending  map[uint8]chan []byte
	handlers map[firmware.EventID]firmware.Handler
	closed   bool

	failOnce sync.Once
	done     chan struct{}
}

var (
	_ firmware.Node   = (*Conn)(nil)
	_ firmware.Events = (*Conn)(nil)
)

// NewConn wraps an open link to the embedded controller and starts its
// reader. The caller keeps ownership of rw unless it implements
// io.Closer, in which case Close closes it.
func NewConn(rw io.ReadWriter, cfg Config) *Conn {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	c := &Conn{
		cfg:      cfg,
		rw:       rw,
		pending:  make(map[uint8]chan []byte),
		handlers: make(map[firmware.EventID]firmware.Handler),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close tears the connection down. In-flight requests fail with
// ErrClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.failOnce.Do(func() { close(c.done) })
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// roundTrip sends one request and waits for its response body.
func (c *Conn) roundTrip(cmd byte, body []byte) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	seq, ok := c.allocSeqLocked()
	if !ok {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	ch := make(chan []byte, 1)
	c.pending[seq] = ch
	c.mu.Unlock()

	frame := encodeFrame(frameRequest, seq, cmd, body)
	c.writeMu.Lock()
	_, err := c.rw.Write(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(seq)
		return nil, fmt.Errorf("write request: %w", err)
	}

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		c.dropPending(seq)
		return nil, ErrTimeout
	case <-c.done:
		c.dropPending(seq)
		return nil, ErrClosed
	}
}

// allocSeqLocked finds a sequence number with no pending request.
func (c *Conn) allocSeqLocked() (uint8, bool) {
	for i := 0; i < 256; i++ {
		c.seq++
		if _, busy := c.pending[c.seq]; !busy {
			return c.seq, true
		}
	}
	return 0, false
}

func (c *Conn) dropPending(seq uint8) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

// readLoop owns the serial input: it reassembles frames and dispatches
// responses and events. A read error ends the connection.
func (c *Conn) readLoop() {
	r := bufio.NewReader(c.rw)
	buf := make([]byte, 0, maxFrameLen)

	for {
		b, err := r.ReadByte()
		if err != nil {
			c.failOnce.Do(func() { close(c.done) })
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.warnLog("serial read failed", "error", err)
			}
			return
		}

		switch {
		case b == cancelByte:
			buf = buf[:0]
		case b == flagByte:
			if len(buf) > 0 {
				c.dispatch(buf)
				buf = buf[:0]
			}
		default:
			buf = append(buf, b)
			if len(buf) > maxFrameLen {
				c.warnLog("oversized frame discarded", "len", len(buf))
				buf = buf[:0]
			}
		}
	}
}

// dispatch routes one received frame.
func (c *Conn) dispatch(stuffed []byte) {
	ftype, seq, cmd, body, err := decodeFrame(stuffed)
	if err != nil {
		c.warnLog("bad frame discarded", "error", err)
		return
	}

	switch ftype {
	case frameResponse:
		c.mu.Lock()
		ch, ok := c.pending[seq]
		delete(c.pending, seq)
		c.mu.Unlock()
		if !ok {
			c.debugLog("response without pending request", "seq", seq, "cmd", cmd)
			return
		}
		ch <- body

	case frameEvent:
		if len(body) < 4 {
			c.warnLog("short event frame discarded", "len", len(body))
			return
		}
		id := firmware.EventID(binary.BigEndian.Uint32(body))
		c.mu.Lock()
		h := c.handlers[id]
		c.mu.Unlock()
		if h != nil {
			h(id)
		}

	default:
		c.debugLog("unexpected frame type", "type", ftype)
	}
}

// debugLog logs a debug message if logging is enabled.
func (c *Conn) debugLog(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug(msg, args...)
	}
}

// warnLog logs a warning if logging is enabled.
func (c *Conn) warnLog(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Warn(msg, args...)
	}
}
