package serialec

import (
	"fmt"

	"go.bug.st/serial"
)

// Open connects to the embedded controller on a serial device at
// 115200 baud, 8N1, and returns the framed connection.
func Open(path string, cfg Config) (*Conn, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return NewConn(port, cfg), nil
}
