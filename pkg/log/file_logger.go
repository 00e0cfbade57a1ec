package log

import (
	"fmt"
	"os"
	"sync"
)

// FileLogger appends power events to an .rlog trace file as a bare
// concatenation of CBOR maps, one per event. Reader streams the same
// format back out. Safe for concurrent use.
type FileLogger struct {
	mu     sync.Mutex
	f      *os.File
	closed bool
}

// NewFileLogger opens the trace file at path, creating it when missing.
// An existing trace is appended to, so a restarted daemon continues the
// same file.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return &FileLogger{f: f}, nil
}

// Log appends one event to the trace. Encode and write failures are
// dropped; tracing must never stall or fail a power transition.
func (l *FileLogger) Log(event Event) {
	data, err := EncodeEvent(event)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	_, _ = l.f.Write(data)
}

// Close closes the trace file. Close is idempotent, and events logged
// after it are dropped.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.f.Close()
}

var _ Logger = (*FileLogger)(nil)
