package log

import (
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter narrows the events a Reader yields. Zero fields match
// everything, so Filter{} reads the whole trace.
type Filter struct {
	// ControllerID keeps only events stamped with this exact ID.
	ControllerID string

	// Category keeps only events of one category.
	Category *Category

	// TimeStart keeps events at or after this instant.
	TimeStart *time.Time

	// TimeEnd keeps events strictly before this instant.
	TimeEnd *time.Time
}

// Reader streams events back out of an .rlog trace file.
type Reader struct {
	src    *os.File
	dec    *cbor.Decoder
	filter Filter
}

// NewReader opens the trace at path for unfiltered reading.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens the trace at path, yielding only the events
// the filter keeps.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{src: f, dec: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF after the last one.
func (r *Reader) Next() (Event, error) {
	for {
		var e Event
		if err := r.dec.Decode(&e); err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.keep(e) {
			return e, nil
		}
	}
}

// keep reports whether the filter admits e.
func (r *Reader) keep(e Event) bool {
	f := &r.filter
	switch {
	case f.ControllerID != "" && e.ControllerID != f.ControllerID:
		return false
	case f.Category != nil && e.Category != *f.Category:
		return false
	case f.TimeStart != nil && e.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !e.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.src.Close()
}
