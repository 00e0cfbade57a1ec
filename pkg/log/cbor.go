package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Trace codec modes. Canonical ordering keeps encodings deterministic,
// and RFC3339Nano timestamps preserve the sub-millisecond spacing of
// confirmation polls.
var (
	eventEnc = mustEncMode()
	eventDec = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace encoder mode: %v", err))
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace decoder mode: %v", err))
	}
	return dm
}

// EncodeEvent renders one event as a single CBOR map with integer keys.
func EncodeEvent(event Event) ([]byte, error) {
	return eventEnc.Marshal(event)
}

// DecodeEvent parses one encoded event. Unknown keys are ignored so old
// tools can read traces written by newer code.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := eventDec.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// NewDecoder streams events out of r, one Decode call per event.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return eventDec.NewDecoder(r)
}
