package memtree

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// snapshot is the opaque config format handed to pkg/power. Integer keys
// keep snapshots compact; the holder never inspects them.
type snapshot struct {
	// Registers is the device's config register map.
	Registers map[string]uint32 `cbor:"1,keyasint"`
}

// snapEncMode is the CBOR encoder mode for config snapshots.
// Deterministic encoding so identical configs produce identical bytes.
var snapEncMode cbor.EncMode

// snapDecMode is the CBOR decoder mode for config snapshots.
var snapDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	snapEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	snapDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// encodeSnapshot encodes a snapshot to CBOR bytes.
func encodeSnapshot(s snapshot) ([]byte, error) {
	return snapEncMode.Marshal(s)
}

// decodeSnapshot decodes CBOR bytes into a snapshot.
func decodeSnapshot(data []byte) (snapshot, error) {
	var s snapshot
	if err := snapDecMode.Unmarshal(data, &s); err != nil {
		return snapshot{}, fmt.Errorf("failed to decode config snapshot: %w", err)
	}
	return s, nil
}
