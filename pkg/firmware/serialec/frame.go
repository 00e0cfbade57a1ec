package serialec

import (
	"errors"
	"fmt"
)

// Framing bytes.
const (
	flagByte   = 0x7E
	escapeByte = 0x7D
	flipBit    = 0x20
	cancelByte = 0x1A

	maxFrameLen = 512
)

// Frame types.
const (
	frameRequest  = 0x01
	frameResponse = 0x02
	frameEvent    = 0x03
)

// Request commands.
const (
	cmdResolveMethod = 0x10
	cmdCall          = 0x11
	cmdQuery         = 0x12
	cmdResolveEvent  = 0x20
	cmdArm           = 0x21
	cmdDisarm        = 0x22
)

// Response status codes.
const (
	statusOK       = 0x00
	statusNotFound = 0x01
	statusFailed   = 0x02
)

// ErrProtocol indicates a malformed or unexpected frame from the
// embedded controller.
var ErrProtocol = errors.New("embedded controller protocol error")

// encodeFrame builds a complete stuffed frame for the payload header
// and body.
func encodeFrame(ftype, seq, cmd byte, body []byte) []byte {
	raw := make([]byte, 0, len(body)+5)
	raw = append(raw, ftype, seq, cmd)
	raw = append(raw, body...)

	crc := crcCCITT(raw)
	raw = append(raw, byte(crc>>8), byte(crc))

	frame := stuff(raw)
	return append(frame, flagByte)
}

// decodeFrame unstuffs and validates one flag-delimited frame,
// returning its payload header and body.
func decodeFrame(stuffed []byte) (ftype, seq, cmd byte, body []byte, err error) {
	raw := unstuff(stuffed)
	if len(raw) < 5 {
		return 0, 0, 0, nil, fmt.Errorf("%w: frame of %d bytes", ErrProtocol, len(raw))
	}

	payload := raw[:len(raw)-2]
	received := uint16(raw[len(raw)-2])<<8 | uint16(raw[len(raw)-1])
	if computed := crcCCITT(payload); received != computed {
		return 0, 0, 0, nil, fmt.Errorf("%w: crc mismatch %#04x != %#04x", ErrProtocol, received, computed)
	}

	return payload[0], payload[1], payload[2], payload[3:], nil
}

// stuff escapes every byte the framing layer reserves.
func stuff(data []byte) []byte {
	out := make([]byte, 0, len(data)+8)
	for _, b := range data {
		if b == flagByte || b == escapeByte || b == cancelByte {
			out = append(out, escapeByte, b^flipBit)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// unstuff reverses stuff.
func unstuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	escaped := false
	for _, b := range data {
		switch {
		case escaped:
			out = append(out, b^flipBit)
			escaped = false
		case b == escapeByte:
			escaped = true
		default:
			out = append(out, b)
		}
	}
	return out
}

// crcCCITT computes CRC-CCITT (0xFFFF initial, polynomial 0x1021).
func crcCCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
