// Package serialec drives controller firmware over a serial link to the
// board's embedded controller.
//
// The embedded controller owns the firmware namespace: method handles,
// the power switch, and wake event routing. This package speaks its
// framed request/response protocol and presents the result as the
// firmware.Node and firmware.Events interfaces the power sequencer
// consumes.
//
// # Wire Format
//
// Frames are flag-terminated and byte-stuffed, with a CRC-CCITT
// trailer over the unstuffed payload:
//
//	payload := type(1) seq(1) cmd(1) body...
//	frame   := stuff(payload crc16) flag
//
// Requests carry a sequence number echoed by the matching response.
// Event frames arrive unsolicited with sequence zero and a 4-byte
// event number body.
//
// # Concurrency
//
// One reader goroutine owns the serial input. Responses complete the
// pending request with the matching sequence number; event frames are
// dispatched synchronously to the installed handler, so handlers must
// not block and must not call back into the connection.
package serialec
