// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitwire

import (
	"fmt"
	"io"
)

// Pkt-line framing: each record is a 4-digit lowercase hex length
// (covering the 4 length bytes themselves) followed by the payload.
// A length of "0000" is a flush-pkt, which carries no payload and
// delimits protocol sections.

// pktLengthDigits is the size of the hex length prefix.
const pktLengthDigits = 4

// MaxPacketPayload is the largest payload one pkt-line can carry:
// 65520 total minus the length prefix. This matches the side-band-64k
// capability's frame limit.
const MaxPacketPayload = 65520 - pktLengthDigits

// WritePacket writes one pkt-line carrying data. Returns an error if
// data exceeds MaxPacketPayload.
func WritePacket(w io.Writer, data []byte) error {
	if len(data) > MaxPacketPayload {
		return fmt.Errorf("gitwire: packet payload %d exceeds %d", len(data), MaxPacketPayload)
	}
	if _, err := fmt.Fprintf(w, "%04x", len(data)+pktLengthDigits); err != nil {
		return fmt.Errorf("write packet length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write packet payload: %w", err)
	}
	return nil
}

// WriteFlush writes a flush-pkt.
func WriteFlush(w io.Writer) error {
	if _, err := io.WriteString(w, "0000"); err != nil {
		return fmt.Errorf("write flush-pkt: %w", err)
	}
	return nil
}

// ReadPacket reads one pkt-line from r. Returns (nil, false, nil) for
// a flush-pkt and (payload, true, nil) for a data packet. io.EOF is
// returned unwrapped when the stream ends cleanly between packets.
func ReadPacket(r io.Reader) (payload []byte, ok bool, err error) {
	var lengthHex [pktLengthDigits]byte
	if _, err := io.ReadFull(r, lengthHex[:]); err != nil {
		if err == io.EOF {
			return nil, false, io.EOF
		}
		return nil, false, fmt.Errorf("read packet length: %w", err)
	}

	length, err := parsePktLength(lengthHex[:])
	if err != nil {
		return nil, false, err
	}
	if length == 0 {
		return nil, false, nil
	}

	payload = make([]byte, length-pktLengthDigits)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, false, fmt.Errorf("read packet payload: %w", err)
	}
	return payload, true, nil
}

// parsePktLength decodes the 4-digit hex prefix. Lengths 1-3 are
// invalid (the prefix counts itself).
func parsePktLength(hexDigits []byte) (int, error) {
	length := 0
	for _, digit := range hexDigits {
		var value int
		switch {
		case digit >= '0' && digit <= '9':
			value = int(digit - '0')
		case digit >= 'a' && digit <= 'f':
			value = int(digit-'a') + 10
		case digit >= 'A' && digit <= 'F':
			value = int(digit-'A') + 10
		default:
			return 0, fmt.Errorf("gitwire: invalid pkt-line length %q", hexDigits)
		}
		length = length<<4 | value
	}
	if length > 0 && length < pktLengthDigits {
		return 0, fmt.Errorf("gitwire: pkt-line length %d below minimum", length)
	}
	return length, nil
}
