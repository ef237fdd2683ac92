// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitwire

import (
	"io"
)

// Sideband channel codes. Within a multiplexed response each pkt-line
// payload starts with one band byte.
const (
	// BandPack carries pack data.
	BandPack byte = 1
	// BandProgress carries human-readable progress messages,
	// displayed by the client on stderr.
	BandProgress byte = 2
	// BandError carries a fatal error message.
	BandError byte = 3
)

// sidebandChunk bounds the payload of one progress packet. Progress
// lines are short; chunking only matters if a relay forwards bulk
// data through the session.
const sidebandChunk = 4096

// SidebandWriter encodes writes as band-2 (progress) pkt-lines on an
// underlying stream, flushing after each packet when the stream
// supports it. This is how post-push status reaches a git client
// that is still reading the receive-pack response.
//
// Close terminates the multiplexed stream with a flush-pkt. The
// underlying writer is not closed.
type SidebandWriter struct {
	w io.Writer
}

// NewSidebandWriter wraps w.
func NewSidebandWriter(w io.Writer) *SidebandWriter {
	return &SidebandWriter{w: w}
}

// Write encodes p as one or more progress packets.
func (s *SidebandWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > sidebandChunk {
			chunk = chunk[:sidebandChunk]
		}

		packet := make([]byte, 0, len(chunk)+1)
		packet = append(packet, BandProgress)
		packet = append(packet, chunk...)
		if err := WritePacket(s.w, packet); err != nil {
			return written, err
		}
		s.flush()

		written += len(chunk)
		p = p[len(chunk):]
	}
	return written, nil
}

// Close ends the multiplexed stream with a flush-pkt.
func (s *SidebandWriter) Close() error {
	if err := WriteFlush(s.w); err != nil {
		return err
	}
	s.flush()
	return nil
}

// flush pushes buffered bytes toward the client so progress lines
// appear as they happen, not when the response ends.
func (s *SidebandWriter) flush() {
	type flusher interface{ Flush() }
	if f, ok := s.w.(flusher); ok {
		f.Flush()
	}
}
