// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitwire

import (
	"bytes"
	"io"
	"strings"
)

// Fields is the ref-update information captured from the first
// command of a receive-pack payload. Head is the client's final
// object id, Last the previous value of the ref — the pair that keys
// the commit record and the sideband session after the push lands.
type Fields struct {
	// Last is the previous object id of the updated ref
	// (all zeros for a ref creation).
	Last string

	// Head is the object id the ref is being set to.
	Head string

	// Branch is the short branch name ("main" for
	// "refs/heads/main"); the full ref name when the update is not
	// under refs/heads.
	Branch string

	// Capabilities is the capability list the client sent after the
	// NUL separator, if any.
	Capabilities []string
}

// RefUpdateScanner is a pass-through io.Reader that watches a
// receive-pack request stream for its first command pkt-line:
//
//	<old-oid> SP <new-oid> SP <refname> [NUL capabilities] LF
//
// Bytes flow to the consumer unmodified; the scanner never buffers
// more than one pkt-line of look-behind, so pack payloads of any size
// stream through with bounded memory. Once the first command (or a
// leading flush-pkt, meaning an empty push) has been seen, scanning
// stops and the reader is pure pass-through.
type RefUpdateScanner struct {
	reader io.Reader

	// pending accumulates stream bytes until the first pkt-line is
	// complete. Nil once scanning is done.
	pending []byte

	fields   Fields
	captured bool
	done     bool
}

// NewRefUpdateScanner wraps r.
func NewRefUpdateScanner(r io.Reader) *RefUpdateScanner {
	return &RefUpdateScanner{reader: r}
}

// Read passes bytes through from the underlying reader, feeding the
// scanner until the first command line has been parsed.
func (s *RefUpdateScanner) Read(p []byte) (int, error) {
	n, err := s.reader.Read(p)
	if n > 0 && !s.done {
		s.scan(p[:n])
	}
	return n, err
}

// Fields returns the captured ref-update fields. ok is false until a
// command line has been seen (and stays false for an empty push).
func (s *RefUpdateScanner) Fields() (fields Fields, ok bool) {
	return s.fields, s.captured
}

// scan consumes stream bytes until the first pkt-line is complete,
// then parses it.
func (s *RefUpdateScanner) scan(chunk []byte) {
	s.pending = append(s.pending, chunk...)

	if len(s.pending) < pktLengthDigits {
		return
	}
	length, err := parsePktLength(s.pending[:pktLengthDigits])
	if err != nil {
		// Not a pkt-line stream; nothing to capture. The
		// subprocess will reject the payload on its own.
		s.finish()
		return
	}
	if length == 0 {
		// flush-pkt first: an empty push, no command to capture.
		s.finish()
		return
	}
	if len(s.pending) < length {
		return
	}

	s.parseCommand(s.pending[pktLengthDigits:length])
	s.finish()
}

// parseCommand extracts old oid, new oid, refname, and capabilities
// from a command line payload.
func (s *RefUpdateScanner) parseCommand(line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))

	var capabilities []string
	if nulIndex := bytes.IndexByte(line, 0); nulIndex >= 0 {
		capabilities = strings.Fields(string(line[nulIndex+1:]))
		line = line[:nulIndex]
	}

	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 || !isObjectID(parts[0]) || !isObjectID(parts[1]) {
		return
	}

	s.fields = Fields{
		Last:         parts[0],
		Head:         parts[1],
		Branch:       shortBranch(parts[2]),
		Capabilities: capabilities,
	}
	s.captured = true
}

// finish releases the look-behind buffer and stops scanning.
func (s *RefUpdateScanner) finish() {
	s.done = true
	s.pending = nil
}

// shortBranch strips the refs/heads/ prefix; other ref namespaces
// (tags, notes) keep their full name.
func shortBranch(refName string) string {
	if short, found := strings.CutPrefix(refName, "refs/heads/"); found {
		return short
	}
	return refName
}

// isObjectID reports whether s looks like a hex object id: 40 (SHA-1)
// or 64 (SHA-256) lowercase hex digits.
func isObjectID(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
