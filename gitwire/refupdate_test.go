// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitwire

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

const (
	zeroOID = "0000000000000000000000000000000000000000"
	oldOID  = "1111111111111111111111111111111111111111"
	newOID  = "2222222222222222222222222222222222222222"
)

// buildPushPayload assembles a receive-pack request body: one command
// pkt-line, a flush-pkt, then opaque pack bytes.
func buildPushPayload(t *testing.T, command string, pack []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	if err := WritePacket(&buffer, []byte(command)); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	WriteFlush(&buffer)
	buffer.Write(pack)
	return buffer.Bytes()
}

func TestScannerCapturesCommand(t *testing.T) {
	command := oldOID + " " + newOID + " refs/heads/main\x00report-status side-band-64k\n"
	payload := buildPushPayload(t, command, []byte("PACKdata"))

	scanner := NewRefUpdateScanner(bytes.NewReader(payload))
	passed, err := io.ReadAll(scanner)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(passed, payload) {
		t.Error("scanner altered the stream")
	}

	fields, ok := scanner.Fields()
	if !ok {
		t.Fatal("Fields() not captured")
	}
	if fields.Last != oldOID || fields.Head != newOID {
		t.Errorf("Last/Head = %q/%q", fields.Last, fields.Head)
	}
	if fields.Branch != "main" {
		t.Errorf("Branch = %q, want main", fields.Branch)
	}
	if len(fields.Capabilities) != 2 || fields.Capabilities[1] != "side-band-64k" {
		t.Errorf("Capabilities = %v", fields.Capabilities)
	}
}

func TestScannerSingleByteReads(t *testing.T) {
	command := zeroOID + " " + newOID + " refs/heads/feature/x\n"
	payload := buildPushPayload(t, command, nil)

	scanner := NewRefUpdateScanner(iotest(bytes.NewReader(payload)))
	if _, err := io.ReadAll(scanner); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	fields, ok := scanner.Fields()
	if !ok {
		t.Fatal("Fields() not captured across fragmented reads")
	}
	if fields.Branch != "feature/x" {
		t.Errorf("Branch = %q, want feature/x", fields.Branch)
	}
}

// iotest returns a reader that yields one byte per Read.
func iotest(r io.Reader) io.Reader { return oneByteReader{r} }

type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return o.r.Read(p)
}

func TestScannerEmptyPush(t *testing.T) {
	// A client with nothing to send opens with a flush-pkt.
	scanner := NewRefUpdateScanner(strings.NewReader("0000"))
	if _, err := io.ReadAll(scanner); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if _, ok := scanner.Fields(); ok {
		t.Error("Fields() captured on an empty push")
	}
}

func TestScannerNonPktStream(t *testing.T) {
	scanner := NewRefUpdateScanner(strings.NewReader("not a pkt line stream at all"))
	passed, err := io.ReadAll(scanner)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(passed) != "not a pkt line stream at all" {
		t.Error("scanner altered a malformed stream")
	}
	if _, ok := scanner.Fields(); ok {
		t.Error("Fields() captured from garbage")
	}
}

func TestScannerTagRefKeepsFullName(t *testing.T) {
	command := zeroOID + " " + newOID + " refs/tags/v1.0.0\n"
	payload := buildPushPayload(t, command, nil)

	scanner := NewRefUpdateScanner(bytes.NewReader(payload))
	io.ReadAll(scanner)

	fields, ok := scanner.Fields()
	if !ok {
		t.Fatal("Fields() not captured")
	}
	if fields.Branch != "refs/tags/v1.0.0" {
		t.Errorf("Branch = %q, want full tag ref", fields.Branch)
	}
}

func TestSidebandWriter(t *testing.T) {
	var buffer bytes.Buffer
	writer := NewSidebandWriter(&buffer)

	if _, err := writer.Write([]byte("Still working\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	payload, ok, err := ReadPacket(&buffer)
	if err != nil || !ok {
		t.Fatalf("ReadPacket = (ok=%v, err=%v)", ok, err)
	}
	if payload[0] != BandProgress {
		t.Errorf("band byte = %d, want %d", payload[0], BandProgress)
	}
	if string(payload[1:]) != "Still working\n" {
		t.Errorf("payload = %q", payload[1:])
	}

	_, ok, err = ReadPacket(&buffer)
	if err != nil || ok {
		t.Fatalf("expected trailing flush-pkt, got (ok=%v, err=%v)", ok, err)
	}
}

func TestSidebandWriterChunksLargeWrites(t *testing.T) {
	var buffer bytes.Buffer
	writer := NewSidebandWriter(&buffer)

	large := bytes.Repeat([]byte("x"), sidebandChunk+100)
	n, err := writer.Write(large)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(large) {
		t.Errorf("Write = %d, want %d", n, len(large))
	}

	first, ok, err := ReadPacket(&buffer)
	if err != nil || !ok {
		t.Fatal("missing first chunk packet")
	}
	if len(first) != sidebandChunk+1 {
		t.Errorf("first chunk payload = %d bytes, want %d", len(first), sidebandChunk+1)
	}
	second, ok, err := ReadPacket(&buffer)
	if err != nil || !ok {
		t.Fatal("missing second chunk packet")
	}
	if len(second) != 101 {
		t.Errorf("second chunk payload = %d bytes, want 101", len(second))
	}
}
