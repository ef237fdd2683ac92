// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitwire

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestWritePacket(t *testing.T) {
	var buffer bytes.Buffer
	if err := WritePacket(&buffer, []byte("# service=git-upload-pack\n")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	want := "001e# service=git-upload-pack\n"
	if buffer.String() != want {
		t.Errorf("packet = %q, want %q", buffer.String(), want)
	}
}

func TestWriteFlush(t *testing.T) {
	var buffer bytes.Buffer
	if err := WriteFlush(&buffer); err != nil {
		t.Fatalf("WriteFlush: %v", err)
	}
	if buffer.String() != "0000" {
		t.Errorf("flush = %q, want 0000", buffer.String())
	}
}

func TestReadPacketRoundTrip(t *testing.T) {
	var buffer bytes.Buffer
	WritePacket(&buffer, []byte("hello\n"))
	WriteFlush(&buffer)

	payload, ok, err := ReadPacket(&buffer)
	if err != nil || !ok {
		t.Fatalf("ReadPacket = (%q, %v, %v), want data packet", payload, ok, err)
	}
	if string(payload) != "hello\n" {
		t.Errorf("payload = %q, want %q", payload, "hello\n")
	}

	_, ok, err = ReadPacket(&buffer)
	if err != nil || ok {
		t.Fatalf("second ReadPacket = (ok=%v, err=%v), want flush-pkt", ok, err)
	}

	_, _, err = ReadPacket(&buffer)
	if err != io.EOF {
		t.Errorf("ReadPacket at end = %v, want io.EOF", err)
	}
}

func TestReadPacketRejectsBadLength(t *testing.T) {
	_, _, err := ReadPacket(strings.NewReader("zzzz"))
	if err == nil {
		t.Fatal("ReadPacket accepted a non-hex length")
	}

	_, _, err = ReadPacket(strings.NewReader("0002"))
	if err == nil {
		t.Fatal("ReadPacket accepted a length below the prefix size")
	}
}

func TestWritePacketTooLarge(t *testing.T) {
	if err := WritePacket(io.Discard, make([]byte, MaxPacketPayload+1)); err == nil {
		t.Fatal("WritePacket accepted an oversized payload")
	}
}
