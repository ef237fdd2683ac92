// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{
		"zeta":   1,
		"alpha":  "a",
		"middle": []int{3, 2, 1},
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical values produced different encodings")
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	encoded, err := Marshal(map[string]any{
		"action": "pull-bare-store",
		"future": "field from a newer node",
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded struct {
		Action string `cbor:"action"`
	}
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Action != "pull-bare-store" {
		t.Errorf("Action = %q, want %q", decoded.Action, "pull-bare-store")
	}
}

func TestDecodeAnyUsesStringKeys(t *testing.T) {
	encoded, err := Marshal(map[string]any{"outer": map[string]any{"inner": 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded["outer"].(map[string]any); !ok {
		t.Fatalf("nested map decoded as %T, want map[string]any", decoded["outer"])
	}
}

func TestStreamRoundTrip(t *testing.T) {
	var buffer bytes.Buffer

	type record struct {
		Hash   string `cbor:"hash"`
		Branch string `cbor:"branch"`
	}
	in := record{Hash: "4f2d", Branch: "main"}

	if err := NewEncoder(&buffer).Encode(in); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out record
	if err := NewDecoder(&buffer).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
