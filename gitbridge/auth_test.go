// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitbridge

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGate() *Gate {
	meta := newFakeMetadata()
	return NewGate(meta, meta, testLogger())
}

func authenticate(t *testing.T, gate *Gate, authorize func(*http.Request)) (*Identity, *httptest.ResponseRecorder) {
	t.Helper()
	request := httptest.NewRequest("GET", "/widgets.git/info/refs", nil)
	if authorize != nil {
		authorize(request)
	}
	recorder := httptest.NewRecorder()
	identity, ok := gate.Authenticate(recorder, request)
	if ok != (identity != nil) {
		t.Fatalf("ok = %v but identity = %v", ok, identity)
	}
	return identity, recorder
}

func TestGateMissingCredentials(t *testing.T) {
	identity, recorder := authenticate(t, newTestGate(), nil)
	if identity != nil {
		t.Fatalf("identity = %+v, want denial", identity)
	}
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}
	if got := recorder.Header().Get("WWW-Authenticate"); got != `Basic realm="depot"` {
		t.Errorf("challenge = %q", got)
	}
}

func TestGateAPIKey(t *testing.T) {
	identity, _ := authenticate(t, newTestGate(), func(r *http.Request) {
		r.SetBasicAuth(testAPIKey, "")
	})
	if identity == nil || !identity.System {
		t.Fatalf("identity = %+v, want system token", identity)
	}
	if identity.Owner() != "system" {
		t.Errorf("owner = %q", identity.Owner())
	}
}

func TestGateInvalidAPIKey(t *testing.T) {
	identity, recorder := authenticate(t, newTestGate(), func(r *http.Request) {
		r.SetBasicAuth("not-a-key", "")
	})
	if identity != nil {
		t.Fatalf("identity = %+v, want denial", identity)
	}
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}
}

func TestGateLoginChain(t *testing.T) {
	identity, _ := authenticate(t, newTestGate(), func(r *http.Request) {
		r.SetBasicAuth("dev@acme.test", "hunter2")
	})
	if identity == nil || identity.System {
		t.Fatalf("identity = %+v, want user", identity)
	}
	if identity.User.ID != "u-1" {
		t.Errorf("user = %+v", identity.User)
	}
	if identity.Owner() != "u-1" {
		t.Errorf("owner = %q", identity.Owner())
	}
}

func TestGateBadPassword(t *testing.T) {
	identity, recorder := authenticate(t, newTestGate(), func(r *http.Request) {
		r.SetBasicAuth("dev@acme.test", "wrong")
	})
	if identity != nil {
		t.Fatalf("identity = %+v, want denial", identity)
	}
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}
}

func TestFingerprintStableAndOpaque(t *testing.T) {
	a, b := fingerprint("secret-token"), fingerprint("secret-token")
	if a != b {
		t.Errorf("fingerprint not stable: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16 hex digits", len(a))
	}
	if a == "secret-token" {
		t.Error("fingerprint leaked the token")
	}
}
