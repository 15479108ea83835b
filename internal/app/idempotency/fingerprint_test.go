package idempotency

import (
	"testing"
)

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	type payload struct {
		A string            `json:"a"`
		B int               `json:"b"`
		M map[string]string `json:"m"`
	}

	p1 := payload{A: "x", B: 7, M: map[string]string{"k1": "v1", "k2": "v2"}}
	p2 := payload{A: "x", B: 7, M: map[string]string{"k2": "v2", "k1": "v1"}}

	h1, err := Fingerprint(p1)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	h2, err := Fingerprint(p2)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("equal payloads hashed differently: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestFingerprint_DistinguishesPayloads(t *testing.T) {
	t.Parallel()

	type payload struct {
		A string `json:"a"`
	}

	h1, err := Fingerprint(payload{A: "one"})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	h2, err := Fingerprint(payload{A: "two"})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("different payloads produced the same hash")
	}
}

func TestFingerprint_UnencodablePayload(t *testing.T) {
	t.Parallel()

	if _, err := Fingerprint(make(chan int)); err == nil {
		t.Fatalf("expected error for unencodable payload")
	}
}
