package common

import "testing"

func TestModelHash(t *testing.T) {
	// FNV-1a offset basis
	if h := ModelHash(nil); h != "811c9dc5" {
		t.Fatalf("unexpected hash of an empty model: %s", h)
	}

	a := ModelHash([]byte{0xAA})
	if len(a) != 8 {
		t.Fatalf("hash should be 8 hex digits, got %s", a)
	}
	if a == ModelHash([]byte{0xAB}) {
		t.Fatalf("different models should not share a hash")
	}
	if a != ModelHash([]byte{0xAA}) {
		t.Fatalf("hash should be deterministic")
	}
}
