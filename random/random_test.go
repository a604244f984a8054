package random

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String(32)
	if len(s) != 32 {
		t.Fatalf("expected 32 characters, got %d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(charset, r) {
			t.Fatalf("unexpected character %q in %q", r, s)
		}
	}
	if String(32) == s {
		t.Fatal("two draws returned the same string")
	}
}
