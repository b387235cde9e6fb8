package ulid

import (
	"strings"
	"testing"
	"time"
)

func TestNew_Format(t *testing.T) {
	id := New()
	if len(id) != 26 {
		t.Fatalf("expected 26 characters, got %d (%q)", len(id), id)
	}
	for _, r := range id {
		if !strings.ContainsRune(crockford, r) {
			t.Errorf("unexpected character %q in %q", r, id)
		}
	}
}

func TestNew_SortsWithinMillisecond(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	a := at(now)
	b := at(now)
	if a == b {
		t.Fatal("expected distinct ids")
	}
	if a[:10] != b[:10] {
		t.Errorf("expected shared timestamp prefix, got %q and %q", a, b)
	}
	if a >= b {
		t.Errorf("expected %q < %q", a, b)
	}
}

func TestEncode_KnownValues(t *testing.T) {
	var zero [16]byte
	if got := encode(zero); got != strings.Repeat("0", 26) {
		t.Errorf("zero encodes to %q", got)
	}
	var ones [16]byte
	for i := range ones {
		ones[i] = 0xff
	}
	if got := encode(ones); got != "7"+strings.Repeat("Z", 25) {
		t.Errorf("all ones encodes to %q", got)
	}
}
