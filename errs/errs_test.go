package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestNewTruncatesDetail(t *testing.T) {
	long := strings.Repeat("x", detailCap+50)
	err := New(Protocol, long)
	if len(err.Detail) != detailCap {
		t.Fatalf("detail len = %d, want %d", len(err.Detail), detailCap)
	}
}

func TestErrorStringOmitsEmptyDetail(t *testing.T) {
	err := New(NotHalted, "")
	if err.Error() != "NotHalted" {
		t.Fatalf("Error() = %q", err.Error())
	}
	err2 := New(NotHalted, "hart 1")
	if err2.Error() != "NotHalted: hart 1" {
		t.Fatalf("Error() = %q", err2.Error())
	}
}

func TestIsMatchesByKindOnly(t *testing.T) {
	a := New(Timeout, "halt poll exhausted")
	b := Sentinel(Timeout)
	if !errors.Is(a, b) {
		t.Fatal("expected Is to match same Kind regardless of detail")
	}
	c := Sentinel(Fault)
	if errors.Is(a, c) {
		t.Fatal("expected Is to reject different Kind")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("bit flip")
	wrapped := Wrap(Parity, cause, "data phase")
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected errors.Is to see through Wrap to cause")
	}
}

func TestKindOf(t *testing.T) {
	err := Wrap(AbstractCmd, errors.New("cmderr"), "")
	k, ok := KindOf(err)
	if !ok || k != AbstractCmd {
		t.Fatalf("KindOf = (%v, %v), want (AbstractCmd, true)", k, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("expected KindOf to reject a non-*Error")
	}
}

func TestKindStringCoversAllKinds(t *testing.T) {
	for k := Ok; k <= Verify; k++ {
		if k.String() == "" {
			t.Errorf("Kind %d has empty String()", k)
		}
	}
}
