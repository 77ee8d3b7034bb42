package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{E(KindNotFound, "no such tag"), KindNotFound},
		{Ef(KindConflict, "tag %q exists", "groceries"), KindConflict},
		{Wrap(KindInvalidArgument, "bad value", ErrInvalidAmount), KindInvalidArgument},
		{fmt.Errorf("outer: %w", E(KindForbidden, "default tag")), KindForbidden},
		{errors.New("plain"), KindInternal},
		{nil, KindInternal},
	}
	for i, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Fatalf("case %d: got %q, want %q", i, got, tc.kind)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	wrapped := Wrap(KindInvalidArgument, "bad value", ErrInvalidAmount)
	if !errors.Is(wrapped, ErrInvalidAmount) {
		t.Fatal("expected wrapped sentinel to match errors.Is")
	}
	if wrapped.Error() != "bad value: invalid amount" {
		t.Fatalf("unexpected message: %q", wrapped.Error())
	}
}
