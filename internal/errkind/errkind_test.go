package errkind

import (
	"errors"
	"testing"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := New(TooLarge, "send", errors.New("payload exceeds limit"))
	if !errors.Is(err, TooLarge) {
		t.Error("expected errors.Is to match TooLarge")
	}
	if errors.Is(err, Transient) {
		t.Error("expected errors.Is not to match a different kind")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := New(Transient, "stat", cause)
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the original cause")
	}
}

func TestStringerNames(t *testing.T) {
	cases := map[Kind]string{
		StartupFatal:       "StartupFatal",
		Transient:          "Transient",
		ProtocolMalformed:  "ProtocolMalformed",
		BackpressureDrop:   "BackpressureDrop",
		TooLarge:           "TooLarge",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
