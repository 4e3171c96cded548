package cosimclient

import (
	"testing"

	"github.com/dspace-group/veos-cosim/internal/cosim"
)

func TestResponderModeLocksOnFirstUse(t *testing.T) {
	c := New(cosim.Callbacks{})

	if err := c.ensureResponderMode(ResponderModeBlocking); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := c.ensureResponderMode(ResponderModeBlocking); err != nil {
		t.Fatalf("repeat same mode: %v", err)
	}
	if err := c.ensureResponderMode(ResponderModeNonBlocking); err == nil {
		t.Fatalf("expected error switching responder mode after lock-in")
	}
}

func TestNextCommandSwapIsOneShot(t *testing.T) {
	c := New(cosim.Callbacks{})

	if got := c.takeNextCommand(); got != cosim.CommandNone {
		t.Fatalf("got %v before any SetNextCommand, want None", got)
	}

	c.SetNextCommand(cosim.CommandPause)
	if got := c.takeNextCommand(); got != cosim.CommandPause {
		t.Fatalf("got %v, want Pause", got)
	}
	if got := c.takeNextCommand(); got != cosim.CommandNone {
		t.Fatalf("got %v on second take, want None (one-shot)", got)
	}
}

func TestResponderModeStringer(t *testing.T) {
	cases := map[ResponderMode]string{
		ResponderModeUnknown:     "Unknown",
		ResponderModeBlocking:    "Blocking",
		ResponderModeNonBlocking: "NonBlocking",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}
