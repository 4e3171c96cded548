package protocol

import "testing"

func TestTracingTogglesReadEnv(t *testing.T) {
	if tracingEnabled() || headerTracingEnabled() || pingTracingEnabled() {
		t.Fatalf("expected all tracing toggles off by default")
	}

	t.Setenv("VEOS_COSIM_PROTOCOL_TRACING", "1")
	if !tracingEnabled() {
		t.Fatalf("expected tracingEnabled after setting VEOS_COSIM_PROTOCOL_TRACING=1")
	}

	t.Setenv("VEOS_COSIM_PROTOCOL_HEADER_TRACING", "true")
	if !headerTracingEnabled() {
		t.Fatalf("expected headerTracingEnabled after setting VEOS_COSIM_PROTOCOL_HEADER_TRACING=true")
	}

	t.Setenv("VEOS_COSIM_PROTOCOL_PING_TRACING", "0")
	if pingTracingEnabled() {
		t.Fatalf("expected pingTracingEnabled false for value 0")
	}
}
