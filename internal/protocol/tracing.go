package protocol

import "os"

// Tracing toggles ported from original_source/src/Helpers/Environment.cpp's
// env-var-gated Trace logging: VEOS_COSIM_PROTOCOL_TRACING covers the general
// per-frame send/receive path, _HEADER_TRACING narrows that to just the frame
// kind header, and _PING_TRACING narrows it to the ping/pingOk round trip.
// All three are independent; a caller can enable header tracing without
// enabling the (noisier) full frame tracing.

func envEnabled(name string) bool {
	v := os.Getenv(name)
	return v == "1" || v == "true" || v == "TRUE"
}

func tracingEnabled() bool { return envEnabled("VEOS_COSIM_PROTOCOL_TRACING") }

func headerTracingEnabled() bool { return envEnabled("VEOS_COSIM_PROTOCOL_HEADER_TRACING") }

func pingTracingEnabled() bool { return envEnabled("VEOS_COSIM_PROTOCOL_PING_TRACING") }
