package portmapper

import (
	"strconv"
	"testing"

	"github.com/dspace-group/veos-cosim/internal/cosim"
)

func startTestServer(t *testing.T) (*Server, *Registry) {
	t.Helper()
	reg := NewRegistry()
	srv, err := NewServer(reg, 0, false)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Stop() })
	return srv, reg
}

func testPort(t *testing.T, srv *Server) uint16 {
	t.Helper()
	return uint16(srv.Addr().(interface{ Port() int }).Port())
}

func TestRegistrySetGetUnset(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Get("sim1"); ok {
		t.Fatalf("expected no entry before Set")
	}
	reg.Set("sim1", 5000)
	port, ok := reg.Get("sim1")
	if !ok || port != 5000 {
		t.Fatalf("got port=%d ok=%v, want 5000/true", port, ok)
	}
	reg.Unset("sim1")
	if _, ok := reg.Get("sim1"); ok {
		t.Fatalf("expected no entry after Unset")
	}
}

func TestRegistrySize(t *testing.T) {
	reg := NewRegistry()
	reg.Set("a", 1)
	reg.Set("b", 2)
	if reg.Size() != 2 {
		t.Fatalf("got size %d, want 2", reg.Size())
	}
	reg.Unset("a")
	if reg.Size() != 1 {
		t.Fatalf("got size %d, want 1", reg.Size())
	}
}

func TestServerHandlesGetSetUnsetOverTheWire(t *testing.T) {
	srv, reg := startTestServer(t)
	port := testPort(t, srv)

	if res := setPortAt(t, port, "sim1", 4242); res != cosim.ResultOk {
		t.Fatalf("SetPort: %v", res)
	}
	got, ok := reg.Get("sim1")
	if !ok || got != 4242 {
		t.Fatalf("registry got port=%d ok=%v", got, ok)
	}

	gotPort, res := getPortAt(t, port, "sim1")
	if res != cosim.ResultOk || gotPort != 4242 {
		t.Fatalf("GetPort: port=%d res=%v", gotPort, res)
	}

	if res := unsetPortAt(t, port, "sim1"); res != cosim.ResultOk {
		t.Fatalf("UnsetPort: %v", res)
	}
	if _, ok := reg.Get("sim1"); ok {
		t.Fatalf("expected entry removed after UnsetPort")
	}
}

func TestGetPortUnknownNameIsError(t *testing.T) {
	srv, _ := startTestServer(t)
	port := testPort(t, srv)

	if _, res := getPortAt(t, port, "nope"); res != cosim.ResultError {
		t.Fatalf("expected Error for unknown name, got %v", res)
	}
}

// The following *_at helpers exercise the same wire path as the
// package-level GetPort/SetPort/UnsetPort but against a test server's
// ephemeral port instead of the well-known default, so tests don't depend
// on or collide with a real port-mapper daemon on the host.

func setPortAt(t *testing.T, port uint16, name string, target uint16) cosim.Result {
	t.Helper()
	t.Setenv("VEOS_COSIM_PORTMAPPER_PORT", strconv.Itoa(int(port)))
	return SetPort(name, target)
}

func getPortAt(t *testing.T, port uint16, name string) (uint16, cosim.Result) {
	t.Helper()
	t.Setenv("VEOS_COSIM_PORTMAPPER_PORT", strconv.Itoa(int(port)))
	return GetPort("127.0.0.1", name)
}

func unsetPortAt(t *testing.T, port uint16, name string) cosim.Result {
	t.Helper()
	t.Setenv("VEOS_COSIM_PORTMAPPER_PORT", strconv.Itoa(int(port)))
	return UnsetPort(name)
}
