package wirechannel

import (
	"net"
	"testing"

	"github.com/dspace-group/veos-cosim/internal/cosim"
)

func TestChannelUint32RoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := New(server)
	cc := New(client)

	done := make(chan cosim.Result, 1)
	go func() {
		done <- sc.WriteUint32(0xDEADBEEF)
		done <- sc.EndWrite()
	}()

	v, res := cc.ReadUint32()
	if res != cosim.ResultOk {
		t.Fatalf("ReadUint32: %v", res)
	}
	if v != 0xDEADBEEF {
		t.Fatalf("got %x, want 0xDEADBEEF", v)
	}
	if res := <-done; res != cosim.ResultOk {
		t.Fatalf("write result: %v", res)
	}
}

func TestChannelStringRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := New(server)
	cc := New(client)

	go func() {
		sc.WriteString("hello co-sim")
		sc.EndWrite()
	}()

	got, res := cc.ReadString()
	if res != cosim.ResultOk {
		t.Fatalf("ReadString: %v", res)
	}
	if got != "hello co-sim" {
		t.Fatalf("got %q", got)
	}
}

func TestChannelLenPrefixedRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := New(server)
	cc := New(client)

	payload := []byte{1, 2, 3, 4}
	go func() {
		sc.WriteUint32LenPrefixed(7, uint32(len(payload)), payload)
		sc.EndWrite()
	}()

	id, length, data, res := cc.ReadUint32LenPrefixed()
	if res != cosim.ResultOk {
		t.Fatalf("ReadUint32LenPrefixed: %v", res)
	}
	if id != 7 || length != 4 || string(data) != string(payload) {
		t.Fatalf("got id=%d length=%d data=%v", id, length, data)
	}
}

func TestChannelDisconnectReportsDisconnected(t *testing.T) {
	server, client := net.Pipe()
	cc := New(client)
	server.Close()
	client.Close()

	if _, res := cc.ReadUint32(); res != cosim.ResultDisconnected {
		t.Fatalf("expected Disconnected after close, got %v", res)
	}
}
