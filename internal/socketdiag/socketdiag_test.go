package socketdiag

import (
	"net"
	"testing"
	"time"
)

func TestNewRejectsNonTCPConn(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	if _, ok := New(a); ok {
		t.Fatalf("expected New to reject a non-TCP net.Conn")
	}
}

func TestSamplerStartStopOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	server := <-accepted
	defer server.Close()

	sampler, ok := New(client)
	if !ok {
		t.Fatalf("expected New to accept a real TCP conn")
	}

	if _, ok := sampler.Latest(); ok {
		t.Fatalf("expected no sample before Start")
	}

	sampler.Start(5 * time.Millisecond)
	defer sampler.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := sampler.Latest(); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for a sample (platform may not support TCP_INFO)")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
