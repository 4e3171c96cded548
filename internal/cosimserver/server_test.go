package cosimserver_test

import (
	"sync"
	"testing"
	"time"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/cosimclient"
	"github.com/dspace-group/veos-cosim/internal/cosimserver"
)

func signals() []cosim.IoSignal {
	return []cosim.IoSignal{
		{ID: 1, Length: 1, DataType: cosim.DataTypeUInt32, SizeKind: cosim.SizeKindFixed, Name: "throttle"},
	}
}

func canControllers() []cosim.CanController {
	return []cosim.CanController{
		{ID: 1, QueueSize: 8, BitsPerSecond: 500_000, Name: "CAN1"},
	}
}

func startServer(t *testing.T) (*cosimserver.Server, uint16) {
	t.Helper()
	srv := cosimserver.New(cosim.ServerConfig{
		ServerName:      "TestServer",
		Port:            0,
		StepSize:        1_000_000,
		IncomingSignals: signals(),
		OutgoingSignals: signals(),
		CanControllers:  canControllers(),
	})
	if err := srv.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { srv.Unload() })
	return srv, srv.Port()
}

func TestHandshakeNegotiatesControllersAndSignals(t *testing.T) {
	srv, port := startServer(t)

	client := cosimclient.New(cosim.Callbacks{})
	if err := client.Connect(cosim.ConnectConfig{
		RemoteIPAddress: "127.0.0.1",
		ServerName:      "TestServer",
		ClientName:      "TestClient",
		RemotePort:      port,
	}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	if client.StepSize() != 1_000_000 {
		t.Fatalf("got step size %d, want 1_000_000", client.StepSize())
	}
	if client.SimulationState() != cosim.SimulationStateStopped {
		t.Fatalf("got state %v, want Stopped", client.SimulationState())
	}
	if srv.State() != cosim.SimulationStateStopped {
		t.Fatalf("server state %v, want Stopped", srv.State())
	}
}

func TestStepExchangesIOAndBusState(t *testing.T) {
	srv, port := startServer(t)

	var mu sync.Mutex
	var gotValue uint32
	var gotCan cosim.CanMessage
	gotCanOk := false

	client := cosimclient.New(cosim.Callbacks{
		IncomingSignalChangedCallback: func(_ cosim.SimulationTime, signal cosim.IoSignal, _ uint32, value []byte) {
			mu.Lock()
			defer mu.Unlock()
			if signal.ID == 1 && len(value) == 4 {
				gotValue = uint32(value[0]) | uint32(value[1])<<8 | uint32(value[2])<<16 | uint32(value[3])<<24
			}
		},
		CanMessageReceivedCallback: func(_ cosim.SimulationTime, _ cosim.CanController, m cosim.CanMessage) {
			mu.Lock()
			defer mu.Unlock()
			gotCan = m
			gotCanOk = true
		},
	})
	if err := client.Connect(cosim.ConnectConfig{
		RemoteIPAddress: "127.0.0.1",
		ServerName:      "TestServer",
		ClientName:      "TestClient",
		RemotePort:      port,
	}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	done := make(chan error, 1)
	go func() { done <- client.RunBlocking() }()

	if err := srv.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	value := []byte{42, 0, 0, 0}
	if res := srv.Write(1, 1, value); res != cosim.ResultOk {
		t.Fatalf("write io: %v", res)
	}
	if res := srv.TransmitCan(cosim.CanMessage{ControllerID: 1, ID: 0x123, Length: 2, Data: [64]byte{0xAA, 0xBB}}); res != cosim.ResultOk {
		t.Fatalf("transmit can: %v", res)
	}

	nextTime, nextCmd, err := srv.Step(0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if nextTime != 1_000_000 {
		t.Fatalf("got next sim time %d, want 1_000_000", nextTime)
	}
	if nextCmd != cosim.CommandNone {
		t.Fatalf("got next command %v, want None", nextCmd)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		ok := gotCanOk && gotValue == 42
		mu.Unlock()
		if ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for client callbacks: gotValue=%d gotCanOk=%v", gotValue, gotCanOk)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if gotCan.ID != 0x123 || gotCan.Length != 2 {
		t.Fatalf("got can message %+v", gotCan)
	}

	if err := srv.Terminate(nextTime, cosim.TerminateReasonFinished); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("RunBlocking returned error: %v", err)
	}
}

func TestPingRoundTrip(t *testing.T) {
	srv, port := startServer(t)

	client := cosimclient.New(cosim.Callbacks{})
	if err := client.Connect(cosim.ConnectConfig{
		RemoteIPAddress: "127.0.0.1",
		ServerName:      "TestServer",
		ClientName:      "TestClient",
		RemotePort:      port,
	}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	client.SetNextCommand(cosim.CommandStep)
	go client.Poll()

	cmd, err := srv.Ping()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if cmd != cosim.CommandStep {
		t.Fatalf("got command %v, want Step", cmd)
	}
}
