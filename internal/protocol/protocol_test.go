package protocol

import (
	"net"
	"testing"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/wirechannel"
	"github.com/go-test/deep"
)

func TestNewRejectsUnsupportedVersion(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	if _, err := New(wirechannel.New(client), Version(0x99)); err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}

func TestConnectConnectOkRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	clientProto, err := New(wirechannel.New(client), V2Version)
	if err != nil {
		t.Fatalf("New client: %v", err)
	}
	serverProto, err := New(wirechannel.New(server), V2Version)
	if err != nil {
		t.Fatalf("New server: %v", err)
	}

	req := ConnectRequest{Version: LatestVersion, ServerName: "srv", ClientName: "cli"}
	go func() {
		clientProto.SendConnect(req)
	}()

	kind, res := serverProto.ReceiveHeader()
	if res != cosim.ResultOk || kind != FrameKindConnect {
		t.Fatalf("ReceiveHeader: kind=%v res=%v", kind, res)
	}
	got, res := serverProto.ReadConnect()
	if res != cosim.ResultOk {
		t.Fatalf("ReadConnect: %v", res)
	}
	if diff := deep.Equal(got, req); diff != nil {
		t.Fatalf("connect mismatch: %v", diff)
	}

	ok := ConnectOk{
		Version:         V2Version,
		StepSize:        1_000_000,
		SimulationState: cosim.SimulationStateStopped,
		IncomingSignals: []cosim.IoSignal{{ID: 1, Length: 4, DataType: cosim.DataTypeFloat32, SizeKind: cosim.SizeKindFixed, Name: "speed"}},
		OutgoingSignals: []cosim.IoSignal{},
		CanControllers:  []cosim.CanController{{ID: 1, QueueSize: 10, Name: "CAN1"}},
		EthControllers:  []cosim.EthController{},
		LinControllers:  []cosim.LinController{},
		FrControllers:   []cosim.FrController{},
	}
	go func() {
		serverProto.SendConnectOk(ok)
	}()

	kind, res = clientProto.ReceiveHeader()
	if res != cosim.ResultOk || kind != FrameKindConnectOk {
		t.Fatalf("ReceiveHeader: kind=%v res=%v", kind, res)
	}
	negotiated, res := clientProto.ReadConnectOkVersion()
	if res != cosim.ResultOk || negotiated != V2Version {
		t.Fatalf("ReadConnectOkVersion: version=%v res=%v", negotiated, res)
	}
	gotOk, res := clientProto.ReadConnectOk()
	if res != cosim.ResultOk {
		t.Fatalf("ReadConnectOk: %v", res)
	}
	if diff := deep.Equal(gotOk, ok); diff != nil {
		t.Fatalf("connect ok mismatch: %v", diff)
	}
}

func TestV1ProtocolOmitsFlexRayControllers(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverProto, _ := New(wirechannel.New(server), V1Version)
	clientProto, _ := New(wirechannel.New(client), V1Version)

	ok := ConnectOk{
		Version:       V1Version,
		FrControllers: []cosim.FrController{{ID: 1, QueueSize: 5}},
	}
	go func() {
		serverProto.SendConnectOk(ok)
	}()

	clientProto.ReceiveHeader()
	if _, res := clientProto.ReadConnectOkVersion(); res != cosim.ResultOk {
		t.Fatalf("ReadConnectOkVersion: %v", res)
	}
	got, res := clientProto.ReadConnectOk()
	if res != cosim.ResultOk {
		t.Fatalf("ReadConnectOk: %v", res)
	}
	if len(got.FrControllers) != 0 {
		t.Fatalf("V1 protocol must not carry FR controllers, got %v", got.FrControllers)
	}
}

func TestCanMessageWriteReadRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := wirechannel.New(server)
	cc := wirechannel.New(client)

	msg := cosim.CanMessage{Timestamp: 42, ControllerID: 1, ID: 7, Flags: cosim.CanMessageFlagExtendedID, Length: 3}
	msg.Data[0], msg.Data[1], msg.Data[2] = 9, 8, 7

	go func() {
		WriteCanMessage(sc, msg)
		sc.EndWrite()
	}()

	got, res := ReadCanMessage(cc)
	if res != cosim.ResultOk {
		t.Fatalf("ReadCanMessage: %v", res)
	}
	if diff := deep.Equal(got, msg); diff != nil {
		t.Fatalf("can message mismatch: %v", diff)
	}
}
