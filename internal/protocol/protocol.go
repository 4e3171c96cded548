// Package protocol implements the wire-level message codec and version
// negotiation for the co-sim session protocol, grounded on
// original_source/src/Protocol.h (IProtocol, V1::Protocol, V2::Protocol).
package protocol

import (
	"fmt"

	"github.com/dspace-group/veos-cosim/internal/busbuffer"
	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/logging"
	"github.com/dspace-group/veos-cosim/internal/wirechannel"
)

// Version is a wire protocol version, encoded as a single uint32.
type Version uint32

const (
	// V1Version supports IO signals plus CAN/ETH/LIN bus traffic.
	V1Version Version = 0x10000
	// V2Version adds FlexRay bus traffic.
	V2Version Version = 0x20000
	// LatestVersion is offered by a connecting client.
	LatestVersion = V2Version
)

// FrameKind identifies the payload that follows it. It is written as the
// first uint32 of each message; no length prefix precedes it.
type FrameKind uint8

const (
	FrameKindConnect FrameKind = iota + 1
	FrameKindConnectOk
	FrameKindOk
	FrameKindError
	FrameKindPing
	FrameKindPingOk
	FrameKindStart
	FrameKindStop
	FrameKindPause
	FrameKindContinue
	FrameKindTerminate
	FrameKindStep
	FrameKindStepOk
	FrameKindGetPort
	FrameKindSetPort
	FrameKindUnsetPort
	FrameKindGetPortOk
)

func (k FrameKind) String() string {
	switch k {
	case FrameKindConnect:
		return "Connect"
	case FrameKindConnectOk:
		return "ConnectOk"
	case FrameKindOk:
		return "Ok"
	case FrameKindError:
		return "Error"
	case FrameKindPing:
		return "Ping"
	case FrameKindPingOk:
		return "PingOk"
	case FrameKindStart:
		return "Start"
	case FrameKindStop:
		return "Stop"
	case FrameKindPause:
		return "Pause"
	case FrameKindContinue:
		return "Continue"
	case FrameKindTerminate:
		return "Terminate"
	case FrameKindStep:
		return "Step"
	case FrameKindStepOk:
		return "StepOk"
	case FrameKindGetPort:
		return "GetPort"
	case FrameKindSetPort:
		return "SetPort"
	case FrameKindUnsetPort:
		return "UnsetPort"
	case FrameKindGetPortOk:
		return "GetPortOk"
	default:
		return "<Unknown FrameKind>"
	}
}

// Protocol is the negotiated-version message codec, mirroring IProtocol's
// method surface. One type serves both versions: the version field decides,
// through supportsFlexRay, whether the FlexRay controller list of ConnectOk
// is written and read.
type Protocol struct {
	version Version
	ch      *wirechannel.Channel
}

// New returns a Protocol bound to version for framing messages over ch.
// version must be V1Version or V2Version.
func New(ch *wirechannel.Channel, version Version) (*Protocol, error) {
	if version != V1Version && version != V2Version {
		return nil, fmt.Errorf("protocol: unsupported version %#x", uint32(version))
	}
	return &Protocol{version: version, ch: ch}, nil
}

// GetVersion returns the protocol's negotiated version.
func (p *Protocol) GetVersion() Version { return p.version }

// supportsFlexRay reports whether this protocol's version carries FR frames.
func (p *Protocol) supportsFlexRay() bool { return p.version >= V2Version }

// ReceiveHeader reads the next frame's kind, blocking until one arrives.
func (p *Protocol) ReceiveHeader() (FrameKind, cosim.Result) {
	v, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return 0, res
	}
	kind := FrameKind(v)
	if headerTracingEnabled() || tracingEnabled() {
		logging.L().Debug("protocol receive header", "kind", kind)
	}
	return kind, cosim.ResultOk
}

func (p *Protocol) sendHeader(kind FrameKind) cosim.Result {
	if headerTracingEnabled() || tracingEnabled() {
		logging.L().Debug("protocol send header", "kind", kind)
	}
	return p.ch.WriteUint32(uint32(kind))
}

// SendOk writes a bare Ok frame and flushes.
func (p *Protocol) SendOk() cosim.Result {
	if res := p.sendHeader(FrameKindOk); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// SendError writes an Error frame carrying a human-readable message.
func (p *Protocol) SendError(message string) cosim.Result {
	if res := p.sendHeader(FrameKindError); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteString(message); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// ReadError reads an Error frame's payload (header already consumed).
func (p *Protocol) ReadError() (string, cosim.Result) {
	return p.ch.ReadString()
}

// ConnectRequest is what a client sends to open a session.
type ConnectRequest struct {
	Version    Version
	ServerName string
	ClientName string
}

// SendConnect writes a Connect frame.
func (p *Protocol) SendConnect(req ConnectRequest) cosim.Result {
	if res := p.sendHeader(FrameKindConnect); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint32(uint32(req.Version)); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteString(req.ServerName); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteString(req.ClientName); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// ReadConnect reads a Connect frame's payload (header already consumed).
func (p *Protocol) ReadConnect() (ConnectRequest, cosim.Result) {
	var req ConnectRequest
	v, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return req, res
	}
	req.Version = Version(v)
	req.ServerName, res = p.ch.ReadString()
	if res != cosim.ResultOk {
		return req, res
	}
	req.ClientName, res = p.ch.ReadString()
	return req, res
}

// ConnectOk is the server's reply to a successful Connect, carrying the
// negotiated version followed by every signal and controller catalog the
// session will use.
type ConnectOk struct {
	Version         Version
	StepSize        cosim.SimulationTime
	SimulationState cosim.SimulationState
	IncomingSignals []cosim.IoSignal
	OutgoingSignals []cosim.IoSignal
	CanControllers  []cosim.CanController
	EthControllers  []cosim.EthController
	LinControllers  []cosim.LinController
	FrControllers   []cosim.FrController
}

func (p *Protocol) writeIoSignals(signals []cosim.IoSignal) cosim.Result {
	if res := p.ch.WriteUint32(uint32(len(signals))); res != cosim.ResultOk {
		return res
	}
	for _, s := range signals {
		if res := p.ch.WriteUint32(uint32(s.ID)); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(s.Length); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(uint32(s.DataType)); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(uint32(s.SizeKind)); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(s.Name); res != cosim.ResultOk {
			return res
		}
	}
	return cosim.ResultOk
}

func (p *Protocol) readIoSignals() ([]cosim.IoSignal, cosim.Result) {
	n, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return nil, res
	}
	out := make([]cosim.IoSignal, 0, n)
	for i := uint32(0); i < n; i++ {
		var s cosim.IoSignal
		id, res := p.ch.ReadUint32()
		if res != cosim.ResultOk {
			return nil, res
		}
		s.ID = cosim.IoSignalId(id)
		if s.Length, res = p.ch.ReadUint32(); res != cosim.ResultOk {
			return nil, res
		}
		dt, res := p.ch.ReadUint32()
		if res != cosim.ResultOk {
			return nil, res
		}
		s.DataType = cosim.DataType(dt)
		sk, res := p.ch.ReadUint32()
		if res != cosim.ResultOk {
			return nil, res
		}
		s.SizeKind = cosim.SizeKind(sk)
		if s.Name, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		out = append(out, s)
	}
	return out, cosim.ResultOk
}

// SendConnectOk writes the full ConnectOk frame, echoing the negotiated
// version first so the peer can re-instantiate its codec before reading the
// rest of the payload, and omitting the FR controller list when this
// protocol's version doesn't support FlexRay (V1).
func (p *Protocol) SendConnectOk(ok ConnectOk) cosim.Result {
	if res := p.sendHeader(FrameKindConnectOk); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint32(uint32(p.version)); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint64(uint64(ok.StepSize)); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint32(uint32(ok.SimulationState)); res != cosim.ResultOk {
		return res
	}
	if res := p.writeIoSignals(ok.IncomingSignals); res != cosim.ResultOk {
		return res
	}
	if res := p.writeIoSignals(ok.OutgoingSignals); res != cosim.ResultOk {
		return res
	}
	if res := p.writeCanControllers(ok.CanControllers); res != cosim.ResultOk {
		return res
	}
	if res := p.writeEthControllers(ok.EthControllers); res != cosim.ResultOk {
		return res
	}
	if res := p.writeLinControllers(ok.LinControllers); res != cosim.ResultOk {
		return res
	}
	if p.supportsFlexRay() {
		if res := p.writeFrControllers(ok.FrControllers); res != cosim.ResultOk {
			return res
		}
	}
	return p.ch.EndWrite()
}

// ReadConnectOkVersion reads just the negotiated-version field SendConnectOk
// writes first (header already consumed). The caller must re-instantiate its
// Protocol at this version via New before calling ReadConnectOk, so the rest
// of the payload (in particular, whether an FR controller list follows) is
// parsed at the version the server actually chose rather than whatever
// version the caller offered.
func (p *Protocol) ReadConnectOkVersion() (Version, cosim.Result) {
	v, res := p.ch.ReadUint32()
	return Version(v), res
}

// ReadConnectOk reads the rest of the frame SendConnectOk wrote, after the
// caller has already consumed the version field with ReadConnectOkVersion
// and (if needed) re-created this Protocol at that version.
func (p *Protocol) ReadConnectOk() (ConnectOk, cosim.Result) {
	var ok ConnectOk
	ok.Version = p.version
	ss, res := p.ch.ReadUint64()
	if res != cosim.ResultOk {
		return ok, res
	}
	ok.StepSize = cosim.SimulationTime(ss)
	state, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return ok, res
	}
	ok.SimulationState = cosim.SimulationState(state)
	if ok.IncomingSignals, res = p.readIoSignals(); res != cosim.ResultOk {
		return ok, res
	}
	if ok.OutgoingSignals, res = p.readIoSignals(); res != cosim.ResultOk {
		return ok, res
	}
	if ok.CanControllers, res = p.readCanControllers(); res != cosim.ResultOk {
		return ok, res
	}
	if ok.EthControllers, res = p.readEthControllers(); res != cosim.ResultOk {
		return ok, res
	}
	if ok.LinControllers, res = p.readLinControllers(); res != cosim.ResultOk {
		return ok, res
	}
	if p.supportsFlexRay() {
		if ok.FrControllers, res = p.readFrControllers(); res != cosim.ResultOk {
			return ok, res
		}
	}
	return ok, cosim.ResultOk
}

// --- lifecycle frames: Start/Stop/Pause/Continue/Terminate, each carrying
// only a simulation timestamp (Terminate also carries a reason). ---

// SendSimTimeFrame writes one of Start/Stop/Pause/Continue, carrying simTime.
func (p *Protocol) SendSimTimeFrame(kind FrameKind, simTime cosim.SimulationTime) cosim.Result {
	if res := p.sendHeader(kind); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint64(uint64(simTime)); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// ReadSimTimeFrame reads the payload SendSimTimeFrame wrote.
func (p *Protocol) ReadSimTimeFrame() (cosim.SimulationTime, cosim.Result) {
	v, res := p.ch.ReadUint64()
	return cosim.SimulationTime(v), res
}

// SendTerminate writes a Terminate frame with its reason.
func (p *Protocol) SendTerminate(simTime cosim.SimulationTime, reason cosim.TerminateReason) cosim.Result {
	if res := p.sendHeader(FrameKindTerminate); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint64(uint64(simTime)); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint32(uint32(reason)); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// ReadTerminate reads the payload SendTerminate wrote.
func (p *Protocol) ReadTerminate() (cosim.SimulationTime, cosim.TerminateReason, cosim.Result) {
	simTime, res := p.ch.ReadUint64()
	if res != cosim.ResultOk {
		return 0, 0, res
	}
	reason, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return 0, 0, res
	}
	return cosim.SimulationTime(simTime), cosim.TerminateReason(reason), cosim.ResultOk
}

// --- Ping/PingOk ---

// SendPing writes a bare Ping frame.
func (p *Protocol) SendPing() cosim.Result {
	if pingTracingEnabled() || tracingEnabled() {
		logging.L().Debug("protocol send ping")
	}
	if res := p.sendHeader(FrameKindPing); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// SendPingOk writes a PingOk frame carrying the client's next requested command.
func (p *Protocol) SendPingOk(command cosim.Command) cosim.Result {
	if pingTracingEnabled() || tracingEnabled() {
		logging.L().Debug("protocol send ping ok", "next_command", command)
	}
	if res := p.sendHeader(FrameKindPingOk); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint32(uint32(command)); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// ReadPingOk reads the payload SendPingOk wrote.
func (p *Protocol) ReadPingOk() (cosim.Command, cosim.Result) {
	v, res := p.ch.ReadUint32()
	if pingTracingEnabled() || tracingEnabled() {
		logging.L().Debug("protocol read ping ok", "next_command", cosim.Command(v), "result", res)
	}
	return cosim.Command(v), res
}

// --- Step/StepOk ---

// StepRequest is the server-to-client per-step payload: a timestamp plus the
// IO and bus data serialized by the caller (the concrete io/bus buffers own
// their own wire shape and are serialized directly onto the channel around
// this call, matching the original's closure-based ReadStep/SendStep).
type StepRequest struct {
	SimulationTime cosim.SimulationTime
}

// SendStepHeader writes the Step frame's fixed header (simulation time);
// the caller then serializes the IO buffer and bus buffer directly onto the
// channel before calling EndWrite.
func (p *Protocol) SendStepHeader(simTime cosim.SimulationTime) cosim.Result {
	if res := p.sendHeader(FrameKindStep); res != cosim.ResultOk {
		return res
	}
	return p.ch.WriteUint64(uint64(simTime))
}

// ReadStepHeader reads the Step frame's fixed header.
func (p *Protocol) ReadStepHeader() (cosim.SimulationTime, cosim.Result) {
	v, res := p.ch.ReadUint64()
	return cosim.SimulationTime(v), res
}

// SendStepOkHeader writes the StepOk frame's fixed header (next simulation
// time plus the client's requested next command); the caller then
// serializes the IO buffer and bus buffer before calling EndWrite.
func (p *Protocol) SendStepOkHeader(nextSimTime cosim.SimulationTime, command cosim.Command) cosim.Result {
	if res := p.sendHeader(FrameKindStepOk); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint64(uint64(nextSimTime)); res != cosim.ResultOk {
		return res
	}
	return p.ch.WriteUint32(uint32(command))
}

// ReadStepOkHeader reads the fixed header SendStepOkHeader wrote.
func (p *Protocol) ReadStepOkHeader() (cosim.SimulationTime, cosim.Command, cosim.Result) {
	v, res := p.ch.ReadUint64()
	if res != cosim.ResultOk {
		return 0, 0, res
	}
	cmd, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return 0, 0, res
	}
	return cosim.SimulationTime(v), cosim.Command(cmd), cosim.ResultOk
}

// EndWrite flushes the underlying channel after a frame's payload has been
// fully written.
func (p *Protocol) EndWrite() cosim.Result { return p.ch.EndWrite() }

// Channel exposes the underlying wire channel for callers (io/bus buffer
// Serialize/Deserialize) that need to write/read directly around a frame
// header this package wrote.
func (p *Protocol) Channel() *wirechannel.Channel { return p.ch }

// --- port mapper frames ---

// SendGetPort writes a GetPort request carrying the registered name.
func (p *Protocol) SendGetPort(name string) cosim.Result {
	if res := p.sendHeader(FrameKindGetPort); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteString(name); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// ReadGetPort reads the payload SendGetPort wrote.
func (p *Protocol) ReadGetPort() (string, cosim.Result) { return p.ch.ReadString() }

// SendGetPortOk writes the registry's answer to a GetPort request.
func (p *Protocol) SendGetPortOk(port uint16) cosim.Result {
	if res := p.sendHeader(FrameKindGetPortOk); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint32(uint32(port)); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// ReadGetPortOk reads the payload SendGetPortOk wrote.
func (p *Protocol) ReadGetPortOk() (uint16, cosim.Result) {
	v, res := p.ch.ReadUint32()
	return uint16(v), res
}

// SendSetPort writes a SetPort request.
func (p *Protocol) SendSetPort(name string, port uint16) cosim.Result {
	if res := p.sendHeader(FrameKindSetPort); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteString(name); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteUint32(uint32(port)); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// ReadSetPort reads the payload SendSetPort wrote.
func (p *Protocol) ReadSetPort() (string, uint16, cosim.Result) {
	name, res := p.ch.ReadString()
	if res != cosim.ResultOk {
		return "", 0, res
	}
	port, res := p.ch.ReadUint32()
	return name, uint16(port), res
}

// SendUnsetPort writes an UnsetPort request.
func (p *Protocol) SendUnsetPort(name string) cosim.Result {
	if res := p.sendHeader(FrameKindUnsetPort); res != cosim.ResultOk {
		return res
	}
	if res := p.ch.WriteString(name); res != cosim.ResultOk {
		return res
	}
	return p.ch.EndWrite()
}

// ReadUnsetPort reads the payload SendUnsetPort wrote.
func (p *Protocol) ReadUnsetPort() (string, cosim.Result) { return p.ch.ReadString() }

// --- Can/Eth/Lin/Fr controller (de)serialization ---

func (p *Protocol) writeCanControllers(cs []cosim.CanController) cosim.Result {
	if res := p.ch.WriteUint32(uint32(len(cs))); res != cosim.ResultOk {
		return res
	}
	for _, c := range cs {
		if res := p.ch.WriteUint32(uint32(c.ID)); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(c.QueueSize); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint64(c.BitsPerSecond); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint64(c.FlexibleDataRateBitsPerSecond); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.Name); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.ChannelName); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.ClusterName); res != cosim.ResultOk {
			return res
		}
	}
	return cosim.ResultOk
}

func (p *Protocol) readCanControllers() ([]cosim.CanController, cosim.Result) {
	n, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return nil, res
	}
	out := make([]cosim.CanController, 0, n)
	for i := uint32(0); i < n; i++ {
		var c cosim.CanController
		id, res := p.ch.ReadUint32()
		if res != cosim.ResultOk {
			return nil, res
		}
		c.ID = cosim.BusControllerId(id)
		if c.QueueSize, res = p.ch.ReadUint32(); res != cosim.ResultOk {
			return nil, res
		}
		if c.BitsPerSecond, res = p.ch.ReadUint64(); res != cosim.ResultOk {
			return nil, res
		}
		if c.FlexibleDataRateBitsPerSecond, res = p.ch.ReadUint64(); res != cosim.ResultOk {
			return nil, res
		}
		if c.Name, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ChannelName, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ClusterName, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		out = append(out, c)
	}
	return out, cosim.ResultOk
}

func (p *Protocol) writeEthControllers(cs []cosim.EthController) cosim.Result {
	if res := p.ch.WriteUint32(uint32(len(cs))); res != cosim.ResultOk {
		return res
	}
	for _, c := range cs {
		if res := p.ch.WriteUint32(uint32(c.ID)); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(c.QueueSize); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint64(c.BitsPerSecond); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteBytes(c.MacAddress[:]); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.Name); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.ChannelName); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.ClusterName); res != cosim.ResultOk {
			return res
		}
	}
	return cosim.ResultOk
}

func (p *Protocol) readEthControllers() ([]cosim.EthController, cosim.Result) {
	n, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return nil, res
	}
	out := make([]cosim.EthController, 0, n)
	for i := uint32(0); i < n; i++ {
		var c cosim.EthController
		id, res := p.ch.ReadUint32()
		if res != cosim.ResultOk {
			return nil, res
		}
		c.ID = cosim.BusControllerId(id)
		if c.QueueSize, res = p.ch.ReadUint32(); res != cosim.ResultOk {
			return nil, res
		}
		if c.BitsPerSecond, res = p.ch.ReadUint64(); res != cosim.ResultOk {
			return nil, res
		}
		if res := p.ch.ReadBytes(c.MacAddress[:]); res != cosim.ResultOk {
			return nil, res
		}
		if c.Name, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ChannelName, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ClusterName, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		out = append(out, c)
	}
	return out, cosim.ResultOk
}

func (p *Protocol) writeLinControllers(cs []cosim.LinController) cosim.Result {
	if res := p.ch.WriteUint32(uint32(len(cs))); res != cosim.ResultOk {
		return res
	}
	for _, c := range cs {
		if res := p.ch.WriteUint32(uint32(c.ID)); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(c.QueueSize); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint64(c.BitsPerSecond); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(uint32(c.Type)); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.Name); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.ChannelName); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.ClusterName); res != cosim.ResultOk {
			return res
		}
	}
	return cosim.ResultOk
}

func (p *Protocol) readLinControllers() ([]cosim.LinController, cosim.Result) {
	n, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return nil, res
	}
	out := make([]cosim.LinController, 0, n)
	for i := uint32(0); i < n; i++ {
		var c cosim.LinController
		id, res := p.ch.ReadUint32()
		if res != cosim.ResultOk {
			return nil, res
		}
		c.ID = cosim.BusControllerId(id)
		if c.QueueSize, res = p.ch.ReadUint32(); res != cosim.ResultOk {
			return nil, res
		}
		if c.BitsPerSecond, res = p.ch.ReadUint64(); res != cosim.ResultOk {
			return nil, res
		}
		t, res := p.ch.ReadUint32()
		if res != cosim.ResultOk {
			return nil, res
		}
		c.Type = cosim.LinControllerType(t)
		if c.Name, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ChannelName, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ClusterName, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		out = append(out, c)
	}
	return out, cosim.ResultOk
}

func (p *Protocol) writeFrControllers(cs []cosim.FrController) cosim.Result {
	if res := p.ch.WriteUint32(uint32(len(cs))); res != cosim.ResultOk {
		return res
	}
	for _, c := range cs {
		if res := p.ch.WriteUint32(uint32(c.ID)); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(c.QueueSize); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(c.ClusterID); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint64(c.ClusterBaudRate); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteUint32(c.NodeID); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.Name); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.ChannelName); res != cosim.ResultOk {
			return res
		}
		if res := p.ch.WriteString(c.ClusterName); res != cosim.ResultOk {
			return res
		}
	}
	return cosim.ResultOk
}

func (p *Protocol) readFrControllers() ([]cosim.FrController, cosim.Result) {
	n, res := p.ch.ReadUint32()
	if res != cosim.ResultOk {
		return nil, res
	}
	out := make([]cosim.FrController, 0, n)
	for i := uint32(0); i < n; i++ {
		var c cosim.FrController
		id, res := p.ch.ReadUint32()
		if res != cosim.ResultOk {
			return nil, res
		}
		c.ID = cosim.BusControllerId(id)
		if c.QueueSize, res = p.ch.ReadUint32(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ClusterID, res = p.ch.ReadUint32(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ClusterBaudRate, res = p.ch.ReadUint64(); res != cosim.ResultOk {
			return nil, res
		}
		if c.NodeID, res = p.ch.ReadUint32(); res != cosim.ResultOk {
			return nil, res
		}
		if c.Name, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ChannelName, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		if c.ClusterName, res = p.ch.ReadString(); res != cosim.ResultOk {
			return nil, res
		}
		out = append(out, c)
	}
	return out, cosim.ResultOk
}

// --- Can/Eth/Lin/Fr message (de)serialization, for use as busbuffer.Codec
// WriteMessage/ReadMessage callbacks. ---

// WriteCanMessage serializes one CanMessage directly onto w (a *wirechannel.Channel).
func WriteCanMessage(w busbuffer.Writer, m cosim.CanMessage) cosim.Result {
	ch := w.(*wirechannel.Channel)
	if res := ch.WriteUint64(uint64(m.Timestamp)); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(uint32(m.ControllerID)); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(uint32(m.ID)); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(uint32(m.Flags)); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(m.Length); res != cosim.ResultOk {
		return res
	}
	return ch.WriteBytes(m.Data[:m.Length])
}

// ReadCanMessage deserializes one CanMessage from r.
func ReadCanMessage(r busbuffer.Reader) (cosim.CanMessage, cosim.Result) {
	var m cosim.CanMessage
	ch := r.(*wirechannel.Channel)
	ts, res := ch.ReadUint64()
	if res != cosim.ResultOk {
		return m, res
	}
	m.Timestamp = cosim.SimulationTime(ts)
	cid, res := ch.ReadUint32()
	if res != cosim.ResultOk {
		return m, res
	}
	m.ControllerID = cosim.BusControllerId(cid)
	id, res := ch.ReadUint32()
	if res != cosim.ResultOk {
		return m, res
	}
	m.ID = cosim.BusMessageId(id)
	flags, res := ch.ReadUint32()
	if res != cosim.ResultOk {
		return m, res
	}
	m.Flags = cosim.CanMessageFlags(flags)
	if m.Length, res = ch.ReadUint32(); res != cosim.ResultOk {
		return m, res
	}
	if m.Length > cosim.CanMessageMaxLength {
		return m, cosim.ResultError
	}
	if res := ch.ReadBytes(m.Data[:m.Length]); res != cosim.ResultOk {
		return m, res
	}
	return m, cosim.ResultOk
}
