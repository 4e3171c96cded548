// Package cosimclient implements the co-sim client connection and the two
// mutually exclusive responder loops (blocking callback loop vs explicit
// non-blocking poll/finish), grounded on
// original_source/src/CoSimClient.cpp.
package cosimclient

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/dspace-group/veos-cosim/internal/busbuffer"
	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/iobuffer"
	"github.com/dspace-group/veos-cosim/internal/logging"
	"github.com/dspace-group/veos-cosim/internal/metrics"
	"github.com/dspace-group/veos-cosim/internal/portmapper"
	"github.com/dspace-group/veos-cosim/internal/protocol"
	"github.com/dspace-group/veos-cosim/internal/socketlayer"
	"github.com/dspace-group/veos-cosim/internal/wirechannel"
)

// ResponderMode records which of the two mutually exclusive response APIs a
// client has committed to on first use.
type ResponderMode int32

const (
	ResponderModeUnknown ResponderMode = iota
	ResponderModeBlocking
	ResponderModeNonBlocking
)

// Client is a connected co-sim session from the client's point of view.
type Client struct {
	id   xid.ID
	conn net.Conn
	ch   *wirechannel.Channel
	wire *protocol.Protocol

	callbacks cosim.Callbacks

	stepSize        cosim.SimulationTime
	simulationState atomic.Uint32

	incomingSignals []cosim.IoSignal
	outgoingSignals []cosim.IoSignal
	ioBuffer        *iobuffer.IoBuffer
	busBuffer       *busbuffer.BusBuffer

	canControllers map[cosim.BusControllerId]cosim.CanController
	ethControllers map[cosim.BusControllerId]cosim.EthController
	linControllers map[cosim.BusControllerId]cosim.LinController
	frControllers  map[cosim.BusControllerId]cosim.FrController

	responderMode atomic.Int32
	nextCommand   atomic.Uint32
}

// New constructs a disconnected client; call Connect before use.
func New(callbacks cosim.Callbacks) *Client {
	return &Client{id: xid.New(), callbacks: callbacks}
}

// ID is this client's session-unique identifier, used in log lines.
func (c *Client) ID() string { return c.id.String() }

// Connect dials the server, negotiates the protocol version and exchanges
// the Connect/ConnectOk handshake, populating the client's signal and
// controller catalogs.
func (c *Client) Connect(cfg cosim.ConnectConfig) error {
	conn, err := dialTransport(cfg)
	if err != nil {
		return fmt.Errorf("cosimclient: connect: %w", err)
	}
	c.conn = conn
	c.ch = wirechannel.New(conn)
	c.ch.SetSpinCount(wirechannel.SpinCountFallbackChain(cfg.ServerName, "client", "rx"))
	if mask, ok := wirechannel.AffinityMask(); ok {
		logging.L().Debug("VEOS_COSIM_AFFINITY_MASK set but not applied", "mask", mask)
	}

	wire, err := protocol.New(c.ch, protocol.LatestVersion)
	if err != nil {
		conn.Close()
		return fmt.Errorf("cosimclient: protocol init: %w", err)
	}
	c.wire = wire

	if res := wire.SendConnect(protocol.ConnectRequest{
		Version:    protocol.LatestVersion,
		ServerName: cfg.ServerName,
		ClientName: cfg.ClientName,
	}); res != cosim.ResultOk {
		conn.Close()
		return fmt.Errorf("cosimclient: send connect: %v", res)
	}

	kind, res := wire.ReceiveHeader()
	if res != cosim.ResultOk {
		conn.Close()
		return fmt.Errorf("cosimclient: receive connect reply: %v", res)
	}
	switch kind {
	case protocol.FrameKindConnectOk:
		// fallthrough below
	case protocol.FrameKindError:
		msg, _ := wire.ReadError()
		conn.Close()
		return fmt.Errorf("cosimclient: server rejected connect: %s", msg)
	default:
		conn.Close()
		return fmt.Errorf("cosimclient: unexpected frame kind %v during connect", kind)
	}

	negotiated, res := wire.ReadConnectOkVersion()
	if res != cosim.ResultOk {
		conn.Close()
		return fmt.Errorf("cosimclient: read connect ok version: %v", res)
	}
	wire, err = protocol.New(c.ch, negotiated)
	if err != nil {
		conn.Close()
		return fmt.Errorf("cosimclient: re-instantiate protocol at negotiated version %#x: %w", uint32(negotiated), err)
	}
	c.wire = wire

	ok, res := wire.ReadConnectOk()
	if res != cosim.ResultOk {
		conn.Close()
		return fmt.Errorf("cosimclient: read connect ok: %v", res)
	}

	c.stepSize = ok.StepSize
	c.simulationState.Store(uint32(ok.SimulationState))
	c.incomingSignals = ok.IncomingSignals
	c.outgoingSignals = ok.OutgoingSignals
	c.ioBuffer = iobuffer.New(ok.IncomingSignals, ok.OutgoingSignals)
	c.busBuffer = protocol.NewBusBuffer()

	c.canControllers = indexByID(ok.CanControllers, func(x cosim.CanController) cosim.BusControllerId { return x.ID })
	c.ethControllers = indexByID(ok.EthControllers, func(x cosim.EthController) cosim.BusControllerId { return x.ID })
	c.linControllers = indexByID(ok.LinControllers, func(x cosim.LinController) cosim.BusControllerId { return x.ID })
	c.frControllers = indexByID(ok.FrControllers, func(x cosim.FrController) cosim.BusControllerId { return x.ID })

	if res := c.busBuffer.Initialize(
		ok.CanControllers, c.canCallbacks(),
		ok.EthControllers, c.ethCallbacks(),
		ok.LinControllers, c.linCallbacks(),
		ok.FrControllers, c.frCallbacks(),
	); res != cosim.ResultOk {
		conn.Close()
		return fmt.Errorf("cosimclient: bus buffer init: %v", res)
	}

	logging.L().Info("cosim client connected", "client_id", c.ID(), "server", cfg.ServerName, "client_name", cfg.ClientName)
	return nil
}

// dialTransport picks the transport per the connection procedure: when the
// caller names a server and gives neither an explicit remote address nor
// port, a same-host Unix domain socket is tried first, falling back to TCP
// on 127.0.0.1 with the port resolved through the port mapper. Otherwise it
// dials TCP directly, still resolving the port through the port mapper if
// the caller left it at 0.
func dialTransport(cfg cosim.ConnectConfig) (net.Conn, error) {
	if cfg.ServerName != "" && cfg.RemoteIPAddress == "" && cfg.RemotePort == 0 {
		conn, err := socketlayer.DialLocal(socketlayer.LocalSocketPath(cfg.ServerName))
		if err == nil {
			return conn, nil
		}
		logging.L().Debug("local transport unavailable, falling back to tcp", "server_name", cfg.ServerName, "error", err)

		port, res := portmapper.GetPort("127.0.0.1", cfg.ServerName)
		if res != cosim.ResultOk {
			return nil, fmt.Errorf("resolve port for %q via port mapper: %v", cfg.ServerName, res)
		}
		return socketlayer.Dial("127.0.0.1", port, cfg.LocalPort)
	}

	remoteIPAddress := cfg.RemoteIPAddress
	if remoteIPAddress == "" {
		remoteIPAddress = "127.0.0.1"
	}
	remotePort := cfg.RemotePort
	if remotePort == 0 {
		port, res := portmapper.GetPort(remoteIPAddress, cfg.ServerName)
		if res != cosim.ResultOk {
			return nil, fmt.Errorf("resolve port for %q via port mapper: %v", cfg.ServerName, res)
		}
		remotePort = port
	}
	return socketlayer.Dial(remoteIPAddress, remotePort, cfg.LocalPort)
}

func indexByID[T any](items []T, id func(T) cosim.BusControllerId) map[cosim.BusControllerId]T {
	out := make(map[cosim.BusControllerId]T, len(items))
	for _, it := range items {
		out[id(it)] = it
	}
	return out
}

// canCallbacks builds a per-controller callback map that forwards every
// received CAN message to the registered CanMessageReceivedCallback, if
// any. A registered callback suppresses queueing entirely (busbuffer
// semantics), matching the original's "callback present => never enqueue".
func (c *Client) canCallbacks() map[cosim.BusControllerId]busbuffer.Callback[cosim.CanMessage] {
	if c.callbacks.CanMessageReceivedCallback == nil {
		return nil
	}
	out := make(map[cosim.BusControllerId]busbuffer.Callback[cosim.CanMessage], len(c.canControllers))
	for id, controller := range c.canControllers {
		controller := controller
		out[id] = func(simTime cosim.SimulationTime, m cosim.CanMessage) {
			c.callbacks.CanMessageReceivedCallback(simTime, controller, m)
		}
	}
	return out
}

func (c *Client) ethCallbacks() map[cosim.BusControllerId]busbuffer.Callback[cosim.EthMessage] {
	if c.callbacks.EthMessageReceivedCallback == nil {
		return nil
	}
	out := make(map[cosim.BusControllerId]busbuffer.Callback[cosim.EthMessage], len(c.ethControllers))
	for id, controller := range c.ethControllers {
		controller := controller
		out[id] = func(simTime cosim.SimulationTime, m cosim.EthMessage) {
			c.callbacks.EthMessageReceivedCallback(simTime, controller, m)
		}
	}
	return out
}

func (c *Client) linCallbacks() map[cosim.BusControllerId]busbuffer.Callback[cosim.LinMessage] {
	if c.callbacks.LinMessageReceivedCallback == nil {
		return nil
	}
	out := make(map[cosim.BusControllerId]busbuffer.Callback[cosim.LinMessage], len(c.linControllers))
	for id, controller := range c.linControllers {
		controller := controller
		out[id] = func(simTime cosim.SimulationTime, m cosim.LinMessage) {
			c.callbacks.LinMessageReceivedCallback(simTime, controller, m)
		}
	}
	return out
}

func (c *Client) frCallbacks() map[cosim.BusControllerId]busbuffer.Callback[cosim.FrMessage] {
	if c.callbacks.FrMessageReceivedCallback == nil {
		return nil
	}
	out := make(map[cosim.BusControllerId]busbuffer.Callback[cosim.FrMessage], len(c.frControllers))
	for id, controller := range c.frControllers {
		controller := controller
		out[id] = func(simTime cosim.SimulationTime, m cosim.FrMessage) {
			c.callbacks.FrMessageReceivedCallback(simTime, controller, m)
		}
	}
	return out
}

// Disconnect closes the underlying connection.
func (c *Client) Disconnect() error {
	if c.ch == nil {
		return nil
	}
	return c.ch.Disconnect()
}

// StepSize returns the negotiated simulation step size.
func (c *Client) StepSize() cosim.SimulationTime { return c.stepSize }

// SimulationState returns the last simulation state observed from the server.
func (c *Client) SimulationState() cosim.SimulationState {
	return cosim.SimulationState(c.simulationState.Load())
}

// SetNextCommand atomically stores the command to piggy-back on the next
// StepOk/PingOk this client sends, mirroring the original's
// _nextCommand.exchange(...) pattern. Pass cosim.CommandNone to clear it.
func (c *Client) SetNextCommand(cmd cosim.Command) {
	c.nextCommand.Store(uint32(cmd))
}

func (c *Client) takeNextCommand() cosim.Command {
	return cosim.Command(c.nextCommand.Swap(uint32(cosim.CommandNone)))
}

// Read returns the current value of an incoming (read-side) signal.
func (c *Client) Read(id cosim.IoSignalId, dest []byte) (uint32, cosim.Result) {
	return c.ioBuffer.Read(id, dest)
}

// Write sets the current value of an outgoing (write-side) signal.
func (c *Client) Write(id cosim.IoSignalId, length uint32, value []byte) cosim.Result {
	return c.ioBuffer.Write(id, length, value)
}

// TransmitCan enqueues a CAN message for the next step; TransmitEth,
// TransmitLin and TransmitFr do the same for the other bus kinds.
func (c *Client) TransmitCan(m cosim.CanMessage) cosim.Result {
	res := c.busBuffer.Can.Transmit(m)
	recordBusResult("can", "transmit", res)
	return res
}
func (c *Client) TransmitEth(m cosim.EthMessage) cosim.Result {
	res := c.busBuffer.Eth.Transmit(m)
	recordBusResult("eth", "transmit", res)
	return res
}
func (c *Client) TransmitLin(m cosim.LinMessage) cosim.Result {
	res := c.busBuffer.Lin.Transmit(m)
	recordBusResult("lin", "transmit", res)
	return res
}
func (c *Client) TransmitFr(m cosim.FrMessage) cosim.Result {
	res := c.busBuffer.Fr.Transmit(m)
	recordBusResult("fr", "transmit", res)
	return res
}

// ReceiveCan pops one queued CAN message, if any (Empty otherwise). Only
// meaningful for controllers without a registered receive callback.
func (c *Client) ReceiveCan() (cosim.CanMessage, cosim.Result) {
	m, res := c.busBuffer.Can.Receive()
	recordBusResult("can", "receive", res)
	return m, res
}
func (c *Client) ReceiveEth() (cosim.EthMessage, cosim.Result) {
	m, res := c.busBuffer.Eth.Receive()
	recordBusResult("eth", "receive", res)
	return m, res
}
func (c *Client) ReceiveLin() (cosim.LinMessage, cosim.Result) {
	m, res := c.busBuffer.Lin.Receive()
	recordBusResult("lin", "receive", res)
	return m, res
}
func (c *Client) ReceiveFr() (cosim.FrMessage, cosim.Result) {
	m, res := c.busBuffer.Fr.Receive()
	recordBusResult("fr", "receive", res)
	return m, res
}

// recordBusResult updates the bus message/queue-full counters for a
// Transmit/Receive call, shared by the client and server (cosimserver has
// its own copy since the two packages don't share an internal dependency).
func recordBusResult(bus, direction string, res cosim.Result) {
	switch {
	case res == cosim.ResultOk && direction == "transmit":
		metrics.IncBusTransmit(bus)
	case res == cosim.ResultOk && direction == "receive":
		metrics.IncBusReceive(bus)
	case res == cosim.ResultFull:
		metrics.IncBusQueueFull(bus, direction)
	}
}
