// Package cosimserver implements the co-sim server side: accepting a
// client connection, driving the Unloaded->Stopped->Running/Paused->
// Terminated lifecycle, and exchanging one Step/StepOk per simulation
// tick. Grounded on original_source/src/CoSimServer.cpp and the teacher's
// server.go/reader.go/writer.go accept-loop and goroutine split.
package cosimserver

import (
	"fmt"
	"net"
	"os"
	"sync"
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

// Server is one co-sim session's server side: a listener plus (once a
// client has connected) the io/bus buffers and wire protocol driving each
// step.
type Server struct {
	cfg cosim.ServerConfig

	listener      net.Listener
	port          uint16
	localListener net.Listener
	localSocket   string

	mu        sync.Mutex
	state     atomic.Uint32
	conn      net.Conn
	wire      *protocol.Protocol
	ioBuffer  *iobuffer.IoBuffer
	busBuffer *busbuffer.BusBuffer
	clientID  xid.ID

	acceptWg sync.WaitGroup
	stopCh   chan struct{}
}

// New returns an unloaded server for cfg.
func New(cfg cosim.ServerConfig) *Server {
	s := &Server{cfg: cfg}
	s.state.Store(uint32(cosim.SimulationStateUnloaded))
	return s
}

// State returns the server's current position in the lifecycle state machine.
func (s *Server) State() cosim.SimulationState {
	return cosim.SimulationState(s.state.Load())
}

// Load opens the listener, optionally registers the server's port with the
// local port mapper, and starts the background accept loop. The server
// transitions Unloaded -> Stopped once a client has connected.
func (s *Server) Load() error {
	l, port, err := socketlayer.Listen(cosim.ConnectionKindRemote, s.cfg.Port, s.cfg.EnableRemoteAccess, "")
	if err != nil {
		return fmt.Errorf("cosimserver: load: %w", err)
	}
	s.listener = l
	s.port = port
	s.stopCh = make(chan struct{})

	if s.cfg.RegisterAtPortMapper {
		portmapper.SetPort(s.cfg.ServerName, port)
	}

	if mask, ok := wirechannel.AffinityMask(); ok {
		logging.L().Debug("VEOS_COSIM_AFFINITY_MASK set but not applied", "mask", mask)
	}

	s.acceptWg.Add(1)
	go s.acceptLoop(s.listener)

	if s.cfg.ServerName != "" {
		s.localSocket = socketlayer.LocalSocketPath(s.cfg.ServerName)
		ll, _, err := socketlayer.Listen(cosim.ConnectionKindLocal, 0, false, s.localSocket)
		if err != nil {
			logging.L().Warn("local transport unavailable, clients will fall back to tcp", "server_name", s.cfg.ServerName, "error", err)
		} else {
			s.localListener = ll
			s.acceptWg.Add(1)
			go s.acceptLoop(s.localListener)
		}
	}

	logging.L().Info("cosim server loaded", "server_name", s.cfg.ServerName, "port", port)
	return nil
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() uint16 { return s.port }

// Unload stops accepting connections, disconnects any connected client and
// unregisters from the port mapper.
func (s *Server) Unload() error {
	if s.stopCh != nil {
		close(s.stopCh)
	}
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	if s.localListener != nil {
		s.localListener.Close()
	}
	s.acceptWg.Wait()
	if s.localSocket != "" {
		_ = os.Remove(s.localSocket)
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	if s.cfg.RegisterAtPortMapper {
		portmapper.UnsetPort(s.cfg.ServerName)
	}
	s.state.Store(uint32(cosim.SimulationStateUnloaded))
	metrics.SetSimulationState(int(cosim.SimulationStateUnloaded))
	metrics.SetActiveSessions(0)
	return err
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.acceptWg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				logging.L().Error("cosim server accept failed", "error", err)
				return
			}
		}
		if err := s.handleNewClient(conn); err != nil {
			logging.L().Error("cosim server handshake failed", "error", err)
			conn.Close()
			continue
		}
	}
}

func (s *Server) handleNewClient(conn net.Conn) error {
	ch := wirechannel.New(conn)
	ch.SetSpinCount(wirechannel.SpinCountFallbackChain(s.cfg.ServerName, "server", "rx"))

	kind, res := peekHeader(ch)
	if res != cosim.ResultOk {
		return fmt.Errorf("read connect header: %v", res)
	}
	if kind != protocol.FrameKindConnect {
		return fmt.Errorf("expected Connect frame, got %v", kind)
	}

	// Version negotiation: accept whatever the client offers, capped at
	// our own latest supported version.
	wireProbe, _ := protocol.New(ch, protocol.V1Version)
	req, res := wireProbe.ReadConnect()
	if res != cosim.ResultOk {
		return fmt.Errorf("read connect body: %v", res)
	}
	negotiated := protocol.V1Version
	if req.Version >= protocol.V2Version {
		negotiated = protocol.V2Version
	}

	wire, err := protocol.New(ch, negotiated)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.wire = wire
	s.clientID = xid.New()
	s.ioBuffer = iobuffer.New(s.cfg.IncomingSignals, s.cfg.OutgoingSignals)
	s.busBuffer = protocol.NewBusBuffer()
	initRes := s.busBuffer.Initialize(
		s.cfg.CanControllers, canCallbacks(s.cfg.Callbacks, s.cfg.CanControllers),
		s.cfg.EthControllers, ethCallbacks(s.cfg.Callbacks, s.cfg.EthControllers),
		s.cfg.LinControllers, linCallbacks(s.cfg.Callbacks, s.cfg.LinControllers),
		s.cfg.FrControllers, frCallbacks(s.cfg.Callbacks, s.cfg.FrControllers),
	)
	s.mu.Unlock()

	if initRes != cosim.ResultOk {
		return fmt.Errorf("bus buffer init: %v", initRes)
	}

	if res := wire.SendConnectOk(protocol.ConnectOk{
		StepSize:        s.cfg.StepSize,
		SimulationState: cosim.SimulationStateStopped,
		IncomingSignals: s.cfg.OutgoingSignals,
		OutgoingSignals: s.cfg.IncomingSignals,
		CanControllers:  s.cfg.CanControllers,
		EthControllers:  s.cfg.EthControllers,
		LinControllers:  s.cfg.LinControllers,
		FrControllers:   s.cfg.FrControllers,
	}); res != cosim.ResultOk {
		return fmt.Errorf("send connect ok: %v", res)
	}

	s.state.Store(uint32(cosim.SimulationStateStopped))
	metrics.SetSimulationState(int(cosim.SimulationStateStopped))
	metrics.SetActiveSessions(1)
	logging.L().Info("cosim client connected", "client_name", req.ClientName, "client_id", s.clientID.String())
	return nil
}

// peekHeader reads a frame-kind header straight off the channel, before any
// Protocol exists. The Connect body is then read with a V1 Protocol, since
// Connect's own shape never changes across versions, and the Protocol for
// the negotiated version is built only after that.
func peekHeader(ch *wirechannel.Channel) (protocol.FrameKind, cosim.Result) {
	v, res := ch.ReadUint32()
	return protocol.FrameKind(v), res
}

func canCallbacks(cb cosim.Callbacks, controllers []cosim.CanController) map[cosim.BusControllerId]busbuffer.Callback[cosim.CanMessage] {
	if cb.CanMessageReceivedCallback == nil {
		return nil
	}
	out := make(map[cosim.BusControllerId]busbuffer.Callback[cosim.CanMessage], len(controllers))
	for _, c := range controllers {
		c := c
		out[c.ID] = func(simTime cosim.SimulationTime, m cosim.CanMessage) {
			cb.CanMessageReceivedCallback(simTime, c, m)
		}
	}
	return out
}

func ethCallbacks(cb cosim.Callbacks, controllers []cosim.EthController) map[cosim.BusControllerId]busbuffer.Callback[cosim.EthMessage] {
	if cb.EthMessageReceivedCallback == nil {
		return nil
	}
	out := make(map[cosim.BusControllerId]busbuffer.Callback[cosim.EthMessage], len(controllers))
	for _, c := range controllers {
		c := c
		out[c.ID] = func(simTime cosim.SimulationTime, m cosim.EthMessage) {
			cb.EthMessageReceivedCallback(simTime, c, m)
		}
	}
	return out
}

func linCallbacks(cb cosim.Callbacks, controllers []cosim.LinController) map[cosim.BusControllerId]busbuffer.Callback[cosim.LinMessage] {
	if cb.LinMessageReceivedCallback == nil {
		return nil
	}
	out := make(map[cosim.BusControllerId]busbuffer.Callback[cosim.LinMessage], len(controllers))
	for _, c := range controllers {
		c := c
		out[c.ID] = func(simTime cosim.SimulationTime, m cosim.LinMessage) {
			cb.LinMessageReceivedCallback(simTime, c, m)
		}
	}
	return out
}

func frCallbacks(cb cosim.Callbacks, controllers []cosim.FrController) map[cosim.BusControllerId]busbuffer.Callback[cosim.FrMessage] {
	if cb.FrMessageReceivedCallback == nil {
		return nil
	}
	out := make(map[cosim.BusControllerId]busbuffer.Callback[cosim.FrMessage], len(controllers))
	for _, c := range controllers {
		c := c
		out[c.ID] = func(simTime cosim.SimulationTime, m cosim.FrMessage) {
			cb.FrMessageReceivedCallback(simTime, c, m)
		}
	}
	return out
}
