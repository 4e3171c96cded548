package cosimserver

import (
	"fmt"
	"time"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/metrics"
	"github.com/dspace-group/veos-cosim/internal/protocol"
)

func (s *Server) requireClient() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wire == nil {
		return fmt.Errorf("cosimserver: no client connected")
	}
	return nil
}

// Start transitions Stopped -> Running and notifies the connected client.
func (s *Server) Start(simTime cosim.SimulationTime) error {
	if err := s.requireClient(); err != nil {
		return err
	}
	if res := s.wire.SendSimTimeFrame(protocol.FrameKindStart, simTime); res != cosim.ResultOk {
		return fmt.Errorf("cosimserver: send start: %v", res)
	}
	if err := s.expectOk(); err != nil {
		return err
	}
	s.state.Store(uint32(cosim.SimulationStateRunning))
	metrics.SetSimulationState(int(cosim.SimulationStateRunning))
	return nil
}

// Stop transitions Running/Paused -> Stopped and notifies the client.
func (s *Server) Stop(simTime cosim.SimulationTime) error {
	if err := s.requireClient(); err != nil {
		return err
	}
	if res := s.wire.SendSimTimeFrame(protocol.FrameKindStop, simTime); res != cosim.ResultOk {
		return fmt.Errorf("cosimserver: send stop: %v", res)
	}
	if err := s.expectOk(); err != nil {
		return err
	}
	s.state.Store(uint32(cosim.SimulationStateStopped))
	metrics.SetSimulationState(int(cosim.SimulationStateStopped))
	return nil
}

// Pause transitions Running -> Paused and notifies the client.
func (s *Server) Pause(simTime cosim.SimulationTime) error {
	if err := s.requireClient(); err != nil {
		return err
	}
	if res := s.wire.SendSimTimeFrame(protocol.FrameKindPause, simTime); res != cosim.ResultOk {
		return fmt.Errorf("cosimserver: send pause: %v", res)
	}
	if err := s.expectOk(); err != nil {
		return err
	}
	s.state.Store(uint32(cosim.SimulationStatePaused))
	metrics.SetSimulationState(int(cosim.SimulationStatePaused))
	return nil
}

// Continue transitions Paused -> Running and notifies the client.
func (s *Server) Continue(simTime cosim.SimulationTime) error {
	if err := s.requireClient(); err != nil {
		return err
	}
	if res := s.wire.SendSimTimeFrame(protocol.FrameKindContinue, simTime); res != cosim.ResultOk {
		return fmt.Errorf("cosimserver: send continue: %v", res)
	}
	if err := s.expectOk(); err != nil {
		return err
	}
	s.state.Store(uint32(cosim.SimulationStateRunning))
	metrics.SetSimulationState(int(cosim.SimulationStateRunning))
	return nil
}

// Terminate ends the simulation and notifies the client with reason.
func (s *Server) Terminate(simTime cosim.SimulationTime, reason cosim.TerminateReason) error {
	if err := s.requireClient(); err != nil {
		return err
	}
	if res := s.wire.SendTerminate(simTime, reason); res != cosim.ResultOk {
		return fmt.Errorf("cosimserver: send terminate: %v", res)
	}
	if err := s.expectOk(); err != nil {
		return err
	}
	s.state.Store(uint32(cosim.SimulationStateTerminated))
	metrics.SetSimulationState(int(cosim.SimulationStateTerminated))
	return nil
}

func (s *Server) expectOk() error {
	kind, res := s.wire.ReceiveHeader()
	if res != cosim.ResultOk {
		return fmt.Errorf("cosimserver: receive reply: %v", res)
	}
	if kind != protocol.FrameKindOk {
		if kind == protocol.FrameKindError {
			msg, _ := s.wire.ReadError()
			return fmt.Errorf("cosimserver: client replied error: %s", msg)
		}
		return fmt.Errorf("cosimserver: unexpected reply frame kind %v", kind)
	}
	return nil
}

// Step drives exactly one simulation tick: it serializes the server's
// current io/bus state to the client, reads the client's StepOk reply
// (which carries the client's requested next command), and deserializes
// the client's response state. It returns the next simulation time and the
// command the client wants executed next (None/Continue/Pause/Terminate/...).
func (s *Server) Step(simTime cosim.SimulationTime) (cosim.SimulationTime, cosim.Command, error) {
	if err := s.requireClient(); err != nil {
		return simTime, cosim.CommandNone, err
	}
	start := time.Now()

	if cb := s.cfg.Callbacks.SimulationBeginStepCallback; cb != nil {
		cb(simTime)
	}

	if res := s.wire.SendStepHeader(simTime); res != cosim.ResultOk {
		return simTime, cosim.CommandNone, fmt.Errorf("cosimserver: send step header: %v", res)
	}
	if res := s.ioBuffer.Serialize(s.wire.Channel()); res != cosim.ResultOk {
		return simTime, cosim.CommandNone, fmt.Errorf("cosimserver: serialize io: %v", res)
	}
	if res := s.busBuffer.Serialize(s.wire.Channel()); res != cosim.ResultOk {
		return simTime, cosim.CommandNone, fmt.Errorf("cosimserver: serialize bus: %v", res)
	}
	if res := s.wire.EndWrite(); res != cosim.ResultOk {
		return simTime, cosim.CommandNone, fmt.Errorf("cosimserver: flush step: %v", res)
	}

	kind, res := s.wire.ReceiveHeader()
	if res != cosim.ResultOk {
		return simTime, cosim.CommandNone, fmt.Errorf("cosimserver: receive step ok: %v", res)
	}
	if kind != protocol.FrameKindStepOk {
		return simTime, cosim.CommandNone, fmt.Errorf("cosimserver: expected StepOk, got %v", kind)
	}

	nextSimTime, nextCommand, res := s.wire.ReadStepOkHeader()
	if res != cosim.ResultOk {
		return simTime, cosim.CommandNone, fmt.Errorf("cosimserver: read step ok header: %v", res)
	}
	if res := s.ioBuffer.Deserialize(s.wire.Channel(), nextSimTime, s.cfg.Callbacks.IncomingSignalChangedCallback); res != cosim.ResultOk {
		return simTime, cosim.CommandNone, fmt.Errorf("cosimserver: deserialize io: %v", res)
	}
	if res := s.busBuffer.Deserialize(s.wire.Channel(), nextSimTime); res != cosim.ResultOk {
		return simTime, cosim.CommandNone, fmt.Errorf("cosimserver: deserialize bus: %v", res)
	}

	if cb := s.cfg.Callbacks.SimulationEndStepCallback; cb != nil {
		cb(nextSimTime)
	}

	metrics.StepDuration.Observe(time.Since(start).Seconds())
	metrics.IncStep()
	return nextSimTime, nextCommand, nil
}

// Ping exchanges a Ping/PingOk round trip with the client, returning the
// command it wants executed next. Callers use it to check liveness between
// steps and to drain a pending lifecycle command the client requested
// without waiting for the next Step. The server never calls it on its own:
// there is no background ping goroutine.
func (s *Server) Ping() (cosim.Command, error) {
	if err := s.requireClient(); err != nil {
		return cosim.CommandNone, err
	}
	start := time.Now()
	if res := s.wire.SendPing(); res != cosim.ResultOk {
		return cosim.CommandNone, fmt.Errorf("cosimserver: send ping: %v", res)
	}
	kind, res := s.wire.ReceiveHeader()
	if res != cosim.ResultOk {
		return cosim.CommandNone, fmt.Errorf("cosimserver: receive ping ok: %v", res)
	}
	if kind != protocol.FrameKindPingOk {
		return cosim.CommandNone, fmt.Errorf("cosimserver: expected PingOk, got %v", kind)
	}
	cmd, res := s.wire.ReadPingOk()
	metrics.PingRoundTrip.Observe(time.Since(start).Seconds())
	if res != cosim.ResultOk {
		return cosim.CommandNone, fmt.Errorf("cosimserver: read ping ok: %v", res)
	}
	return cmd, nil
}
