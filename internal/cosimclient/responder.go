package cosimclient

import (
	"fmt"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/logging"
	"github.com/dspace-group/veos-cosim/internal/protocol"
)

// ensureResponderMode locks the client into mode on first use and reports
// an error (without changing anything) if a later call asks for the other
// mode, mirroring the original's
// EnsureIsInResponderModeBlocking/NonBlocking pair.
func (c *Client) ensureResponderMode(mode ResponderMode) error {
	if c.responderMode.CompareAndSwap(int32(ResponderModeUnknown), int32(mode)) {
		return nil
	}
	if ResponderMode(c.responderMode.Load()) != mode {
		return fmt.Errorf("cosimclient: client is already in %v responder mode", ResponderMode(c.responderMode.Load()))
	}
	return nil
}

func (m ResponderMode) String() string {
	switch m {
	case ResponderModeBlocking:
		return "Blocking"
	case ResponderModeNonBlocking:
		return "NonBlocking"
	default:
		return "Unknown"
	}
}

// RunBlocking locks the client into blocking responder mode and processes
// frames from the server until Disconnect, an error, or a Terminate frame
// is seen. Every lifecycle/step callback registered in Callbacks is invoked
// inline from this loop.
func (c *Client) RunBlocking() error {
	if err := c.ensureResponderMode(ResponderModeBlocking); err != nil {
		return err
	}
	for {
		done, err := c.processOneFrame()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Poll locks the client into non-blocking responder mode and processes
// exactly one server-initiated frame (this call still blocks on the
// network read — "non-blocking" describes the caller's control flow, which
// owns the loop, not the I/O itself). It reports done=true once a
// Terminate frame has been processed.
func (c *Client) Poll() (done bool, err error) {
	if err := c.ensureResponderMode(ResponderModeNonBlocking); err != nil {
		return false, err
	}
	return c.processOneFrame()
}

// Finish is the non-blocking counterpart's explicit "I'm done reacting to
// that frame" marker. In this implementation processOneFrame already sends
// the required reply before returning, so Finish only validates mode and
// exists to match the original API's Poll/Finish pairing.
func (c *Client) Finish() error {
	return c.ensureResponderMode(ResponderModeNonBlocking)
}

// processOneFrame reads and dispatches exactly one frame, replying as
// required by the protocol. Ping is consumed internally: it never
// surfaces as "done" and the loop (or the next Poll) simply continues.
func (c *Client) processOneFrame() (done bool, err error) {
	kind, res := c.wire.ReceiveHeader()
	if res != cosim.ResultOk {
		return true, fmt.Errorf("cosimclient: receive header: %v", res)
	}

	switch kind {
	case protocol.FrameKindPing:
		cmd := c.takeNextCommand()
		if res := c.wire.SendPingOk(cmd); res != cosim.ResultOk {
			return true, fmt.Errorf("cosimclient: send ping ok: %v", res)
		}
		return false, nil

	case protocol.FrameKindStart:
		simTime, res := c.wire.ReadSimTimeFrame()
		if res != cosim.ResultOk {
			return true, fmt.Errorf("cosimclient: read start: %v", res)
		}
		c.simulationState.Store(uint32(cosim.SimulationStateRunning))
		if cb := c.callbacks.SimulationStartedCallback; cb != nil {
			cb(simTime)
		}
		return false, c.replyOk()

	case protocol.FrameKindStop:
		simTime, res := c.wire.ReadSimTimeFrame()
		if res != cosim.ResultOk {
			return true, fmt.Errorf("cosimclient: read stop: %v", res)
		}
		c.simulationState.Store(uint32(cosim.SimulationStateStopped))
		if cb := c.callbacks.SimulationStoppedCallback; cb != nil {
			cb(simTime)
		}
		return false, c.replyOk()

	case protocol.FrameKindPause:
		simTime, res := c.wire.ReadSimTimeFrame()
		if res != cosim.ResultOk {
			return true, fmt.Errorf("cosimclient: read pause: %v", res)
		}
		c.simulationState.Store(uint32(cosim.SimulationStatePaused))
		if cb := c.callbacks.SimulationPausedCallback; cb != nil {
			cb(simTime)
		}
		return false, c.replyOk()

	case protocol.FrameKindContinue:
		simTime, res := c.wire.ReadSimTimeFrame()
		if res != cosim.ResultOk {
			return true, fmt.Errorf("cosimclient: read continue: %v", res)
		}
		c.simulationState.Store(uint32(cosim.SimulationStateRunning))
		if cb := c.callbacks.SimulationContinuedCallback; cb != nil {
			cb(simTime)
		}
		return false, c.replyOk()

	case protocol.FrameKindTerminate:
		simTime, reason, res := c.wire.ReadTerminate()
		if res != cosim.ResultOk {
			return true, fmt.Errorf("cosimclient: read terminate: %v", res)
		}
		c.simulationState.Store(uint32(cosim.SimulationStateTerminated))
		if cb := c.callbacks.SimulationTerminatedCallback; cb != nil {
			cb(simTime, reason)
		}
		if err := c.replyOk(); err != nil {
			return true, err
		}
		return true, nil

	case protocol.FrameKindStep:
		return false, c.processStep()

	default:
		logging.L().Error("cosimclient: unexpected frame kind", "kind", kind)
		return true, fmt.Errorf("cosimclient: unexpected frame kind %v", kind)
	}
}

func (c *Client) replyOk() error {
	if res := c.wire.SendOk(); res != cosim.ResultOk {
		return fmt.Errorf("cosimclient: send ok: %v", res)
	}
	return nil
}

func (c *Client) processStep() error {
	simTime, res := c.wire.ReadStepHeader()
	if res != cosim.ResultOk {
		return fmt.Errorf("cosimclient: read step header: %v", res)
	}
	if res := c.ioBuffer.Deserialize(c.wire.Channel(), simTime, c.callbacks.IncomingSignalChangedCallback); res != cosim.ResultOk {
		return fmt.Errorf("cosimclient: deserialize io: %v", res)
	}
	if res := c.busBuffer.Deserialize(c.wire.Channel(), simTime); res != cosim.ResultOk {
		return fmt.Errorf("cosimclient: deserialize bus: %v", res)
	}

	if cb := c.callbacks.SimulationBeginStepCallback; cb != nil {
		cb(simTime)
	}
	nextSimTime := simTime + c.stepSize
	if cb := c.callbacks.SimulationEndStepCallback; cb != nil {
		cb(nextSimTime)
	}

	nextCommand := c.takeNextCommand()
	if res := c.wire.SendStepOkHeader(nextSimTime, nextCommand); res != cosim.ResultOk {
		return fmt.Errorf("cosimclient: send step ok header: %v", res)
	}
	if res := c.ioBuffer.Serialize(c.wire.Channel()); res != cosim.ResultOk {
		return fmt.Errorf("cosimclient: serialize io: %v", res)
	}
	if res := c.busBuffer.Serialize(c.wire.Channel()); res != cosim.ResultOk {
		return fmt.Errorf("cosimclient: serialize bus: %v", res)
	}
	if res := c.wire.EndWrite(); res != cosim.ResultOk {
		return fmt.Errorf("cosimclient: flush step ok: %v", res)
	}
	return nil
}
