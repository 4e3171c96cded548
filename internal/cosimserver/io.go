package cosimserver

import (
	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/metrics"
)

// Read returns the current value of one of the server's incoming (read-side)
// signals. Mirrors Client.Read; the server's read side is the client's write
// side and vice versa, matching the original's symmetric CoSimServer API.
func (s *Server) Read(id cosim.IoSignalId, dest []byte) (uint32, cosim.Result) {
	s.mu.Lock()
	buf := s.ioBuffer
	s.mu.Unlock()
	if buf == nil {
		return 0, cosim.ResultError
	}
	return buf.Read(id, dest)
}

// Write sets the current value of one of the server's outgoing (write-side) signals.
func (s *Server) Write(id cosim.IoSignalId, length uint32, value []byte) cosim.Result {
	s.mu.Lock()
	buf := s.ioBuffer
	s.mu.Unlock()
	if buf == nil {
		return cosim.ResultError
	}
	return buf.Write(id, length, value)
}

// TransmitCan enqueues a CAN message for the next step.
func (s *Server) TransmitCan(m cosim.CanMessage) cosim.Result {
	res := s.busTransmitCan(m)
	recordBusResult("can", "transmit", res)
	return res
}
func (s *Server) TransmitEth(m cosim.EthMessage) cosim.Result {
	res := s.busTransmitEth(m)
	recordBusResult("eth", "transmit", res)
	return res
}
func (s *Server) TransmitLin(m cosim.LinMessage) cosim.Result {
	res := s.busTransmitLin(m)
	recordBusResult("lin", "transmit", res)
	return res
}
func (s *Server) TransmitFr(m cosim.FrMessage) cosim.Result {
	res := s.busTransmitFr(m)
	recordBusResult("fr", "transmit", res)
	return res
}

// ReceiveCan pops one queued CAN message, if any (Empty otherwise). Only
// meaningful for controllers without a registered receive callback.
func (s *Server) ReceiveCan() (cosim.CanMessage, cosim.Result) {
	m, res := s.busReceiveCan()
	recordBusResult("can", "receive", res)
	return m, res
}
func (s *Server) ReceiveEth() (cosim.EthMessage, cosim.Result) {
	m, res := s.busReceiveEth()
	recordBusResult("eth", "receive", res)
	return m, res
}
func (s *Server) ReceiveLin() (cosim.LinMessage, cosim.Result) {
	m, res := s.busReceiveLin()
	recordBusResult("lin", "receive", res)
	return m, res
}
func (s *Server) ReceiveFr() (cosim.FrMessage, cosim.Result) {
	m, res := s.busReceiveFr()
	recordBusResult("fr", "receive", res)
	return m, res
}

// recordBusResult updates the bus message/queue-full counters for a
// Transmit/Receive call.
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

func (s *Server) busTransmitCan(m cosim.CanMessage) cosim.Result {
	s.mu.Lock()
	buf := s.busBuffer
	s.mu.Unlock()
	if buf == nil {
		return cosim.ResultError
	}
	return buf.Can.Transmit(m)
}

func (s *Server) busTransmitEth(m cosim.EthMessage) cosim.Result {
	s.mu.Lock()
	buf := s.busBuffer
	s.mu.Unlock()
	if buf == nil {
		return cosim.ResultError
	}
	return buf.Eth.Transmit(m)
}

func (s *Server) busTransmitLin(m cosim.LinMessage) cosim.Result {
	s.mu.Lock()
	buf := s.busBuffer
	s.mu.Unlock()
	if buf == nil {
		return cosim.ResultError
	}
	return buf.Lin.Transmit(m)
}

func (s *Server) busTransmitFr(m cosim.FrMessage) cosim.Result {
	s.mu.Lock()
	buf := s.busBuffer
	s.mu.Unlock()
	if buf == nil {
		return cosim.ResultError
	}
	return buf.Fr.Transmit(m)
}

func (s *Server) busReceiveCan() (cosim.CanMessage, cosim.Result) {
	s.mu.Lock()
	buf := s.busBuffer
	s.mu.Unlock()
	if buf == nil {
		return cosim.CanMessage{}, cosim.ResultError
	}
	return buf.Can.Receive()
}

func (s *Server) busReceiveEth() (cosim.EthMessage, cosim.Result) {
	s.mu.Lock()
	buf := s.busBuffer
	s.mu.Unlock()
	if buf == nil {
		return cosim.EthMessage{}, cosim.ResultError
	}
	return buf.Eth.Receive()
}

func (s *Server) busReceiveLin() (cosim.LinMessage, cosim.Result) {
	s.mu.Lock()
	buf := s.busBuffer
	s.mu.Unlock()
	if buf == nil {
		return cosim.LinMessage{}, cosim.ResultError
	}
	return buf.Lin.Receive()
}

func (s *Server) busReceiveFr() (cosim.FrMessage, cosim.Result) {
	s.mu.Lock()
	buf := s.busBuffer
	s.mu.Unlock()
	if buf == nil {
		return cosim.FrMessage{}, cosim.ResultError
	}
	return buf.Fr.Receive()
}
