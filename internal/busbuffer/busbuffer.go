// Package busbuffer implements the generic per-bus-kind transmit/receive
// queue pattern shared by CAN, ETH, LIN and FlexRay message exchange.
package busbuffer

import (
	"sync"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/logging"
	"github.com/dspace-group/veos-cosim/internal/ringbuffer"
)

// controllerExtension tracks per-controller queue occupancy and one-shot
// drop-warning state, mirroring the original's ControllerExtension.
type controllerExtension[TController any] struct {
	info                  TController
	queueSize             uint32
	receiveCount          uint32
	transmitCount         uint32
	receiveWarningSent    bool
	transmitWarningSent   bool
}

func (c *controllerExtension[TController]) clearData() {
	c.receiveCount = 0
	c.transmitCount = 0
	c.receiveWarningSent = false
	c.transmitWarningSent = false
}

// Callback is the optional per-message receive hook; when registered for a
// controller id, Deserialize invokes it directly instead of enqueueing.
type Callback[TMessage any] func(simTime cosim.SimulationTime, message TMessage)

// Codec adapts a concrete message/controller pair to the wire and to the
// controller-id/queue-size accessors BusProtocolBuffer needs.
type Codec[TMessage any, TController any] struct {
	ControllerID      func(TController) cosim.BusControllerId
	ControllerQueue   func(TController) uint32
	MessageController func(TMessage) cosim.BusControllerId

	// WriteMessage/ReadMessage (de)serialize one message to/from a wire
	// channel; they're supplied by internal/protocol so this package stays
	// free of any wire-format knowledge.
	WriteMessage func(w Writer, message TMessage) cosim.Result
	ReadMessage  func(r Reader) (TMessage, cosim.Result)

	// Validate checks a message's length/flags before it is accepted by
	// Transmit, returning InvalidArgument on a boundary violation (kind max
	// length, CAN's FlexibleDataRateFormat/BitRateSwitch rule). Optional —
	// a nil Validate skips the check.
	Validate func(TMessage) cosim.Result
}

// Writer is the minimal sink a bus protocol buffer needs to serialize.
type Writer interface {
	WriteUint32(uint32) cosim.Result
}

// Reader is the minimal source a bus protocol buffer needs to deserialize.
type Reader interface {
	ReadUint32() (uint32, cosim.Result)
}

// BusProtocolBuffer is the generic transmit/receive queue for one bus kind
// (CAN, ETH, LIN or FR), grounded on the original's
// BusProtocolBuffer<TMessage, TMessageShm, TController> template.
type BusProtocolBuffer[TMessage any, TController any] struct {
	mu sync.Mutex

	codec Codec[TMessage, TController]

	controllers map[cosim.BusControllerId]*controllerExtension[TController]

	receiveBuffer  *ringbuffer.RingBuffer[TMessage]
	transmitBuffer *ringbuffer.RingBuffer[TMessage]

	callbacks map[cosim.BusControllerId]Callback[TMessage]
}

// NewBusProtocolBuffer builds an empty, uninitialized buffer; call
// Initialize before use.
func NewBusProtocolBuffer[TMessage any, TController any](codec Codec[TMessage, TController]) *BusProtocolBuffer[TMessage, TController] {
	return &BusProtocolBuffer[TMessage, TController]{codec: codec}
}

// Initialize registers the controller set and sizes the transmit/receive
// rings to the sum of each controller's queue size. A duplicate controller
// id is an error.
func (b *BusProtocolBuffer[TMessage, TController]) Initialize(controllers []TController, callbacks map[cosim.BusControllerId]Callback[TMessage]) cosim.Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.controllers = make(map[cosim.BusControllerId]*controllerExtension[TController], len(controllers))
	b.callbacks = callbacks

	var totalQueueSize uint32
	for _, c := range controllers {
		id := b.codec.ControllerID(c)
		if _, exists := b.controllers[id]; exists {
			logging.L().Error("duplicate controller id", "controller_id", id)
			return cosim.ResultError
		}
		queueSize := b.codec.ControllerQueue(c)
		b.controllers[id] = &controllerExtension[TController]{info: c, queueSize: queueSize}
		totalQueueSize += queueSize
	}

	b.receiveBuffer = ringbuffer.New[TMessage](int(totalQueueSize))
	b.transmitBuffer = ringbuffer.New[TMessage](int(totalQueueSize))
	return cosim.ResultOk
}

// ClearData drains both rings and resets every controller's counters.
func (b *BusProtocolBuffer[TMessage, TController]) ClearData() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.receiveBuffer != nil {
		b.receiveBuffer.ClearData()
	}
	if b.transmitBuffer != nil {
		b.transmitBuffer.ClearData()
	}
	for _, c := range b.controllers {
		c.clearData()
	}
}

func (b *BusProtocolBuffer[TMessage, TController]) findController(id cosim.BusControllerId) (*controllerExtension[TController], cosim.Result) {
	c, ok := b.controllers[id]
	if !ok {
		logging.L().Error("unknown bus controller id", "controller_id", id)
		return nil, cosim.ResultInvalidArgument
	}
	return c, cosim.ResultOk
}

// Receive pops one message from the receive ring. Result is Empty if none
// is queued.
func (b *BusProtocolBuffer[TMessage, TController]) Receive() (message TMessage, result cosim.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.receiveBuffer.PopFront()
	if !ok {
		return message, cosim.ResultEmpty
	}
	if c, res := b.findController(b.codec.MessageController(msg)); res == cosim.ResultOk {
		if c.receiveCount > 0 {
			c.receiveCount--
		}
	}
	return msg, cosim.ResultOk
}

// Transmit enqueues message for the next Serialize. Result is Full if the
// owning controller's queue is already at capacity (logged once per
// controller until the queue next drains).
func (b *BusProtocolBuffer[TMessage, TController]) Transmit(message TMessage) cosim.Result {
	if b.codec.Validate != nil {
		if res := b.codec.Validate(message); res != cosim.ResultOk {
			return res
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.codec.MessageController(message)
	c, res := b.findController(id)
	if res != cosim.ResultOk {
		return res
	}
	if c.transmitCount >= c.queueSize {
		if !c.transmitWarningSent {
			c.transmitWarningSent = true
			logging.L().Warn("transmit queue full, dropping message", "controller_id", id)
		}
		return cosim.ResultFull
	}
	if !b.transmitBuffer.PushBack(message) {
		return cosim.ResultFull
	}
	c.transmitCount++
	return cosim.ResultOk
}

// Serialize writes the transmit ring's size followed by each queued message,
// then resets every controller's transmit counter to zero.
func (b *BusProtocolBuffer[TMessage, TController]) Serialize(w Writer) cosim.Result {
	b.mu.Lock()
	pending := b.drainTransmitLocked()
	for _, c := range b.controllers {
		c.transmitCount = 0
		c.transmitWarningSent = false
	}
	b.mu.Unlock()

	if res := w.WriteUint32(uint32(len(pending))); res != cosim.ResultOk {
		return res
	}
	for _, msg := range pending {
		if res := b.codec.WriteMessage(w, msg); res != cosim.ResultOk {
			return res
		}
	}
	return cosim.ResultOk
}

func (b *BusProtocolBuffer[TMessage, TController]) drainTransmitLocked() []TMessage {
	var out []TMessage
	for {
		msg, ok := b.transmitBuffer.PopFront()
		if !ok {
			break
		}
		out = append(out, msg)
	}
	return out
}

// Deserialize reads the count-prefixed message list the peer's Serialize
// wrote. If a callback is registered for a message's controller, the
// callback is invoked directly and the message is never enqueued
// (callback suppresses queueing); otherwise it is enqueued unless the
// owning controller's receive queue is already full, in which case it is
// dropped with a one-shot warning.
func (b *BusProtocolBuffer[TMessage, TController]) Deserialize(r Reader, simTime cosim.SimulationTime) cosim.Result {
	count, res := r.ReadUint32()
	if res != cosim.ResultOk {
		return res
	}
	for i := uint32(0); i < count; i++ {
		msg, res := b.codec.ReadMessage(r)
		if res != cosim.ResultOk {
			return res
		}

		b.mu.Lock()
		id := b.codec.MessageController(msg)
		c, fres := b.findController(id)
		if fres != cosim.ResultOk {
			b.mu.Unlock()
			return fres
		}

		if cb, ok := b.callbacks[id]; ok && cb != nil {
			b.mu.Unlock()
			cb(simTime, msg)
			continue
		}

		if c.receiveCount >= c.queueSize {
			if !c.receiveWarningSent {
				c.receiveWarningSent = true
				logging.L().Warn("receive queue full, dropping message", "controller_id", id)
			}
			b.mu.Unlock()
			continue
		}

		b.receiveBuffer.PushBack(msg)
		c.receiveCount++
		b.mu.Unlock()
	}
	return cosim.ResultOk
}
