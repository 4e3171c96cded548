package busbuffer

import "github.com/dspace-group/veos-cosim/internal/cosim"

// canMessageMaxClassicLength is the classic-CAN payload ceiling; beyond this
// the message must be flagged FlexibleDataRateFormat (CAN FD).
const canMessageMaxClassicLength = 8

// validateCanMessage enforces spec's CAN boundary rules: length must not
// exceed CanMessageMaxLength; a payload over the classic-CAN ceiling
// requires FlexibleDataRateFormat; BitRateSwitch requires
// FlexibleDataRateFormat.
func validateCanMessage(m cosim.CanMessage) cosim.Result {
	if m.Length > cosim.CanMessageMaxLength {
		return cosim.ResultInvalidArgument
	}
	fdf := m.Flags.Has(cosim.CanMessageFlagFlexibleDataRateFormat)
	if m.Length > canMessageMaxClassicLength && !fdf {
		return cosim.ResultInvalidArgument
	}
	if m.Flags.Has(cosim.CanMessageFlagBitRateSwitch) && !fdf {
		return cosim.ResultInvalidArgument
	}
	return cosim.ResultOk
}

// CanCodec is the Codec for CanMessage/CanController; WriteMessage/ReadMessage
// are filled in by the caller (internal/protocol owns the wire format).
func CanCodec(write func(Writer, cosim.CanMessage) cosim.Result, read func(Reader) (cosim.CanMessage, cosim.Result)) Codec[cosim.CanMessage, cosim.CanController] {
	return Codec[cosim.CanMessage, cosim.CanController]{
		ControllerID:      func(c cosim.CanController) cosim.BusControllerId { return c.ID },
		ControllerQueue:   func(c cosim.CanController) uint32 { return c.QueueSize },
		MessageController: func(m cosim.CanMessage) cosim.BusControllerId { return m.ControllerID },
		WriteMessage:      write,
		ReadMessage:       read,
		Validate:          validateCanMessage,
	}
}

// EthCodec is the Codec for EthMessage/EthController.
func EthCodec(write func(Writer, cosim.EthMessage) cosim.Result, read func(Reader) (cosim.EthMessage, cosim.Result)) Codec[cosim.EthMessage, cosim.EthController] {
	return Codec[cosim.EthMessage, cosim.EthController]{
		ControllerID:      func(c cosim.EthController) cosim.BusControllerId { return c.ID },
		ControllerQueue:   func(c cosim.EthController) uint32 { return c.QueueSize },
		MessageController: func(m cosim.EthMessage) cosim.BusControllerId { return m.ControllerID },
		WriteMessage:      write,
		ReadMessage:       read,
		Validate: func(m cosim.EthMessage) cosim.Result {
			if m.Length > cosim.EthMessageMaxLength {
				return cosim.ResultInvalidArgument
			}
			return cosim.ResultOk
		},
	}
}

// LinCodec is the Codec for LinMessage/LinController.
func LinCodec(write func(Writer, cosim.LinMessage) cosim.Result, read func(Reader) (cosim.LinMessage, cosim.Result)) Codec[cosim.LinMessage, cosim.LinController] {
	return Codec[cosim.LinMessage, cosim.LinController]{
		ControllerID:      func(c cosim.LinController) cosim.BusControllerId { return c.ID },
		ControllerQueue:   func(c cosim.LinController) uint32 { return c.QueueSize },
		MessageController: func(m cosim.LinMessage) cosim.BusControllerId { return m.ControllerID },
		WriteMessage:      write,
		ReadMessage:       read,
		Validate: func(m cosim.LinMessage) cosim.Result {
			if m.Length > cosim.LinMessageMaxLength {
				return cosim.ResultInvalidArgument
			}
			return cosim.ResultOk
		},
	}
}

// FrCodec is the Codec for FrMessage/FrController.
func FrCodec(write func(Writer, cosim.FrMessage) cosim.Result, read func(Reader) (cosim.FrMessage, cosim.Result)) Codec[cosim.FrMessage, cosim.FrController] {
	return Codec[cosim.FrMessage, cosim.FrController]{
		ControllerID:      func(c cosim.FrController) cosim.BusControllerId { return c.ID },
		ControllerQueue:   func(c cosim.FrController) uint32 { return c.QueueSize },
		MessageController: func(m cosim.FrMessage) cosim.BusControllerId { return m.ControllerID },
		WriteMessage:      write,
		ReadMessage:       read,
		Validate: func(m cosim.FrMessage) cosim.Result {
			if m.Length > cosim.FrMessageMaxLength {
				return cosim.ResultInvalidArgument
			}
			return cosim.ResultOk
		},
	}
}

// BusBuffer aggregates the four bus-kind protocol buffers used by a single
// co-sim session.
type BusBuffer struct {
	Can *BusProtocolBuffer[cosim.CanMessage, cosim.CanController]
	Eth *BusProtocolBuffer[cosim.EthMessage, cosim.EthController]
	Lin *BusProtocolBuffer[cosim.LinMessage, cosim.LinController]
	Fr  *BusProtocolBuffer[cosim.FrMessage, cosim.FrController]
}

// New builds the four per-kind buffers from their codecs (owned by
// internal/protocol, which knows the wire format for each message kind).
func New(
	canCodec Codec[cosim.CanMessage, cosim.CanController],
	ethCodec Codec[cosim.EthMessage, cosim.EthController],
	linCodec Codec[cosim.LinMessage, cosim.LinController],
	frCodec Codec[cosim.FrMessage, cosim.FrController],
) *BusBuffer {
	return &BusBuffer{
		Can: NewBusProtocolBuffer(canCodec),
		Eth: NewBusProtocolBuffer(ethCodec),
		Lin: NewBusProtocolBuffer(linCodec),
		Fr:  NewBusProtocolBuffer(frCodec),
	}
}

// Initialize wires every controller list into its matching per-kind buffer.
func (b *BusBuffer) Initialize(
	canControllers []cosim.CanController, canCallbacks map[cosim.BusControllerId]Callback[cosim.CanMessage],
	ethControllers []cosim.EthController, ethCallbacks map[cosim.BusControllerId]Callback[cosim.EthMessage],
	linControllers []cosim.LinController, linCallbacks map[cosim.BusControllerId]Callback[cosim.LinMessage],
	frControllers []cosim.FrController, frCallbacks map[cosim.BusControllerId]Callback[cosim.FrMessage],
) cosim.Result {
	if res := b.Can.Initialize(canControllers, canCallbacks); res != cosim.ResultOk {
		return res
	}
	if res := b.Eth.Initialize(ethControllers, ethCallbacks); res != cosim.ResultOk {
		return res
	}
	if res := b.Lin.Initialize(linControllers, linCallbacks); res != cosim.ResultOk {
		return res
	}
	if res := b.Fr.Initialize(frControllers, frCallbacks); res != cosim.ResultOk {
		return res
	}
	return cosim.ResultOk
}

// ClearData clears all four per-kind buffers.
func (b *BusBuffer) ClearData() {
	b.Can.ClearData()
	b.Eth.ClearData()
	b.Lin.ClearData()
	b.Fr.ClearData()
}

// Serialize writes all four per-kind buffers to w in Can, Eth, Lin, Fr order.
func (b *BusBuffer) Serialize(w Writer) cosim.Result {
	if res := b.Can.Serialize(w); res != cosim.ResultOk {
		return res
	}
	if res := b.Eth.Serialize(w); res != cosim.ResultOk {
		return res
	}
	if res := b.Lin.Serialize(w); res != cosim.ResultOk {
		return res
	}
	return b.Fr.Serialize(w)
}

// Deserialize reads all four per-kind buffers from r in Can, Eth, Lin, Fr order.
func (b *BusBuffer) Deserialize(r Reader, simTime cosim.SimulationTime) cosim.Result {
	if res := b.Can.Deserialize(r, simTime); res != cosim.ResultOk {
		return res
	}
	if res := b.Eth.Deserialize(r, simTime); res != cosim.ResultOk {
		return res
	}
	if res := b.Lin.Deserialize(r, simTime); res != cosim.ResultOk {
		return res
	}
	return b.Fr.Deserialize(r, simTime)
}
