package protocol

import (
	"github.com/dspace-group/veos-cosim/internal/busbuffer"
	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/wirechannel"
)

// WriteEthMessage serializes one EthMessage directly onto w.
func WriteEthMessage(w busbuffer.Writer, m cosim.EthMessage) cosim.Result {
	ch := w.(*wirechannel.Channel)
	if res := ch.WriteUint64(uint64(m.Timestamp)); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(uint32(m.ControllerID)); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(m.Reserved); res != cosim.ResultOk {
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

// ReadEthMessage deserializes one EthMessage from r.
func ReadEthMessage(r busbuffer.Reader) (cosim.EthMessage, cosim.Result) {
	var m cosim.EthMessage
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
	if m.Reserved, res = ch.ReadUint32(); res != cosim.ResultOk {
		return m, res
	}
	flags, res := ch.ReadUint32()
	if res != cosim.ResultOk {
		return m, res
	}
	m.Flags = cosim.EthMessageFlags(flags)
	if m.Length, res = ch.ReadUint32(); res != cosim.ResultOk {
		return m, res
	}
	if m.Length > cosim.EthMessageMaxLength {
		return m, cosim.ResultError
	}
	if res := ch.ReadBytes(m.Data[:m.Length]); res != cosim.ResultOk {
		return m, res
	}
	return m, cosim.ResultOk
}

// WriteLinMessage serializes one LinMessage directly onto w.
func WriteLinMessage(w busbuffer.Writer, m cosim.LinMessage) cosim.Result {
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

// ReadLinMessage deserializes one LinMessage from r.
func ReadLinMessage(r busbuffer.Reader) (cosim.LinMessage, cosim.Result) {
	var m cosim.LinMessage
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
	m.Flags = cosim.LinMessageFlags(flags)
	if m.Length, res = ch.ReadUint32(); res != cosim.ResultOk {
		return m, res
	}
	if m.Length > cosim.LinMessageMaxLength {
		return m, cosim.ResultError
	}
	if res := ch.ReadBytes(m.Data[:m.Length]); res != cosim.ResultOk {
		return m, res
	}
	return m, cosim.ResultOk
}

// WriteFrMessage serializes one FrMessage directly onto w.
func WriteFrMessage(w busbuffer.Writer, m cosim.FrMessage) cosim.Result {
	ch := w.(*wirechannel.Channel)
	if res := ch.WriteUint64(uint64(m.Timestamp)); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(uint32(m.ControllerID)); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(m.SlotID); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(uint32(m.Cycle)); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(m.Flags); res != cosim.ResultOk {
		return res
	}
	if res := ch.WriteUint32(m.Length); res != cosim.ResultOk {
		return res
	}
	return ch.WriteBytes(m.Data[:m.Length])
}

// ReadFrMessage deserializes one FrMessage from r.
func ReadFrMessage(r busbuffer.Reader) (cosim.FrMessage, cosim.Result) {
	var m cosim.FrMessage
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
	if m.SlotID, res = ch.ReadUint32(); res != cosim.ResultOk {
		return m, res
	}
	cycle, res := ch.ReadUint32()
	if res != cosim.ResultOk {
		return m, res
	}
	m.Cycle = uint8(cycle)
	if m.Flags, res = ch.ReadUint32(); res != cosim.ResultOk {
		return m, res
	}
	if m.Length, res = ch.ReadUint32(); res != cosim.ResultOk {
		return m, res
	}
	if m.Length > cosim.FrMessageMaxLength {
		return m, cosim.ResultError
	}
	if res := ch.ReadBytes(m.Data[:m.Length]); res != cosim.ResultOk {
		return m, res
	}
	return m, cosim.ResultOk
}

// NewBusBuffer builds a busbuffer.BusBuffer wired to this package's wire
// codecs for all four bus kinds.
func NewBusBuffer() *busbuffer.BusBuffer {
	return busbuffer.New(
		busbuffer.CanCodec(WriteCanMessage, ReadCanMessage),
		busbuffer.EthCodec(WriteEthMessage, ReadEthMessage),
		busbuffer.LinCodec(WriteLinMessage, ReadLinMessage),
		busbuffer.FrCodec(WriteFrMessage, ReadFrMessage),
	)
}
