package busbuffer

import (
	"testing"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/go-test/deep"
)

// memChannel is a minimal in-memory Writer+Reader used only to exercise
// Serialize/Deserialize round trips in tests.
type memChannel struct {
	words []uint32
	pos   int
}

func (m *memChannel) WriteUint32(v uint32) cosim.Result {
	m.words = append(m.words, v)
	return cosim.ResultOk
}

func (m *memChannel) ReadUint32() (uint32, cosim.Result) {
	if m.pos >= len(m.words) {
		return 0, cosim.ResultEmpty
	}
	v := m.words[m.pos]
	m.pos++
	return v, cosim.ResultOk
}

func canCodecForTest() Codec[cosim.CanMessage, cosim.CanController] {
	write := func(w Writer, m cosim.CanMessage) cosim.Result {
		mc := w.(*memChannel)
		mc.WriteUint32(uint32(m.ControllerID))
		mc.WriteUint32(uint32(m.ID))
		mc.WriteUint32(m.Length)
		for i := uint32(0); i < m.Length; i++ {
			mc.WriteUint32(uint32(m.Data[i]))
		}
		return cosim.ResultOk
	}
	read := func(r Reader) (cosim.CanMessage, cosim.Result) {
		mc := r.(*memChannel)
		var m cosim.CanMessage
		cid, res := mc.ReadUint32()
		if res != cosim.ResultOk {
			return m, res
		}
		m.ControllerID = cosim.BusControllerId(cid)
		id, _ := mc.ReadUint32()
		m.ID = cosim.BusMessageId(id)
		length, _ := mc.ReadUint32()
		m.Length = length
		for i := uint32(0); i < length; i++ {
			b, _ := mc.ReadUint32()
			m.Data[i] = byte(b)
		}
		return m, cosim.ResultOk
	}
	return CanCodec(write, read)
}

func TestBusProtocolBufferTransmitSerializeRoundTrip(t *testing.T) {
	buf := NewBusProtocolBuffer(canCodecForTest())
	controllers := []cosim.CanController{{ID: 1, QueueSize: 2, Name: "CAN1"}}
	if res := buf.Initialize(controllers, nil); res != cosim.ResultOk {
		t.Fatalf("Initialize: %v", res)
	}

	msg := cosim.CanMessage{ControllerID: 1, ID: 42, Length: 3}
	msg.Data[0], msg.Data[1], msg.Data[2] = 1, 2, 3

	if res := buf.Transmit(msg); res != cosim.ResultOk {
		t.Fatalf("Transmit: %v", res)
	}

	ch := &memChannel{}
	if res := buf.Serialize(ch); res != cosim.ResultOk {
		t.Fatalf("Serialize: %v", res)
	}

	buf2 := NewBusProtocolBuffer(canCodecForTest())
	if res := buf2.Initialize(controllers, nil); res != cosim.ResultOk {
		t.Fatalf("Initialize buf2: %v", res)
	}
	if res := buf2.Deserialize(ch, 0); res != cosim.ResultOk {
		t.Fatalf("Deserialize: %v", res)
	}

	got, res := buf2.Receive()
	if res != cosim.ResultOk {
		t.Fatalf("Receive: %v", res)
	}
	if diff := deep.Equal(got, msg); diff != nil {
		t.Fatalf("round trip mismatch: %v", diff)
	}
}

func TestBusProtocolBufferTransmitFullReportsOnce(t *testing.T) {
	buf := NewBusProtocolBuffer(canCodecForTest())
	controllers := []cosim.CanController{{ID: 1, QueueSize: 1}}
	buf.Initialize(controllers, nil)

	msg := cosim.CanMessage{ControllerID: 1, ID: 1, Length: 1}
	if res := buf.Transmit(msg); res != cosim.ResultOk {
		t.Fatalf("first transmit: %v", res)
	}
	if res := buf.Transmit(msg); res != cosim.ResultFull {
		t.Fatalf("expected Full, got %v", res)
	}
}

func TestBusProtocolBufferReceiveEmptyWhenNoMessages(t *testing.T) {
	buf := NewBusProtocolBuffer(canCodecForTest())
	buf.Initialize([]cosim.CanController{{ID: 1, QueueSize: 1}}, nil)
	if _, res := buf.Receive(); res != cosim.ResultEmpty {
		t.Fatalf("expected Empty, got %v", res)
	}
}

func TestBusProtocolBufferDeserializeInvokesCallbackInsteadOfQueueing(t *testing.T) {
	var received []cosim.CanMessage
	callbacks := map[cosim.BusControllerId]Callback[cosim.CanMessage]{
		1: func(simTime cosim.SimulationTime, m cosim.CanMessage) {
			received = append(received, m)
		},
	}

	buf := NewBusProtocolBuffer(canCodecForTest())
	buf.Initialize([]cosim.CanController{{ID: 1, QueueSize: 1}}, callbacks)

	ch := &memChannel{}
	ch.WriteUint32(1) // one message follows
	ch.WriteUint32(1) // controller id
	ch.WriteUint32(7) // message id
	ch.WriteUint32(0) // length

	if res := buf.Deserialize(ch, 5); res != cosim.ResultOk {
		t.Fatalf("Deserialize: %v", res)
	}
	if len(received) != 1 || received[0].ID != 7 {
		t.Fatalf("expected callback invocation with id 7, got %+v", received)
	}
	if _, res := buf.Receive(); res != cosim.ResultEmpty {
		t.Fatalf("callback-routed message must not be enqueued, got %v", res)
	}
}

func TestBusProtocolBufferUnknownControllerIsInvalidArgument(t *testing.T) {
	buf := NewBusProtocolBuffer(canCodecForTest())
	buf.Initialize([]cosim.CanController{{ID: 1, QueueSize: 1}}, nil)

	msg := cosim.CanMessage{ControllerID: 99, ID: 1, Length: 0}
	if res := buf.Transmit(msg); res != cosim.ResultInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", res)
	}
}

func TestBusProtocolBufferDuplicateControllerIsError(t *testing.T) {
	buf := NewBusProtocolBuffer(canCodecForTest())
	controllers := []cosim.CanController{{ID: 1, QueueSize: 1}, {ID: 1, QueueSize: 1}}
	if res := buf.Initialize(controllers, nil); res != cosim.ResultError {
		t.Fatalf("expected Error for duplicate id, got %v", res)
	}
}
