package iobuffer

import (
	"testing"

	"github.com/dspace-group/veos-cosim/internal/cosim"
)

func fixedSignal(id cosim.IoSignalId, length uint32) cosim.IoSignal {
	return cosim.IoSignal{ID: id, Length: length, DataType: cosim.DataTypeUInt8, SizeKind: cosim.SizeKindFixed, Name: "fixed"}
}

func variableSignal(id cosim.IoSignalId, maxLength uint32) cosim.IoSignal {
	return cosim.IoSignal{ID: id, Length: maxLength, DataType: cosim.DataTypeUInt8, SizeKind: cosim.SizeKindVariable, Name: "variable"}
}

func TestInitialDataOfFixedSizedSignal(t *testing.T) {
	b := New([]cosim.IoSignal{fixedSignal(1, 4)}, nil)

	dest := make([]byte, 4)
	length, res := b.Read(1, dest)
	if res != cosim.ResultOk {
		t.Fatalf("Read: %v", res)
	}
	if length != 4 {
		t.Fatalf("expected full-length read of 4, got %d", length)
	}
	for i, v := range dest {
		if v != 0 {
			t.Fatalf("expected zeroed bytes, dest[%d]=%d", i, v)
		}
	}
}

func TestInitialDataOfVariableSizedSignal(t *testing.T) {
	b := New([]cosim.IoSignal{variableSignal(1, 8)}, nil)

	dest := make([]byte, 8)
	length, res := b.Read(1, dest)
	if res != cosim.ResultOk {
		t.Fatalf("Read: %v", res)
	}
	if length != 0 {
		t.Fatalf("expected length 0 for an unwritten variable signal, got %d", length)
	}
}

func TestReadUnknownSignalIsInvalidArgument(t *testing.T) {
	b := New([]cosim.IoSignal{fixedSignal(1, 4)}, nil)
	if _, res := b.Read(99, make([]byte, 4)); res != cosim.ResultInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", res)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(nil, []cosim.IoSignal{variableSignal(1, 8)})

	if res := b.Write(1, 3, []byte{1, 2, 3}); res != cosim.ResultOk {
		t.Fatalf("Write: %v", res)
	}

	ch := &memChannel{}
	if res := b.Serialize(ch); res != cosim.ResultOk {
		t.Fatalf("Serialize: %v", res)
	}

	other := New([]cosim.IoSignal{variableSignal(1, 8)}, nil)
	if res := other.Deserialize(ch, 0, nil); res != cosim.ResultOk {
		t.Fatalf("Deserialize: %v", res)
	}

	dest := make([]byte, 8)
	length, res := other.Read(1, dest)
	if res != cosim.ResultOk {
		t.Fatalf("Read: %v", res)
	}
	if length != 3 {
		t.Fatalf("expected length 3, got %d", length)
	}
	if dest[0] != 1 || dest[1] != 2 || dest[2] != 3 {
		t.Fatalf("round trip mismatch: %v", dest[:3])
	}
}

func TestWriteFixedLengthMismatchIsInvalidArgument(t *testing.T) {
	b := New(nil, []cosim.IoSignal{fixedSignal(1, 4)})
	if res := b.Write(1, 2, []byte{1, 2}); res != cosim.ResultInvalidArgument {
		t.Fatalf("expected InvalidArgument for a length mismatch on a Fixed signal, got %v", res)
	}
}

func TestWriteUnknownSignalIsInvalidArgument(t *testing.T) {
	b := New(nil, []cosim.IoSignal{fixedSignal(1, 4)})
	if res := b.Write(99, 4, make([]byte, 4)); res != cosim.ResultInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", res)
	}
}

// TestCoalescedWritesSerializeOnce verifies the dirty-set FIFO coalesces
// repeated writes to the same signal between two Serialize calls into a
// single entry, rather than growing without bound.
func TestCoalescedWritesSerializeOnce(t *testing.T) {
	b := New(nil, []cosim.IoSignal{fixedSignal(1, 2)})

	if res := b.Write(1, 2, []byte{1, 1}); res != cosim.ResultOk {
		t.Fatalf("first write: %v", res)
	}
	if res := b.Write(1, 2, []byte{2, 2}); res != cosim.ResultOk {
		t.Fatalf("second write: %v", res)
	}
	if res := b.Write(1, 2, []byte{3, 3}); res != cosim.ResultOk {
		t.Fatalf("third write: %v", res)
	}

	ch := &memChannel{}
	if res := b.Serialize(ch); res != cosim.ResultOk {
		t.Fatalf("Serialize: %v", res)
	}
	if ch.entries != 1 {
		t.Fatalf("expected exactly one coalesced entry, got %d", ch.entries)
	}

	// A second Serialize with no intervening write must report zero changes.
	ch2 := &memChannel{}
	if res := b.Serialize(ch2); res != cosim.ResultOk {
		t.Fatalf("Serialize (no changes): %v", res)
	}
	if ch2.entries != 0 {
		t.Fatalf("expected zero entries with nothing dirtied, got %d", ch2.entries)
	}
}

func TestWriteWithoutValueChangeDoesNotReenqueue(t *testing.T) {
	b := New(nil, []cosim.IoSignal{fixedSignal(1, 2)})

	b.Write(1, 2, []byte{5, 5})
	ch := &memChannel{}
	b.Serialize(ch)
	if ch.entries != 1 {
		t.Fatalf("expected one entry for the initial write, got %d", ch.entries)
	}

	// Re-writing the identical value must not dirty the signal again.
	b.Write(1, 2, []byte{5, 5})
	ch2 := &memChannel{}
	b.Serialize(ch2)
	if ch2.entries != 0 {
		t.Fatalf("expected no entry for an unchanged rewrite, got %d", ch2.entries)
	}
}

func TestClearDataResetsFixedAndVariableSignals(t *testing.T) {
	b := New([]cosim.IoSignal{fixedSignal(1, 4), variableSignal(2, 4)}, []cosim.IoSignal{fixedSignal(3, 4)})

	// Populate both read-side signals with nonzero data via Deserialize, and
	// dirty the write-side signal, before clearing.
	ch := &memChannel{}
	ch.WriteUint32(2)
	ch.WriteUint32(1)
	ch.WriteUint32(4)
	ch.WriteBytes([]byte{9, 9, 9, 9})
	ch.WriteUint32(2)
	ch.WriteUint32(2)
	ch.WriteBytes([]byte{9, 9})
	if res := b.Deserialize(ch, 0, nil); res != cosim.ResultOk {
		t.Fatalf("Deserialize: %v", res)
	}
	b.Write(3, 4, []byte{1, 2, 3, 4})

	b.ClearData()

	dest := make([]byte, 4)
	length, res := b.Read(1, dest)
	if res != cosim.ResultOk || length != 4 {
		t.Fatalf("expected Ok/length=4 for cleared Fixed signal, got length=%d res=%v", length, res)
	}
	for i, v := range dest[:4] {
		if v != 0 {
			t.Fatalf("expected cleared Fixed signal bytes to be zero, dest[%d]=%d", i, v)
		}
	}

	length, res = b.Read(2, dest)
	if res != cosim.ResultOk || length != 0 {
		t.Fatalf("expected Ok/length=0 for cleared Variable signal, got length=%d res=%v", length, res)
	}

	ch2 := &memChannel{}
	if res := b.Serialize(ch2); res != cosim.ResultOk {
		t.Fatalf("Serialize: %v", res)
	}
	if ch2.entries != 0 {
		t.Fatalf("expected ClearData to drop the pending FIFO, got %d entries", ch2.entries)
	}
}

func TestDeserializeInvokesChangedCallback(t *testing.T) {
	b := New([]cosim.IoSignal{variableSignal(1, 4)}, nil)

	ch := &memChannel{}
	ch.WriteUint32(1) // one signal change follows
	ch.WriteUint32(1) // signal id
	ch.WriteUint32(2) // length
	ch.WriteBytes([]byte{7, 8})

	var gotID cosim.IoSignalId
	var gotLength uint32
	if res := b.Deserialize(ch, 0, func(simTime cosim.SimulationTime, info cosim.IoSignal, length uint32, data []byte) {
		gotID = info.ID
		gotLength = length
	}); res != cosim.ResultOk {
		t.Fatalf("Deserialize: %v", res)
	}
	if gotID != 1 || gotLength != 2 {
		t.Fatalf("callback not invoked with expected signal/length, got id=%d length=%d", gotID, gotLength)
	}

	dest := make([]byte, 4)
	length, res := b.Read(1, dest)
	if res != cosim.ResultOk || length != 2 || dest[0] != 7 || dest[1] != 8 {
		t.Fatalf("Read after Deserialize: length=%d res=%v dest=%v", length, res, dest[:2])
	}
}

func TestDeserializeUnknownSignalIsInvalidArgument(t *testing.T) {
	b := New([]cosim.IoSignal{variableSignal(1, 4)}, nil)

	ch := &memChannel{}
	ch.WriteUint32(1)
	ch.WriteUint32(99)
	ch.WriteUint32(0)

	if res := b.Deserialize(ch, 0, nil); res != cosim.ResultInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", res)
	}
}

// memChannel is a minimal in-memory ChannelWriter+ChannelReader used only to
// exercise Serialize/Deserialize round trips in tests.
type memChannel struct {
	words   []uint32
	pos     int
	entries int
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

func (m *memChannel) WriteBytes(data []byte) {
	for _, b := range data {
		m.words = append(m.words, uint32(b))
	}
}

func (m *memChannel) WriteUint32LenPrefixed(id uint32, length uint32, data []byte) cosim.Result {
	m.WriteUint32(id)
	m.WriteUint32(length)
	for _, b := range data {
		m.WriteUint32(uint32(b))
	}
	m.entries++
	return cosim.ResultOk
}

func (m *memChannel) ReadUint32LenPrefixed() (id uint32, length uint32, data []byte, result cosim.Result) {
	id, res := m.ReadUint32()
	if res != cosim.ResultOk {
		return 0, 0, nil, res
	}
	length, res = m.ReadUint32()
	if res != cosim.ResultOk {
		return 0, 0, nil, res
	}
	data = make([]byte, length)
	for i := range data {
		v, res := m.ReadUint32()
		if res != cosim.ResultOk {
			return 0, 0, nil, res
		}
		data[i] = byte(v)
	}
	return id, length, data, cosim.ResultOk
}
