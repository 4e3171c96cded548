// Package iobuffer implements the dirty-set/FIFO-coalescing IO signal value
// store exchanged between client and server each simulation step.
package iobuffer

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/logging"
	"github.com/dspace-group/veos-cosim/internal/metrics"
)

type signalSlot struct {
	info          cosim.IoSignal
	currentLength uint32
	data          []byte
	changed       bool
}

// IoBuffer holds the current value of every IO signal on both the read side
// (signals driven by the remote peer) and the write side (signals driven by
// local user code), and the FIFO of write-side signals dirtied since the
// last Serialize.
type IoBuffer struct {
	mu sync.Mutex

	readBuffers  map[cosim.IoSignalId]*signalSlot
	writeBuffers map[cosim.IoSignalId]*signalSlot

	changed []*signalSlot
}

// New builds an IoBuffer. readSignals are the signals this side receives
// (deserializes); writeSignals are the signals this side produces (serializes).
func New(readSignals, writeSignals []cosim.IoSignal) *IoBuffer {
	b := &IoBuffer{
		readBuffers:  make(map[cosim.IoSignalId]*signalSlot, len(readSignals)),
		writeBuffers: make(map[cosim.IoSignalId]*signalSlot, len(writeSignals)),
	}
	for _, s := range readSignals {
		b.readBuffers[s.ID] = newSlot(s)
	}
	for _, s := range writeSignals {
		b.writeBuffers[s.ID] = newSlot(s)
	}
	return b
}

func newSlot(info cosim.IoSignal) *signalSlot {
	s := &signalSlot{
		info: info,
		data: make([]byte, info.Length*elemSize(info)),
	}
	if info.SizeKind == cosim.SizeKindFixed {
		s.currentLength = info.Length
	}
	return s
}

func elemSize(info cosim.IoSignal) uint32 {
	size := info.DataType.Size()
	if size == 0 {
		return 1
	}
	return size
}

// ClearData resets every slot's length and dirty state without forgetting
// the signal catalog, and drops the pending FIFO.
func (b *IoBuffer) ClearData() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clearMap(b.readBuffers)
	clearMap(b.writeBuffers)
	b.changed = nil
}

func clearMap(m map[cosim.IoSignalId]*signalSlot) {
	for _, s := range m {
		if s.info.SizeKind == cosim.SizeKindFixed {
			s.currentLength = s.info.Length
		} else {
			s.currentLength = 0
		}
		s.changed = false
		for i := range s.data {
			s.data[i] = 0
		}
	}
}

// Read copies the current value of a read-side signal into dest, returning
// the number of valid elements written. An unwritten or just-cleared signal
// reads as Ok: a Fixed-size signal reads its full (zeroed) length, a
// Variable-size signal reads length 0. Empty is never returned here — it is
// reserved for bus-queue reads on an empty queue. Result is InvalidArgument
// if the id is unknown.
func (b *IoBuffer) Read(id cosim.IoSignalId, dest []byte) (length uint32, result cosim.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot, ok := b.readBuffers[id]
	if !ok {
		logging.L().Error("unknown read signal", "signal_id", id)
		return 0, cosim.ResultInvalidArgument
	}
	n := copy(dest, slot.data[:slot.currentLength*elemSize(slot.info)])
	return uint32(n) / maxU32(elemSize(slot.info), 1), cosim.ResultOk
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// Write stores a new value for a write-side signal, in elements of value,
// and marks it dirty (enqueued for the next Serialize) whenever the length
// or the bytes differ from what is currently stored — any difference counts
// as a change, including a pure length change.
func (b *IoBuffer) Write(id cosim.IoSignalId, length uint32, value []byte) cosim.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot, ok := b.writeBuffers[id]
	if !ok {
		logging.L().Error("unknown write signal", "signal_id", id)
		return cosim.ResultInvalidArgument
	}
	if slot.info.SizeKind == cosim.SizeKindFixed && length != slot.info.Length {
		logging.L().Error("length mismatch for fixed-size signal", "signal_id", id, "length", length)
		return cosim.ResultInvalidArgument
	}
	size := elemSize(slot.info)
	byteLen := int(length * size)
	isChange := slot.currentLength != length || !bytes.Equal(slot.data[:minInt(len(slot.data), byteLen)], value[:minInt(len(value), byteLen)])
	if byteLen > len(slot.data) {
		isChange = true
	}
	slot.currentLength = length
	if cap(slot.data) < byteLen {
		slot.data = make([]byte, byteLen)
	} else {
		slot.data = slot.data[:byteLen]
	}
	copy(slot.data, value[:byteLen])

	if isChange && !slot.changed {
		slot.changed = true
		b.changed = append(b.changed, slot)
		metrics.IncIoSignalChanged()
	}
	return cosim.ResultOk
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ChannelWriter is the minimal sink Serialize needs; satisfied by
// internal/wirechannel.Channel.
type ChannelWriter interface {
	WriteUint32(uint32) cosim.Result
	WriteUint32LenPrefixed(id uint32, length uint32, data []byte) cosim.Result
}

// Serialize drains the dirty FIFO, writing a count followed by each changed
// signal's id, byte length and bytes, then clears every drained slot's
// dirty flag.
func (b *IoBuffer) Serialize(w ChannelWriter) cosim.Result {
	b.mu.Lock()
	pending := b.changed
	b.changed = nil
	b.mu.Unlock()

	if res := w.WriteUint32(uint32(len(pending))); res != cosim.ResultOk {
		return res
	}
	for _, slot := range pending {
		slot.changed = false
		byteLen := slot.currentLength * elemSize(slot.info)
		if res := w.WriteUint32LenPrefixed(uint32(slot.info.ID), byteLen, slot.data[:byteLen]); res != cosim.ResultOk {
			return res
		}
	}
	return cosim.ResultOk
}

// ChannelReader is the minimal source Deserialize needs.
type ChannelReader interface {
	ReadUint32() (uint32, cosim.Result)
	ReadUint32LenPrefixed() (id uint32, length uint32, data []byte, result cosim.Result)
}

// Deserialize reads the count-prefixed signal-change list written by the
// peer's Serialize, updates read-side slots, and fires the
// IncomingSignalChangedCallback for each one if registered. The wire
// carries byte lengths; slots and the callback get lengths in elements.
func (b *IoBuffer) Deserialize(r ChannelReader, simTime cosim.SimulationTime, cb cosim.IncomingSignalChangedCallback) cosim.Result {
	count, res := r.ReadUint32()
	if res != cosim.ResultOk {
		return res
	}
	for i := uint32(0); i < count; i++ {
		id, length, data, res := r.ReadUint32LenPrefixed()
		if res != cosim.ResultOk {
			return res
		}
		b.mu.Lock()
		slot, ok := b.readBuffers[cosim.IoSignalId(id)]
		if !ok {
			b.mu.Unlock()
			logging.L().Error("received value for unknown signal", "signal_id", id)
			return cosim.ResultInvalidArgument
		}
		byteLen := len(data)
		length = uint32(byteLen) / maxU32(elemSize(slot.info), 1)
		slot.currentLength = length
		if cap(slot.data) < byteLen {
			slot.data = make([]byte, byteLen)
		} else {
			slot.data = slot.data[:byteLen]
		}
		copy(slot.data, data)
		info := slot.info
		b.mu.Unlock()

		if cb != nil {
			cb(simTime, info, length, data)
		}
	}
	return cosim.ResultOk
}

func (b *IoBuffer) String() string {
	return fmt.Sprintf("IoBuffer{reads: %d, writes: %d}", len(b.readBuffers), len(b.writeBuffers))
}
