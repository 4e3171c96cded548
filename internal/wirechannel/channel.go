// Package wirechannel implements the buffered byte channel that every
// higher-level protocol message is written through. Messages are written
// field by field into a bufio.Writer and flushed by EndWrite; no length
// prefix or frame header is put on the wire, so message boundaries follow
// only from each protocol message's own field layout. Writes are serialized
// by a mutex. It is grounded on original_source/src/Communication.h's
// Channel.
package wirechannel

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/logging"
)

// DefaultBufferSize matches the teacher's batched-writer buffer sizing.
const DefaultBufferSize = 64 * 1024

// Channel is a buffered byte channel over a connected net.Conn, with no
// frame length prefix. It
// is safe for one writer goroutine and one reader goroutine to use
// concurrently, but not for concurrent writers or concurrent readers.
type Channel struct {
	conn net.Conn

	readMu sync.Mutex
	r      *bufio.Reader

	writeMu sync.Mutex
	w       *bufio.Writer

	spinCount int
}

// New wraps conn in a Channel with the default buffer sizes.
func New(conn net.Conn) *Channel {
	return &Channel{
		conn: conn,
		r:    bufio.NewReaderSize(conn, DefaultBufferSize),
		w:    bufio.NewWriterSize(conn, DefaultBufferSize),
	}
}

// SetSpinCount stores the advisory VEOS_COSIM_SPIN_COUNT hint. Reads do not
// consult it: they always block, and there is no busy-poll.
func (c *Channel) SetSpinCount(n int) { c.spinCount = n }

// GetRemoteAddress returns the connection's remote address and port, when
// the underlying conn supports it (TCP or Unix).
func (c *Channel) GetRemoteAddress() (string, uint16) {
	addr := c.conn.RemoteAddr()
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String(), uint16(tcp.Port)
	}
	return addr.String(), 0
}

// Disconnect closes the underlying connection. Safe to call more than once.
func (c *Channel) Disconnect() error {
	return c.conn.Close()
}

// mapIOErr converts a low-level I/O error to the small Result set used
// throughout the core: a clean close or reset maps to Disconnected, anything
// else maps to Error.
func mapIOErr(err error) cosim.Result {
	if err == nil {
		return cosim.ResultOk
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return cosim.ResultDisconnected
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return cosim.ResultDisconnected
	}
	logging.L().Error("channel I/O error", "error", err)
	return cosim.ResultError
}

// WriteBytes writes raw bytes to the buffered writer without framing; the
// caller is responsible for any length prefix.
func (c *Channel) WriteBytes(data []byte) cosim.Result {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.w.Write(data); err != nil {
		return mapIOErr(err)
	}
	return cosim.ResultOk
}

// ReadBytes fills dest completely from the buffered reader.
func (c *Channel) ReadBytes(dest []byte) cosim.Result {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if _, err := io.ReadFull(c.r, dest); err != nil {
		return mapIOErr(err)
	}
	return cosim.ResultOk
}

// WriteUint32 writes one little-endian uint32.
func (c *Channel) WriteUint32(v uint32) cosim.Result {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return c.WriteBytes(b[:])
}

// ReadUint32 reads one little-endian uint32.
func (c *Channel) ReadUint32() (uint32, cosim.Result) {
	var b [4]byte
	if res := c.ReadBytes(b[:]); res != cosim.ResultOk {
		return 0, res
	}
	return binary.LittleEndian.Uint32(b[:]), cosim.ResultOk
}

// WriteUint64 writes one little-endian uint64.
func (c *Channel) WriteUint64(v uint64) cosim.Result {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return c.WriteBytes(b[:])
}

// ReadUint64 reads one little-endian uint64.
func (c *Channel) ReadUint64() (uint64, cosim.Result) {
	var b [8]byte
	if res := c.ReadBytes(b[:]); res != cosim.ResultOk {
		return 0, res
	}
	return binary.LittleEndian.Uint64(b[:]), cosim.ResultOk
}

// WriteString writes a uint32 length prefix followed by the string's bytes.
func (c *Channel) WriteString(s string) cosim.Result {
	if res := c.WriteUint32(uint32(len(s))); res != cosim.ResultOk {
		return res
	}
	return c.WriteBytes([]byte(s))
}

// ReadString reads a uint32-length-prefixed string.
func (c *Channel) ReadString() (string, cosim.Result) {
	n, res := c.ReadUint32()
	if res != cosim.ResultOk {
		return "", res
	}
	if n == 0 {
		return "", cosim.ResultOk
	}
	buf := make([]byte, n)
	if res := c.ReadBytes(buf); res != cosim.ResultOk {
		return "", res
	}
	return string(buf), cosim.ResultOk
}

// WriteUint32LenPrefixed writes an id, a length and exactly length bytes of
// data; this is the IO-signal and bus-message payload shape.
func (c *Channel) WriteUint32LenPrefixed(id uint32, length uint32, data []byte) cosim.Result {
	if res := c.WriteUint32(id); res != cosim.ResultOk {
		return res
	}
	if res := c.WriteUint32(length); res != cosim.ResultOk {
		return res
	}
	return c.WriteBytes(data)
}

// ReadUint32LenPrefixed reads the shape WriteUint32LenPrefixed wrote.
func (c *Channel) ReadUint32LenPrefixed() (id uint32, length uint32, data []byte, result cosim.Result) {
	id, res := c.ReadUint32()
	if res != cosim.ResultOk {
		return 0, 0, nil, res
	}
	length, res = c.ReadUint32()
	if res != cosim.ResultOk {
		return 0, 0, nil, res
	}
	data = make([]byte, length)
	if res := c.ReadBytes(data); res != cosim.ResultOk {
		return 0, 0, nil, res
	}
	return id, length, data, cosim.ResultOk
}

// EndWrite flushes the buffered writer, marking the end of one logical
// frame — the analogue of the original's Channel::EndWrite.
func (c *Channel) EndWrite() cosim.Result {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.w.Flush(); err != nil {
		return mapIOErr(err)
	}
	return cosim.ResultOk
}
