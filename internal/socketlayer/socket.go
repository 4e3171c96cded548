// Package socketlayer wraps TCP and local (Unix domain socket) transport
// setup: listen/dial with TCP_NODELAY and SO_REUSEADDR tuning, and
// OS-chosen-port resolution. Grounded on
// original_source/src/Socket.h (AddressFamily, Bind/Connect/EnableNoDelay)
// and the teacher's server.go listener setup.
package socketlayer

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/logging"
)

// ConnectionKind selects between a remote-capable TCP transport and a
// same-host Unix domain socket transport.
type ConnectionKind = cosim.ConnectionKind

// dialTimeout bounds a single connect attempt, matching the original's
// short, fail-fast connection semantics (no reconnect loop in the core).
const dialTimeout = 5 * time.Second

var tcpControl = func(network, address string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		if serr := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); serr != nil {
			ctrlErr = serr
			return
		}
		if network == "tcp" || network == "tcp4" || network == "tcp6" {
			if serr := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); serr != nil {
				ctrlErr = serr
			}
		}
	})
	if err != nil {
		return err
	}
	return ctrlErr
}

// Listen opens a listener for the given connection kind. For Remote it
// binds TCP on the given port (0 to let the OS choose); enableRemoteAccess
// selects between binding "0.0.0.0" and "127.0.0.1". For Local it binds a
// Unix domain socket at the given path (port is ignored).
func Listen(kind ConnectionKind, port uint16, enableRemoteAccess bool, socketPath string) (net.Listener, uint16, error) {
	lc := net.ListenConfig{Control: tcpControl}

	if kind == cosim.ConnectionKindLocal {
		_ = os.Remove(socketPath)
		l, err := (&net.ListenConfig{}).Listen(context.Background(), "unix", socketPath)
		if err != nil {
			return nil, 0, fmt.Errorf("socketlayer: listen unix %s: %w", socketPath, err)
		}
		logging.L().Debug("socket listening", "addr", socketPath)
		return l, 0, nil
	}

	host := "127.0.0.1"
	if enableRemoteAccess {
		host = "0.0.0.0"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, 0, fmt.Errorf("socketlayer: listen tcp %s: %w", addr, err)
	}
	boundPort := uint16(l.Addr().(*net.TCPAddr).Port)
	logging.L().Debug("socket listening", "addr", addr, "bound_port", boundPort)
	return l, boundPort, nil
}

// Dial connects to a remote TCP endpoint, optionally binding a specific
// local port first (0 lets the OS choose).
func Dial(remoteIPAddress string, remotePort uint16, localPort uint16) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout: dialTimeout,
		Control: tcpControl,
	}
	if localPort != 0 {
		dialer.LocalAddr = &net.TCPAddr{Port: int(localPort)}
	}
	addr := net.JoinHostPort(remoteIPAddress, strconv.Itoa(int(remotePort)))
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("socketlayer: dial tcp %s: %w", addr, err)
	}
	return conn, nil
}

// DialLocal connects to a Unix domain socket at socketPath.
func DialLocal(socketPath string) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("socketlayer: dial unix %s: %w", socketPath, err)
	}
	return conn, nil
}

// LocalSocketPath returns the deterministic Unix domain socket path a
// server named serverName listens on for same-host clients, and that
// clients dial when they name that server without an explicit remote
// address or port.
func LocalSocketPath(serverName string) string {
	return filepath.Join(os.TempDir(), "veos-cosim-"+serverName+".sock")
}

// LocalPort returns the TCP port conn is bound to locally, or 0 for a
// non-TCP connection.
func LocalPort(conn net.Conn) uint16 {
	if tcp, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return 0
}
