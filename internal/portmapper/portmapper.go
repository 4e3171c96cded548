// Package portmapper implements the co-sim port registry: a small TCP
// service mapping a server name to the TCP port it is currently listening
// on, plus the short-lived RPC client used to query/update it. Grounded on
// original_source/src/PortMapper.cpp/.h, with the registry's mutex-guarded
// map idiom adapted from the teacher's internal/hub.
package portmapper

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/dspace-group/veos-cosim/internal/cosim"
	"github.com/dspace-group/veos-cosim/internal/logging"
	"github.com/dspace-group/veos-cosim/internal/metrics"
	"github.com/dspace-group/veos-cosim/internal/protocol"
	"github.com/dspace-group/veos-cosim/internal/wirechannel"
)

// DefaultPort is the port mapper's well-known TCP port, overridable by
// VEOS_COSIM_PORTMAPPER_PORT.
const DefaultPort uint16 = 27027

// clientTimeout bounds one request/response round trip to the registry.
const clientTimeout = time.Second

// Port resolves the effective port-mapper port: VEOS_COSIM_PORTMAPPER_PORT
// if set and valid, else DefaultPort.
func Port() uint16 {
	if v := os.Getenv("VEOS_COSIM_PORTMAPPER_PORT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil && n > 0 {
			return uint16(n)
		}
		logging.L().Warn("ignoring invalid VEOS_COSIM_PORTMAPPER_PORT", "value", v)
	}
	return DefaultPort
}

func verboseEnv(name string) bool {
	v := os.Getenv(name)
	return v == "1" || v == "true" || v == "TRUE"
}

// ServerVerbose reports whether VEOS_COSIM_PORTMAPPER_SERVER_VERBOSE is set.
func ServerVerbose() bool { return verboseEnv("VEOS_COSIM_PORTMAPPER_SERVER_VERBOSE") }

// ClientVerbose reports whether VEOS_COSIM_PORTMAPPER_CLIENT_VERBOSE is set.
func ClientVerbose() bool { return verboseEnv("VEOS_COSIM_PORTMAPPER_CLIENT_VERBOSE") }

// Registry is the port-mapper's in-memory name -> port map.
type Registry struct {
	mu    sync.RWMutex
	ports map[string]uint16
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ports: make(map[string]uint16)}
}

// Set registers name -> port, overwriting any previous entry.
func (r *Registry) Set(name string, port uint16) {
	r.mu.Lock()
	r.ports[name] = port
	size := len(r.ports)
	r.mu.Unlock()
	metrics.SetPortMapperRegistrySize(size)
	if ServerVerbose() {
		logging.L().Debug("portmapper set", "name", name, "port", port)
	}
}

// Unset removes name's entry, if any.
func (r *Registry) Unset(name string) {
	r.mu.Lock()
	delete(r.ports, name)
	size := len(r.ports)
	r.mu.Unlock()
	metrics.SetPortMapperRegistrySize(size)
	if ServerVerbose() {
		logging.L().Debug("portmapper unset", "name", name)
	}
}

// Get returns name's registered port, and whether it was found.
func (r *Registry) Get(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	port, ok := r.ports[name]
	if ServerVerbose() {
		logging.L().Debug("portmapper get", "name", name, "port", port, "found", ok)
	}
	return port, ok
}

// Size reports the current number of registered entries (exposed as a gauge
// by internal/metrics).
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ports)
}

// Server accepts connections and dispatches GetPort/SetPort/UnsetPort
// requests against a Registry.
type Server struct {
	registry *Registry
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer starts listening on the given port-mapper port
// (enableRemoteAccess selects 0.0.0.0 vs 127.0.0.1).
func NewServer(registry *Registry, port uint16, enableRemoteAccess bool) (*Server, error) {
	host := "127.0.0.1"
	if enableRemoteAccess {
		host = "0.0.0.0"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("portmapper: listen %s: %w", addr, err)
	}
	return &Server{registry: registry, listener: l}, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until the listener is closed, handling each on
// its own goroutine; a handled connection is always short-lived (one
// request/response).
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.wg.Wait()
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// Stop closes the listener, causing Serve to return once in-flight
// connections finish.
func (s *Server) Stop() error { return s.listener.Close() }

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(clientTimeout))

	ch := wirechannel.New(conn)
	proto, err := protocol.New(ch, protocol.LatestVersion)
	if err != nil {
		logging.L().Error("portmapper: protocol init failed", "error", err)
		return
	}

	kind, res := proto.ReceiveHeader()
	if res != cosim.ResultOk {
		return
	}

	switch kind {
	case protocol.FrameKindGetPort:
		name, res := proto.ReadGetPort()
		if res != cosim.ResultOk {
			return
		}
		port, ok := s.registry.Get(name)
		if !ok {
			proto.SendError(fmt.Sprintf("no entry for %q", name))
			return
		}
		proto.SendGetPortOk(port)
	case protocol.FrameKindSetPort:
		name, port, res := proto.ReadSetPort()
		if res != cosim.ResultOk {
			return
		}
		s.registry.Set(name, port)
		proto.SendOk()
	case protocol.FrameKindUnsetPort:
		name, res := proto.ReadUnsetPort()
		if res != cosim.ResultOk {
			return
		}
		s.registry.Unset(name)
		proto.SendOk()
	default:
		logging.L().Error("portmapper: unexpected frame kind", "kind", kind)
		proto.SendError(fmt.Sprintf("unexpected frame kind %v", kind))
	}
}

// dial opens a short-lived connection to the port mapper at ipAddress,
// retrying with bounded exponential backoff — the mapper is a local
// side-channel RPC, so a couple of quick retries cover the daemon not
// having started yet, rather than failing the caller's first attempt.
func dial(ipAddress string, port uint16) (net.Conn, error) {
	addr := net.JoinHostPort(ipAddress, strconv.Itoa(int(port)))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = clientTimeout

	var conn net.Conn
	err := backoff.Retry(func() error {
		c, err := net.DialTimeout("tcp", addr, clientTimeout)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, b)
	if err != nil {
		return nil, fmt.Errorf("portmapper: dial %s: %w", addr, err)
	}
	return conn, nil
}

// GetPort asks the port mapper at ipAddress for the port registered under
// name.
func GetPort(ipAddress string, name string) (uint16, cosim.Result) {
	conn, err := dial(ipAddress, Port())
	if err != nil {
		logging.L().Error("portmapper client dial failed", "error", err)
		return 0, cosim.ResultError
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(clientTimeout))

	ch := wirechannel.New(conn)
	proto, perr := protocol.New(ch, protocol.LatestVersion)
	if perr != nil {
		return 0, cosim.ResultError
	}

	if res := proto.SendGetPort(name); res != cosim.ResultOk {
		return 0, res
	}
	kind, res := proto.ReceiveHeader()
	if res != cosim.ResultOk {
		return 0, res
	}
	switch kind {
	case protocol.FrameKindGetPortOk:
		return proto.ReadGetPortOk()
	case protocol.FrameKindError:
		msg, _ := proto.ReadError()
		if ClientVerbose() {
			logging.L().Debug("portmapper GetPort error", "name", name, "message", msg)
		}
		return 0, cosim.ResultError
	default:
		logging.L().Error("portmapper GetPort: unexpected frame kind", "kind", kind)
		return 0, cosim.ResultError
	}
}

// SetPort registers name -> port with the local port mapper.
func SetPort(name string, port uint16) cosim.Result {
	return simpleRequest(func(p *protocol.Protocol) cosim.Result {
		return p.SendSetPort(name, port)
	})
}

// UnsetPort removes name's registration from the local port mapper.
func UnsetPort(name string) cosim.Result {
	return simpleRequest(func(p *protocol.Protocol) cosim.Result {
		return p.SendUnsetPort(name)
	})
}

func simpleRequest(send func(*protocol.Protocol) cosim.Result) cosim.Result {
	conn, err := dial("127.0.0.1", Port())
	if err != nil {
		logging.L().Error("portmapper client dial failed", "error", err)
		return cosim.ResultError
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(clientTimeout))

	ch := wirechannel.New(conn)
	proto, perr := protocol.New(ch, protocol.LatestVersion)
	if perr != nil {
		return cosim.ResultError
	}

	if res := send(proto); res != cosim.ResultOk {
		return res
	}
	kind, res := proto.ReceiveHeader()
	if res != cosim.ResultOk {
		return res
	}
	switch kind {
	case protocol.FrameKindOk:
		return cosim.ResultOk
	case protocol.FrameKindError:
		msg, _ := proto.ReadError()
		if ClientVerbose() {
			logging.L().Debug("portmapper request error", "message", msg)
		}
		return cosim.ResultError
	default:
		logging.L().Error("portmapper: unexpected frame kind", "kind", kind)
		return cosim.ResultError
	}
}
