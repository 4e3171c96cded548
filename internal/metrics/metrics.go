// Package metrics exposes Prometheus counters and gauges for the co-sim
// core. Adapted from the teacher's internal/metrics (same StartHTTP shape,
// local atomic-mirrored Snap(), IncError(label), InitBuildInfo
// pre-registration), renamed from CAN-relay-specific series to co-sim
// session series: per-bus-kind tx/rx counters, IO dirty-signal activity,
// step/ping round-trip histograms, session and port-mapper registry gauges.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dspace-group/veos-cosim/internal/logging"
)

// Prometheus counters
var (
	StepsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cosim_steps_completed_total",
		Help: "Total simulation steps completed (StepOk replies observed).",
	})
	StepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cosim_step_duration_seconds",
		Help:    "Wall-clock time spent waiting for a step's StepOk reply.",
		Buckets: prometheus.DefBuckets,
	})
	PingRoundTrip = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cosim_ping_round_trip_seconds",
		Help:    "Wall-clock time spent waiting for a Ping's PingOk reply.",
		Buckets: prometheus.DefBuckets,
	})
	IoSignalsChanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cosim_io_signals_changed_total",
		Help: "Total IO signal writes coalesced into the changed-signal queue.",
	})
	BusMessagesTransmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cosim_bus_messages_transmitted_total",
		Help: "Total bus messages enqueued for transmission, by bus kind.",
	}, []string{"bus"})
	BusMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cosim_bus_messages_received_total",
		Help: "Total bus messages decoded on the receive side, by bus kind.",
	}, []string{"bus"})
	BusQueueFull = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cosim_bus_queue_full_total",
		Help: "Total times a bus controller queue reported Full, by bus kind and direction.",
	}, []string{"bus", "direction"})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cosim_active_sessions",
		Help: "Current number of connected client sessions.",
	})
	SimulationStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cosim_simulation_state",
		Help: "Current SimulationState enum value (Unloaded=0, Stopped=1, Running=2, Paused=3, Terminated=4).",
	})
	PortMapperRegistrySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cosim_portmapper_registry_size",
		Help: "Current number of name-to-port entries held by the port mapper registry.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cosim_build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cosim_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrConnect     = "connect"
	ErrHandshake   = "handshake"
	ErrStep        = "step"
	ErrPing        = "ping"
	ErrSerialize   = "serialize"
	ErrDeserialize = "deserialize"
	ErrPortMapper  = "portmapper"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localSteps     uint64
	localIoChanges uint64
	localBusTx     uint64
	localBusRx     uint64
	localBusFull   uint64
	localErrors    uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Steps     uint64
	IoChanges uint64
	BusTx     uint64
	BusRx     uint64
	BusFull   uint64
	Errors    uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		Steps:     atomic.LoadUint64(&localSteps),
		IoChanges: atomic.LoadUint64(&localIoChanges),
		BusTx:     atomic.LoadUint64(&localBusTx),
		BusRx:     atomic.LoadUint64(&localBusRx),
		BusFull:   atomic.LoadUint64(&localBusFull),
		Errors:    atomic.LoadUint64(&localErrors),
	}
}

// Wrapper helpers to keep call sites simple.
func IncStep() {
	StepsCompleted.Inc()
	atomic.AddUint64(&localSteps, 1)
}

// IncIoSignalChanged increments the coalesced-signal-write counter.
func IncIoSignalChanged() {
	IoSignalsChanged.Inc()
	atomic.AddUint64(&localIoChanges, 1)
}

// IncBusTransmit increments the per-kind transmit counter ("can"/"eth"/"lin"/"fr").
func IncBusTransmit(bus string) {
	BusMessagesTransmitted.WithLabelValues(bus).Inc()
	atomic.AddUint64(&localBusTx, 1)
}

// IncBusReceive increments the per-kind receive counter.
func IncBusReceive(bus string) {
	BusMessagesReceived.WithLabelValues(bus).Inc()
	atomic.AddUint64(&localBusRx, 1)
}

// IncBusQueueFull increments the per-kind/direction Full counter ("transmit"/"receive").
func IncBusQueueFull(bus, direction string) {
	BusQueueFull.WithLabelValues(bus, direction).Inc()
	atomic.AddUint64(&localBusFull, 1)
}

// SetActiveSessions records the current connected-session count.
func SetActiveSessions(n int) { ActiveSessions.Set(float64(n)) }

// SetSimulationState records the current SimulationState enum value.
func SetSimulationState(state int) { SimulationStateGauge.Set(float64(state)) }

// SetPortMapperRegistrySize records the current port mapper registry size.
func SetPortMapperRegistrySize(n int) { PortMapperRegistrySize.Set(float64(n)) }

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so the first error doesn't pay registration latency.
	for _, lbl := range []string{ErrConnect, ErrHandshake, ErrStep, ErrPing, ErrSerialize, ErrDeserialize, ErrPortMapper} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
