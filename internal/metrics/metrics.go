// Package metrics exposes Prometheus counters and gauges for the ingestion
// node plus the /metrics and /ready HTTP endpoints, grounded on
// kstaniek-go-ampio-server's internal/metrics package (same promauto + local
// atomic-mirror pattern, recounted from that gateway's serial/SocketCAN/TCP/
// hub counters to the CAN/UDP/cluster/track counters this node needs).
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_target_frames_total",
		Help: "Total target-list frames assembled from the CAN bus.",
	})
	CRCFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_crc_failures_total",
		Help: "Total CAN bursts rejected for CRC mismatch.",
	})
	ResyncCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_resync_total",
		Help: "Total times the CAN framer resynchronized after a protocol violation.",
	})
	CubesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_cubes_total",
		Help: "Total radar cubes reassembled from the UDP stream.",
	})
	CubePacketsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_cube_packets_total",
		Help: "Total UDP datagrams received on the cube stream.",
	})
	CubePacketsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_cube_packets_dropped_total",
		Help: "Total UDP datagrams dropped (malformed, or a start packet without a cube header).",
	})
	CubeMissingBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_cube_missing_bytes_total",
		Help: "Total bytes missing from reassembled cubes due to packet loss.",
	})
	ClusterRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cluster_runs_total",
		Help: "Total DBSCAN clustering passes executed.",
	})
	ClustersFound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cluster_count",
		Help: "Cluster count from the most recent clustering pass.",
	})
	TracksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracks_active",
		Help: "Current number of confirmed (tracked) tracks.",
	})
	TracksNew = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracks_new_total",
		Help: "Total tracks spawned for unmatched clusters.",
	})
	TracksLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracks_lost_total",
		Help: "Total tracks transitioning from tracked to lost.",
	})
	TracksRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracks_removed_total",
		Help: "Total tracks removed after exceeding their age/loss budget.",
	})
	HubDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_hub_dropped_total",
		Help: "Total messages dropped by a sink hub due to a slow subscriber.",
	}, []string{"topic"})
	HubKicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_hub_kicked_total",
		Help: "Total subscribers disconnected by a sink hub's kick policy.",
	}, []string{"topic"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrCANRead    = "can_read"
	ErrCANDecode  = "can_decode"
	ErrUDPRead    = "udp_read"
	ErrUDPDecode  = "udp_decode"
	ErrClustering = "clustering"
	ErrTracking   = "tracking"
)

// local mirrored counters, cheap to read without going through the
// Prometheus registry (useful for structured log lines).
var (
	localFrames      uint64
	localCRCFailures uint64
	localResyncs     uint64
	localCubes       uint64
	localErrors      uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	Frames      uint64
	CRCFailures uint64
	Resyncs     uint64
	Cubes       uint64
	Errors      uint64
}

func Snap() Snapshot {
	return Snapshot{
		Frames:      atomic.LoadUint64(&localFrames),
		CRCFailures: atomic.LoadUint64(&localCRCFailures),
		Resyncs:     atomic.LoadUint64(&localResyncs),
		Cubes:       atomic.LoadUint64(&localCubes),
		Errors:      atomic.LoadUint64(&localErrors),
	}
}

func IncFramesReceived() {
	FramesReceived.Inc()
	atomic.AddUint64(&localFrames, 1)
}

func IncCRCFailures() {
	CRCFailures.Inc()
	atomic.AddUint64(&localCRCFailures, 1)
}

func IncResync() {
	ResyncCount.Inc()
	atomic.AddUint64(&localResyncs, 1)
}

func IncCubesReceived() {
	CubesReceived.Inc()
	atomic.AddUint64(&localCubes, 1)
}

func IncCubePacketsReceived() { CubePacketsReceived.Inc() }
func IncCubePacketsDropped()  { CubePacketsDropped.Inc() }
func AddCubeMissingBytes(n int) {
	if n > 0 {
		CubeMissingBytes.Add(float64(n))
	}
}

func IncClusterRun(found int) {
	ClusterRuns.Inc()
	ClustersFound.Set(float64(found))
}

func SetTracksActive(n int)  { TracksActive.Set(float64(n)) }
func IncTracksNew()          { TracksNew.Inc() }
func IncTracksLost()         { TracksLost.Inc() }
func IncTracksRemoved()      { TracksRemoved.Inc() }

func IncHubDrop(topic string) { HubDrops.WithLabelValues(topic).Inc() }
func IncHubKick(topic string) { HubKicks.WithLabelValues(topic).Inc() }

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of a kind doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrCANRead, ErrCANDecode, ErrUDPRead, ErrUDPDecode, ErrClustering, ErrTracking} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) {
	readinessMu.Lock()
	readinessFn = fn
	readinessMu.Unlock()
}

// IsReady invokes the registered readiness function, defaulting to true if
// none has been registered yet (so the endpoint doesn't flap during boot).
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on addr, returning the *http.Server so the caller can Shutdown it.
func StartHTTP(addr string, logf func(format string, args ...any)) *http.Server {
	if logf == nil {
		logf = func(string, ...any) {}
	}
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

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logf("metrics_listen addr=%s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logf("metrics_http_error error=%v", err)
		}
	}()
	return srv
}
