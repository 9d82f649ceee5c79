// Command radar-ingest is the ingestion node's entrypoint: it wires
// configuration, the CAN and UDP transports, clustering/tracking, the
// sink hubs, and the metrics HTTP server into one running pipeline.Pipeline
// and blocks until SIGINT/SIGTERM, following the same flag-plus-JSON-file
// startup shape as the teacher's cmd/radar/radar.go.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/banshee-data/radar-ingest/internal/can"
	"github.com/banshee-data/radar-ingest/internal/can/serialbridge"
	"github.com/banshee-data/radar-ingest/internal/can/socketcan"
	"github.com/banshee-data/radar-ingest/internal/cluster"
	"github.com/banshee-data/radar-ingest/internal/config"
	"github.com/banshee-data/radar-ingest/internal/cube"
	"github.com/banshee-data/radar-ingest/internal/metrics"
	"github.com/banshee-data/radar-ingest/internal/pipeline"
	"github.com/banshee-data/radar-ingest/internal/sink"
	"github.com/banshee-data/radar-ingest/internal/track"
)

var (
	configFile  = flag.String("config", "", "path to a JSON configuration overlay (optional)")
	serialPort  = flag.String("serial-port", "", "use a cannelloni-style serial bridge instead of SocketCAN for -can-interface (e.g. /dev/ttyUSB0)")
	versionFlag = flag.Bool("version", false, "print version information and exit")
)

// version and gitSHA are overridable at link time (-ldflags "-X main.version=...").
var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Defaults()
	config.Flags(flag.CommandLine, &cfg)
	flag.Parse()

	if *versionFlag {
		log.Printf("radar-ingest %s (%s)", version, gitSHA)
		return 0
	}

	if *configFile != "" {
		if err := config.LoadFile(*configFile, &cfg); err != nil {
			log.Printf("config: %v", err)
			return 1
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("config: %v", err)
		return 1
	}

	metrics.InitBuildInfo(version, gitSHA, "")
	metricsSrv := metrics.StartHTTP(cfg.MetricsListen, log.Printf)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topics := sink.NewTopics(cfg.TopicPrefix)
	targetsHub := sink.NewHub[[]byte](64, sink.PolicyDrop, func() { metrics.IncHubDrop(topics.Targets()) }, nil)
	clustersHub := sink.NewHub[[]byte](64, sink.PolicyDrop, func() { metrics.IncHubDrop(topics.Clusters()) }, nil)
	cubeHub := sink.NewHub[[]byte](4, sink.PolicyKick, nil, func() { metrics.IncHubKick(topics.Cube()) })
	infoHub := sink.NewHub[[]byte](16, sink.PolicyDrop, func() { metrics.IncHubDrop(topics.Info()) }, nil)

	trackerDefaults := track.DefaultParams()
	pcfg := pipeline.Config{
		ClusteringEnabled: cfg.ClusteringEnabled,
		ClusterParams: cluster.Params{
			Epsilon:   cfg.ClusterEpsilon,
			MinPoints: cfg.ClusterMinPoints,
			Scale:     cfg.ClusterParamScale,
		},
		TrackerParams: track.Params{
			MinHits:          cfg.TrackerMinHits,
			MaxAge:           cfg.TrackerMaxAge,
			MaxLost:          cfg.TrackerMaxLost,
			ProcessNoisePos:  trackerDefaults.ProcessNoisePos,
			ProcessNoiseVel:  trackerDefaults.ProcessNoiseVel,
			MeasurementNoise: trackerDefaults.MeasurementNoise,
		},
		Topics:      topics,
		TargetsHub:  targetsHub,
		ClustersHub: clustersHub,
		CubeHub:     cubeHub,
		InfoHub:     infoHub,
		OnStat:      recordStat,
	}

	var closers []func() error

	if cfg.CANInterface != "" {
		src, err := openCANSource(cfg.CANInterface, *serialPort)
		if err != nil {
			log.Printf("can: %v", err)
			return 1
		}
		closers = append(closers, src.Close)
		pcfg.Framer = can.NewFramer(src, recordStat)
	}

	if cfg.EthPort != 0 {
		listener := cube.NewListener(cube.ListenerConfig{
			Address: net.JoinHostPort(cfg.EthIP, strconv.Itoa(cfg.EthPort)),
			RcvBuf:  4 << 20,
			Stats:   cubeStatsAdapter{},
			OnStat:  recordCubeStat,
		})
		closers = append(closers, listener.Close)
		pcfg.CubeSource = listener
		pcfg.Cubes = listener.Cubes
	}

	p := pipeline.New(pcfg)

	var wg sync.WaitGroup
	wg.Add(1)
	runErrCh := make(chan error, 1)
	go func() {
		defer wg.Done()
		runErrCh <- p.Run(ctx)
	}()

	metrics.SetReadinessFunc(func() bool { return true })

	<-ctx.Done()
	log.Printf("radar-ingest: shutting down")

	// Close transports before waiting: ctx cancellation alone doesn't
	// unblock a pending blocking read on an idle CAN bus or UDP socket,
	// so Close must run first to wake runFraming/runCubeListener.
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("shutdown: close error: %v", err)
		}
	}
	wg.Wait()
	_ = metricsSrv.Shutdown(context.Background())

	if err := <-runErrCh; err != nil {
		log.Printf("pipeline: %v", err)
		return 1
	}
	return 0
}

// openCANSource picks SocketCAN when no serial port override is given,
// falling back to the cannelloni-style serial bridge for bench rigs and
// non-Linux development hosts.
func openCANSource(iface, serialPort string) (can.FrameSource, error) {
	if serialPort != "" {
		return serialbridge.Open(serialPort)
	}
	return socketcan.Open(iface)
}

func recordStat(event string) {
	switch event {
	case "frames_received":
		metrics.IncFramesReceived()
	case "crc_failures":
		metrics.IncCRCFailures()
	case "resync", "protocol_violation":
		metrics.IncResync()
	case "frame_underrun", "internal_error", "framer_error":
		metrics.IncError(metrics.ErrCANDecode)
	case "tracks_active":
		// tracked count is published via pipeline.publishInfo; nothing is
		// recorded here.
	default:
	}
}

func recordCubeStat(event string) {
	switch event {
	case "packets_skipped":
		metrics.IncError(metrics.ErrUDPDecode)
	case "frame_reset":
		metrics.IncError(metrics.ErrUDPDecode)
	default:
	}
}

type cubeStatsAdapter struct{}

func (cubeStatsAdapter) AddPacket(int) { metrics.IncCubePacketsReceived() }
func (cubeStatsAdapter) AddDropped()   { metrics.IncCubePacketsDropped() }
func (cubeStatsAdapter) AddCube()      { metrics.IncCubesReceived() }
