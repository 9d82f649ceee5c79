// Package pipeline wires the ingestion node's components together (spec
// §4.E): CAN framing feeds clustering and tracking, the UDP cube listener
// feeds its own sink directly, and every path runs under one cancellable
// context with a clean shutdown sequence. Concurrency model and lifecycle
// shape are grounded on the ublk runner's queue goroutines (the only
// example in the pack that pins an OS thread for a hardware affinity
// requirement — the CAN bus's framing state machine and the cube
// assembler's high packet rate both warrant the same treatment) and on
// banshee-data-velocity.report's pipeline interfaces (TrackingStage,
// PublishSink) for the stage-boundary shape, generalized from that
// package's LiDAR-specific types to this node's CAN/UDP/cluster/track
// types.
package pipeline

import (
	"context"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/banshee-data/radar-ingest/internal/cluster"
	"github.com/banshee-data/radar-ingest/internal/cube"
	"github.com/banshee-data/radar-ingest/internal/radar"
	"github.com/banshee-data/radar-ingest/internal/sink"
	"github.com/banshee-data/radar-ingest/internal/track"
)

// bridgeQueueSize bounds the channel carrying decoded CAN target lists from
// the framing goroutine to the clustering/tracking goroutine. A CAN
// framer emitting faster than clustering can drain blocks rather than
// growing without bound, applying backpressure all the way to the bus
// reader itself.
const bridgeQueueSize = 16

// Framer is the subset of *can.Framer the pipeline depends on, so tests can
// substitute a fake without a real CAN transport.
type Framer interface {
	Next(ctx context.Context) (radar.TargetList, error)
}

// CubeSource is the subset of *cube.Listener the pipeline depends on.
type CubeSource interface {
	Start(ctx context.Context) error
	Close() error
}

// Config wires every component instance the pipeline needs, plus the
// clustering/tracking parameters (spec §6).
type Config struct {
	Framer     Framer
	CubeSource CubeSource
	Cubes      <-chan radar.RadarCube

	ClusteringEnabled bool
	ClusterParams     cluster.Params
	TrackerParams     track.Params

	Topics      sink.Topics
	TargetsHub  *sink.Hub[[]byte]
	ClustersHub *sink.Hub[[]byte]
	CubeHub     *sink.Hub[[]byte]
	InfoHub     *sink.Hub[[]byte]

	OnStat func(string)
}

// Pipeline owns the running goroutines for one radar node instance.
type Pipeline struct {
	cfg Config
	wg  sync.WaitGroup
}

// New constructs a Pipeline from cfg. OnStat defaults to a no-op.
func New(cfg Config) *Pipeline {
	if cfg.OnStat == nil {
		cfg.OnStat = func(string) {}
	}
	return &Pipeline{cfg: cfg}
}

// Run starts every configured path and blocks until ctx is cancelled, then
// waits for all goroutines to exit before returning. It returns the first
// non-context-cancellation error encountered, if any.
func (p *Pipeline) Run(ctx context.Context) error {
	errCh := make(chan error, 4)

	if p.cfg.Framer != nil {
		bridge := make(chan radar.TargetList, bridgeQueueSize)

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			errCh <- p.runFraming(ctx, bridge)
		}()

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runClusterTrack(ctx, bridge)
		}()
	}

	if p.cfg.CubeSource != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			errCh <- p.runCubeListener(ctx)
		}()
	}

	if p.cfg.Cubes != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runCubeSink(ctx)
		}()
	}

	<-ctx.Done()
	p.wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}

// runFraming pins itself to an OS thread: the CAN framer's state machine
// assumes strictly sequential, uninterrupted frame delivery, which the Go
// scheduler's cooperative preemption can't guarantee on a shared thread
// under load.
func (p *Pipeline) runFraming(ctx context.Context, out chan<- radar.TargetList) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		tl, err := p.cfg.Framer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("pipeline: framer error: %v", err)
			p.cfg.OnStat("framer_error")
			continue
		}
		select {
		case out <- tl:
		case <-ctx.Done():
			return nil
		}
	}
}

// runClusterTrack is a plain cooperative goroutine: clustering and
// tracking are bounded by the number of targets in a frame (tens, not
// thousands) and never block on I/O, so they don't need a dedicated
// thread.
func (p *Pipeline) runClusterTrack(ctx context.Context, in <-chan radar.TargetList) {
	tracker := track.NewTracker(p.cfg.TrackerParams)
	var lastFrameTime time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case tl, ok := <-in:
			if !ok {
				return
			}
			p.publishTargets(tl)

			if !p.cfg.ClusteringEnabled {
				continue
			}
			clustered := cluster.Cluster(tl, p.cfg.ClusterParams)
			p.publishClusters(clustered)

			now := time.UnixMicro(int64(tl.TimestampUs))
			dt := 0.1
			if !lastFrameTime.IsZero() {
				if d := now.Sub(lastFrameTime).Seconds(); d > 0 {
					dt = d
				}
			}
			lastFrameTime = now

			tracker.Update(clustered, dt)
			p.cfg.OnStat("tracks_active")
			p.publishInfo(tl.FrameCounter, uint32(tracker.Active()))
		}
	}
}

// runCubeListener also pins an OS thread: the cube listener's batched UDP
// receive path runs close to the kernel's packet rate at full sensor frame
// rate and should not be preempted mid-batch.
func (p *Pipeline) runCubeListener(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := p.cfg.CubeSource.Start(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (p *Pipeline) runCubeSink(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-p.cfg.Cubes:
			if !ok {
				return
			}
			if p.cfg.CubeHub != nil {
				p.cfg.CubeHub.Publish(sink.EncodeCube(c))
			}
		}
	}
}

func (p *Pipeline) publishTargets(tl radar.TargetList) {
	if p.cfg.TargetsHub != nil {
		p.cfg.TargetsHub.Publish(sink.EncodeTargets(tl))
	}
}

func (p *Pipeline) publishClusters(ct radar.ClusteredTargets) {
	if p.cfg.ClustersHub != nil {
		p.cfg.ClustersHub.Publish(sink.EncodeClusteredTargets(ct))
	}
}

func (p *Pipeline) publishInfo(frameCounter uint32, tracksActive uint32) {
	if p.cfg.InfoHub != nil {
		p.cfg.InfoHub.Publish(sink.EncodeRadarInfo(sink.RadarInfo{FrameCounter: frameCounter, TracksActive: tracksActive}))
	}
}
