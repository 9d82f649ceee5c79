package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/radar-ingest/internal/cluster"
	"github.com/banshee-data/radar-ingest/internal/radar"
	"github.com/banshee-data/radar-ingest/internal/sink"
	"github.com/banshee-data/radar-ingest/internal/track"
)

// fakeFramer replays a fixed slice of TargetLists, then blocks until ctx is
// cancelled (mirroring a real framer's steady-state behavior of either
// producing a frame or waiting on the bus).
type fakeFramer struct {
	mu     sync.Mutex
	frames []radar.TargetList
	delay  time.Duration
}

func (f *fakeFramer) Next(ctx context.Context) (radar.TargetList, error) {
	f.mu.Lock()
	if len(f.frames) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return radar.TargetList{}, ctx.Err()
	}
	tl := f.frames[0]
	f.frames = f.frames[1:]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return radar.TargetList{}, ctx.Err()
		}
	}
	return tl, nil
}

type fakeCubeSource struct{}

func (fakeCubeSource) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
func (fakeCubeSource) Close() error { return nil }

func TestPipeline_PublishesTargetsAndClusters(t *testing.T) {
	framer := &fakeFramer{
		frames: []radar.TargetList{
			{FrameCounter: 1, TimestampUs: 0, Targets: []radar.Target{{X: 0, Y: 0}, {X: 0.1, Y: 0}}},
		},
	}
	targetsHub := sink.NewHub[[]byte](4, sink.PolicyDrop, nil, nil)
	clustersHub := sink.NewHub[[]byte](4, sink.PolicyDrop, nil, nil)
	infoHub := sink.NewHub[[]byte](4, sink.PolicyDrop, nil, nil)

	targetsSub := targetsHub.Subscribe()
	clustersSub := clustersHub.Subscribe()

	cfg := Config{
		Framer:            framer,
		ClusteringEnabled: true,
		ClusterParams:     cluster.Params{Epsilon: 0.5, MinPoints: 1, Scale: [4]float64{1, 1, 0, 0}},
		TrackerParams:     track.DefaultParams(),
		TargetsHub:        targetsHub,
		ClustersHub:       clustersHub,
		InfoHub:           infoHub,
	}
	p := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case buf := <-targetsSub.Out:
		if len(buf) != 2*sink.TargetPointStep {
			t.Fatalf("targets buffer length = %d, want %d", len(buf), 2*sink.TargetPointStep)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for targets publish")
	}

	select {
	case buf := <-clustersSub.Out:
		if len(buf) != 2*sink.ClusterPointStep {
			t.Fatalf("clusters buffer length = %d, want %d", len(buf), 2*sink.ClusterPointStep)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for clusters publish")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestPipeline_StopsCleanlyOnCancel(t *testing.T) {
	cfg := Config{
		Framer:     &fakeFramer{},
		CubeSource: fakeCubeSource{},
	}
	p := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop within timeout")
	}
}

func TestPipeline_FramerErrorDoesNotStopPipeline(t *testing.T) {
	framer := &erroringFramer{failures: 2}
	cfg := Config{Framer: framer}
	p := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	if err := <-done; err != nil {
		t.Fatalf("expected nil error on context cancellation, got %v", err)
	}
}

type erroringFramer struct {
	mu       sync.Mutex
	failures int
}

func (f *erroringFramer) Next(ctx context.Context) (radar.TargetList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return radar.TargetList{}, errors.New("transient transport error")
	}
	<-ctx.Done()
	return radar.TargetList{}, io.EOF
}
