package cluster

import (
	"testing"

	"github.com/banshee-data/radar-ingest/internal/radar"
)

func xyTarget(x, y float32) radar.Target {
	return radar.Target{X: x, Y: y}
}

// TestCluster_GroundPlaneScenario mirrors the spec's worked example: three
// targets close together in the XY plane plus one far outlier, clustered
// with eps=0.5, min_points=2 and a scale vector that zeroes out z and
// doppler so only ground-plane position matters.
func TestCluster_GroundPlaneScenario(t *testing.T) {
	tl := radar.TargetList{
		FrameCounter: 1,
		Targets: []radar.Target{
			xyTarget(0, 0),
			xyTarget(0.3, 0),
			xyTarget(0, 0.3),
			xyTarget(5, 5),
		},
	}
	params := Params{Epsilon: 0.5, MinPoints: 2, Scale: [4]float64{1, 1, 0, 0}}

	got := Cluster(tl, params)

	want := []radar.ClusterLabel{1, 1, 1, radar.NoiseLabel}
	if len(got.Labels) != len(want) {
		t.Fatalf("labels len = %d, want %d", len(got.Labels), len(want))
	}
	for i := range want {
		if got.Labels[i] != want[i] {
			t.Fatalf("labels[%d] = %d, want %d (full: %v)", i, got.Labels[i], want[i], got.Labels)
		}
	}
	if len(got.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(got.Clusters))
	}
	if got.Clusters[0].MemberCount != 3 {
		t.Fatalf("expected 3 members, got %d", got.Clusters[0].MemberCount)
	}
}

func TestCluster_EmptyInput(t *testing.T) {
	got := Cluster(radar.TargetList{FrameCounter: 9}, Params{Epsilon: 1, MinPoints: 1})
	if len(got.Labels) != 0 || len(got.Clusters) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	if got.FrameCounter != 9 {
		t.Fatalf("frame counter not preserved: %d", got.FrameCounter)
	}
}

func TestCluster_AllNoiseBelowMinPoints(t *testing.T) {
	tl := radar.TargetList{Targets: []radar.Target{xyTarget(0, 0), xyTarget(10, 10), xyTarget(-10, -10)}}
	got := Cluster(tl, Params{Epsilon: 0.5, MinPoints: 2, Scale: [4]float64{1, 1, 0, 0}})
	for i, l := range got.Labels {
		if l != radar.NoiseLabel {
			t.Fatalf("labels[%d] = %d, want noise", i, l)
		}
	}
	if len(got.Clusters) != 0 {
		t.Fatalf("expected no clusters, got %d", len(got.Clusters))
	}
}

func TestCluster_DeterministicReplay(t *testing.T) {
	tl := radar.TargetList{
		Targets: []radar.Target{
			xyTarget(0, 0), xyTarget(0.1, 0), xyTarget(0.2, 0),
			xyTarget(3, 3), xyTarget(3.1, 3),
		},
	}
	params := Params{Epsilon: 0.5, MinPoints: 2, Scale: [4]float64{1, 1, 0, 0}}

	a := Cluster(tl, params)
	b := Cluster(tl, params)

	if len(a.Labels) != len(b.Labels) {
		t.Fatalf("label length differs across runs")
	}
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			t.Fatalf("label[%d] differs across runs: %d vs %d", i, a.Labels[i], b.Labels[i])
		}
	}
}

func TestCluster_DopplerAxisSeparatesCoincidentPositions(t *testing.T) {
	// Two targets at the same XY position but very different doppler should
	// not merge when the doppler axis carries nonzero scale weight.
	fast := radar.Target{X: 0, Y: 0, Doppler: 20}
	slow := radar.Target{X: 0, Y: 0, Doppler: 0}
	tl := radar.TargetList{Targets: []radar.Target{fast, slow}}

	got := Cluster(tl, Params{Epsilon: 0.5, MinPoints: 2, Scale: [4]float64{1, 1, 0, 1}})
	if got.Labels[0] == got.Labels[1] && got.Labels[0] != radar.NoiseLabel {
		t.Fatalf("expected doppler-separated targets not to share a cluster, got %v", got.Labels)
	}
}
