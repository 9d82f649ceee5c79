package sink

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/radar-ingest/internal/radar"
)

func TestEncodeDecodeTargets_RoundTrip(t *testing.T) {
	tl := radar.TargetList{
		Targets: []radar.Target{
			{X: 1.5, Y: -2.25, Z: 0.5, Doppler: -3.0, Power: 72, RCS: 16},
			{X: 0, Y: 0, Z: 0, Doppler: 0, Power: 0, RCS: 0},
		},
	}
	buf := EncodeTargets(tl)
	if len(buf) != len(tl.Targets)*TargetPointStep {
		t.Fatalf("buffer length = %d, want %d", len(buf), len(tl.Targets)*TargetPointStep)
	}

	got := DecodeTargets(buf)
	if diff := cmp.Diff(tl.Targets, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodeClusteredTargets_RoundTrip(t *testing.T) {
	ct := radar.ClusteredTargets{
		Targets: []radar.Target{
			{X: 1, Y: 2, Z: 3, Doppler: 4, Power: 5, RCS: 6},
			{X: -1, Y: -2, Z: -3, Doppler: -4, Power: -5, RCS: -6},
		},
		Labels: []radar.ClusterLabel{1, radar.NoiseLabel},
	}
	buf := EncodeClusteredTargets(ct)
	if len(buf) != len(ct.Targets)*ClusterPointStep {
		t.Fatalf("buffer length = %d, want %d", len(buf), len(ct.Targets)*ClusterPointStep)
	}

	gotTargets, gotLabels := DecodeClusteredTargets(buf)
	if diff := cmp.Diff(ct.Targets, gotTargets); diff != "" {
		t.Fatalf("targets round trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ct.Labels, gotLabels); diff != "" {
		t.Fatalf("labels round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldOffsets_MatchSpecLayout(t *testing.T) {
	if OffsetX != 0 || OffsetY != 4 || OffsetZ != 8 || OffsetSpeed != 12 || OffsetPower != 16 || OffsetRCS != 20 {
		t.Fatalf("target field offsets do not match the spec layout")
	}
	if TargetPointStep != 24 {
		t.Fatalf("target point_step = %d, want 24", TargetPointStep)
	}
	if OffsetClusterID != 24 || ClusterPointStep != 28 {
		t.Fatalf("cluster field layout does not match the spec")
	}
}

func TestEncodeCube_RoundTrip(t *testing.T) {
	cube := radar.RadarCube{
		FrameCounter: 42,
		TimestampUs:  123456,
		Shape:        radar.CubeShape{ChirpTypes: 2, RangeGates: 4, RxChannels: 2, DopplerBins: 2},
		Samples:      []int16{1, -2, 3, -4, 5, -6, 7, -8},
		BinProps:     radar.BinProperties{SpeedPerBin: 0.1, RangePerBin: 0.25, BinPerSpeed: 10},
		PacketsCaptured: 3,
		PacketsSkipped:  1,
		MissingBytes:    64,
	}
	buf := EncodeCube(cube)
	got := DecodeCube(buf)
	if diff := cmp.Diff(cube, got); diff != "" {
		t.Fatalf("cube round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeTransform_RoundTrip(t *testing.T) {
	tf := TransformStamped{TX: 1, TY: 2, TZ: 3, QX: 0, QY: 0, QZ: 0, QW: 1}
	got := DecodeTransform(EncodeTransform(tf))
	if diff := cmp.Diff(tf, got); diff != "" {
		t.Fatalf("transform round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeRadarInfo_RoundTrip(t *testing.T) {
	info := RadarInfo{FrameCounter: 7, CRCFailures: 2, ResyncCount: 1, TracksActive: 5}
	got := DecodeRadarInfo(EncodeRadarInfo(info))
	if diff := cmp.Diff(info, got); diff != "" {
		t.Fatalf("info round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTopics_PrefixNormalization(t *testing.T) {
	topics := NewTopics("front_radar/")
	if topics.Targets() != "front_radar/targets" {
		t.Fatalf("unexpected targets topic: %s", topics.Targets())
	}

	defaulted := NewTopics("")
	if defaulted.Cube() != "radar/cube" {
		t.Fatalf("unexpected default cube topic: %s", defaulted.Cube())
	}
}
