package track

import (
	"testing"

	"github.com/banshee-data/radar-ingest/internal/radar"
)

func frameOf(fc uint32, cx, cy float32) radar.ClusteredTargets {
	return radar.ClusteredTargets{
		FrameCounter: fc,
		Clusters:     []radar.ClusterCentroid{{Label: 1, CX: cx, CY: cy, Aspect: 1, Height: 2, MemberCount: 3}},
	}
}

func emptyFrame(fc uint32) radar.ClusteredTargets {
	return radar.ClusteredTargets{FrameCounter: fc}
}

// TestTracker_StabilityOverTenFrames mirrors the spec's track-stability
// scenario: a single cluster moving smoothly for 10 frames should produce
// exactly one track, confirmed after MinHits and stable (same TrackId)
// throughout.
func TestTracker_StabilityOverTenFrames(t *testing.T) {
	params := DefaultParams()
	params.MinHits = 3
	tr := NewTracker(params)

	var firstID string
	for i := uint32(1); i <= 10; i++ {
		cx := float32(i - 1) // moves by 1 m per frame
		out := tr.Update(frameOf(i, cx, 0), 1.0)

		if len(out) != 1 {
			t.Fatalf("frame %d: expected 1 track, got %d", i, len(out))
		}
		id := out[0].TrackId.String()
		if firstID == "" {
			firstID = id
		} else if id != firstID {
			t.Fatalf("frame %d: track id changed from %s to %s", i, firstID, id)
		}

		if i >= uint32(params.MinHits) && out[0].State != StateTracked {
			t.Fatalf("frame %d: expected Tracked state after MinHits, got %s", i, out[0].State)
		}
	}
}

// TestTracker_LossAndReacquire mirrors the spec's loss/reacquire scenario:
// a confirmed track misses several frames (within MaxAge) and is reacquired
// by the same TrackId rather than spawning a new one.
func TestTracker_LossAndReacquire(t *testing.T) {
	params := DefaultParams()
	params.MinHits = 3
	params.MaxAge = 5
	tr := NewTracker(params)

	// Confirm a track over 3 frames.
	var id string
	for i := uint32(1); i <= 3; i++ {
		out := tr.Update(frameOf(i, float32(i-1), 0), 1.0)
		if len(out) != 1 {
			t.Fatalf("frame %d: expected 1 track during confirmation, got %d", i, len(out))
		}
		id = out[0].TrackId.String()
	}

	// Miss 3 frames (within MaxAge=5): track should persist as Lost, not be removed.
	for i := uint32(4); i <= 6; i++ {
		out := tr.Update(emptyFrame(i), 1.0)
		if len(out) != 1 {
			t.Fatalf("frame %d: expected track to survive the gap, got %d tracks", i, len(out))
		}
		if out[0].State != StateLost {
			t.Fatalf("frame %d: expected Lost state, got %s", i, out[0].State)
		}
		if out[0].TrackId.String() != id {
			t.Fatalf("frame %d: track id changed during gap", i)
		}
	}

	// Reappear near the predicted position: should reacquire the same track.
	out := tr.Update(frameOf(7, 2, 0), 1.0)
	if len(out) != 1 {
		t.Fatalf("reacquire frame: expected 1 track, got %d", len(out))
	}
	if out[0].TrackId.String() != id {
		t.Fatalf("reacquire created a new track instead of reusing %s: got %s", id, out[0].TrackId)
	}
	if out[0].State != StateTracked {
		t.Fatalf("expected Tracked state after reacquisition, got %s", out[0].State)
	}
}

// TestTracker_UnconfirmedTrackDiesFast checks that a New track which never
// reaches MinHits is removed quickly (governed by MaxLost), unlike a
// confirmed track's longer MaxAge grace period.
func TestTracker_UnconfirmedTrackDiesFast(t *testing.T) {
	params := DefaultParams()
	params.MinHits = 3
	params.MaxLost = 1
	tr := NewTracker(params)

	out := tr.Update(frameOf(1, 0, 0), 1.0)
	if len(out) != 1 {
		t.Fatalf("expected 1 new track, got %d", len(out))
	}

	out = tr.Update(emptyFrame(2), 1.0)
	if len(out) != 1 {
		t.Fatalf("frame 2: expected track to still be alive, got %d", len(out))
	}

	out = tr.Update(emptyFrame(3), 1.0)
	if len(out) != 0 {
		t.Fatalf("frame 3: expected unconfirmed track removed, got %d tracks", len(out))
	}
}

// TestTracker_TwoSeparateClustersGetDistinctTracks covers the multi-target
// case: two well-separated clusters should never be merged into one track.
func TestTracker_TwoSeparateClustersGetDistinctTracks(t *testing.T) {
	tr := NewTracker(DefaultParams())
	frame := radar.ClusteredTargets{
		FrameCounter: 1,
		Clusters: []radar.ClusterCentroid{
			{Label: 1, CX: 0, CY: 0, Aspect: 1, Height: 2},
			{Label: 2, CX: 50, CY: 50, Aspect: 1, Height: 2},
		},
	}
	out := tr.Update(frame, 1.0)
	if len(out) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(out))
	}
	if out[0].TrackId == out[1].TrackId {
		t.Fatalf("expected distinct track ids")
	}
}
