package track

import "github.com/google/uuid"

// State is a track's lifecycle stage (spec §4.D). Naming follows the spec's
// own vocabulary (New/Tracked/Lost/Removed) rather than the teacher's
// tentative/confirmed/deleted, though the state machine shape — an
// unconfirmed track that dies fast, a confirmed one that survives a
// coasting window — is the same one l5tracks.Tracker implements.
type State int

const (
	// StateNew is an unconfirmed track: created from an unmatched cluster,
	// not yet observed MinHits times.
	StateNew State = iota
	// StateTracked is a confirmed track currently being updated each frame.
	StateTracked
	// StateLost is a confirmed track that missed its most recent
	// association but is still within MaxAge frames of its last hit.
	StateLost
	// StateRemoved is terminal: the track is no longer reported and its
	// TrackId is never reused.
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateTracked:
		return "tracked"
	case StateLost:
		return "lost"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Track is one tracked object's full lifecycle state. TrackId is a 128-bit
// opaque identifier (spec §4.D) assigned once at creation and never reused,
// even after the track is removed.
type Track struct {
	TrackId uuid.UUID
	State   State

	Hits            int // successful associations, counting creation; not reset by a miss
	Age             int // frames since creation
	TimeSinceUpdate int // frames since the last successful association

	kf *kalmanFilter
}

func newTrack(z [measDim]float64, params Params) *Track {
	return &Track{
		TrackId: uuid.New(),
		State:   StateNew,
		Hits:    1,
		Age:     1,
		kf:      newKalmanFilter(z, params.ProcessNoisePos, params.ProcessNoiseVel, params.MeasurementNoise),
	}
}

func (t *Track) predict(dt float64) {
	t.kf.predict(dt)
	t.Age++
	t.TimeSinceUpdate++
}

func (t *Track) markMatched(z [measDim]float64, minHits int) {
	t.kf.update(z)
	t.Hits++
	t.TimeSinceUpdate = 0
	if t.State == StateNew && t.Hits >= minHits {
		t.State = StateTracked
	} else if t.State == StateLost {
		t.State = StateTracked
	}
}

func (t *Track) markMissed(maxAge, maxLost int) {
	switch t.State {
	case StateTracked:
		t.State = StateLost
	case StateLost:
		if t.TimeSinceUpdate > maxAge {
			t.State = StateRemoved
		}
	case StateNew:
		if t.TimeSinceUpdate > maxLost {
			t.State = StateRemoved
		}
	}
}

// Snapshot is the read-only view of a track's current Kalman estimate
// exposed to sinks: position, aspect/height and their velocities.
type Snapshot struct {
	TrackId uuid.UUID
	State   State

	CX, CY, Aspect, Height     float32
	VCX, VCY, VAspect, VHeight float32

	Hits, Age, TimeSinceUpdate int
}

func (t *Track) snapshot() Snapshot {
	x := t.kf.x
	return Snapshot{
		TrackId: t.TrackId,
		State:   t.State,
		CX:      float32(x.AtVec(0)), CY: float32(x.AtVec(1)),
		Aspect: float32(x.AtVec(2)), Height: float32(x.AtVec(3)),
		VCX: float32(x.AtVec(4)), VCY: float32(x.AtVec(5)),
		VAspect: float32(x.AtVec(6)), VHeight: float32(x.AtVec(7)),
		Hits: t.Hits, Age: t.Age, TimeSinceUpdate: t.TimeSinceUpdate,
	}
}
