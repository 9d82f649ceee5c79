// Package track implements ByteTrack-style multi-object tracking over
// DBSCAN cluster centroids (spec §4.D): an 8-state constant-velocity Kalman
// filter per track, a Mahalanobis-gated cost matrix, and a Hungarian/LAPJV
// optimal assignment between tracks and the current frame's clusters.
// Lifecycle and assignment structure are grounded on
// banshee-data-velocity.report's internal/lidar/l5tracks.Tracker (tentative
// /confirmed/deleted lifecycle, consecutive hit/miss counters) and its
// internal/lidar/hungarian.go solver, which that tracker's associate() never
// actually calls — l5tracks.Tracker does greedy nearest-neighbour matching
// and leaves HungarianAssign unused. This package is the implementation
// that wires the unused solver into the association step it was written
// for.
package track

import (
	"sort"

	"github.com/banshee-data/radar-ingest/internal/radar"
)

// gatingChiSquare4 is the chi-square critical value at 95% confidence for 4
// degrees of freedom, used to reject associations whose Mahalanobis
// distance is implausibly large (spec §4.D "Mahalanobis-gated"). Not
// user-tunable, mirroring the teacher's internal numerical-stability
// constants (l5tracks.MinDeterminantThreshold and friends).
const gatingChiSquare4 = 9.4877

// Params configures the tracker (spec §6 tracker_min_hits, tracker_max_age,
// tracker_max_lost) plus the Kalman filter's noise parameters.
type Params struct {
	MinHits int // hits (see Track.Hits) before a New track becomes Tracked
	MaxAge  int // frames a Lost track may go unmatched before Removed
	MaxLost int // frames a New (unconfirmed) track may go unmatched before Removed

	ProcessNoisePos  float64
	ProcessNoiseVel  float64
	MeasurementNoise float64
}

// DefaultParams returns reasonable defaults, used when a caller doesn't
// override them via configuration.
func DefaultParams() Params {
	return Params{
		MinHits: 3, MaxAge: 5, MaxLost: 1,
		ProcessNoisePos: 1.0, ProcessNoiseVel: 1.0, MeasurementNoise: 1.0,
	}
}

// Tracker holds the full set of tracks across frames and advances them one
// frame at a time via Update.
type Tracker struct {
	params Params
	tracks []*Track
}

// NewTracker returns an empty Tracker.
func NewTracker(params Params) *Tracker {
	return &Tracker{params: params}
}

// Update advances every track by dt seconds, associates the frame's cluster
// centroids against the predictions, updates matched tracks, ages out
// missed ones, spawns new tracks for unmatched clusters, and returns a
// snapshot of every track still live (not StateRemoved) after this frame.
func (tr *Tracker) Update(clustered radar.ClusteredTargets, dt float64) []Snapshot {
	for _, t := range tr.tracks {
		t.predict(dt)
	}

	measurements := make([][measDim]float64, len(clustered.Clusters))
	for i, c := range clustered.Clusters {
		measurements[i] = [measDim]float64{float64(c.CX), float64(c.CY), float64(c.Aspect), float64(c.Height)}
	}

	cost := make([][]float64, len(tr.tracks))
	for i, t := range tr.tracks {
		row := make([]float64, len(measurements))
		for j, z := range measurements {
			d := t.kf.mahalanobisSq(z)
			if d > gatingChiSquare4 {
				d = costInf
			}
			row[j] = d
		}
		cost[i] = row
	}

	assignments := hungarianAssign(cost)

	matchedCluster := make([]bool, len(measurements))
	for i, t := range tr.tracks {
		j := -1
		if i < len(assignments) {
			j = assignments[i]
		}
		if j >= 0 {
			t.markMatched(measurements[j], tr.params.MinHits)
			matchedCluster[j] = true
		} else {
			t.markMissed(tr.params.MaxAge, tr.params.MaxLost)
		}
	}

	live := tr.tracks[:0]
	for _, t := range tr.tracks {
		if t.State != StateRemoved {
			live = append(live, t)
		}
	}
	tr.tracks = live

	for j, matched := range matchedCluster {
		if !matched {
			tr.tracks = append(tr.tracks, newTrack(measurements[j], tr.params))
		}
	}

	out := make([]Snapshot, len(tr.tracks))
	for i, t := range tr.tracks {
		out[i] = t.snapshot()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackId.String() < out[j].TrackId.String() })
	return out
}

// Active returns the number of tracks currently in the Tracked state, for
// metrics (spec "tracks_active").
func (tr *Tracker) Active() int {
	n := 0
	for _, t := range tr.tracks {
		if t.State == StateTracked {
			n++
		}
	}
	return n
}
