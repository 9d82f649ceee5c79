// Package radar holds the data model shared by the CAN framer, the UDP cube
// assembler, the clusterer and the tracker: the value types that flow
// between those components (spec §3) without any transport or algorithm
// concerns of their own.
package radar

import "math"

// Target is one radar detection, expressed in the sensor's native polar
// measurements plus the derived Cartesian position (spec §3).
type Target struct {
	Range     float32 // meters, >= 0
	Azimuth   float32 // radians, -pi..pi
	Elevation float32 // radians, -pi/2..pi/2
	Doppler   float32 // m/s, signed (positive = closing or receding per sensor convention)
	RCS       float32 // dBsm
	Power     float32 // dB

	// Derived Cartesian position in the sensor's right-handed frame:
	// X forward, Y left, Z up.
	X, Y, Z float32
}

// NewTarget builds a Target from polar measurements, filling in the derived
// Cartesian position via SphericalToCartesian.
func NewTarget(rng, azimuth, elevation, doppler, rcs, power float32) Target {
	x, y, z := SphericalToCartesian(rng, azimuth, elevation)
	return Target{
		Range: rng, Azimuth: azimuth, Elevation: elevation,
		Doppler: doppler, RCS: rcs, Power: power,
		X: x, Y: y, Z: z,
	}
}

// SphericalToCartesian converts a polar radar return into the sensor's
// right-handed Cartesian frame: X forward, Y left, Z up. Azimuth and
// elevation are both in radians.
func SphericalToCartesian(rng, azimuthRad, elevationRad float32) (x, y, z float32) {
	cosEl := float32(math.Cos(float64(elevationRad)))
	sinEl := float32(math.Sin(float64(elevationRad)))
	cosAz := float32(math.Cos(float64(azimuthRad)))
	sinAz := float32(math.Sin(float64(azimuthRad)))

	x = rng * cosEl * cosAz
	y = rng * cosEl * sinAz
	z = rng * sinEl
	return
}

// TargetList is one radar frame's worth of detections (spec §3). Order is
// on-wire order; len(Targets) must equal the header's declared target count
// or the whole frame is discarded by the framer.
type TargetList struct {
	FrameCounter uint32 // monotonic, may wrap at 16 bits on the wire
	TimestampUs  uint64 // microseconds since an arbitrary process-local epoch
	Targets      []Target
}

// BinProperties describes the physical meaning of a RadarCube's axes, scaled
// to match the *emitted* cube's dimensions rather than the sensor module's
// raw nominal scales (spec §4.B "scales-vs-dimensions rule").
type BinProperties struct {
	SpeedPerBin float32
	RangePerBin float32
	BinPerSpeed float32
}

// CubeShape is the four tensor dimensions of a RadarCube, in the order the
// wire format enumerates them: chirp types, range gates, rx channels,
// doppler bins.
type CubeShape struct {
	ChirpTypes  uint16
	RangeGates  uint16
	RxChannels  uint16
	DopplerBins uint16
}

// Elements returns the total element count described by the shape (the
// product of all four dimensions).
func (s CubeShape) Elements() int {
	return int(s.ChirpTypes) * int(s.RangeGates) * int(s.RxChannels) * int(s.DopplerBins)
}

// RadarCube is one frame of raw 4-D tensor data reassembled from SMS UDP
// datagrams (spec §3). Samples are row-major, two int16 per complex sample
// (interleaved real, imag); len(Samples) must equal 2*shape.Elements().
type RadarCube struct {
	FrameCounter uint32
	TimestampUs  uint64
	Shape        CubeShape
	Samples      []int16
	BinProps     BinProperties

	PacketsCaptured uint16
	PacketsSkipped  uint16
	MissingBytes    uint64
}

// ClusterLabel identifies the cluster a target was assigned to. 0 means
// noise; values >= 1 index a cluster, in first-formed order (spec §3/§4.C).
type ClusterLabel int32

const NoiseLabel ClusterLabel = 0

// ClusteredTargets pairs a TargetList with the cluster label DBSCAN assigned
// to each target, one-to-one by index, plus the per-cluster centroids the
// tracker consumes (spec §4.D "implied per-cluster centroid").
type ClusteredTargets struct {
	FrameCounter uint32
	TimestampUs  uint64
	Targets      []Target
	Labels       []ClusterLabel
	Clusters     []ClusterCentroid
}

// ClusterCentroid summarizes one DBSCAN cluster for the tracker: its mean
// position and an aspect/height proxy derived from its point spread (spec
// §4.D "aspect scalar derived from cluster extent ratio").
type ClusterCentroid struct {
	Label ClusterLabel

	CX, CY float32 // centroid position, sensor XY plane
	Aspect float32 // extent-ratio derived aspect scalar ("a")
	Height float32 // height/elevation proxy ("h")

	MemberCount int
}
