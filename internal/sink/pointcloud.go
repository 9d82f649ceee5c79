// Package sink implements the pub/sub output side of the pipeline (spec
// §4.E, §6): PointCloud2-compatible target/cluster serialization, a radar
// cube message, and a generic backpressure-aware broadcast hub modeled on
// kstaniek-go-ampio-server's internal/hub.Hub.
package sink

import (
	"encoding/binary"
	"math"

	"github.com/banshee-data/radar-ingest/internal/radar"
)

// Field offsets and point_step for the two PointCloud2 layouts this node
// emits (spec §6). Targets carry six float32 fields; clusters add a
// trailing int32 cluster id.
const (
	OffsetX      = 0
	OffsetY      = 4
	OffsetZ      = 8
	OffsetSpeed  = 12
	OffsetPower  = 16
	OffsetRCS    = 20
	TargetPointStep = 24

	OffsetClusterID  = 24
	ClusterPointStep = 28
)

func putF32(b []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(b[off:off+4], math.Float32bits(v))
}

func getF32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
}

// EncodeTargets serializes a TargetList's points into the PointCloud2-style
// fixed-stride buffer: point_step TargetPointStep bytes per target, fields
// x/y/z/speed/power/rcs each a little-endian float32.
func EncodeTargets(tl radar.TargetList) []byte {
	buf := make([]byte, len(tl.Targets)*TargetPointStep)
	for i, t := range tl.Targets {
		p := buf[i*TargetPointStep:]
		putF32(p, OffsetX, t.X)
		putF32(p, OffsetY, t.Y)
		putF32(p, OffsetZ, t.Z)
		putF32(p, OffsetSpeed, t.Doppler)
		putF32(p, OffsetPower, t.Power)
		putF32(p, OffsetRCS, t.RCS)
	}
	return buf
}

// DecodeTargets is EncodeTargets' inverse, used by tests and by any
// in-process consumer that wants typed values back out of the wire buffer.
func DecodeTargets(buf []byte) []radar.Target {
	n := len(buf) / TargetPointStep
	out := make([]radar.Target, n)
	for i := range out {
		p := buf[i*TargetPointStep:]
		out[i] = radar.Target{
			X: getF32(p, OffsetX), Y: getF32(p, OffsetY), Z: getF32(p, OffsetZ),
			Doppler: getF32(p, OffsetSpeed), Power: getF32(p, OffsetPower), RCS: getF32(p, OffsetRCS),
		}
	}
	return out
}

// EncodeClusteredTargets serializes a ClusteredTargets into the
// cluster-point-step layout: the same six target fields plus a trailing
// little-endian int32 cluster label.
func EncodeClusteredTargets(ct radar.ClusteredTargets) []byte {
	buf := make([]byte, len(ct.Targets)*ClusterPointStep)
	for i, t := range ct.Targets {
		p := buf[i*ClusterPointStep:]
		putF32(p, OffsetX, t.X)
		putF32(p, OffsetY, t.Y)
		putF32(p, OffsetZ, t.Z)
		putF32(p, OffsetSpeed, t.Doppler)
		putF32(p, OffsetPower, t.Power)
		putF32(p, OffsetRCS, t.RCS)
		var label int32
		if i < len(ct.Labels) {
			label = int32(ct.Labels[i])
		}
		binary.LittleEndian.PutUint32(p[OffsetClusterID:OffsetClusterID+4], uint32(label))
	}
	return buf
}

// DecodeClusteredTargets is EncodeClusteredTargets' inverse.
func DecodeClusteredTargets(buf []byte) ([]radar.Target, []radar.ClusterLabel) {
	n := len(buf) / ClusterPointStep
	targets := make([]radar.Target, n)
	labels := make([]radar.ClusterLabel, n)
	for i := range targets {
		p := buf[i*ClusterPointStep:]
		targets[i] = radar.Target{
			X: getF32(p, OffsetX), Y: getF32(p, OffsetY), Z: getF32(p, OffsetZ),
			Doppler: getF32(p, OffsetSpeed), Power: getF32(p, OffsetPower), RCS: getF32(p, OffsetRCS),
		}
		labels[i] = radar.ClusterLabel(int32(binary.LittleEndian.Uint32(p[OffsetClusterID : OffsetClusterID+4])))
	}
	return targets, labels
}
