package sink

import (
	"encoding/binary"

	"github.com/banshee-data/radar-ingest/internal/radar"
)

// EncodeCube serializes a RadarCube into this node's custom radar-cube
// message (spec §6): a fixed header (frame counter, timestamp, shape, bin
// properties, loss accounting) followed by the raw interleaved int16
// samples, all little-endian.
const cubeHeaderSize = 4 + 8 + 4*2 + 12 + 2 + 2 + 8

func EncodeCube(c radar.RadarCube) []byte {
	buf := make([]byte, cubeHeaderSize+len(c.Samples)*2)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], c.FrameCounter)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], c.TimestampUs)
	off += 8

	binary.LittleEndian.PutUint16(buf[off:], c.Shape.ChirpTypes)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], c.Shape.RangeGates)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], c.Shape.RxChannels)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], c.Shape.DopplerBins)
	off += 2

	putF32(buf, off, c.BinProps.SpeedPerBin)
	off += 4
	putF32(buf, off, c.BinProps.RangePerBin)
	off += 4
	putF32(buf, off, c.BinProps.BinPerSpeed)
	off += 4

	binary.LittleEndian.PutUint16(buf[off:], c.PacketsCaptured)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], c.PacketsSkipped)
	off += 2
	binary.LittleEndian.PutUint64(buf[off:], c.MissingBytes)
	off += 8

	for i, s := range c.Samples {
		binary.LittleEndian.PutUint16(buf[off+2*i:], uint16(s))
	}
	return buf
}

// DecodeCube is EncodeCube's inverse.
func DecodeCube(buf []byte) radar.RadarCube {
	var c radar.RadarCube
	off := 0

	c.FrameCounter = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	c.TimestampUs = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	c.Shape.ChirpTypes = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.Shape.RangeGates = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.Shape.RxChannels = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.Shape.DopplerBins = binary.LittleEndian.Uint16(buf[off:])
	off += 2

	c.BinProps.SpeedPerBin = getF32(buf, off)
	off += 4
	c.BinProps.RangePerBin = getF32(buf, off)
	off += 4
	c.BinProps.BinPerSpeed = getF32(buf, off)
	off += 4

	c.PacketsCaptured = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.PacketsSkipped = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	c.MissingBytes = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	n := (len(buf) - off) / 2
	c.Samples = make([]int16, n)
	for i := range c.Samples {
		c.Samples[i] = int16(binary.LittleEndian.Uint16(buf[off+2*i:]))
	}
	return c
}

// TransformStamped is a minimal stand-in for geometry_msgs/TransformStamped:
// a fixed sensor-mount translation/rotation the sink publishes once so
// downstream consumers can place the radar's frame in the vehicle frame.
type TransformStamped struct {
	TX, TY, TZ     float32
	QX, QY, QZ, QW float32
}

const transformWireSize = 7 * 4

func EncodeTransform(tf TransformStamped) []byte {
	buf := make([]byte, transformWireSize)
	putF32(buf, 0, tf.TX)
	putF32(buf, 4, tf.TY)
	putF32(buf, 8, tf.TZ)
	putF32(buf, 12, tf.QX)
	putF32(buf, 16, tf.QY)
	putF32(buf, 20, tf.QZ)
	putF32(buf, 24, tf.QW)
	return buf
}

func DecodeTransform(buf []byte) TransformStamped {
	return TransformStamped{
		TX: getF32(buf, 0), TY: getF32(buf, 4), TZ: getF32(buf, 8),
		QX: getF32(buf, 12), QY: getF32(buf, 16), QZ: getF32(buf, 20), QW: getF32(buf, 24),
	}
}

// RadarInfo carries the frame counter and per-frame diagnostic counters
// alongside the point cloud, since ROS2 has no standard message for a
// DRVEGRD-class sensor's framing/loss statistics.
type RadarInfo struct {
	FrameCounter uint32
	CRCFailures  uint32
	ResyncCount  uint32
	TracksActive uint32
}

const radarInfoWireSize = 4 * 4

func EncodeRadarInfo(info RadarInfo) []byte {
	buf := make([]byte, radarInfoWireSize)
	binary.LittleEndian.PutUint32(buf[0:], info.FrameCounter)
	binary.LittleEndian.PutUint32(buf[4:], info.CRCFailures)
	binary.LittleEndian.PutUint32(buf[8:], info.ResyncCount)
	binary.LittleEndian.PutUint32(buf[12:], info.TracksActive)
	return buf
}

func DecodeRadarInfo(buf []byte) RadarInfo {
	return RadarInfo{
		FrameCounter: binary.LittleEndian.Uint32(buf[0:]),
		CRCFailures:  binary.LittleEndian.Uint32(buf[4:]),
		ResyncCount:  binary.LittleEndian.Uint32(buf[8:]),
		TracksActive: binary.LittleEndian.Uint32(buf[12:]),
	}
}
