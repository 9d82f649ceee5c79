package cube

import (
	"fmt"

	"github.com/banshee-data/radar-ingest/internal/nodeerr"
	"github.com/banshee-data/radar-ingest/internal/radar"
)

// state is the assembler's Idle/Collecting machine (spec §4.B).
type state int

const (
	stateIdle state = iota
	stateCollecting
)

// bytesPerComplexSample is the wire size of one complex cube element: two
// interleaved int16 (real, imag), 2 bytes each.
const bytesPerComplexSample = 4

// Assembler reassembles a stream of cube.Packet into radar.RadarCube
// values, tolerating lost UDP datagrams the way spec §4.B requires: missing
// regions stay zeroed and are reported via MissingBytes rather than
// stalling the pipeline. Grounded on the packet/drop accounting pattern in
// banshee-data-velocity.report's internal/lidar/network.UDPListener, which
// counts drops instead of treating them as fatal.
type Assembler struct {
	onStat func(string)

	st           state
	frameCounter uint32
	shape        radar.CubeShape
	binProps     radar.BinProperties
	payloadLen   int
	buf          []byte
	received     int

	packetsCaptured uint16
	packetsSkipped  uint16
}

// NewAssembler returns an Assembler in the Idle state. onStat, if non-nil,
// is called with a stat name ("packets_captured", "packets_skipped",
// "frame_reset") once per occurrence, for wiring into internal/metrics.
func NewAssembler(onStat func(string)) *Assembler {
	if onStat == nil {
		onStat = func(string) {}
	}
	return &Assembler{onStat: onStat, st: stateIdle}
}

// Feed applies one packet to the assembler. It returns a complete
// radar.RadarCube and true when the packet closes out a frame (END_OF_DATA,
// or a new START_OF_FRAME arriving mid-collection forces emission of the
// frame in progress).
func (a *Assembler) Feed(p Packet) (radar.RadarCube, bool, error) {
	switch {
	case p.Flags&FlagStartOfFrame != 0:
		return a.start(p)
	case a.st == stateCollecting && p.FrameCounter == a.frameCounter:
		return a.collect(p)
	case a.st == stateCollecting:
		// Packet belongs to neither the frame in progress nor a new
		// START_OF_FRAME: stale or out-of-order, discard.
		a.packetsSkipped++
		a.onStat("packets_skipped")
		return radar.RadarCube{}, false, nil
	default:
		// Idle and not a start packet: nothing to do with it yet.
		a.packetsSkipped++
		a.onStat("packets_skipped")
		return radar.RadarCube{}, false, nil
	}
}

func (a *Assembler) start(p Packet) (radar.RadarCube, bool, error) {
	if p.CubeHeader == nil || p.BinProps == nil {
		return radar.RadarCube{}, false, nodeerr.New(nodeerr.ClassProtocol, "cube.assembler",
			fmt.Errorf("start-of-frame packet missing cube header"))
	}

	var emitted radar.RadarCube
	var ok bool
	if a.st == stateCollecting {
		// A new frame began before the previous one saw END_OF_DATA:
		// emit what we have, accounting the rest as missing.
		emitted, ok = a.emit(), true
		a.onStat("frame_reset")
	}

	shape := p.CubeHeader.Shape()
	a.st = stateCollecting
	a.frameCounter = p.FrameCounter
	a.shape = shape
	a.binProps = *p.BinProps
	a.payloadLen = int(p.PayloadLen)
	a.buf = make([]byte, shape.Elements()*bytesPerComplexSample)
	a.received = 0
	a.packetsCaptured = 0
	a.packetsSkipped = 0

	a.writePayload(p)
	a.packetsCaptured++
	a.onStat("packets_captured")

	if p.Flags&FlagEndOfData != 0 {
		done := a.emit()
		return done, true, nil
	}
	return emitted, ok, nil
}

func (a *Assembler) collect(p Packet) (radar.RadarCube, bool, error) {
	a.writePayload(p)
	a.packetsCaptured++
	a.onStat("packets_captured")

	if p.Flags&FlagEndOfData != 0 {
		return a.emit(), true, nil
	}
	return radar.RadarCube{}, false, nil
}

// writePayload copies p.Payload into the frame buffer at index*payloadLen,
// clipping to the buffer bounds so a malformed index or an oversized last
// packet can't corrupt adjacent memory.
func (a *Assembler) writePayload(p Packet) {
	if len(p.Payload) == 0 {
		return
	}
	offset := int(p.Index) * a.payloadLen
	if offset >= len(a.buf) {
		return
	}
	n := len(p.Payload)
	if offset+n > len(a.buf) {
		n = len(a.buf) - offset
	}
	copy(a.buf[offset:offset+n], p.Payload[:n])
	a.received += n
}

func (a *Assembler) emit() radar.RadarCube {
	samples := make([]int16, len(a.buf)/2)
	for i := range samples {
		lo, hi := a.buf[2*i], a.buf[2*i+1]
		samples[i] = int16(uint16(lo) | uint16(hi)<<8)
	}
	missing := uint64(len(a.buf) - a.received)
	cube := radar.RadarCube{
		FrameCounter:    a.frameCounter,
		Shape:           a.shape,
		Samples:         samples,
		BinProps:        a.binProps,
		PacketsCaptured: a.packetsCaptured,
		PacketsSkipped:  a.packetsSkipped,
		MissingBytes:    missing,
	}
	a.st = stateIdle
	a.buf = nil
	return cube
}
