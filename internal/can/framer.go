// Package can implements DRVEGRD-UATv4 CAN message assembly (spec §4.A):
// a byte-exact multi-frame reassembly of a sensor-assigned header burst and
// per-target bursts into radar.TargetList values, CRC-validated at sensor
// frame rate. All multi-byte fields on the wire are little-endian.
package can

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/radar-ingest/internal/nodeerr"
	"github.com/banshee-data/radar-ingest/internal/radar"
)

// Wire identifiers. The header burst is three consecutive frames sharing
// HeaderID; every target burst is two consecutive frames sharing the same
// TargetFrameAID/TargetFrameBID pair, repeated once per declared target —
// the sensor does not mint a fresh ID per target slot, it reuses one pair
// for the whole frame's target list (spec §4.A "sensor-assigned range").
const (
	HeaderID       uint32 = 0x700
	TargetFrameAID uint32 = 0x710
	TargetFrameBID uint32 = 0x711
)

// AzimuthBias and ElevationBias are the signed-offset calibration constants
// for the target burst's azimuth/elevation bytes (spec §4.A: "0.5° per
// count, signed offset"). Engineering value = (raw_count - bias) * 0.5°.
// These values are derived from the conformance scenario in spec §8
// (az=60 -> 30deg, el=120 -> 0deg), the only calibration points it gives.
const (
	AzimuthBias   = 0
	ElevationBias = 120

	RCSBias   = 64
	PowerBias = 128

	DegreesPerCount = 0.5
	DopplerPerCount = 1.0 / 256.0 // m/s per doppler LSB
	RangePerCountMM = 1.0         // range is already in mm units on the wire
)

type state int

const (
	stateWaitHeader state = iota
	stateCollectTargets
)

// Framer assembles raw CAN frames from a FrameSource into radar.TargetList
// values, per the state machine in spec §4.A:
//
//	WaitHeader --header ok--> CollectTargets(n) --n==0--> Emit
//	CollectTargets --target pair ok--> CollectTargets(n-1)
//	CollectTargets --n==0--> Emit --> WaitHeader
//	Any --CRC bad or ID out of order--> Resync --> WaitHeader
//
// A Framer is single-threaded: Next must not be called concurrently.
type Framer struct {
	src    FrameSource
	onStat func(event string)

	st state

	headerFrames [3]Frame
	headerIdx    int

	numTargets  int
	targetsLeft int
	pendingA    Frame
	haveA       bool
	collected   []radar.Target

	frameCounter uint32
	statusFlags  uint8

	haveTs      bool
	prevTsLow   uint16
	unwrappedMs uint64
	baselineMs  uint64
}

// NewFramer creates a Framer reading from src. onStat, if non-nil, is
// invoked with short event names ("frames_received", "crc_failures",
// "frame_underrun", "protocol_violation", "resync") so callers can wire
// their own counters (spec §7's frames_received/crc_failures).
func NewFramer(src FrameSource, onStat func(event string)) *Framer {
	if onStat == nil {
		onStat = func(string) {}
	}
	return &Framer{src: src, onStat: onStat}
}

// Next blocks until a complete TargetList has been assembled, ctx is
// cancelled, or the FrameSource fails unrecoverably. It never returns a
// Framing or Protocol error to the caller — those are counted and recovered
// in-place per spec §7; only ctx.Err() or a Transport error from src
// propagates.
func (f *Framer) Next(ctx context.Context) (radar.TargetList, error) {
	for {
		fr, err := f.src.ReadFrame(ctx)
		if err != nil {
			return radar.TargetList{}, nodeerr.New(nodeerr.ClassTransport, "can.framer", err)
		}

		if tl, ok, emitErr := f.step(fr); emitErr != nil {
			// Internal invariant broken: log-equivalent via onStat and drop.
			f.onStat("internal_error")
			continue
		} else if ok {
			return tl, nil
		}
	}
}

// step feeds one raw frame through the state machine. It returns ok=true
// with a populated TargetList when a frame completes assembly.
func (f *Framer) step(fr Frame) (radar.TargetList, bool, error) {
	switch f.st {
	case stateWaitHeader:
		return f.waitHeader(fr)
	case stateCollectTargets:
		return f.collectTargets(fr)
	default:
		return radar.TargetList{}, false, fmt.Errorf("can: unknown framer state %d", f.st)
	}
}

func (f *Framer) waitHeader(fr Frame) (radar.TargetList, bool, error) {
	if fr.ID != HeaderID {
		// Not the frame we're expecting at a clean boundary; ignore and
		// keep waiting (this covers stray target frames left over from an
		// aborted burst — they are silently discarded, matching "Resync
		// discards unread frames until the next header-start ID").
		return radar.TargetList{}, false, nil
	}

	f.headerFrames[f.headerIdx] = fr
	f.headerIdx++
	if f.headerIdx < 3 {
		return radar.TargetList{}, false, nil
	}

	// All three header frames collected; decode and validate.
	f.headerIdx = 0
	ok := f.decodeHeader()
	if !ok {
		// CRC failure: counted, frame dropped, stay in WaitHeader.
		f.onStat("crc_failures")
		return radar.TargetList{}, false, nil
	}

	f.onStat("frames_received")
	if f.numTargets == 0 {
		// num_targets=0 header emits immediately (spec §8 boundary case).
		f.collected = make([]radar.Target, 0)
		return f.emit(), true, nil
	}
	f.st = stateCollectTargets
	f.targetsLeft = f.numTargets
	f.collected = make([]radar.Target, 0, f.numTargets)
	f.haveA = false
	return radar.TargetList{}, false, nil
}

func (f *Framer) collectTargets(fr Frame) (radar.TargetList, bool, error) {
	if fr.ID == HeaderID {
		// A new header arrives mid-assembly: abort the current frame
		// (FrameUnderrun) and restart from this header (spec §4.A tie-break).
		f.onStat("frame_underrun")
		f.st = stateWaitHeader
		f.headerIdx = 0
		return f.waitHeader(fr)
	}

	switch fr.ID {
	case TargetFrameAID:
		if f.haveA {
			// Two A-frames in a row with no B between them: protocol
			// violation, resync.
			f.onStat("protocol_violation")
			f.resync()
			return radar.TargetList{}, false, nil
		}
		f.pendingA = fr
		f.haveA = true
		return radar.TargetList{}, false, nil

	case TargetFrameBID:
		if !f.haveA {
			f.onStat("protocol_violation")
			f.resync()
			return radar.TargetList{}, false, nil
		}
		target := decodeTarget(f.pendingA, fr)
		f.collected = append(f.collected, target)
		f.haveA = false
		f.targetsLeft--
		if f.targetsLeft == 0 {
			return f.emit(), true, nil
		}
		return radar.TargetList{}, false, nil

	default:
		// Unknown ID while collecting: protocol violation, resync.
		f.onStat("protocol_violation")
		f.resync()
		return radar.TargetList{}, false, nil
	}
}

// resync discards in-flight assembly state and returns to WaitHeader,
// matching "Resync discards unread frames until the next header-start ID".
func (f *Framer) resync() {
	f.onStat("resync")
	f.st = stateWaitHeader
	f.headerIdx = 0
	f.haveA = false
	f.collected = nil
	f.targetsLeft = 0
}

// decodeHeader parses the three buffered header frames, validates the CRC,
// and stores frame_counter/timestamp/status on success.
func (f *Framer) decodeHeader() bool {
	b0 := f.headerFrames[0].Data
	b1 := f.headerFrames[1].Data

	frameCounter := binary.LittleEndian.Uint16(b0[0:2])
	numTargets := b0[2]
	tsLow := binary.LittleEndian.Uint16(b0[3:5])
	crcWire := binary.LittleEndian.Uint16(b1[0:2])
	statusFlags := b1[2]

	crcBuf := make([]byte, 0, 5)
	crcBuf = binary.LittleEndian.AppendUint16(crcBuf, frameCounter)
	crcBuf = append(crcBuf, numTargets)
	crcBuf = binary.LittleEndian.AppendUint16(crcBuf, tsLow)
	if CRC16CCITTFalse(crcBuf) != crcWire {
		return false
	}

	f.frameCounter = uint32(frameCounter)
	f.numTargets = int(numTargets)
	f.statusFlags = statusFlags
	f.advanceTimestamp(tsLow)
	return true
}

// advanceTimestamp folds the 16-bit ms low word into an unwrapped
// millisecond counter, adding 2^16 whenever a decrement is observed
// (spec §4.A timestamp wraparound).
func (f *Framer) advanceTimestamp(tsLow uint16) {
	if !f.haveTs {
		f.haveTs = true
		f.prevTsLow = tsLow
		f.unwrappedMs = uint64(tsLow)
		f.baselineMs = f.unwrappedMs
		return
	}
	if tsLow < f.prevTsLow {
		f.unwrappedMs += 1 << 16
	}
	f.unwrappedMs = f.unwrappedMs - f.unwrappedMs%(1<<16) + uint64(tsLow)
	f.prevTsLow = tsLow
}

func (f *Framer) emit() radar.TargetList {
	tl := radar.TargetList{
		FrameCounter: f.frameCounter,
		TimestampUs:  (f.unwrappedMs - f.baselineMs) * 1000,
		Targets:      f.collected,
	}
	f.collected = nil
	f.st = stateWaitHeader
	return tl
}

// decodeTarget decodes one two-frame target burst (spec §4.A target
// message layout) into a radar.Target with derived Cartesian position.
func decodeTarget(a, b Frame) radar.Target {
	rangeMM := binary.LittleEndian.Uint16(a.Data[0:2])
	azRaw := a.Data[2]
	elRaw := a.Data[3]
	dopplerRaw := int16(binary.LittleEndian.Uint16(a.Data[4:6]))

	rcsRaw := b.Data[0]
	powerRaw := b.Data[1]

	rng := float32(rangeMM) / 1000.0 // mm -> m
	azDeg := (float32(azRaw) - AzimuthBias) * DegreesPerCount
	elDeg := (float32(elRaw) - ElevationBias) * DegreesPerCount
	azRad := azDeg * (3.14159265358979323846 / 180.0)
	elRad := elDeg * (3.14159265358979323846 / 180.0)
	doppler := float32(dopplerRaw) * DopplerPerCount
	rcs := float32(rcsRaw) - RCSBias
	power := float32(powerRaw) - PowerBias

	return radar.NewTarget(rng, azRad, elRad, doppler, rcs, power)
}
