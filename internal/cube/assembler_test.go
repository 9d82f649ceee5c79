package cube

import (
	"testing"

	"github.com/banshee-data/radar-ingest/internal/radar"
)

func startPacket(fc uint32, shape radar.CubeShape, payloadLen int, payload []byte) Packet {
	return Packet{
		FrameCounter: fc,
		Flags:        FlagStartOfFrame,
		Index:        0,
		PayloadLen:   uint16(payloadLen),
		CubeHeader: &CubeHeaderFields{
			RangeGates:  shape.RangeGates,
			DopplerBins: shape.DopplerBins,
			RxChannels:  uint8(shape.RxChannels),
			ChirpTypes:  uint8(shape.ChirpTypes),
		},
		BinProps: &radar.BinProperties{SpeedPerBin: 0.1, RangePerBin: 0.25},
		Payload:  payload,
	}
}

func dataPacket(fc uint32, index uint16, payloadLen int, payload []byte, end bool) Packet {
	var flags uint8 = FlagFrameData
	if end {
		flags |= FlagEndOfData
	}
	return Packet{FrameCounter: fc, Flags: flags, Index: index, PayloadLen: uint16(payloadLen), Payload: payload}
}

func TestAssembler_FullFrameNoLoss(t *testing.T) {
	shape := radar.CubeShape{ChirpTypes: 2, RangeGates: 4, RxChannels: 2, DopplerBins: 2}
	totalBytes := shape.Elements() * bytesPerComplexSample // 128

	asm := NewAssembler(nil)
	if _, done, err := asm.Feed(startPacket(1, shape, 64, nil)); err != nil || done {
		t.Fatalf("start: done=%v err=%v", done, err)
	}

	p1 := make([]byte, 64)
	for i := range p1 {
		p1[i] = byte(i)
	}
	if _, done, err := asm.Feed(dataPacket(1, 0, 64, p1, false)); err != nil || done {
		t.Fatalf("data0: done=%v err=%v", done, err)
	}

	p2 := make([]byte, 64)
	for i := range p2 {
		p2[i] = byte(i + 64)
	}
	cube, done, err := asm.Feed(dataPacket(1, 1, 64, p2, true))
	if err != nil || !done {
		t.Fatalf("end: done=%v err=%v", done, err)
	}
	if cube.MissingBytes != 0 {
		t.Fatalf("expected no missing bytes, got %d", cube.MissingBytes)
	}
	if cube.PacketsCaptured != 3 || cube.PacketsSkipped != 0 {
		t.Fatalf("captured=%d skipped=%d", cube.PacketsCaptured, cube.PacketsSkipped)
	}
	if len(cube.Samples) != totalBytes/2 {
		t.Fatalf("samples len=%d want %d", len(cube.Samples), totalBytes/2)
	}
}

// TestAssembler_PartialLoss mirrors the spec's worked scenario: a 32
// complex-sample (128 byte) cube where only the start packet and one data
// packet carrying the first 64 bytes arrive, that data packet also carrying
// END_OF_DATA to close the frame.
func TestAssembler_PartialLoss(t *testing.T) {
	shape := radar.CubeShape{ChirpTypes: 2, RangeGates: 4, RxChannels: 2, DopplerBins: 2}

	asm := NewAssembler(nil)
	if _, done, err := asm.Feed(startPacket(7, shape, 64, nil)); err != nil || done {
		t.Fatalf("start: done=%v err=%v", done, err)
	}

	payload := make([]byte, 64)
	cube, done, err := asm.Feed(dataPacket(7, 0, 64, payload, true))
	if err != nil || !done {
		t.Fatalf("end: done=%v err=%v", done, err)
	}
	if cube.MissingBytes != 64 {
		t.Fatalf("missing_bytes = %d, want 64", cube.MissingBytes)
	}
	if cube.PacketsCaptured != 2 {
		t.Fatalf("packets_captured = %d, want 2", cube.PacketsCaptured)
	}
	if cube.PacketsSkipped != 0 {
		t.Fatalf("packets_skipped = %d, want 0", cube.PacketsSkipped)
	}
}

// TestAssembler_TotalLoss covers the 100%-loss boundary: only the start
// packet (which itself contributes no sample bytes) and an immediate
// END_OF_DATA arrive. The whole cube is reported missing, not an error.
func TestAssembler_TotalLoss(t *testing.T) {
	shape := radar.CubeShape{ChirpTypes: 2, RangeGates: 4, RxChannels: 2, DopplerBins: 2}
	totalBytes := shape.Elements() * bytesPerComplexSample

	asm := NewAssembler(nil)
	if _, done, err := asm.Feed(startPacket(3, shape, 64, nil)); err != nil || done {
		t.Fatalf("start: done=%v err=%v", done, err)
	}
	cube, done, err := asm.Feed(dataPacket(3, 1, 64, nil, true))
	if err != nil || !done {
		t.Fatalf("end: done=%v err=%v", done, err)
	}
	if int(cube.MissingBytes) != totalBytes {
		t.Fatalf("missing_bytes = %d, want %d", cube.MissingBytes, totalBytes)
	}
	for _, s := range cube.Samples {
		if s != 0 {
			t.Fatalf("expected all-zero samples on total loss, found %d", s)
		}
	}
}

func TestAssembler_NewStartMidFrameForcesEmit(t *testing.T) {
	shape := radar.CubeShape{ChirpTypes: 1, RangeGates: 2, RxChannels: 1, DopplerBins: 1}

	var stats []string
	asm := NewAssembler(func(s string) { stats = append(stats, s) })

	if _, done, err := asm.Feed(startPacket(1, shape, 8, nil)); err != nil || done {
		t.Fatalf("start1: done=%v err=%v", done, err)
	}

	// A new START_OF_FRAME arrives before frame 1 ever saw END_OF_DATA.
	emitted, done, err := asm.Feed(startPacket(2, shape, 8, nil))
	if err != nil || !done {
		t.Fatalf("start2: done=%v err=%v", done, err)
	}
	if emitted.FrameCounter != 1 {
		t.Fatalf("forced emit should carry frame 1, got %d", emitted.FrameCounter)
	}
	if int(emitted.MissingBytes) != shape.Elements()*bytesPerComplexSample {
		t.Fatalf("forced emit should be entirely missing, got %d", emitted.MissingBytes)
	}

	found := false
	for _, s := range stats {
		if s == "frame_reset" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected frame_reset stat, got %v", stats)
	}
}

func TestAssembler_StaleFrameCounterSkipped(t *testing.T) {
	shape := radar.CubeShape{ChirpTypes: 1, RangeGates: 2, RxChannels: 1, DopplerBins: 1}
	asm := NewAssembler(nil)

	if _, done, err := asm.Feed(startPacket(5, shape, 8, nil)); err != nil || done {
		t.Fatalf("start: done=%v err=%v", done, err)
	}
	if _, done, err := asm.Feed(dataPacket(4, 0, 8, make([]byte, 8), false)); err != nil || done {
		t.Fatalf("stale data: done=%v err=%v", done, err)
	}
	cube, done, err := asm.Feed(dataPacket(5, 0, 8, make([]byte, 8), true))
	if err != nil || !done {
		t.Fatalf("end: done=%v err=%v", done, err)
	}
	if cube.PacketsSkipped != 1 {
		t.Fatalf("packets_skipped = %d, want 1", cube.PacketsSkipped)
	}
}
