// Package serialbridge is a FrameSource that reads CAN frames carried over
// a serial link using a cannelloni-style wire codec: a 4-byte big-endian
// CAN ID, a 1-byte length, then up to 8 payload bytes per frame. The codec
// shape is lifted from the companion pack repo's internal/cnl.Codec
// (kstaniek-go-ampio-server); the serial port handling follows
// banshee-data-velocity.report's radar/serial.go (go.bug.st/serial, 115200
// 8N1). This backend exists for bench rigs and CI where no real CAN
// interface is available.
package serialbridge

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/banshee-data/radar-ingest/internal/can"
)

// Link reads CAN frames from an io.Reader using the cannelloni-style codec.
// It is transport-agnostic (tests construct one over a bytes.Reader); Open
// wraps a real serial port.
type Link struct {
	r      *bufio.Reader
	closer io.Closer
}

// Open opens portName at 115200 8N1 and wraps it in a Link.
func Open(portName string) (*Link, error) {
	mode := &serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serialbridge: open %s: %w", portName, err)
	}
	return &Link{r: bufio.NewReader(port), closer: port}, nil
}

// NewLink wraps an arbitrary reader (and optional closer) in a Link, for
// tests and non-serial bridges (e.g. a Unix socket to a simulator).
func NewLink(r io.Reader, closer io.Closer) *Link {
	return &Link{r: bufio.NewReader(r), closer: closer}
}

// ReadFrame decodes one frame: 4-byte BE CAN ID, 1-byte length (0..8), then
// that many payload bytes.
func (l *Link) ReadFrame(ctx context.Context) (can.Frame, error) {
	if err := ctx.Err(); err != nil {
		return can.Frame{}, err
	}
	var idb [4]byte
	if _, err := io.ReadFull(l.r, idb[:]); err != nil {
		return can.Frame{}, fmt.Errorf("serialbridge: read id: %w", err)
	}
	lenByte, err := l.r.ReadByte()
	if err != nil {
		return can.Frame{}, fmt.Errorf("serialbridge: read len: %w", err)
	}
	n := int(lenByte)
	if n > 8 {
		return can.Frame{}, fmt.Errorf("serialbridge: invalid length %d", n)
	}

	var fr can.Frame
	fr.ID = binary.BigEndian.Uint32(idb[:]) & can.EFFMask
	fr.Len = uint8(n)
	if n > 0 {
		if _, err := io.ReadFull(l.r, fr.Data[:n]); err != nil {
			return can.Frame{}, fmt.Errorf("serialbridge: read payload: %w", err)
		}
	}
	return fr, nil
}

// WriteFrame encodes fr using the same codec and writes it to w.
func WriteFrame(w io.Writer, fr can.Frame) error {
	var idb [4]byte
	binary.BigEndian.PutUint32(idb[:], fr.ID&can.EFFMask)
	if _, err := w.Write(idb[:]); err != nil {
		return fmt.Errorf("serialbridge: write id: %w", err)
	}
	if _, err := w.Write([]byte{fr.Len}); err != nil {
		return fmt.Errorf("serialbridge: write len: %w", err)
	}
	if fr.Len > 0 {
		if _, err := w.Write(fr.Data[:fr.Len]); err != nil {
			return fmt.Errorf("serialbridge: write payload: %w", err)
		}
	}
	return nil
}

// Close releases the underlying transport, if any.
func (l *Link) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

var _ can.FrameSource = (*Link)(nil)
