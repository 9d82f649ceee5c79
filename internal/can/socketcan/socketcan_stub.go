//go:build !linux

package socketcan

import (
	"context"
	"errors"

	"github.com/banshee-data/radar-ingest/internal/can"
)

// ErrUnsupported is returned on platforms without AF_CAN support.
var ErrUnsupported = errors.New("socketcan: unsupported on this platform")

// Device is a stub on non-Linux platforms; Open always fails.
type Device struct{}

func Open(iface string) (*Device, error) { return nil, ErrUnsupported }

func (d *Device) ReadFrame(ctx context.Context) (can.Frame, error) {
	return can.Frame{}, ErrUnsupported
}

func (d *Device) WriteFrame(fr can.Frame) error { return ErrUnsupported }

func (d *Device) Close() error { return nil }

var _ can.FrameSource = (*Device)(nil)
