//go:build linux

// Package socketcan is a Linux AF_CAN/SOCK_RAW FrameSource, grounded on the
// companion pack repo's internal/socketcan (kstaniek-go-ampio-server),
// generalized from classic 11-bit identifiers to the extended 29-bit
// identifiers the DRVEGRD-UATv4 wiring uses.
package socketcan

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/banshee-data/radar-ingest/internal/can"
)

// Device is a raw CAN socket bound to one network interface.
type Device struct {
	fd int
}

// Open binds a raw CAN_RAW socket to the named interface (e.g. "can0").
func Open(iface string) (*Device, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socketcan: socket(AF_CAN): %w", err)
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("socketcan: interface %q: %w", iface, err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("socketcan: bind(%s): %w", iface, err)
	}
	return &Device{fd: fd}, nil
}

// ReadFrame reads one classic CAN frame and unwraps it into a can.Frame,
// masking off the EFF flag bit so callers see a plain 29-bit identifier.
func (d *Device) ReadFrame(ctx context.Context) (can.Frame, error) {
	if err := ctx.Err(); err != nil {
		return can.Frame{}, err
	}
	var buf [unix.CAN_MTU]byte
	n, err := unix.Read(d.fd, buf[:])
	if err != nil {
		return can.Frame{}, fmt.Errorf("socketcan: read: %w", err)
	}
	if n != unix.CAN_MTU {
		return can.Frame{}, fmt.Errorf("socketcan: short read: %d bytes", n)
	}

	rawID := binary.LittleEndian.Uint32(buf[0:4])
	dlc := int(buf[4])
	if dlc > 8 {
		dlc = 8
	}

	var fr can.Frame
	fr.ID = rawID & can.EFFMask
	fr.Len = uint8(dlc)
	copy(fr.Data[:], buf[8:8+dlc])
	return fr, nil
}

// WriteFrame writes one CAN frame, setting the EFF flag so the kernel
// transmits it as an extended (29-bit) frame.
func (d *Device) WriteFrame(fr can.Frame) error {
	var buf [unix.CAN_MTU]byte
	binary.LittleEndian.PutUint32(buf[0:4], (fr.ID&can.EFFMask)|can.EFFFlag)
	buf[4] = fr.Len
	copy(buf[8:], fr.Data[:fr.Len])
	_, err := unix.Write(d.fd, buf[:])
	if err != nil {
		return fmt.Errorf("socketcan: write: %w", err)
	}
	return nil
}

// Close releases the underlying socket.
func (d *Device) Close() error { return unix.Close(d.fd) }

var _ can.FrameSource = (*Device)(nil)
