package can

import "errors"

// Sentinel errors for the DRVEGRD-UATv4 framer (spec §4.A), for callers
// that classify with errors.Is. The Framer itself does not return them: it
// reports CRC failures, underruns and protocol violations as onStat events
// and recovers in place, and Next returns only transport errors from its
// FrameSource.
var (
	ErrBusError          = errors.New("can: bus error")
	ErrCrcMismatch       = errors.New("can: crc mismatch")
	ErrFrameUnderrun     = errors.New("can: frame underrun")
	ErrFrameOverrun      = errors.New("can: frame overrun")
	ErrProtocolViolation = errors.New("can: protocol violation")
)
