// Package nodeerr defines the error taxonomy and propagation policy shared
// by every ingestion component, per spec §7.
package nodeerr

import (
	"errors"
	"fmt"
)

// Class is the error taxonomy from spec §7. It governs how an error
// propagates: Configuration is fatal at startup, Transport is fatal for its
// owning component only, Framing/Protocol are counted and recovered
// in-place, Internal is logged and the offending frame dropped.
type Class int

const (
	ClassTransport Class = iota
	ClassFraming
	ClassProtocol
	ClassConfiguration
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassFraming:
		return "framing"
	case ClassProtocol:
		return "protocol"
	case ClassConfiguration:
		return "configuration"
	case ClassInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with its taxonomy class and the component
// that raised it, so callers can branch on Class via errors.As without
// string matching, and metrics can label by Component/Class cheaply.
type Error struct {
	Class     Class
	Component string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s[%s]: %v", e.Component, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a class and component tag. Returns nil if err is nil.
func New(class Class, component string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: class, Component: component, Err: err}
}

// ClassOf extracts the Class from err, defaulting to ClassInternal when err
// was not raised via New (a bug in the caller, not the taxonomy).
func ClassOf(err error) Class {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Class
	}
	return ClassInternal
}
