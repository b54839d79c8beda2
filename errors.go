// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package hwc

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the composition pipeline. Only the commit
// orchestrator decides whether a kind is recovered from; every other layer
// reports the kind and returns.
type Kind uint8

const (
	// KindUnknown is used for errors that carry no classification.
	KindUnknown Kind = iota

	// KindTransientCommit is a prepare/set failure that was not a
	// disconnect. It is retried by continuing to the next frame.
	KindTransientCommit

	// KindDisconnected reports that an output went away during a commit.
	// It is expected during hot-unplug and is never fatal.
	KindDisconnected

	// KindResourceAcquisition reports a buffer lock, allocation or image
	// bind failure. Always fatal for the operation that triggered it.
	KindResourceAcquisition

	// KindUnsupported reports a capability the active device variant does
	// not implement. A configuration error, never retried.
	KindUnsupported

	// KindProbe reports a failed hardware composer probe at startup.
	KindProbe

	// KindFatalCommit is a transient commit failure that exceeded the
	// consecutive failure threshold.
	KindFatalCommit
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransientCommit:
		return "TransientCommitFailure"
	case KindDisconnected:
		return "DeviceDisconnected"
	case KindResourceAcquisition:
		return "ResourceAcquisitionFailure"
	case KindUnsupported:
		return "UnsupportedOperation"
	case KindProbe:
		return "ProbeFailure"
	case KindFatalCommit:
		return "FatalCommitFailure"
	default:
		return "Unknown"
	}
}

// Sentinel errors. Every *Error matches the sentinel of its kind with
// errors.Is.
var (
	// ErrTransientCommit matches errors of KindTransientCommit.
	ErrTransientCommit = errors.New("hwc: transient commit failure")

	// ErrDisconnected matches errors of KindDisconnected.
	ErrDisconnected = errors.New("hwc: display disconnected")

	// ErrResourceAcquisition matches errors of KindResourceAcquisition.
	ErrResourceAcquisition = errors.New("hwc: resource acquisition failure")

	// ErrUnsupported matches errors of KindUnsupported.
	ErrUnsupported = errors.New("hwc: unsupported operation")

	// ErrProbe matches errors of KindProbe.
	ErrProbe = errors.New("hwc: probe failure")

	// ErrFatalCommit matches errors of KindFatalCommit.
	ErrFatalCommit = errors.New("hwc: commit failed too many times")

	// ErrSizeMismatch is returned when pixel data does not match the
	// buffer dimensions. It is a logic error and is reported before any
	// memory is touched.
	ErrSizeMismatch = errors.New("hwc: size of pixels is not equal to size of buffer")
)

var sentinels = map[Kind]error{
	KindTransientCommit:     ErrTransientCommit,
	KindDisconnected:        ErrDisconnected,
	KindResourceAcquisition: ErrResourceAcquisition,
	KindUnsupported:         ErrUnsupported,
	KindProbe:               ErrProbe,
	KindFatalCommit:         ErrFatalCommit,
}

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "prepare", "buffer.lock"
	Err  error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "hwc: " + e.Op + ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Fatal reports whether the error must propagate out of the commit
// pipeline to the owning process.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case KindResourceAcquisition, KindUnsupported, KindFatalCommit:
		return true
	default:
		return false
	}
}

// NewError returns an *Error of the given kind.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf returns an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
// Unclassified non-nil errors report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err must be surfaced to the owning process.
// Unclassified errors are not fatal: the commit orchestrator counts them
// as transient commit failures.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal()
	}
	return false
}
