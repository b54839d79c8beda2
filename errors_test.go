// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package hwc

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		kind     Kind
		sentinel error
		fatal    bool
	}{
		{KindTransientCommit, ErrTransientCommit, false},
		{KindDisconnected, ErrDisconnected, false},
		{KindResourceAcquisition, ErrResourceAcquisition, true},
		{KindUnsupported, ErrUnsupported, true},
		{KindProbe, ErrProbe, false},
		{KindFatalCommit, ErrFatalCommit, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := NewError(tt.kind, "set", errors.New("rc=-22"))
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", err)
			}
			if got := IsFatal(err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
			wrapped := fmt.Errorf("post: %w", err)
			if KindOf(wrapped) != tt.kind {
				t.Errorf("KindOf(wrapped) = %v, want %v", KindOf(wrapped), tt.kind)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("gralloc lock failed")
	err := NewError(KindResourceAcquisition, "buffer.lock", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if errors.Is(err, ErrDisconnected) {
		t.Error("resource error must not match ErrDisconnected")
	}
	want := "hwc: buffer.lock: ResourceAcquisitionFailure: gralloc lock failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if KindOf(errors.New("boom")) != KindUnknown {
		t.Error("unclassified error should be KindUnknown")
	}
	if IsFatal(errors.New("boom")) {
		t.Error("unclassified error should not be fatal")
	}
	if KindOf(nil) != KindUnknown {
		t.Error("KindOf(nil) should be KindUnknown")
	}
}
