package winsvc

import (
	"errors"
	"testing"
)

func TestOpErrorFormat(t *testing.T) {
	err := &OpError{Op: OpLoad, Service: "svcA", Err: ErrConfigMissing}

	want := `winsvc load "svcA": winsvc: config missing`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestOpErrorFormatNoService(t *testing.T) {
	err := &OpError{Op: OpEnumerate, Err: ErrUnsupported}

	want := "winsvc enumerate: winsvc: not supported on this platform"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestOpErrorUnwrap(t *testing.T) {
	err := &OpError{Op: OpSpawn, Service: "svcA", Err: ErrSpawnFailed}

	if !errors.Is(err, ErrSpawnFailed) {
		t.Error("errors.Is should find ErrSpawnFailed through OpError")
	}

	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatal("errors.As should extract *OpError")
	}
	if opErr.Service != "svcA" {
		t.Errorf("Service = %q, want %q", opErr.Service, "svcA")
	}
}

func TestMultiError(t *testing.T) {
	merr := &MultiError{}

	if merr.Err() != nil {
		t.Error("empty MultiError should report nil")
	}

	merr.Add(nil)
	if merr.Err() != nil {
		t.Error("adding nil should not accumulate an error")
	}

	merr.Add(errors.New("first"))
	if merr.Err() == nil {
		t.Fatal("MultiError with one error should be non-nil")
	}
	if got := merr.Error(); got != "first" {
		t.Errorf("single error message = %q, want %q", got, "first")
	}

	merr.Add(errors.New("second"))
	if got := merr.Error(); got != "2 errors occurred" {
		t.Errorf("multi error message = %q", got)
	}
}
