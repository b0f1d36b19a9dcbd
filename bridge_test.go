package winsvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// phaseRecorder captures status reports for assertions.
type phaseRecorder struct {
	mu     sync.Mutex
	phases []Phase
}

func (r *phaseRecorder) Report(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, p)
}

func (r *phaseRecorder) snapshot() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Phase, len(r.phases))
	copy(out, r.phases)
	return out
}

func (r *phaseRecorder) count(p Phase) int {
	n := 0
	for _, got := range r.snapshot() {
		if got == p {
			n++
		}
	}
	return n
}

func startControlLoop(t *testing.T, rep StatusReporter, stop *StopFlag) (chan ControlRequest, chan error) {
	t.Helper()
	requests := make(chan ControlRequest)
	done := make(chan error, 1)
	go func() {
		done <- runControlLoop(context.Background(), rep, requests, stop, 5*time.Millisecond, zerolog.Nop())
	}()
	return requests, done
}

func waitControlLoop(t *testing.T, done chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("control loop returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("control loop did not return")
	}
}

func TestControlLoopReportsRunningOnce(t *testing.T) {
	rec := &phaseRecorder{}
	var stop StopFlag
	_, done := startControlLoop(t, rec, &stop)

	deadline := time.Now().Add(2 * time.Second)
	for rec.count(PhaseRunning) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Running was never reported")
		}
		time.Sleep(time.Millisecond)
	}

	stop.Set()
	waitControlLoop(t, done)

	if got := rec.count(PhaseRunning); got != 1 {
		t.Errorf("Running reported %d times, want exactly once", got)
	}
	phases := rec.snapshot()
	if phases[0] != PhaseRunning {
		t.Errorf("first report = %v, want RUNNING", phases[0])
	}
	if phases[len(phases)-1] != PhaseStopped {
		t.Errorf("last report = %v, want STOPPED", phases[len(phases)-1])
	}
}

func TestControlLoopStopRequest(t *testing.T) {
	rec := &phaseRecorder{}
	var stop StopFlag
	requests, done := startControlLoop(t, rec, &stop)

	requests <- ControlRequest{Code: ControlStop}
	waitControlLoop(t, done)

	if !stop.IsSet() {
		t.Error("stop flag should be set after a stop request")
	}
	if got := rec.count(PhaseStopPending); got != 1 {
		t.Errorf("StopPending reported %d times, want exactly once", got)
	}
	if got := rec.count(PhaseStopped); got != 1 {
		t.Errorf("Stopped reported %d times, want exactly once", got)
	}
}

// flagSampler records the stop flag state observed at each report.
type flagSampler struct {
	stop *StopFlag
	mu   sync.Mutex
	seen map[Phase]bool
}

func (s *flagSampler) Report(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[Phase]bool)
	}
	s.seen[p] = s.stop.IsSet()
}

func TestControlLoopStopFlagSetBeforeAck(t *testing.T) {
	var stop StopFlag
	rec := &flagSampler{stop: &stop}
	requests, done := startControlLoop(t, rec, &stop)

	requests <- ControlRequest{Code: ControlStop}
	waitControlLoop(t, done)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.seen[PhaseStopPending] {
		t.Error("stop flag was not yet set when StopPending was reported")
	}
	if !rec.seen[PhaseStopped] {
		t.Error("stop flag was not set when Stopped was reported")
	}
}

func TestControlLoopShutdownRequest(t *testing.T) {
	rec := &phaseRecorder{}
	var stop StopFlag
	requests, done := startControlLoop(t, rec, &stop)

	requests <- ControlRequest{Code: ControlShutdown}
	waitControlLoop(t, done)

	if !stop.IsSet() {
		t.Error("stop flag should be set after a shutdown request")
	}
	if got := rec.count(PhaseStopPending); got != 1 {
		t.Errorf("StopPending reported %d times, want exactly once", got)
	}
}

func TestControlLoopInterrogate(t *testing.T) {
	rec := &phaseRecorder{}
	var stop StopFlag
	requests, done := startControlLoop(t, rec, &stop)

	// Interrogate re-reports the current phase without advancing it.
	requests <- ControlRequest{Code: ControlInterrogate}

	deadline := time.Now().Add(2 * time.Second)
	for rec.count(PhaseRunning) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("interrogate did not re-report RUNNING")
		}
		time.Sleep(time.Millisecond)
	}

	if stop.IsSet() {
		t.Error("interrogate must not raise the stop flag")
	}

	stop.Set()
	waitControlLoop(t, done)
}

func TestControlLoopIgnoresUnknownCode(t *testing.T) {
	rec := &phaseRecorder{}
	var stop StopFlag
	requests, done := startControlLoop(t, rec, &stop)

	requests <- ControlRequest{Code: ControlCode(42)}
	time.Sleep(20 * time.Millisecond)

	if stop.IsSet() {
		t.Error("unknown control code must not raise the stop flag")
	}
	if got := rec.count(PhaseStopPending); got != 0 {
		t.Errorf("StopPending reported %d times for unknown code, want 0", got)
	}

	stop.Set()
	waitControlLoop(t, done)
}

func TestControlLoopContextCancel(t *testing.T) {
	rec := &phaseRecorder{}
	var stop StopFlag

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runControlLoop(ctx, rec, nil, &stop, 5*time.Millisecond, zerolog.Nop())
	}()

	cancel()
	waitControlLoop(t, done)

	if !stop.IsSet() {
		t.Error("cancellation should raise the stop flag")
	}
	if got := rec.count(PhaseStopped); got != 1 {
		t.Errorf("Stopped reported %d times, want exactly once", got)
	}
}
