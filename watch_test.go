package winsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatchInitialEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newTestStore(t)
	exe := writeFakeExecutable(t, t.TempDir(), "worker")
	require.NoError(t, store.Save(&ServiceConfig{Name: "svcA", Executable: exe}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, cleanup, err := store.Watch(ctx, "svcA")
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	select {
	case ev := <-events:
		require.NoError(t, ev.Err)
		require.NotNil(t, ev.Config)
		require.Equal(t, exe, ev.Config.Executable)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for initial event")
	}
}

func TestWatchSeesChanges(t *testing.T) {
	store := newTestStore(t)
	exeDir := t.TempDir()
	exe := writeFakeExecutable(t, exeDir, "worker")
	require.NoError(t, store.Save(&ServiceConfig{Name: "svcA", Executable: exe}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, cleanup, err := store.Watch(ctx, "svcA")
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	// Drain the initial event first.
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for initial event")
	}

	require.NoError(t, store.Save(&ServiceConfig{
		Name:       "svcA",
		Executable: exe,
		Args:       []string{"--changed"},
	}))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Err != nil {
				continue
			}
			if len(ev.Config.Args) == 1 && ev.Config.Args[0] == "--changed" {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for change event")
		}
	}
}

func TestWatchIgnoresOtherRecords(t *testing.T) {
	store := newTestStore(t)
	exe := writeFakeExecutable(t, t.TempDir(), "worker")
	require.NoError(t, store.Save(&ServiceConfig{Name: "svcA", Executable: exe}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, cleanup, err := store.Watch(ctx, "svcA")
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for initial event")
	}

	// A write to an unrelated record must not produce an event.
	require.NoError(t, store.Save(&ServiceConfig{Name: "svcB", Executable: exe}))

	select {
	case ev, ok := <-events:
		if ok {
			t.Errorf("unexpected event for unrelated record: %+v", ev)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchCleanupDuringDebounce(t *testing.T) {
	defer goleak.VerifyNone(t)

	exe := writeFakeExecutable(t, t.TempDir(), "worker")

	// Cleanup racing a pending debounce timer must never send on the
	// closed event channel.
	for i := 0; i < 20; i++ {
		store, err := NewFileStore(t.TempDir(), WithStoreWatchDebounce(time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, store.Save(&ServiceConfig{Name: "svcA", Executable: exe}))

		events, cleanup, err := store.Watch(context.Background(), "svcA")
		require.NoError(t, err)

		// Queue a change so a debounce timer is in flight, then tear the
		// watch down immediately.
		require.NoError(t, store.Save(&ServiceConfig{
			Name:       "svcA",
			Executable: exe,
			Args:       []string{"--changed"},
		}))
		require.NoError(t, cleanup())

		for range events {
		}
	}
}

func TestWatchCleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newTestStore(t)
	exe := writeFakeExecutable(t, t.TempDir(), "worker")
	require.NoError(t, store.Save(&ServiceConfig{Name: "svcA", Executable: exe}))

	events, cleanup, err := store.Watch(context.Background(), "svcA")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- cleanup()
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup took too long")
	}

	// The event channel must close after cleanup.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel did not close after cleanup")
		}
	}
}
