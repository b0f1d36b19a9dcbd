package winsvc

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestHostRunDebugMode(t *testing.T) {
	t.Setenv(DebugModeEnv, "1")

	store := newTestStore(t)
	require.NoError(t, store.Save(helperConfig(t, "sleep")))

	host := NewHost("helper",
		WithHostStore(store),
		WithControlPoll(10*time.Millisecond),
		WithHostSupervisorOptions(WithPollInterval(10*time.Millisecond)),
		WithHostLogger(zerolog.Nop()),
	)

	done := make(chan error, 1)
	go func() {
		done <- host.Run(context.Background())
	}()

	// Let the child come up, then stop the host.
	time.Sleep(100 * time.Millisecond)
	host.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("host did not stop")
	}
}

func TestHostRunMissingConfig(t *testing.T) {
	t.Setenv(DebugModeEnv, "1")

	host := NewHost("no-such-service", WithHostStore(newTestStore(t)))

	err := host.Run(context.Background())
	require.ErrorIs(t, err, ErrConfigMissing)
}

func TestHostRunExhaustedSpawnBudget(t *testing.T) {
	t.Setenv(DebugModeEnv, "1")

	store := newTestStore(t)
	// A directory passes the existence check on load but can never be
	// started, so every spawn attempt fails.
	require.NoError(t, store.Save(&ServiceConfig{Name: "svcA", Executable: t.TempDir()}))

	host := NewHost("svcA",
		WithHostStore(store),
		WithControlPoll(10*time.Millisecond),
		WithHostSupervisorOptions(
			WithInitialDelay(time.Millisecond),
			WithMaxAttempts(2),
		),
	)

	err := host.Run(context.Background())
	require.ErrorIs(t, err, ErrSpawnFailed)
}

func TestHostServiceModeUnsupported(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("service dispatcher is available on windows")
	}
	// No debug toggle set, so Run selects the platform dispatcher.
	t.Setenv(DebugModeEnv, "")

	store := newTestStore(t)
	require.NoError(t, store.Save(helperConfig(t, "exit0")))

	host := NewHost("helper", WithHostStore(store))

	err := host.Run(context.Background())
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Run() = %v, want ErrUnsupported", err)
	}
}

func TestHostStopIdempotent(t *testing.T) {
	host := NewHost("svcA")
	host.Stop()
	host.Stop()
	if !host.stop.IsSet() {
		t.Error("stop flag should be set")
	}
}
