package winsvc

import (
	"context"
	"sync"
	"time"
)

// Manager runs control operations against multiple services concurrently
// through one ServiceRegistry connection, with configurable concurrency
// and per-operation timeouts.
type Manager struct {
	// Concurrency is the maximum number of concurrent operations
	Concurrency int
	// Timeout is the per-operation timeout
	Timeout time.Duration

	reg ServiceRegistry
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithConcurrency sets the maximum number of concurrent operations
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		m.Concurrency = n
	}
}

// WithTimeout sets the per-operation timeout
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.Timeout = d
	}
}

// NewManager creates a Manager on top of an established registry
// connection. The Manager does not own the connection; the caller closes
// it.
func NewManager(reg ServiceRegistry, opts ...ManagerOption) *Manager {
	m := &Manager{
		Concurrency: 10,
		Timeout:     DefaultStopWait + 5*time.Second,
		reg:         reg,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.Concurrency < 1 {
		m.Concurrency = 1
	}

	return m
}

func (m *Manager) execute(ctx context.Context, services []string, op func(context.Context, string) error) error {
	if len(services) == 0 {
		return nil
	}

	// Semaphore for concurrency control
	sem := make(chan struct{}, m.Concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	merr := &MultiError{}

	for _, service := range services {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				merr.Add(ctx.Err())
				mu.Unlock()
				return
			}

			opCtx := ctx
			if m.Timeout > 0 {
				var cancel context.CancelFunc
				opCtx, cancel = context.WithTimeout(ctx, m.Timeout)
				defer cancel()
			}

			if err := op(opCtx, name); err != nil {
				mu.Lock()
				merr.Add(err)
				mu.Unlock()
			}
		}(service)
	}

	wg.Wait()

	return merr.Err()
}

// Start starts the specified services
func (m *Manager) Start(ctx context.Context, services ...string) error {
	return m.execute(ctx, services, func(ctx context.Context, name string) error {
		return m.reg.Start(ctx, name)
	})
}

// Stop stops the specified services
func (m *Manager) Stop(ctx context.Context, services ...string) error {
	return m.execute(ctx, services, func(ctx context.Context, name string) error {
		return m.reg.Stop(ctx, name)
	})
}

// Restart stops then starts each of the specified services, pausing
// DefaultRestartPause in between to let the controller settle.
func (m *Manager) Restart(ctx context.Context, services ...string) error {
	return m.execute(ctx, services, func(ctx context.Context, name string) error {
		if err := m.reg.Stop(ctx, name); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(DefaultRestartPause):
		}
		return m.reg.Start(ctx, name)
	})
}

// Statuses retrieves the current state of the specified services
func (m *Manager) Statuses(ctx context.Context, services ...string) (map[string]SvcState, error) {
	if len(services) == 0 {
		return make(map[string]SvcState), nil
	}

	var mu sync.Mutex
	results := make(map[string]SvcState)

	err := m.execute(ctx, services, func(ctx context.Context, name string) error {
		state, err := m.reg.Status(ctx, name)
		if err != nil {
			return err
		}
		mu.Lock()
		results[name] = state
		mu.Unlock()
		return nil
	})

	return results, err
}
