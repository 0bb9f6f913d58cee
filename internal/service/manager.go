package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reelcache/reelcache/internal/logger"
)

const stopTimeout = 10 * time.Second

// Manager starts registered services in order and shuts them down in
// reverse start order.
type Manager struct {
	logger   *logger.Logger
	mu       sync.Mutex
	services []Service
	statuses map[string]*ServiceStatus
	started  []string
}

// NewManager creates a service manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		logger:   log,
		statuses: make(map[string]*ServiceStatus),
	}
}

// Register adds a service. Registration order is start order.
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, svc)
	m.statuses[svc.Name()] = NewServiceStatus(svc.Name())
}

// Start starts all registered services. The first failure stops the
// sequence and shuts down whatever already started.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting services", "count", len(m.services))

	for _, svc := range m.services {
		status := m.statuses[svc.Name()]
		status.Set(StatusStarting)

		if err := svc.Start(ctx); err != nil {
			status.SetError(err)
			m.logger.Error("Service failed to start", "service", svc.Name(), "error", err)
			m.stopStartedLocked(context.Background())
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}

		status.Set(StatusRunning)
		m.started = append(m.started, svc.Name())
		m.logger.Info("Service started", "service", svc.Name())
	}

	return nil
}

// Shutdown stops all started services in reverse start order.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Shutting down services", "count", len(m.started))

	done := make(chan struct{})
	go func() {
		m.stopStartedLocked(ctx)
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All services stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// stopStartedLocked stops started services newest-first. Callers hold
// the mutex.
func (m *Manager) stopStartedLocked(ctx context.Context) {
	for i := len(m.started) - 1; i >= 0; i-- {
		name := m.started[i]
		svc := m.findLocked(name)
		if svc == nil {
			continue
		}

		status := m.statuses[name]
		status.Set(StatusStopping)

		stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		if err := svc.Stop(stopCtx); err != nil {
			status.SetError(err)
			m.logger.Error("Error stopping service", "service", name, "error", err)
		} else {
			status.Set(StatusStopped)
			m.logger.Info("Service stopped", "service", name)
		}
		cancel()
	}
	m.started = nil
}

func (m *Manager) findLocked(name string) Service {
	for _, svc := range m.services {
		if svc.Name() == name {
			return svc
		}
	}
	return nil
}

// Status returns the status tracker for a named service, or nil.
func (m *Manager) Status(name string) *ServiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[name]
}
