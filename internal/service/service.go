// Package service manages the lifecycle of the application's
// long-running services.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/reelcache/reelcache/internal/logger"
)

// Service is a component with an explicit lifecycle.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// Status is the lifecycle state of a service.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusFailed   Status = "failed"
)

// ServiceStatus tracks the current state of one service.
type ServiceStatus struct {
	mu        sync.RWMutex
	name      string
	status    Status
	err       error
	changedAt time.Time
}

// NewServiceStatus creates status tracking for a named service.
func NewServiceStatus(name string) *ServiceStatus {
	return &ServiceStatus{
		name:      name,
		status:    StatusStopped,
		changedAt: time.Now(),
	}
}

// Set records a state transition.
func (s *ServiceStatus) Set(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.changedAt = time.Now()
}

// SetError records a failure.
func (s *ServiceStatus) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err
	s.changedAt = time.Now()
}

// Get returns the current state.
func (s *ServiceStatus) Get() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the recorded failure, if any.
func (s *ServiceStatus) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Base provides the common plumbing for services: a name, a scoped
// logger and status tracking. Embed it and implement Start/Stop.
type Base struct {
	name   string
	logger *logger.Logger
	status *ServiceStatus
}

// NewBase creates service plumbing for a named service.
func NewBase(name string, log *logger.Logger) *Base {
	return &Base{
		name:   name,
		logger: log.With("service", name),
		status: NewServiceStatus(name),
	}
}

// Name returns the service name.
func (b *Base) Name() string {
	return b.name
}

// Status returns the service status tracker.
func (b *Base) Status() *ServiceStatus {
	return b.status
}

// Log returns the service-scoped logger.
func (b *Base) Log() *logger.Logger {
	return b.logger
}
