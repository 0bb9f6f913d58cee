package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelcache/reelcache/internal/logger"
)

type fakeService struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (f *fakeService) Start(ctx context.Context) error {
	*f.events = append(*f.events, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Stop(ctx context.Context) error {
	*f.events = append(*f.events, "stop:"+f.name)
	return f.stopErr
}

func (f *fakeService) Name() string { return f.name }

func TestManagerStartAndShutdownOrder(t *testing.T) {
	var events []string
	m := NewManager(logger.NewNop())
	m.Register(&fakeService{name: "a", events: &events})
	m.Register(&fakeService{name: "b", events: &events})

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, StatusRunning, m.Status("a").Get())
	assert.Equal(t, StatusRunning, m.Status("b").Get())

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, events)
	assert.Equal(t, StatusStopped, m.Status("a").Get())
}

func TestManagerStartFailureRollsBack(t *testing.T) {
	var events []string
	m := NewManager(logger.NewNop())
	m.Register(&fakeService{name: "a", events: &events})
	m.Register(&fakeService{name: "b", startErr: errors.New("boom"), events: &events})
	m.Register(&fakeService{name: "c", events: &events})

	err := m.Start(context.Background())
	require.Error(t, err)

	// c never started, a was rolled back.
	assert.Equal(t, []string{"start:a", "start:b", "stop:a"}, events)
	assert.Equal(t, StatusFailed, m.Status("b").Get())
	assert.Error(t, m.Status("b").Err())
}

func TestManagerStopErrorIsRecorded(t *testing.T) {
	var events []string
	m := NewManager(logger.NewNop())
	m.Register(&fakeService{name: "a", stopErr: errors.New("stuck"), events: &events})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, StatusFailed, m.Status("a").Get())
}
