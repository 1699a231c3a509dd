package eventsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

type staticEvents struct {
	events []core.Event
	err    error
}

func (s staticEvents) ListAutoSyncEvents(context.Context) ([]core.Event, error) {
	return s.events, s.err
}

type scriptedImporter struct {
	mu       sync.Mutex
	results  map[uuid.UUID]error
	calls    []uuid.UUID
	operator string
}

func (s *scriptedImporter) Import(ctx context.Context, id uuid.UUID, _ Options) (*core.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	s.operator = core.OperatorFromContext(ctx)
	if err := s.results[id]; err != nil {
		return nil, err
	}
	return &core.CommitResult{CreatedNew: 2, LinkedExisting: 1}, nil
}

func (s *scriptedImporter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func events(n int) []core.Event {
	out := make([]core.Event, n)
	for i := range out {
		out[i] = core.Event{ID: uuid.New(), Name: "event", TicketingRef: "ref", AutoSync: true}
	}
	return out
}

func TestScheduler_RunOnce(t *testing.T) {
	evs := events(4)
	imp := &scriptedImporter{results: map[uuid.UUID]error{
		evs[1].ID: core.ErrImportInProgress,
		evs[2].ID: &core.APIError{StatusCode: 503},
	}}
	s := NewScheduler(imp, staticEvents{events: evs}, SchedulerConfig{}, nil)

	report := s.RunOnce(context.Background())

	assert.Equal(t, CycleReport{
		Events:    4,
		Succeeded: 2,
		Failed:    1,
		Skipped:   1,
		Created:   4,
		Linked:    2,
	}, report)
	assert.Equal(t, core.SystemOperator, imp.operator)
}

func TestScheduler_AuthErrorEndsCycle(t *testing.T) {
	evs := events(3)
	imp := &scriptedImporter{results: map[uuid.UUID]error{
		evs[0].ID: errors.Join(errors.New("commit"), &core.AuthError{StatusCode: 401}),
	}}
	s := NewScheduler(imp, staticEvents{events: evs}, SchedulerConfig{}, nil)

	report := s.RunOnce(context.Background())
	assert.True(t, report.Aborted)
	assert.Equal(t, 1, imp.callCount())
}

func TestScheduler_MissingCredentialsEndsCycle(t *testing.T) {
	evs := events(2)
	imp := &scriptedImporter{results: map[uuid.UUID]error{evs[0].ID: core.ErrCredentialsMissing}}
	s := NewScheduler(imp, staticEvents{events: evs}, SchedulerConfig{}, nil)

	report := s.RunOnce(context.Background())
	assert.True(t, report.Aborted)
	assert.Equal(t, 1, imp.callCount())
}

func TestScheduler_ListFailure(t *testing.T) {
	imp := &scriptedImporter{}
	s := NewScheduler(imp, staticEvents{err: errors.New("db down")}, SchedulerConfig{}, nil)

	report := s.RunOnce(context.Background())
	assert.True(t, report.Aborted)
	assert.Zero(t, imp.callCount())
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	imp := &scriptedImporter{}
	s := NewScheduler(imp, staticEvents{events: events(1)}, SchedulerConfig{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return imp.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
