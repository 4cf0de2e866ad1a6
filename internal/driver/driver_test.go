package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	t.Parallel()
	var l Lifecycle
	assert.Equal(t, StateUnbound, l.State())

	require.NoError(t, l.Transition(StateReserving))
	require.NoError(t, l.Transition(StateActive))
	require.NoError(t, l.Transition(StateDestroying))
	require.NoError(t, l.Transition(StateDestroyed))
	assert.Equal(t, StateDestroyed, l.State())

	require.NoError(t, l.Transition(StateReserving))
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to State
	}{
		{StateUnbound, StateActive},
		{StateReserving, StateDestroyed},
		{StateActive, StateError},
		{StateDestroying, StateActive},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			t.Parallel()
			l := Lifecycle{state: tt.from}
			err := l.Transition(tt.to)
			require.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.from, l.State())
		})
	}
}

func TestLifecycle_Fail(t *testing.T) {
	t.Parallel()
	l := Lifecycle{state: StateActive}
	l.Fail()
	assert.Equal(t, StateError, l.State())
}

func TestReservationTimeHint(t *testing.T) {
	t.Parallel()
	hint := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	got, ok := ReservationTimeHint(fmt.Errorf("reserve: %w", &InvalidReservationTimeError{Site: "rennes", Hint: hint}))
	assert.True(t, ok)
	assert.Equal(t, hint, got)

	got, ok = ReservationTimeHint(fmt.Errorf("reserve: %w", ErrReservationTooOld))
	assert.True(t, ok)
	assert.True(t, got.IsZero())

	_, ok = ReservationTimeHint(errors.New("other"))
	assert.False(t, ok)
}

func TestInvalidReservationTimeError_Message(t *testing.T) {
	t.Parallel()
	err := &InvalidReservationTimeError{Site: "lyon", Hint: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	assert.Equal(t, "site lyon refused the reservation time, next possible start is 2026-03-01T10:00:00Z", err.Error())
	assert.Equal(t, "site lyon refused the reservation time", (&InvalidReservationTimeError{Site: "lyon"}).Error())
}

func TestReservation_End(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := Reservation{Start: &start, Walltime: time.Hour}
	assert.Equal(t, start.Add(time.Hour), r.End())
	assert.True(t, Reservation{Walltime: time.Hour}.End().IsZero())
}

func TestWaitRunning(t *testing.T) {
	t.Parallel()
	calls := 0
	err := WaitRunning(context.Background(), time.Millisecond, time.Second, func(context.Context) ([]*Job, error) {
		calls++
		state := JobPending
		if calls >= 3 {
			state = JobRunning
		}
		return []*Job{{ID: "1", Site: "rennes", State: JobRunning}, {ID: "2", Site: "lyon", State: state}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitRunning_JobError(t *testing.T) {
	t.Parallel()
	err := WaitRunning(context.Background(), time.Millisecond, time.Second, func(context.Context) ([]*Job, error) {
		return []*Job{{ID: "1", Site: "rennes", State: JobError}}, nil
	})
	require.ErrorIs(t, err, ErrJobFailed)
}

func TestWaitRunning_NoJobs(t *testing.T) {
	t.Parallel()
	err := WaitRunning(context.Background(), time.Millisecond, time.Second, func(context.Context) ([]*Job, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, ErrJobFailed)
}

func TestWaitRunning_Timeout(t *testing.T) {
	t.Parallel()
	err := WaitRunning(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) ([]*Job, error) {
		return []*Job{{ID: "1", Site: "rennes", State: JobPending}}, nil
	})
	require.ErrorIs(t, err, ErrWaitTimeout)
	assert.NotErrorIs(t, err, ErrJobFailed)
}
