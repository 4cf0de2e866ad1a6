package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPhases_Order(t *testing.T) {
	t.Parallel()
	var executed []string
	record := func(name string) Phase {
		return NewPhase(name, func(*Context) error {
			executed = append(executed, name)
			return nil
		})
	}

	obs := NewRecordingObserver()
	err := RunPhases(NewContext(context.Background(), obs), []Phase{record("reserve"), record("wait"), record("deploy")})

	require.NoError(t, err)
	assert.Equal(t, []string{"reserve", "wait", "deploy"}, executed)
	assert.Equal(t, []EventType{
		EventPhaseStarted, EventPhaseCompleted,
		EventPhaseStarted, EventPhaseCompleted,
		EventPhaseStarted, EventPhaseCompleted,
	}, obs.Types())
}

func TestRunPhases_StopsAtFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	ran := false

	obs := NewRecordingObserver()
	err := RunPhases(NewContext(context.Background(), obs), []Phase{
		NewPhase("wait", func(*Context) error { return boom }),
		NewPhase("deploy", func(*Context) error { ran = true; return nil }),
	})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "wait phase failed")
	assert.False(t, ran)
	assert.Equal(t, []EventType{EventPhaseStarted, EventPhaseFailed}, obs.Types())
}

func TestRunPhases_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunPhases(NewContext(ctx, NewRecordingObserver()), []Phase{
		NewPhase("reserve", func(*Context) error { return nil }),
	})
	require.ErrorIs(t, err, context.Canceled)
}
