package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_ImmediateSuccess(t *testing.T) {
	t.Parallel()
	calls := 0
	err := Poll(context.Background(), time.Hour, 0, func(context.Context) (bool, error) {
		calls++
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPoll_EventuallyDone(t *testing.T) {
	t.Parallel()
	calls := 0
	err := Poll(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 4, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestPoll_ConditionError(t *testing.T) {
	t.Parallel()
	boom := errors.New("job entered error state")
	err := Poll(context.Background(), time.Millisecond, 0, func(context.Context) (bool, error) {
		return false, boom
	})

	require.ErrorIs(t, err, boom)
}

func TestPoll_Timeout(t *testing.T) {
	t.Parallel()
	err := Poll(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})

	require.ErrorIs(t, err, ErrPollTimeout)
}

func TestPoll_InvalidInterval(t *testing.T) {
	t.Parallel()
	err := Poll(context.Background(), 0, 0, func(context.Context) (bool, error) { return true, nil })
	require.Error(t, err)
}
