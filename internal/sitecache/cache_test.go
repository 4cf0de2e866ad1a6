package sitecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestCache_HitAndExpiry(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string, int](time.Minute, WithClock(clock.now))

	loads := 0
	load := func(context.Context) (int, error) {
		loads++
		return loads, nil
	}

	v, err := c.Get(context.Background(), "rennes", load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, _ = c.Get(context.Background(), "rennes", load)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, loads)

	clock.t = clock.t.Add(time.Minute)
	v, _ = c.Get(context.Background(), "rennes", load)
	assert.Equal(t, 2, v)
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()
	c := New[string, int](time.Minute)
	boom := errors.New("unreachable")

	_, err := c.Get(context.Background(), "lyon", func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.Get(context.Background(), "lyon", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()
	c := New[string, int](time.Hour)
	_, _ = c.Get(context.Background(), "k", func(context.Context) (int, error) { return 1, nil })
	c.Invalidate("k")
	assert.Equal(t, 0, c.Len())
}

func TestCache_Disabled(t *testing.T) {
	t.Parallel()
	c := New[string, int](0)
	loads := 0
	for range 3 {
		_, _ = c.Get(context.Background(), "k", func(context.Context) (int, error) {
			loads++
			return loads, nil
		})
	}
	assert.Equal(t, 3, loads)
}

func TestCache_InstancesAreIndependent(t *testing.T) {
	t.Parallel()
	a := New[string, int](time.Hour)
	b := New[string, int](time.Hour)
	_, _ = a.Get(context.Background(), "k", func(context.Context) (int, error) { return 1, nil })

	v, _ := b.Get(context.Background(), "k", func(context.Context) (int, error) { return 2, nil })
	assert.Equal(t, 2, v)
}
