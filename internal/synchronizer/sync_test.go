package synchronizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/network"
)

func testOptions(t *testing.T) Options {
	return Options{
		Start:     t0,
		Window:    time.Hour,
		Increment: 5 * time.Minute,
		Now:       func() time.Time { return t0 },
		Log:       testr.New(t),
	}
}

func refuseOnce(hint time.Time) func(time.Time) error {
	refused := false
	return func(time.Time) error {
		if refused {
			return nil
		}
		refused = true
		return &driver.InvalidReservationTimeError{Site: "nancy", Hint: hint}
	}
}

func TestSynchronize_MergesEveryProvider(t *testing.T) {
	a, b := newFake("a", time.Hour), newFake("b", time.Hour)

	a.roles = network.Roles{}
	a.roles.Add(&network.Host{ID: "node-1.rennes"}, "servers")
	a.nets = network.Networks{"servers": {{Network: "public", Site: "rennes"}}}

	b.roles = network.Roles{}
	b.roles.Add(&network.Host{ID: "vm-1"}, "servers", "clients")
	b.nets = network.Networks{"clients": {{Network: "cloud", Site: "fsn1"}}}

	roles, nets, err := Synchronize(context.Background(), []Provider{a, b}, testOptions(t))
	require.NoError(t, err)

	assert.Len(t, roles["servers"], 2)
	assert.Len(t, roles["clients"], 1)
	assert.Len(t, nets["servers"], 1)
	assert.Len(t, nets["clients"], 1)

	assert.Equal(t, []time.Time{t0}, a.commits)
	assert.Equal(t, 1, a.inits)
	assert.Equal(t, 1, b.inits)
	assert.Equal(t, t0, *a.Snapshot().Start)
}

func TestSynchronize_DefaultStart(t *testing.T) {
	p := newFake("a", time.Hour)
	opts := testOptions(t)
	opts.Start = time.Time{}

	_, _, err := Synchronize(context.Background(), []Provider{p}, opts)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{t0.Add(DefaultStartMargin)}, p.commits)
}

func TestSynchronize_RetriesAtHint(t *testing.T) {
	hint := t0.Add(30 * time.Minute)
	a, b := newFake("a", 2*time.Hour), newFake("b", 2*time.Hour)
	b.commitErr = refuseOnce(hint)

	_, _, err := Synchronize(context.Background(), []Provider{a, b}, testOptions(t))
	require.NoError(t, err)

	assert.Equal(t, []time.Time{t0, hint}, a.commits)
	assert.Equal(t, []time.Time{t0, hint}, b.commits)
	assert.Equal(t, 1, a.destroyed, "committed provider must be rolled back")
	assert.Equal(t, 1, b.destroyed, "refused provider may hold part of its reservation")

	// The end of the reservation stays where it was first requested.
	assert.Equal(t, 90*time.Minute, a.walltime())
	assert.Equal(t, 90*time.Minute, b.walltime())
	assert.Equal(t, t0.Add(2*time.Hour), hint.Add(a.walltime()))
}

func TestSynchronize_NextStart(t *testing.T) {
	tests := []struct {
		name string
		hint time.Time
		want time.Time
	}{
		{"hint in the past", t0.Add(-time.Hour), t0.Add(time.Second)},
		{"no hint", time.Time{}, t0.Add(DefaultStartMargin)},
		{"later hint", t0.Add(time.Hour), t0.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFake("a", 3*time.Hour)
			p.commitErr = refuseOnce(tt.hint)

			_, _, err := Synchronize(context.Background(), []Provider{p}, testOptions(t))
			require.NoError(t, err)

			require.Len(t, p.commits, 2)
			assert.Equal(t, tt.want, p.commits[1])
		})
	}
}

func TestSynchronize_TooOldIsRetried(t *testing.T) {
	p := newFake("a", time.Hour)
	refused := false
	p.commitErr = func(time.Time) error {
		if refused {
			return nil
		}
		refused = true
		return driver.ErrReservationTooOld
	}

	_, _, err := Synchronize(context.Background(), []Provider{p}, testOptions(t))
	require.NoError(t, err)
	assert.Len(t, p.commits, 2)
}

func TestSynchronize_RetriesExhausted(t *testing.T) {
	p := newFake("a", 24*time.Hour)
	p.commitErr = func(start time.Time) error {
		return &driver.InvalidReservationTimeError{Site: "lyon", Hint: start.Add(time.Minute)}
	}
	opts := testOptions(t)
	opts.MaxRetries = 2

	_, _, err := Synchronize(context.Background(), []Provider{p}, opts)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Len(t, p.commits, 3)
	assert.Equal(t, 0, p.inits)
}

func TestSynchronize_NoRetries(t *testing.T) {
	p := newFake("a", time.Hour)
	p.commitErr = refuseOnce(t0.Add(time.Hour))
	opts := testOptions(t)
	opts.MaxRetries = NoRetries

	_, _, err := Synchronize(context.Background(), []Provider{p}, opts)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Len(t, p.commits, 1)
	assert.Equal(t, 1, p.destroyed)
}

func TestSynchronize_FatalCommitError(t *testing.T) {
	boom := errors.New("quota exceeded")
	a, b := newFake("a", time.Hour), newFake("b", time.Hour)
	b.commitErr = func(time.Time) error { return boom }

	_, _, err := Synchronize(context.Background(), []Provider{a, b}, testOptions(t))
	require.ErrorIs(t, err, boom)

	assert.Len(t, a.commits, 1)
	assert.Equal(t, 1, a.destroyed)
	assert.Equal(t, 1, b.destroyed)
	assert.False(t, a.IsCreated())
	assert.Equal(t, 0, a.inits)
}

func TestSynchronize_MixedFailuresAreFatal(t *testing.T) {
	boom := errors.New("boom")
	a, b := newFake("a", time.Hour), newFake("b", time.Hour)
	a.commitErr = refuseOnce(t0.Add(time.Hour))
	b.commitErr = func(time.Time) error { return boom }

	_, _, err := Synchronize(context.Background(), []Provider{a, b}, testOptions(t))
	require.ErrorIs(t, err, boom)
	assert.Len(t, a.commits, 1)
}

func TestSynchronize_NegativeWalltimeRestoresSettings(t *testing.T) {
	a, b := newFake("a", 2*time.Hour), newFake("b", 10*time.Minute)
	b.commitErr = refuseOnce(t0.Add(30 * time.Minute))

	_, _, err := Synchronize(context.Background(), []Provider{a, b}, testOptions(t))
	require.ErrorIs(t, err, errNegativeWalltime)

	assert.Equal(t, 2*time.Hour, a.walltime())
	assert.Equal(t, 10*time.Minute, b.walltime())
	assert.Equal(t, 1, a.destroyed)
}

func TestSynchronize_InitFailureTearsDown(t *testing.T) {
	boom := errors.New("deploy failed")
	a, b := newFake("a", time.Hour), newFake("b", time.Hour)
	b.initErr = boom

	_, _, err := Synchronize(context.Background(), []Provider{a, b}, testOptions(t))
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1, a.destroyed)
	assert.Equal(t, 1, b.destroyed, "failed provider is destroyed even though it reports no reservation")
	assert.False(t, a.IsCreated())
}

func TestSynchronize_NoSlot(t *testing.T) {
	p := newFake("a", time.Hour)
	p.fits = func(time.Time) bool { return false }

	_, _, err := Synchronize(context.Background(), []Provider{p}, testOptions(t))
	require.ErrorIs(t, err, ErrNoSlot)
	assert.Empty(t, p.commits)
}

func TestUndoLog_RollbackNewestFirst(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	u := undoLog{
		func(context.Context) error { order = append(order, "first"); return nil },
		func(context.Context) error { order = append(order, "second"); return boom },
	}

	err := u.rollback(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"second", "first"}, order)
}
