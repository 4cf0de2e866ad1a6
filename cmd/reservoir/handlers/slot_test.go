package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/reservoir/internal/config"
)

func TestSlot(t *testing.T) {
	a := newStub("g5k")
	b := newStub("cloud")
	b.fits = func(s time.Time) bool { return !s.Before(t0.Add(10 * time.Minute)) }

	tests := []struct {
		name   string
		cfg    *config.Config
		start  *time.Time
		window time.Duration
		want   string
	}{
		{
			name:   "from flag",
			cfg:    &config.Config{Name: "exp"},
			start:  &t0,
			window: time.Hour,
			want:   "2026-03-02T10:10:00Z\n",
		},
		{
			name:   "from now plus margin",
			cfg:    &config.Config{Name: "exp", Window: config.Duration(time.Hour)},
			window: 0,
			want:   "2026-03-02T10:11:00Z\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := stubExperiment(t, tt.cfg, a, b)

			require.NoError(t, Slot(context.Background(), "", tt.start, tt.window))
			assert.Equal(t, tt.want, out.String())
		})
	}

	assert.False(t, a.IsCreated(), "slot must not reserve")
}

func TestSlot_NoSlot(t *testing.T) {
	b := newStub("cloud")
	b.fits = func(time.Time) bool { return false }
	out := stubExperiment(t, &config.Config{Name: "exp"}, newStub("g5k"), b)

	err := Slot(context.Background(), "", &t0, 15*time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot search failed")
	assert.Empty(t, out.String())
}
