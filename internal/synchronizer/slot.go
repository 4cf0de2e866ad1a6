package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/util/async"
)

// DefaultIncrement is the step between two candidate start dates.
const DefaultIncrement = 5 * time.Minute

// ErrNoSlot is returned when no candidate in the window suits every
// provider.
var ErrNoSlot = errors.New("no common slot in the window")

// Provider is what the synchronizer needs from a testbed.
type Provider interface {
	Name() string
	Init(ctx context.Context, forceRedeploy bool, start *time.Time) (network.Roles, network.Networks, error)
	AsyncInit(ctx context.Context, start *time.Time) error
	Destroy(ctx context.Context, wait bool) error
	IsCreated() bool
	TestSlot(ctx context.Context, start, windowEnd time.Time) bool
	SetReservation(start time.Time)
	OffsetWalltime(delta time.Duration) error
	Snapshot() driver.Reservation
	Restore(r driver.Reservation)
}

// FindSlot returns the first candidate, from start on and every increment,
// that every provider accepts. Each candidate is probed up to candidate
// plus window. Candidates stop once they are window past start, so at most
// ceil(window/increment)+1 candidates are probed.
func FindSlot(ctx context.Context, providers []Provider, start time.Time, window, increment time.Duration) (time.Time, error) {
	if increment <= 0 {
		increment = DefaultIncrement
	}

	for candidate := start; ; candidate = candidate.Add(increment) {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}
		if allFit(ctx, providers, candidate, candidate.Add(window)) {
			return candidate, nil
		}
		if candidate.Sub(start) >= window {
			return time.Time{}, fmt.Errorf("%w: %s from %s", ErrNoSlot, window, start.UTC().Format(time.RFC3339))
		}
	}
}

// allFit probes every provider concurrently.
func allFit(ctx context.Context, providers []Provider, start, windowEnd time.Time) bool {
	slotProbesTotal.Inc()
	fits := async.Map(ctx, providers, func(ctx context.Context, p Provider) bool {
		return p.TestSlot(ctx, start, windowEnd)
	})
	for _, ok := range fits {
		if !ok {
			return false
		}
	}
	return true
}
