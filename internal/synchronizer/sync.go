package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"

	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/util/async"
)

// Defaults of Options.
const (
	DefaultMaxRetries  = 5
	DefaultStartMargin = time.Minute
)

// NoRetries disables retrying refused commits.
const NoRetries = -1

// ErrRetriesExhausted is returned when the backends kept refusing the
// chosen start dates.
var ErrRetriesExhausted = errors.New("backends kept refusing the reservation time")

// Options configure Synchronize.
type Options struct {
	// Start is the first candidate. Zero means now plus StartMargin.
	Start       time.Time
	StartMargin time.Duration
	Window      time.Duration
	Increment   time.Duration
	// MaxRetries bounds how many refused commits are retried. Zero means
	// DefaultMaxRetries; NoRetries fails on the first refusal.
	MaxRetries    int
	ForceRedeploy bool

	Now func() time.Time
	Log logr.Logger
}

func (o *Options) defaults() {
	if o.StartMargin <= 0 {
		o.StartMargin = DefaultStartMargin
	}
	if o.Increment <= 0 {
		o.Increment = DefaultIncrement
	}
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = DefaultMaxRetries
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Log.GetSink() == nil {
		o.Log = logr.Discard()
	}
}

// undoLog records how to revert the reservations of one commit attempt.
type undoLog []func(context.Context) error

// rollback runs every entry, newest first, and aggregates failures.
func (u undoLog) rollback(ctx context.Context) error {
	var result *multierror.Error
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Synchronize reserves a common slot on every provider, then waits for and
// prepares all of them. Roles and networks of every provider are merged.
// On failure nothing stays reserved.
func Synchronize(ctx context.Context, providers []Provider, opts Options) (network.Roles, network.Networks, error) {
	opts.defaults()
	log := opts.Log.WithName("sync")

	start := opts.Start
	if start.IsZero() {
		start = opts.Now().Add(opts.StartMargin)
	}

	var (
		slot     time.Time
		previous time.Time
	)
	for attempt := 1; ; attempt++ {
		var err error
		slot, err = FindSlot(ctx, providers, start, opts.Window, opts.Increment)
		if err != nil {
			return nil, nil, err
		}
		if !previous.IsZero() {
			if err := offsetAll(providers, previous.Sub(slot)); err != nil {
				return nil, nil, err
			}
		}

		log.Info("committing slot", "start", slot.UTC(), "attempt", attempt)
		undo, err := commit(ctx, providers, slot)
		if err == nil {
			commitAttemptsTotal.WithLabelValues("success").Inc()
			break
		}
		commitAttemptsTotal.WithLabelValues("refused").Inc()

		if rbErr := undo.rollback(ctx); rbErr != nil {
			return nil, nil, multierror.Append(err, fmt.Errorf("rolling back: %w", rbErr))
		}

		hint, retryable := hintOf(err)
		if !retryable {
			return nil, nil, err
		}
		if attempt > opts.MaxRetries {
			return nil, nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		next := slot.Add(time.Second)
		if hint.IsZero() {
			hint = opts.Now().Add(opts.StartMargin)
		}
		if hint.After(next) {
			next = hint
		}
		log.Info("reservation time refused, moving start", "refused", slot.UTC(), "next", next.UTC())
		previous, start = slot, next
	}

	roles, nets, err := reload(ctx, providers, slot, opts.ForceRedeploy)
	if err != nil {
		if tdErr := teardown(ctx, providers); tdErr != nil {
			return nil, nil, multierror.Append(err, fmt.Errorf("tearing down: %w", tdErr))
		}
		return nil, nil, err
	}
	return roles, nets, nil
}

// offsetAll shifts every walltime by delta. When one provider refuses, the
// settings of every provider are restored.
func offsetAll(providers []Provider, delta time.Duration) error {
	saved := make([]driver.Reservation, len(providers))
	for i, p := range providers {
		saved[i] = p.Snapshot()
	}
	for _, p := range providers {
		if err := p.OffsetWalltime(delta); err != nil {
			for i, q := range providers {
				q.Restore(saved[i])
			}
			return err
		}
	}
	return nil
}

// commit sets the slot and submits the reservation on every provider
// concurrently. The returned log destroys every provider, refused ones
// included, since a refused provider may still hold part of its
// reservation.
func commit(ctx context.Context, providers []Provider, slot time.Time) (undoLog, error) {
	tasks := make([]async.Task, len(providers))
	for i, p := range providers {
		tasks[i] = async.Task{Name: p.Name(), Func: func(ctx context.Context) error {
			p.SetReservation(slot)
			return p.AsyncInit(ctx, &slot)
		}}
	}

	var result *multierror.Error
	for _, res := range async.RunAll(ctx, tasks) {
		if res.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	return destroyAll(providers), result.ErrorOrNil()
}

// hintOf reports whether every failure in err is a refused start date and
// returns the latest hint among them.
func hintOf(err error) (time.Time, bool) {
	var errs []error
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	} else {
		errs = []error{err}
	}

	var latest time.Time
	for _, e := range errs {
		hint, ok := driver.ReservationTimeHint(e)
		if !ok {
			return time.Time{}, false
		}
		if hint.After(latest) {
			latest = hint
		}
	}
	return latest, true
}

// reload runs the full pipeline on every provider concurrently.
func reload(ctx context.Context, providers []Provider, slot time.Time, force bool) (network.Roles, network.Networks, error) {
	type outcome struct {
		roles network.Roles
		nets  network.Networks
		err   error
	}
	outcomes := async.Map(ctx, providers, func(ctx context.Context, p Provider) outcome {
		roles, nets, err := p.Init(ctx, force, &slot)
		return outcome{roles: roles, nets: nets, err: err}
	})

	roles, nets := network.Roles{}, network.Networks{}
	var result *multierror.Error
	for _, o := range outcomes {
		if o.err != nil {
			result = multierror.Append(result, o.err)
			continue
		}
		roles.Merge(o.roles)
		nets.Merge(o.nets)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, nil, err
	}
	return roles, nets, nil
}

// teardown destroys every provider. Destroy works by name, so providers
// whose driver already failed still release what the backend holds.
func teardown(ctx context.Context, providers []Provider) error {
	return destroyAll(providers).rollback(ctx)
}

func destroyAll(providers []Provider) undoLog {
	undo := make(undoLog, 0, len(providers))
	for _, p := range providers {
		undo = append(undo, func(ctx context.Context) error {
			if err := p.Destroy(ctx, true); err != nil {
				return fmt.Errorf("%s: %w", p.Name(), err)
			}
			return nil
		})
	}
	return undo
}
