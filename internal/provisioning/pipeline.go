package provisioning

import (
	"context"
	"fmt"
	"time"
)

// Context is passed to every phase.
type Context struct {
	context.Context
	Observer Observer
}

// NewContext wraps ctx.
func NewContext(ctx context.Context, observer Observer) *Context {
	return &Context{Context: ctx, Observer: observer}
}

// Phase is one step of a pipeline.
type Phase interface {
	Name() string
	Provision(ctx *Context) error
}

type funcPhase struct {
	name string
	fn   func(*Context) error
}

func (p funcPhase) Name() string                 { return p.name }
func (p funcPhase) Provision(ctx *Context) error { return p.fn(ctx) }

// NewPhase returns a phase running fn.
func NewPhase(name string, fn func(*Context) error) Phase {
	return funcPhase{name: name, fn: fn}
}

// RunPhases executes phases sequentially. A failing phase stops the run.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()

	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s phase not started: %w", phase.Name(), err)
		}

		phaseStart := time.Now()
		LogPhaseStart(ctx.Observer, phase.Name())
		ctx.Observer.Progress(phase.Name(), i+1, len(phases))

		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, phase.Name(), err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, phase.Name(), time.Since(phaseStart))
	}

	ctx.Observer.Printf("%d phases completed in %v", len(phases), time.Since(start).Round(time.Millisecond))
	return nil
}
