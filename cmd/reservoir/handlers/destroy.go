package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/reservoir/internal/inventory"
	"github.com/imamik/reservoir/internal/util/async"
)

// Destroy handles the destroy command.
//
// It releases the reservation of every provider concurrently and removes
// the published inventory.
func Destroy(ctx context.Context, configPath string, wait bool) error {
	s, err := prepare(configPath)
	if err != nil {
		return err
	}

	tasks := make([]async.Task, len(s.providers))
	for i, p := range s.providers {
		tasks[i] = async.Task{Name: p.Name(), Func: func(ctx context.Context) error {
			return p.Destroy(ctx, wait)
		}}
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	sinks, err := s.sinks(ctx, "")
	if err != nil {
		return err
	}
	if err := inventory.Remove(ctx, sinks...); err != nil {
		s.log.Error(err, "failed to remove inventory")
	}

	s.log.Info("experiment destroyed", "providers", len(s.providers))
	return nil
}
