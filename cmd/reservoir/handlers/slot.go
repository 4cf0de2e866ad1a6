package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/reservoir/internal/synchronizer"
)

// Slot handles the slot command.
//
// It looks for the first start date every provider accepts and prints it,
// without reserving anything.
func Slot(ctx context.Context, configPath string, start *time.Time, window time.Duration) error {
	s, err := prepare(configPath)
	if err != nil {
		return err
	}

	from := now().Add(s.timeouts.StartMargin)
	switch {
	case start != nil:
		from = *start
	case s.cfg.Start != nil:
		from = *s.cfg.Start
	}
	if window <= 0 {
		window = s.cfg.Window.Std()
	}

	slot, err := synchronizer.FindSlot(ctx, s.providers, from, window, s.timeouts.SlotIncrement)
	if err != nil {
		return fmt.Errorf("slot search failed: %w", err)
	}
	_, err = fmt.Fprintln(stdout, slot.UTC().Format(time.RFC3339))
	return err
}
