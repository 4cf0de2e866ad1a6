package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/util/retry"
)

// JobState is the backend lifecycle of a job.
type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobError   JobState = "error"
	JobDone    JobState = "done"
)

// Terminal reports whether the job will not change state anymore.
func (s JobState) Terminal() bool {
	return s == JobError || s == JobDone
}

// Job is a backend reservation.
type Job struct {
	ID       string
	Site     string
	Name     string
	State    JobState
	StartAt  time.Time
	Walltime time.Duration
	Nodes    []string
	Networks []network.Descriptor
}

func (j *Job) String() string {
	return fmt.Sprintf("%s@%s", j.ID, j.Site)
}

// WaitRunning polls jobs every interval until they all run. A job in error
// or done state stops the wait with [ErrJobFailed].
func WaitRunning(ctx context.Context, interval, timeout time.Duration, jobs func(context.Context) ([]*Job, error)) error {
	err := retry.Poll(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		current, err := jobs(ctx)
		if err != nil {
			return false, err
		}
		if len(current) == 0 {
			return false, fmt.Errorf("%w: no job to wait for", ErrJobFailed)
		}
		running := 0
		for _, j := range current {
			switch j.State {
			case JobRunning:
				running++
			case JobError, JobDone:
				return false, fmt.Errorf("%w: job %s is %s", ErrJobFailed, j, j.State)
			}
		}
		return running == len(current), nil
	})
	if errors.Is(err, retry.ErrPollTimeout) {
		return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
	}
	if err != nil {
		return fmt.Errorf("waiting for jobs: %w", err)
	}
	return nil
}
