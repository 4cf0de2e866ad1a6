package async

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Task represents a named operation.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Result is the outcome of one task.
type Result struct {
	Name string
	Err  error
}

// RunAll starts every task concurrently, waits for all of them and returns
// their results in task order.
func RunAll(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	done := make(chan struct{}, len(tasks))

	for i, task := range tasks {
		go func() {
			defer func() { done <- struct{}{} }()
			results[i] = Result{Name: task.Name, Err: task.Func(ctx)}
		}()
	}
	for range tasks {
		<-done
	}

	return results
}

// RunParallel starts every task concurrently and waits for all of them.
// Failures are combined into one error, each prefixed with its task name.
func RunParallel(ctx context.Context, tasks []Task) error {
	var result *multierror.Error
	for _, res := range RunAll(ctx, tasks) {
		if res.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	return result.ErrorOrNil()
}

// Map applies fn to every item concurrently and returns the outputs in
// input order.
func Map[T, R any](ctx context.Context, items []T, fn func(context.Context, T) R) []R {
	out := make([]R, len(items))
	done := make(chan struct{}, len(items))

	for i, item := range items {
		go func() {
			defer func() { done <- struct{}{} }()
			out[i] = fn(ctx, item)
		}()
	}
	for range items {
		<-done
	}

	return out
}
