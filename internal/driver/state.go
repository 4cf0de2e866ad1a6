package driver

import (
	"errors"
	"fmt"
	"sync"
)

// State is the driver lifecycle.
type State string

const (
	StateUnbound    State = "unbound"
	StateReserving  State = "reserving"
	StateActive     State = "active"
	StateError      State = "error"
	StateDestroying State = "destroying"
	StateDestroyed  State = "destroyed"
)

// ErrInvalidTransition is returned for a transition the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid driver state transition")

var transitions = map[State][]State{
	StateUnbound:    {StateReserving, StateDestroying},
	StateReserving:  {StateActive, StateError, StateDestroying},
	StateActive:     {StateReserving, StateDestroying},
	StateError:      {StateReserving, StateDestroying},
	StateDestroying: {StateDestroyed, StateError},
	StateDestroyed:  {StateReserving, StateDestroying},
}

// Lifecycle tracks a driver's state. The zero value is unbound.
type Lifecycle struct {
	mu    sync.Mutex
	state State
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == "" {
		return StateUnbound
	}
	return l.state
}

// Transition moves to next.
func (l *Lifecycle) Transition(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.state
	if cur == "" {
		cur = StateUnbound
	}
	for _, allowed := range transitions[cur] {
		if allowed == next {
			l.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
}

// Fail moves to the error state from wherever the lifecycle is.
func (l *Lifecycle) Fail() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateError
}
