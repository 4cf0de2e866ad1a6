package driver

import (
	"context"
	"sync"
	"time"

	"github.com/imamik/reservoir/internal/network"
)

// MockDriver is a function-field implementation of Driver for tests. A nil
// field yields a zero success. Reserve and Destroy move the reported state
// the way a real driver would.
type MockDriver struct {
	NameValue string

	ReserveFunc       func(ctx context.Context, r Reservation) error
	WaitFunc          func(ctx context.Context) error
	JobsFunc          func(ctx context.Context) ([]*Job, error)
	ResourcesFunc     func(ctx context.Context) (*Allocation, error)
	DeployFunc        func(ctx context.Context, site string, nodes []string, opts DeployOptions) ([]string, []string, error)
	AttachNetworkFunc func(ctx context.Context, site string, net network.Descriptor, attachments []network.Attachment) error
	FeasibleFunc      func(ctx context.Context, start, end time.Time) (bool, error)
	ExistsFunc        func(ctx context.Context) (bool, error)
	DestroyFunc       func(ctx context.Context, wait bool) error

	mu    sync.Mutex
	state State
}

var _ Driver = (*MockDriver)(nil)

func (m *MockDriver) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockDriver) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *MockDriver) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == "" {
		return StateUnbound
	}
	return m.state
}

func (m *MockDriver) Reserve(ctx context.Context, r Reservation) error {
	var err error
	if m.ReserveFunc != nil {
		err = m.ReserveFunc(ctx, r)
	}
	if err != nil {
		m.setState(StateError)
		return err
	}
	m.setState(StateActive)
	return nil
}

func (m *MockDriver) Wait(ctx context.Context) error {
	if m.WaitFunc != nil {
		return m.WaitFunc(ctx)
	}
	return nil
}

func (m *MockDriver) Jobs(ctx context.Context) ([]*Job, error) {
	if m.JobsFunc != nil {
		return m.JobsFunc(ctx)
	}
	return nil, nil
}

func (m *MockDriver) Resources(ctx context.Context) (*Allocation, error) {
	if m.ResourcesFunc != nil {
		return m.ResourcesFunc(ctx)
	}
	return &Allocation{}, nil
}

func (m *MockDriver) Deploy(ctx context.Context, site string, nodes []string, opts DeployOptions) ([]string, []string, error) {
	if m.DeployFunc != nil {
		return m.DeployFunc(ctx, site, nodes, opts)
	}
	return nodes, nil, nil
}

func (m *MockDriver) AttachNetwork(ctx context.Context, site string, net network.Descriptor, attachments []network.Attachment) error {
	if m.AttachNetworkFunc != nil {
		return m.AttachNetworkFunc(ctx, site, net, attachments)
	}
	return nil
}

func (m *MockDriver) Feasible(ctx context.Context, start, end time.Time) (bool, error) {
	if m.FeasibleFunc != nil {
		return m.FeasibleFunc(ctx, start, end)
	}
	return true, nil
}

func (m *MockDriver) Exists(ctx context.Context) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx)
	}
	return m.State() == StateActive, nil
}

func (m *MockDriver) Destroy(ctx context.Context, wait bool) error {
	if m.DestroyFunc != nil {
		if err := m.DestroyFunc(ctx, wait); err != nil {
			return err
		}
	}
	m.setState(StateDestroyed)
	return nil
}
