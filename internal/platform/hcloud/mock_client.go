package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// MockClient is a function-field implementation of Client for tests. A nil
// field yields a zero success.
type MockClient struct {
	CreateServerFunc          func(ctx context.Context, opts ServerCreateOpts) (*hcloud.Server, error)
	RebuildServerFunc         func(ctx context.Context, name, image string) error
	DeleteServerFunc          func(ctx context.Context, name string) error
	GetServersByLabelFunc     func(ctx context.Context, labels map[string]string) ([]*hcloud.Server, error)
	AttachServerToNetworkFunc func(ctx context.Context, serverName string, networkID int64) error

	EnsureNetworkFunc      func(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error)
	EnsureSubnetFunc       func(ctx context.Context, network *hcloud.Network, ipRange, networkZone string) error
	DeleteNetworkFunc      func(ctx context.Context, name string) error
	GetNetworksByLabelFunc func(ctx context.Context, labels map[string]string) ([]*hcloud.Network, error)

	EnsureSSHKeyFunc func(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error)
	DeleteSSHKeyFunc func(ctx context.Context, name string) error

	ServerTypesAvailableFunc func(ctx context.Context, location string, serverTypes []string) (bool, error)
	CleanupByLabelFunc       func(ctx context.Context, labels map[string]string) error
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) CreateServer(ctx context.Context, opts ServerCreateOpts) (*hcloud.Server, error) {
	if m.CreateServerFunc != nil {
		return m.CreateServerFunc(ctx, opts)
	}
	return &hcloud.Server{Name: opts.Name, Labels: opts.Labels, Status: hcloud.ServerStatusRunning}, nil
}

func (m *MockClient) RebuildServer(ctx context.Context, name, image string) error {
	if m.RebuildServerFunc != nil {
		return m.RebuildServerFunc(ctx, name, image)
	}
	return nil
}

func (m *MockClient) DeleteServer(ctx context.Context, name string) error {
	if m.DeleteServerFunc != nil {
		return m.DeleteServerFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) GetServersByLabel(ctx context.Context, labels map[string]string) ([]*hcloud.Server, error) {
	if m.GetServersByLabelFunc != nil {
		return m.GetServersByLabelFunc(ctx, labels)
	}
	return nil, nil
}

func (m *MockClient) AttachServerToNetwork(ctx context.Context, serverName string, networkID int64) error {
	if m.AttachServerToNetworkFunc != nil {
		return m.AttachServerToNetworkFunc(ctx, serverName, networkID)
	}
	return nil
}

func (m *MockClient) EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error) {
	if m.EnsureNetworkFunc != nil {
		return m.EnsureNetworkFunc(ctx, name, ipRange, labels)
	}
	return &hcloud.Network{Name: name, Labels: labels}, nil
}

func (m *MockClient) EnsureSubnet(ctx context.Context, network *hcloud.Network, ipRange, networkZone string) error {
	if m.EnsureSubnetFunc != nil {
		return m.EnsureSubnetFunc(ctx, network, ipRange, networkZone)
	}
	return nil
}

func (m *MockClient) DeleteNetwork(ctx context.Context, name string) error {
	if m.DeleteNetworkFunc != nil {
		return m.DeleteNetworkFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) GetNetworksByLabel(ctx context.Context, labels map[string]string) ([]*hcloud.Network, error) {
	if m.GetNetworksByLabelFunc != nil {
		return m.GetNetworksByLabelFunc(ctx, labels)
	}
	return nil, nil
}

func (m *MockClient) EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error) {
	if m.EnsureSSHKeyFunc != nil {
		return m.EnsureSSHKeyFunc(ctx, name, publicKey, labels)
	}
	return &hcloud.SSHKey{Name: name, PublicKey: publicKey}, nil
}

func (m *MockClient) DeleteSSHKey(ctx context.Context, name string) error {
	if m.DeleteSSHKeyFunc != nil {
		return m.DeleteSSHKeyFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) ServerTypesAvailable(ctx context.Context, location string, serverTypes []string) (bool, error) {
	if m.ServerTypesAvailableFunc != nil {
		return m.ServerTypesAvailableFunc(ctx, location, serverTypes)
	}
	return true, nil
}

func (m *MockClient) CleanupByLabel(ctx context.Context, labels map[string]string) error {
	if m.CleanupByLabelFunc != nil {
		return m.CleanupByLabelFunc(ctx, labels)
	}
	return nil
}
