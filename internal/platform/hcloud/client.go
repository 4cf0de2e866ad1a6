package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ServerCreateOpts holds all parameters for creating a server.
type ServerCreateOpts struct {
	Name       string
	Image      string
	ServerType string
	Location   string
	SSHKeys    []string
	Labels     map[string]string
}

// ServerProvisioner manages the servers standing in for nodes.
type ServerProvisioner interface {
	// CreateServer creates a server and waits for it to run. An existing
	// server with the same name is returned as is.
	CreateServer(ctx context.Context, opts ServerCreateOpts) (*hcloud.Server, error)
	// RebuildServer reinstalls a server from image.
	RebuildServer(ctx context.Context, name, image string) error
	DeleteServer(ctx context.Context, name string) error
	GetServersByLabel(ctx context.Context, labels map[string]string) ([]*hcloud.Server, error)
	// AttachServerToNetwork attaches a server to a private network. Attaching
	// an already attached server is a no-op.
	AttachServerToNetwork(ctx context.Context, serverName string, networkID int64) error
}

// NetworkManager manages private networks.
type NetworkManager interface {
	EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error)
	EnsureSubnet(ctx context.Context, network *hcloud.Network, ipRange, networkZone string) error
	DeleteNetwork(ctx context.Context, name string) error
	GetNetworksByLabel(ctx context.Context, labels map[string]string) ([]*hcloud.Network, error)
}

// SSHKeyManager manages the key injected into servers.
type SSHKeyManager interface {
	EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error)
	DeleteSSHKey(ctx context.Context, name string) error
}

// CapacityChecker answers whether server types can be ordered.
type CapacityChecker interface {
	// ServerTypesAvailable reports whether every server type can currently
	// be created in location.
	ServerTypesAvailable(ctx context.Context, location string, serverTypes []string) (bool, error)
}

// Client combines everything the cloud backend needs.
type Client interface {
	ServerProvisioner
	NetworkManager
	SSHKeyManager
	CapacityChecker

	// CleanupByLabel deletes every server, network and key matching labels.
	CleanupByLabel(ctx context.Context, labels map[string]string) error
}
