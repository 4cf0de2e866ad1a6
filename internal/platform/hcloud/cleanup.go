package hcloud

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// CleanupByLabel deletes every server, private network and SSH key
// matching labels. Servers go first since networks cannot be deleted while
// attached. Every resource type is attempted even when one fails.
func (c *RealClient) CleanupByLabel(ctx context.Context, labels map[string]string) error {
	selector := buildLabelSelector(labels)
	var result *multierror.Error

	if err := c.deleteServersByLabel(ctx, selector); err != nil {
		result = multierror.Append(result, fmt.Errorf("servers: %w", err))
	}

	networks, err := c.client.Network.AllWithOpts(ctx, hcloud.NetworkListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("networks: %w", err))
	}
	for _, n := range networks {
		if err := c.DeleteNetwork(ctx, n.Name); err != nil {
			result = multierror.Append(result, fmt.Errorf("network %q: %w", n.Name, err))
		}
	}

	keys, err := c.client.SSHKey.AllWithOpts(ctx, hcloud.SSHKeyListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("ssh keys: %w", err))
	}
	for _, k := range keys {
		if err := c.DeleteSSHKey(ctx, k.Name); err != nil {
			result = multierror.Append(result, fmt.Errorf("ssh key %q: %w", k.Name, err))
		}
	}

	return result.ErrorOrNil()
}

// deleteServersByLabel deletes all matching servers and waits until they
// are gone.
func (c *RealClient) deleteServersByLabel(ctx context.Context, selector string) error {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}

	var result *multierror.Error
	var actions []*hcloud.Action
	for _, s := range servers {
		res, _, err := c.client.Server.DeleteWithResult(ctx, s)
		if err != nil {
			if !IsNotFound(err) {
				result = multierror.Append(result, fmt.Errorf("server %q: %w", s.Name, err))
			}
			continue
		}
		if res.Action != nil {
			actions = append(actions, res.Action)
		}
	}
	if err := waitForActions(ctx, c.client, actions...); err != nil {
		result = multierror.Append(result, fmt.Errorf("waiting for deletion: %w", err))
	}
	return result.ErrorOrNil()
}

// buildLabelSelector converts labels to a selector string. Keys are sorted
// so the same labels always yield the same selector.
func buildLabelSelector(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + labels[k]
	}
	return strings.Join(parts, ",")
}
