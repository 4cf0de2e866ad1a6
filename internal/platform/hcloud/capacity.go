package hcloud

import (
	"context"
	"fmt"
)

// ServerTypesAvailable reports whether every server type is currently
// orderable in one of the location's datacenters.
func (c *RealClient) ServerTypesAvailable(ctx context.Context, location string, serverTypes []string) (bool, error) {
	datacenters, err := c.client.Datacenter.All(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list datacenters: %w", err)
	}

	available := map[int64]bool{}
	found := false
	for _, dc := range datacenters {
		if dc.Location == nil || dc.Location.Name != location {
			continue
		}
		found = true
		for _, st := range dc.ServerTypes.Available {
			available[st.ID] = true
		}
	}
	if !found {
		return false, fmt.Errorf("location not found: %s", location)
	}

	for _, name := range serverTypes {
		st, _, err := c.client.ServerType.Get(ctx, name)
		if err != nil {
			return false, fmt.Errorf("failed to get server type: %w", err)
		}
		if st == nil || !available[st.ID] {
			return false, nil
		}
	}
	return true, nil
}
