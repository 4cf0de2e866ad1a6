package concretize

import (
	"slices"
	"sort"

	"github.com/imamik/reservoir/internal/spec"
)

// ConcreteGroup is a machine group bound to node identifiers.
type ConcreteGroup struct {
	Nodes []string
	Spec  spec.MachineGroupSpec
}

// Nodes assigns nodeIDs to specs. Groups are returned in the order of
// specs.
//
// Explicit server lists are served first. Cluster groups then take their
// minimum from their cluster, smallest minimum first, and finally are
// topped up to their requested count with whatever is left.
func Nodes(specs []spec.MachineGroupSpec, nodeIDs []string) ([]ConcreteGroup, error) {
	pool := slices.Clone(nodeIDs)
	slices.Sort(pool)
	pool = slices.Compact(pool)

	groups := make([]ConcreteGroup, len(specs))
	for i, s := range specs {
		groups[i] = ConcreteGroup{Spec: s}
	}

	for i, s := range specs {
		if !s.Explicit() {
			continue
		}
		for _, server := range s.Servers {
			if idx, found := slices.BinarySearch(pool, server); found {
				pool = slices.Delete(pool, idx, idx+1)
				groups[i].Nodes = append(groups[i].Nodes, server)
			}
		}
		if len(groups[i].Nodes) < s.Minimum() {
			return nil, &NotEnoughNodesError{GroupID: s.ID, Min: s.Minimum(), Got: len(groups[i].Nodes)}
		}
	}

	buckets := make(map[string][]string)
	for _, id := range pool {
		c := spec.ClusterOf(id)
		buckets[c] = append(buckets[c], id)
	}

	var order []int
	for i, s := range specs {
		if !s.Explicit() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := specs[order[a]], specs[order[b]]
		if sa.HasMin() != sb.HasMin() {
			return sa.HasMin()
		}
		return sa.Minimum() < sb.Minimum()
	})

	take := func(i, n int) {
		c := specs[i].Cluster
		n = min(n, len(buckets[c]))
		groups[i].Nodes = append(groups[i].Nodes, buckets[c][:n]...)
		buckets[c] = buckets[c][n:]
	}

	for _, i := range order {
		s := specs[i]
		if len(buckets[s.Cluster]) < s.Minimum() {
			return nil, &NotEnoughNodesError{
				GroupID: s.ID,
				Cluster: s.Cluster,
				Min:     s.Minimum(),
				Got:     len(buckets[s.Cluster]),
			}
		}
		take(i, s.Minimum())
	}

	for _, i := range order {
		take(i, specs[i].Count-len(groups[i].Nodes))
	}

	return groups, nil
}
