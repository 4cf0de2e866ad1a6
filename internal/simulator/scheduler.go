package simulator

import (
	"context"
	"slices"

	"github.com/imamik/reservoir/internal/platform/oar"
	"github.com/imamik/reservoir/internal/spec"
)

// free is what a site has left over an interval.
type free struct {
	nodes    map[string][]string
	networks map[spec.NetworkKind][]string
}

// freeOver collects the resources of site that no job holds in [from, to).
func freeOver(ctx context.Context, store *Store, site *SiteSpec, from, to int64) (*free, error) {
	jobs, err := store.Overlapping(ctx, site.UID, from, to)
	if err != nil {
		return nil, err
	}
	busy := map[string]bool{}
	for _, j := range jobs {
		for _, n := range j.Nodes {
			busy[n] = true
		}
		for _, n := range j.Networks {
			busy[n.Kind+"/"+n.Network] = true
		}
	}

	f := &free{nodes: map[string][]string{}, networks: map[spec.NetworkKind][]string{}}
	for i := range site.Clusters {
		c := &site.Clusters[i]
		nodes := []string{}
		for _, n := range site.NodeNames(c) {
			if !busy[n] {
				nodes = append(nodes, n)
			}
		}
		f.nodes[c.UID] = nodes
	}
	for _, kind := range spec.Kinds {
		for _, id := range site.units(kind) {
			if !busy[string(kind)+"/"+id] {
				f.networks[kind] = append(f.networks[kind], id)
			}
		}
	}
	return f, nil
}

// availability renders f for the status endpoint. Network counts are in
// descriptors.
func (f *free) availability(from, to int64) *oar.Availability {
	a := &oar.Availability{
		Start:        from,
		End:          to,
		FreeNodes:    map[string][]string{},
		FreeNetworks: map[string]int{},
	}
	for c, nodes := range f.nodes {
		a.FreeNodes[c] = slices.Clone(nodes)
	}
	for kind, ids := range f.networks {
		a.FreeNetworks[string(kind)] = len(ids) * kind.Descriptors()
	}
	return a
}

// allocate picks resources for req from f. Explicit servers are served
// first, cluster requests get between their minimum and their count.
func (f *free) allocate(req oar.JobRequest) ([]string, []allocated, bool) {
	taken := map[string]bool{}
	var nodes []string

	for _, nr := range req.Nodes {
		for _, s := range nr.Servers {
			if taken[s] || !slices.Contains(f.nodes[spec.ClusterOf(s)], s) {
				return nil, nil, false
			}
			taken[s] = true
			nodes = append(nodes, s)
		}
	}
	for _, nr := range req.Nodes {
		if len(nr.Servers) > 0 {
			continue
		}
		var avail []string
		for _, n := range f.nodes[nr.Cluster] {
			if !taken[n] {
				avail = append(avail, n)
			}
		}
		need := nr.Min
		if need <= 0 {
			need = nr.Count
		}
		if len(avail) < need {
			return nil, nil, false
		}
		for _, n := range avail[:min(nr.Count, len(avail))] {
			taken[n] = true
			nodes = append(nodes, n)
		}
	}

	var nets []allocated
	used := map[spec.NetworkKind]int{}
	for _, r := range req.Networks {
		kind := spec.NetworkKind(r.Kind)
		units := unitsFor(kind, r.Count)
		ids := f.networks[kind]
		if len(ids)-used[kind] < units {
			return nil, nil, false
		}
		for _, id := range ids[used[kind] : used[kind]+units] {
			nets = append(nets, allocated{Kind: r.Kind, Network: id})
		}
		used[kind] += units
	}
	return nodes, nets, true
}

// placement is where a job goes on the calendar.
type placement struct {
	start    int64
	nodes    []string
	networks []allocated
}

// place finds the earliest start from want on that fits req for walltime
// seconds. Resources only come back when a job ends, so the candidates are
// want and every later job end.
func place(ctx context.Context, store *Store, site *SiteSpec, req oar.JobRequest, want int64) (*placement, bool, error) {
	ends, err := store.EndingAfter(ctx, site.UID, want)
	if err != nil {
		return nil, false, err
	}
	for _, start := range append([]int64{want}, ends...) {
		f, err := freeOver(ctx, store, site, start, start+req.Walltime)
		if err != nil {
			return nil, false, err
		}
		if nodes, nets, ok := f.allocate(req); ok {
			return &placement{start: start, nodes: nodes, networks: nets}, true, nil
		}
	}
	return nil, false, nil
}
