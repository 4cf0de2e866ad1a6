package spec

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"
)

// Resources is a validated, immutable resource specification.
type Resources struct {
	machines []MachineGroupSpec
	networks []NetworkGroupSpec
}

// Machines returns a copy of the machine groups in declaration order.
func (r *Resources) Machines() []MachineGroupSpec {
	out := make([]MachineGroupSpec, len(r.machines))
	for i, m := range r.machines {
		out[i] = m.clone()
	}
	return out
}

// Networks returns a copy of the network groups in declaration order.
func (r *Resources) Networks() []NetworkGroupSpec {
	out := make([]NetworkGroupSpec, len(r.networks))
	for i, n := range r.networks {
		out[i] = n.clone()
	}
	return out
}

// Network looks up a network group by ID.
func (r *Resources) Network(id string) (NetworkGroupSpec, bool) {
	for _, n := range r.networks {
		if n.ID == id {
			return n.clone(), true
		}
	}
	return NetworkGroupSpec{}, false
}

// Sites returns the sorted set of sites the specification touches.
func (r *Resources) Sites() []string {
	var sites []string
	for _, n := range r.networks {
		sites = append(sites, n.Site)
	}
	for _, m := range r.machines {
		sites = append(sites, m.Site)
	}
	slices.Sort(sites)
	return slices.Compact(sites)
}

// OnSite returns the subset of the specification placed on site.
func (r *Resources) OnSite(site string) *Resources {
	sub := &Resources{}
	for _, m := range r.machines {
		if m.Site == site {
			sub.machines = append(sub.machines, m.clone())
		}
	}
	for _, n := range r.networks {
		if n.Site == site {
			sub.networks = append(sub.networks, n.clone())
		}
	}
	return sub
}

// Builder accumulates groups and validates them in [Builder.Build].
type Builder struct {
	job      string
	machines []MachineGroupSpec
	networks []NetworkGroupSpec
}

// NewBuilder returns a builder for the logical job name. Machine groups
// without an ID get one derived from the job name and their position, so
// that the same description yields the same IDs on every run.
func NewBuilder(job string) *Builder {
	return &Builder{job: job}
}

// AddMachine appends a machine group.
func (b *Builder) AddMachine(m MachineGroupSpec) *Builder {
	b.machines = append(b.machines, m.clone())
	return b
}

// AddNetwork appends a network group.
func (b *Builder) AddNetwork(n NetworkGroupSpec) *Builder {
	b.networks = append(b.networks, n.clone())
	return b
}

// Build validates the accumulated groups and returns the specification.
func (b *Builder) Build() (*Resources, error) {
	var errs ValidationErrors
	fail := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	networks := make(map[string]NetworkGroupSpec, len(b.networks))
	for i, n := range b.networks {
		field := fmt.Sprintf("networks[%d]", i)
		if n.ID == "" {
			fail(field+".id", "network id is required")
		} else if _, dup := networks[n.ID]; dup {
			fail(field+".id", "duplicate network id %q", n.ID)
		}
		if !n.Kind.Valid() {
			fail(field+".kind", "unknown network kind %q", n.Kind)
		}
		if n.Site == "" {
			fail(field+".site", "site is required")
		}
		if len(n.Roles) == 0 {
			fail(field+".roles", "at least one role is required")
		}
		networks[n.ID] = n
	}

	seenIDs := make(map[string]bool, len(b.machines))
	machines := make([]MachineGroupSpec, len(b.machines))
	for i, m := range b.machines {
		field := fmt.Sprintf("machines[%d]", i)
		m = m.clone()

		if m.ID == "" {
			m.ID = groupID(b.job, i)
		}
		if seenIDs[m.ID] {
			fail(field+".id", "duplicate machine group id %q", m.ID)
		}
		seenIDs[m.ID] = true

		if len(m.Roles) == 0 {
			fail(field+".roles", "at least one role is required")
		}

		switch {
		case m.Explicit() && m.Cluster != "":
			fail(field, "cluster and servers are mutually exclusive")
		case m.Explicit():
			if m.Count != 0 && m.Count != len(m.Servers) {
				fail(field+".count", "count %d does not match %d explicit servers", m.Count, len(m.Servers))
			}
		case m.Cluster == "":
			fail(field, "either cluster or servers is required")
		case m.Count <= 0:
			fail(field+".count", "count must be greater than 0, got %d", m.Count)
		}

		if m.Min != nil && (*m.Min < 0 || *m.Min > m.Wanted()) {
			fail(field+".min", "min must be between 0 and %d, got %d", m.Wanted(), *m.Min)
		}

		primary, ok := networks[m.PrimaryNetwork]
		if !ok {
			fail(field+".primary_network", "unknown network %q", m.PrimaryNetwork)
		} else {
			m.Site = primary.Site
			if !primary.Kind.Attachable() {
				fail(field+".primary_network", "%s network %q cannot carry machine interfaces", primary.Kind, primary.ID)
			}
		}

		for j, id := range m.SecondaryNetworks {
			sfield := fmt.Sprintf("%s.secondary_networks[%d]", field, j)
			sec, ok := networks[id]
			switch {
			case !ok:
				fail(sfield, "unknown network %q", id)
			case id == m.PrimaryNetwork:
				fail(sfield, "network %q is already the primary network", id)
			case !sec.Kind.Attachable():
				fail(sfield, "%s network %q cannot carry machine interfaces", sec.Kind, id)
			case m.Site != "" && sec.Site != m.Site:
				fail(sfield, "network %q is on site %q, machines are on %q", id, sec.Site, m.Site)
			}
		}

		for _, server := range m.Servers {
			if s := SiteOf(server); s != "" && m.Site != "" && s != m.Site {
				fail(field+".servers", "server %q is not on site %q", server, m.Site)
			}
		}

		machines[i] = m
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &Resources{machines: machines, networks: slices.Clone(b.networks)}, nil
}

func groupID(job string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(job+"/machines/"+strconv.Itoa(index))).String()
}
