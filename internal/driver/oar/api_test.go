package oar

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	oarapi "github.com/imamik/reservoir/internal/platform/oar"
)

// fakeAPI is an in-memory testbed. Jobs start running as soon as they are
// submitted unless pending is set.
type fakeAPI struct {
	mu sync.Mutex

	sites   map[string]*oarapi.Site
	vlans   map[string]*oarapi.VLAN
	jobs    map[string][]*oarapi.Job
	nextID  int64
	pending bool

	submitErr   error
	siteErr     map[string]error
	submitted   []oarapi.JobRequest
	siteCalls   int
	deployCalls [][]string
	failDeploy  map[string]bool
	members     map[string][]oarapi.VLANMember
	avail       *oarapi.Availability
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		sites: map[string]*oarapi.Site{
			"rennes": {
				UID:        "rennes",
				Production: oarapi.Network{CIDR: "172.16.96.0/20", Gateway: "172.16.111.254", DNS: "172.16.111.118"},
				Clusters: []oarapi.Cluster{
					{UID: "paravance", Nodes: nodeNames("paravance", "rennes", 4), Interfaces: []string{"eth1"}},
					{UID: "parasilo", Nodes: nodeNames("parasilo", "rennes", 2)},
				},
			},
			"lyon": {
				UID:        "lyon",
				Production: oarapi.Network{CIDR: "172.16.48.0/20", Gateway: "172.16.63.254"},
				Clusters:   []oarapi.Cluster{{UID: "nova", Nodes: nodeNames("nova", "lyon", 3)}},
			},
		},
		vlans: map[string]*oarapi.VLAN{
			"rennes/4": {ID: "4", Kind: "vlan-local", CIDR: "10.24.0.0/18", Gateway: "10.24.255.254"},
		},
		jobs:       map[string][]*oarapi.Job{},
		failDeploy: map[string]bool{},
		members:    map[string][]oarapi.VLANMember{},
		nextID:     100,
	}
}

func nodeNames(cluster, site string, n int) []string {
	out := make([]string, n)
	for i := range n {
		out[i] = fmt.Sprintf("%s-%d.%s.grid5000.fr", cluster, i+1, site)
	}
	return out
}

func notFound() error {
	return &oarapi.APIError{StatusCode: http.StatusNotFound, Message: "not found"}
}

func (f *fakeAPI) Site(_ context.Context, site string) (*oarapi.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.siteCalls++
	s, ok := f.sites[site]
	if !ok {
		return nil, notFound()
	}
	return s, nil
}

func (f *fakeAPI) VLAN(_ context.Context, site, id string) (*oarapi.VLAN, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vlans[site+"/"+id]
	if !ok {
		return nil, notFound()
	}
	return v, nil
}

func (f *fakeAPI) SetVLANMembers(_ context.Context, site, id string, members []oarapi.VLANMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[site+"/"+id] = members
	return nil
}

func (f *fakeAPI) SubmitJob(_ context.Context, site string, req oarapi.JobRequest) (*oarapi.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if err := f.siteErr[site]; err != nil {
		return nil, err
	}
	f.submitted = append(f.submitted, req)
	f.nextID++

	job := &oarapi.Job{ID: f.nextID, Name: req.Name, Site: site, State: oarapi.StateRunning, Walltime: req.Walltime}
	if f.pending {
		job.State = oarapi.StateWaiting
	}
	taken := map[string]bool{}
	for _, nr := range req.Nodes {
		if len(nr.Servers) > 0 {
			job.Nodes = append(job.Nodes, nr.Servers...)
			continue
		}
		for _, c := range f.sites[site].Clusters {
			if c.UID != nr.Cluster {
				continue
			}
			count := 0
			for _, n := range c.Nodes {
				if count < nr.Count && !taken[n] {
					taken[n] = true
					job.Nodes = append(job.Nodes, n)
					count++
				}
			}
		}
	}
	for _, nr := range req.Networks {
		if nr.Kind == "vlan-local" {
			job.VLANs = append(job.VLANs, "4")
		}
	}
	f.jobs[site] = append(f.jobs[site], job)
	return job, nil
}

func (f *fakeAPI) Jobs(_ context.Context, site, name string, states ...string) ([]oarapi.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []oarapi.Job
	for _, j := range f.jobs[site] {
		if (name == "" || j.Name == name) && (len(states) == 0 || slices.Contains(states, j.State)) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeAPI) Job(_ context.Context, site string, id int64) (*oarapi.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs[site] {
		if j.ID == id {
			c := *j
			return &c, nil
		}
	}
	return nil, notFound()
}

func (f *fakeAPI) DeleteJob(_ context.Context, site string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs[site] {
		if j.ID == id {
			j.State = oarapi.StateTerminated
			return nil
		}
	}
	return notFound()
}

func (f *fakeAPI) Deploy(_ context.Context, site string, req oarapi.DeploymentRequest) (*oarapi.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployCalls = append(f.deployCalls, slices.Clone(req.Nodes))
	return &oarapi.Deployment{ID: fmt.Sprintf("d%d", len(f.deployCalls)), Site: site, Status: oarapi.DeploymentProcessing, Nodes: req.Nodes}, nil
}

func (f *fakeAPI) Deployment(_ context.Context, site, id string) (*oarapi.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var idx int
	_, _ = fmt.Sscanf(id, "d%d", &idx)
	nodes := f.deployCalls[idx-1]
	result := map[string]string{}
	for _, n := range nodes {
		if f.failDeploy[n] {
			result[n] = oarapi.NodeKO
		} else {
			result[n] = oarapi.NodeOK
		}
	}
	return &oarapi.Deployment{ID: id, Site: site, Status: oarapi.DeploymentTerminated, Nodes: nodes, Result: result}, nil
}

func (f *fakeAPI) Availability(_ context.Context, _ string, start, end time.Time) (*oarapi.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.avail == nil {
		return nil, fmt.Errorf("no availability configured")
	}
	a := *f.avail
	a.Start, a.End = start.Unix(), end.Unix()
	return &a, nil
}
