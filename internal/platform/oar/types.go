package oar

// Job states reported by the scheduler.
const (
	StateWaiting    = "waiting"
	StateLaunching  = "launching"
	StateRunning    = "running"
	StateError      = "error"
	StateTerminated = "terminated"
)

// Deployment states.
const (
	DeploymentProcessing = "processing"
	DeploymentTerminated = "terminated"
	DeploymentError      = "error"
)

// Per-node deployment results.
const (
	NodeOK = "ok"
	NodeKO = "ko"
)

// Error codes of 400 responses to job submissions.
const (
	CodeInvalidReservationTime = "invalid_reservation_time"
	CodeReservationTooOld      = "reservation_too_old"
)

// Network is an infrastructure network.
type Network struct {
	CIDR    string `json:"cidr"`
	Gateway string `json:"gateway,omitempty"`
	DNS     string `json:"dns,omitempty"`
}

// Cluster is a set of homogeneous nodes.
type Cluster struct {
	UID   string   `json:"uid"`
	Nodes []string `json:"nodes"`
	// Interfaces lists the devices usable for secondary networks.
	Interfaces []string `json:"interfaces,omitempty"`
}

// Site is the metadata of one site.
type Site struct {
	UID        string    `json:"uid"`
	Production Network   `json:"production"`
	Clusters   []Cluster `json:"clusters"`
}

// VLAN is a reservable VLAN.
type VLAN struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	CIDR    string `json:"cidr"`
	Gateway string `json:"gateway,omitempty"`
	DNS     string `json:"dns,omitempty"`
}

// Subnet is a reservable subnet block.
type Subnet struct {
	CIDR    string `json:"cidr"`
	Kind    string `json:"kind"`
	Gateway string `json:"gateway,omitempty"`
	DNS     string `json:"dns,omitempty"`
}

// NodeRequest asks for nodes by cluster or by name. The scheduler grants
// between Min and Count cluster nodes.
type NodeRequest struct {
	Cluster         string   `json:"cluster,omitempty"`
	Count           int      `json:"count,omitempty"`
	Min             int      `json:"min,omitempty"`
	Servers         []string `json:"servers,omitempty"`
	ReservableDisks bool     `json:"reservable_disks,omitempty"`
}

// NetworkRequest asks for networks of one kind.
type NetworkRequest struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// JobRequest is the body of a job submission.
type JobRequest struct {
	Name     string           `json:"name"`
	Nodes    []NodeRequest    `json:"nodes,omitempty"`
	Networks []NetworkRequest `json:"networks,omitempty"`
	// Walltime is in seconds.
	Walltime int64 `json:"walltime"`
	// Reservation is a unix timestamp. Zero asks for the earliest start.
	Reservation int64    `json:"reservation,omitempty"`
	Types       []string `json:"types,omitempty"`
	Queue       string   `json:"queue,omitempty"`
	Project     string   `json:"project,omitempty"`
}

// Job is a scheduled job.
type Job struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Site        string   `json:"site"`
	State       string   `json:"state"`
	ScheduledAt int64    `json:"scheduled_at,omitempty"`
	StartedAt   int64    `json:"started_at,omitempty"`
	Walltime    int64    `json:"walltime"`
	Types       []string `json:"types,omitempty"`
	Nodes       []string `json:"nodes,omitempty"`
	VLANs       []string `json:"vlans,omitempty"`
	Subnets     []Subnet `json:"subnets,omitempty"`
}

// DeploymentRequest asks for nodes to be imaged.
type DeploymentRequest struct {
	Nodes       []string `json:"nodes"`
	Environment string   `json:"environment"`
	Key         string   `json:"key,omitempty"`
	VLAN        string   `json:"vlan,omitempty"`
}

// Deployment is an imaging request and its outcome.
type Deployment struct {
	ID     string            `json:"id"`
	Site   string            `json:"site"`
	Status string            `json:"status"`
	Nodes  []string          `json:"nodes"`
	Result map[string]string `json:"result,omitempty"`
}

// VLANMember places a node device in a VLAN.
type VLANMember struct {
	Node      string `json:"node"`
	Interface string `json:"interface"`
}

// Availability is what is free on a site over an interval.
type Availability struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	// FreeNodes maps a cluster to the nodes free over the whole interval.
	FreeNodes map[string][]string `json:"free_nodes"`
	// FreeNetworks maps a network kind to the number of free networks.
	FreeNetworks map[string]int `json:"free_networks"`
}
