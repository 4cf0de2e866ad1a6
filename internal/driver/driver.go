package driver

import (
	"context"
	"time"

	"github.com/imamik/reservoir/internal/network"
)

// Job types understood by every backend.
const (
	TypeDeploy          = "deploy"
	TypeAllowClassicSSH = "allow_classic_ssh"
	TypeExotic          = "exotic"
	TypeBestEffort      = "besteffort"
)

// Reservation holds the timing of a reservation request.
type Reservation struct {
	// Start is the requested start date. Nil asks for the earliest
	// possible start.
	Start    *time.Time
	Walltime time.Duration
}

// End returns the end of the reservation, or the zero time when it has no
// fixed start.
func (r Reservation) End() time.Time {
	if r.Start == nil {
		return time.Time{}
	}
	return r.Start.Add(r.Walltime)
}

// Allocation is what a backend handed out for every job of a driver.
type Allocation struct {
	Nodes    []string
	Networks []network.Descriptor
	// Interfaces maps a node to the devices available for secondary
	// networks, in order.
	Interfaces map[string][]string
	// Addresses maps a node to the address it is reached at, for backends
	// whose node names do not resolve.
	Addresses map[string]string
}

// DeployOptions configure an imaging request.
type DeployOptions struct {
	Image     string
	PublicKey string
	// VLAN places the primary interface of the nodes in a VLAN.
	VLAN string
}

// Driver is a reservation backend.
type Driver interface {
	// Name identifies the driver in logs.
	Name() string

	// Reserve submits, or reloads, the jobs. It returns once the backend
	// acknowledged them, not once they run.
	Reserve(ctx context.Context, r Reservation) error

	// Wait polls until every job runs. A job in error is fatal.
	Wait(ctx context.Context) error

	// Jobs returns the current state of every job.
	Jobs(ctx context.Context) ([]*Job, error)

	// Resources returns the nodes and networks of the running jobs.
	Resources(ctx context.Context) (*Allocation, error)

	// Deploy images nodes of one site and reports which ones succeeded.
	// A non-nil error means the request itself failed.
	Deploy(ctx context.Context, site string, nodes []string, opts DeployOptions) (deployed, undeployed []string, err error)

	// AttachNetwork places host devices into a network.
	AttachNetwork(ctx context.Context, site string, net network.Descriptor, attachments []network.Attachment) error

	// Feasible probes, without side effects, whether the demand fits
	// between start and end.
	Feasible(ctx context.Context, start, end time.Time) (bool, error)

	// Exists reports whether jobs with the driver's name already exist.
	Exists(ctx context.Context) (bool, error)

	// Destroy releases the jobs. With wait set it returns once the backend
	// reports them gone.
	Destroy(ctx context.Context, wait bool) error

	State() State
}
