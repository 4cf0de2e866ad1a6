package config

import (
	"time"

	"github.com/imamik/reservoir/internal/spec"
)

// Backend selects the driver flavor of a provider.
type Backend string

const (
	// BackendOAR creates one job per site, named after the experiment.
	BackendOAR Backend = "oar"
	// BackendOARStatic reloads jobs created elsewhere.
	BackendOARStatic Backend = "oar-static"
	// BackendHCloud reserves Hetzner Cloud servers.
	BackendHCloud Backend = "hcloud"
)

// Config is an experiment file.
type Config struct {
	Name     string     `yaml:"name"`
	Walltime Duration   `yaml:"walltime"`
	Window   Duration   `yaml:"window,omitempty"`
	Start    *time.Time `yaml:"start,omitempty"`

	SSH     SSHConfig     `yaml:"ssh,omitempty"`
	Publish PublishConfig `yaml:"publish,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	Providers []ProviderConfig `yaml:"providers"`
}

// SSHConfig configures the connections used to probe and prepare hosts.
type SSHConfig struct {
	User           string `yaml:"user,omitempty"`
	PrivateKeyFile string `yaml:"private_key_file,omitempty"`
}

// PublishConfig names where the resulting inventory is written.
type PublishConfig struct {
	File string    `yaml:"file,omitempty"`
	S3   *S3Config `yaml:"s3,omitempty"`
}

// S3Config is an S3-compatible object storage target.
type S3Config struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	Key      string `yaml:"key"`
}

// MetricsConfig enables the Prometheus endpoint during a run.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// ProviderConfig is one testbed taking part in the experiment.
type ProviderConfig struct {
	Name     string  `yaml:"name"`
	Backend  Backend `yaml:"backend"`
	Endpoint string  `yaml:"endpoint,omitempty"`

	Queue    string   `yaml:"queue,omitempty"`
	Project  string   `yaml:"project,omitempty"`
	JobTypes []string `yaml:"job_type,omitempty"`

	Image       string `yaml:"image,omitempty"`
	KeyFile     string `yaml:"key_file,omitempty"`
	ForceDeploy bool   `yaml:"force_deploy,omitempty"`
	// DHCP brings secondary interfaces up after imaging. Defaults to true.
	DHCP *bool `yaml:"dhcp,omitempty"`

	// Jobs lists existing jobs for the oar-static backend.
	Jobs []JobRef `yaml:"jobs,omitempty"`

	Resources ResourcesConfig `yaml:"resources"`
}

// JobRef points at an existing job.
type JobRef struct {
	Site string `yaml:"site"`
	ID   int64  `yaml:"id"`
}

// ResourcesConfig holds the groups to reserve on a provider.
type ResourcesConfig struct {
	Machines []spec.MachineGroupSpec `yaml:"machines"`
	Networks []spec.NetworkGroupSpec `yaml:"networks"`
}

// DHCPEnabled reports whether secondary interfaces are brought up.
func (p ProviderConfig) DHCPEnabled() bool {
	return p.DHCP == nil || *p.DHCP
}

// Deploys reports whether the provider images its nodes.
func (p ProviderConfig) Deploys() bool {
	for _, t := range p.JobTypes {
		if t == "deploy" {
			return true
		}
	}
	return p.Backend == BackendHCloud
}

// BuildResources validates the provider's groups for the given job.
func (p ProviderConfig) BuildResources(job string) (*spec.Resources, error) {
	b := spec.NewBuilder(job)
	for _, n := range p.Resources.Networks {
		b.AddNetwork(n)
	}
	for _, m := range p.Resources.Machines {
		b.AddMachine(m)
	}
	return b.Build()
}

// Provider returns the provider entry with the given name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
