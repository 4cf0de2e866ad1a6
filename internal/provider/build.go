package provider

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/reservoir/internal/config"
	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/driver/cloud"
	"github.com/imamik/reservoir/internal/driver/oar"
	hcloudapi "github.com/imamik/reservoir/internal/platform/hcloud"
	oarapi "github.com/imamik/reservoir/internal/platform/oar"
	"github.com/imamik/reservoir/internal/provisioning"
	"github.com/imamik/reservoir/internal/provisioning/deploy"
	"github.com/imamik/reservoir/internal/spec"
	"github.com/imamik/reservoir/internal/util/retry"
)

// Deps are the collaborators shared by every provider of an experiment.
type Deps struct {
	Secrets  config.Secrets
	Timeouts *config.Timeouts
	Prober   deploy.Prober
	Executor Executor
	Observer provisioning.Observer
	Log      logr.Logger
	// HTTPClient is used by testbed API clients. Nil uses their default.
	HTTPClient *http.Client
}

// JobName is the backend name of the reservation of provider in
// experiment.
func JobName(experiment, provider string) string {
	return experiment + "-" + provider
}

// FromConfig builds one Provider per configured testbed. Providers talking
// to the same testbed API share its metadata cache.
func FromConfig(cfg *config.Config, deps Deps) ([]*Provider, error) {
	if deps.Timeouts == nil {
		deps.Timeouts = config.LoadTimeouts()
	}
	if deps.Observer == nil {
		deps.Observer = provisioning.NewLogObserver(deps.Log)
	}

	meta := map[string]*oar.Metadata{}
	providers := make([]*Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		job := JobName(cfg.Name, pc.Name)
		res, err := pc.BuildResources(job)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		publicKey, err := readPublicKey(pc.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}

		if _, ok := meta[pc.Endpoint]; !ok {
			meta[pc.Endpoint] = oar.NewMetadata(deps.Timeouts.CacheTTL)
		}
		drv, err := newDriver(job, pc, res, publicKey, meta[pc.Endpoint], deps)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}

		providers = append(providers, New(pc.Name, drv, res, Options{
			Walltime:          cfg.Walltime.Std(),
			Start:             cfg.Start,
			Deploy:            pc.Deploys(),
			Image:             pc.Image,
			PublicKey:         publicKey,
			ForceDeploy:       pc.ForceDeploy,
			DHCP:              pc.DHCPEnabled(),
			MaxDeployAttempts: deps.Timeouts.DeployAttempts,
			Prober:            deps.Prober,
			Executor:          deps.Executor,
			Observer:          deps.Observer,
		}))
	}
	return providers, nil
}

func newDriver(job string, pc config.ProviderConfig, res *spec.Resources, publicKey string, meta *oar.Metadata, deps Deps) (driver.Driver, error) {
	t := deps.Timeouts
	log := deps.Log.WithValues("provider", pc.Name)

	switch pc.Backend {
	case config.BackendOAR, config.BackendOARStatic:
		opts := []oarapi.ClientOption{
			oarapi.WithToken(deps.Secrets.OARToken),
			oarapi.WithRetry(retry.WithMaxRetries(t.RetryMaxAttempts), retry.WithInitialDelay(t.RetryInitialDelay)),
		}
		if deps.HTTPClient != nil {
			opts = append(opts, oarapi.WithHTTPClient(deps.HTTPClient))
		}
		api := oarapi.NewClient(pc.Endpoint, opts...)
		timing := oar.Timing{PollInterval: t.PollInterval, WaitTimeout: t.WaitTimeout, DeployTimeout: t.DeployTimeout}

		if pc.Backend == config.BackendOARStatic {
			refs := make([]oar.JobRef, len(pc.Jobs))
			for i, j := range pc.Jobs {
				refs[i] = oar.JobRef{Site: j.Site, ID: j.ID}
			}
			return oar.NewStaticDriver(api, job, refs, meta, timing, log), nil
		}
		return oar.NewJobDriver(api, oar.JobConfig{
			Name:      job,
			Resources: res,
			Queue:     pc.Queue,
			Project:   pc.Project,
			Types:     pc.JobTypes,
		}, meta, timing, log), nil

	case config.BackendHCloud:
		token := deps.Secrets.HCloudToken
		if token == "" {
			return nil, fmt.Errorf("HCLOUD_TOKEN is not set")
		}
		opts := []hcloudapi.ClientOption{hcloudapi.WithTimeouts(t)}
		if pc.Endpoint != "" {
			hopts := []hcloud.ClientOption{
				hcloud.WithToken(token),
				hcloud.WithEndpoint(pc.Endpoint),
				hcloud.WithApplication("reservoir", ""),
			}
			if deps.HTTPClient != nil {
				hopts = append(hopts, hcloud.WithHTTPClient(deps.HTTPClient))
			}
			opts = append(opts, hcloudapi.WithHCloudClient(hcloud.NewClient(hopts...)))
		}
		client := hcloudapi.NewRealClient(token, opts...)
		return cloud.NewDriver(client, cloud.Config{
			Job:       job,
			Resources: res,
			Image:     pc.Image,
			PublicKey: publicKey,
		}, cloud.Timing{PollInterval: t.PollInterval, WaitTimeout: t.WaitTimeout, SSHPort: 22}, log), nil
	}
	return nil, fmt.Errorf("unknown backend %q", pc.Backend)
}

func readPublicKey(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read public key: %w", err)
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey(data); err != nil {
		return "", fmt.Errorf("invalid public key %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
