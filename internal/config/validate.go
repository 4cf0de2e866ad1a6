package config

import (
	"errors"
	"fmt"
	"slices"
)

var validJobTypes = []string{"deploy", "allow_classic_ssh", "exotic", "besteffort"}

// Validate checks the experiment for errors that do not need a backend.
// Resource groups are checked by building them, so a valid Config always
// yields valid resources.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Walltime <= 0 {
		return fmt.Errorf("walltime must be positive")
	}
	if c.Window < 0 {
		return fmt.Errorf("window must not be negative")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	var errs []error
	seen := map[string]bool{}
	for i, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true

		if err := p.validate(c.Name); err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", p.Name, err))
		}
	}

	if c.Publish.S3 != nil && (c.Publish.S3.Bucket == "" || c.Publish.S3.Key == "") {
		errs = append(errs, fmt.Errorf("publish.s3: bucket and key are required"))
	}

	return errors.Join(errs...)
}

func (p ProviderConfig) validate(job string) error {
	switch p.Backend {
	case BackendOAR, BackendOARStatic:
		if p.Endpoint == "" {
			return fmt.Errorf("endpoint is required for backend %s", p.Backend)
		}
	case BackendHCloud:
	default:
		return fmt.Errorf("unknown backend %q", p.Backend)
	}

	if p.Backend == BackendOARStatic && len(p.Jobs) == 0 {
		return fmt.Errorf("backend %s needs at least one job", p.Backend)
	}
	if p.Backend != BackendOARStatic && len(p.Jobs) > 0 {
		return fmt.Errorf("jobs are only used by backend %s", BackendOARStatic)
	}

	for _, t := range p.JobTypes {
		if !slices.Contains(validJobTypes, t) {
			return fmt.Errorf("unknown job type %q", t)
		}
	}
	if p.Deploys() && p.Image == "" {
		return fmt.Errorf("image is required when deploying")
	}

	_, err := p.BuildResources(job)
	return err
}
