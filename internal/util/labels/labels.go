package labels

import "maps"

// Label keys, namespaced under reservoir.io.
const (
	// KeyJob identifies the logical job a resource belongs to.
	KeyJob = "reservoir.io/job"

	// KeyGroup carries the machine group ID of a server.
	KeyGroup = "reservoir.io/group"

	// KeyNetwork carries the network group ID of a private network.
	KeyNetwork = "reservoir.io/network"

	// KeySite records the location a resource was placed in.
	KeySite = "reservoir.io/site"

	KeyManagedBy = "reservoir.io/managed-by"
)

// ManagedByReservoir is the default KeyManagedBy value.
const ManagedByReservoir = "reservoir"

// LabelBuilder assembles a label map.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder returns a builder with the job name and manager pre-set.
func NewLabelBuilder(job string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyJob:       job,
			KeyManagedBy: ManagedByReservoir,
		},
	}
}

// WithGroup sets the machine group ID.
func (lb *LabelBuilder) WithGroup(id string) *LabelBuilder {
	lb.labels[KeyGroup] = id
	return lb
}

// WithNetwork sets the network group ID.
func (lb *LabelBuilder) WithNetwork(id string) *LabelBuilder {
	lb.labels[KeyNetwork] = id
	return lb
}

// WithSite sets the site label.
func (lb *LabelBuilder) WithSite(site string) *LabelBuilder {
	lb.labels[KeySite] = site
	return lb
}

// Merge adds all labels from extra, overriding existing keys.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	maps.Copy(lb.labels, extra)
	return lb
}

// Build returns a copy of the labels.
func (lb *LabelBuilder) Build() map[string]string {
	return maps.Clone(lb.labels)
}

// SelectorForJob returns a label selector matching every resource of job.
func SelectorForJob(job string) string {
	return KeyJob + "=" + job
}
