package concretize

import (
	"fmt"
	"slices"

	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/spec"
)

type bucketKey struct {
	site string
	kind spec.NetworkKind
}

// Networks binds every network group to backend descriptors, in the order
// of specs. Production networks are shared by every group of their site;
// the other kinds are consumed. A group left without descriptors fails the
// whole call.
func Networks(specs []spec.NetworkGroupSpec, descs []network.Descriptor) ([]network.Network, error) {
	sorted := slices.Clone(descs)
	slices.SortStableFunc(sorted, network.Compare)

	buckets := make(map[bucketKey][]network.Descriptor)
	for _, d := range sorted {
		k := bucketKey{d.Site, d.Kind}
		buckets[k] = append(buckets[k], d)
	}

	out := make([]network.Network, 0, len(specs))
	for _, s := range specs {
		k := bucketKey{s.Site, s.Kind}
		want := s.Kind.Descriptors()
		if len(buckets[k]) < want {
			return nil, &MissingNetworkError{Network: s.ID, Site: s.Site, Kind: s.Kind}
		}

		picked := buckets[k][:want]
		if s.Kind != spec.KindProduction {
			buckets[k] = buckets[k][want:]
		}

		n, err := network.New(s, picked)
		if err != nil {
			return nil, fmt.Errorf("binding network %s: %w", s.ID, err)
		}
		out = append(out, n)
	}
	return out, nil
}
