package concretize

import (
	"fmt"

	"github.com/imamik/reservoir/internal/spec"
)

// NotEnoughNodesError is returned when a group gets fewer nodes than its
// minimum.
type NotEnoughNodesError struct {
	GroupID string
	Cluster string
	Min     int
	Got     int
}

func (e *NotEnoughNodesError) Error() string {
	where := e.Cluster
	if where == "" {
		where = "explicit servers"
	}
	return fmt.Sprintf("group %s (%s): got %d nodes, need at least %d", e.GroupID, where, e.Got, e.Min)
}

// MissingNetworkError is returned when no descriptor is left for a network
// group.
type MissingNetworkError struct {
	Network string
	Site    string
	Kind    spec.NetworkKind
}

func (e *MissingNetworkError) Error() string {
	return fmt.Sprintf("network %s: no %s network left on site %s", e.Network, e.Kind, e.Site)
}
