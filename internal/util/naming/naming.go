package naming

import (
	"fmt"
	"strings"
)

// Job returns the backend job name for a logical experiment name. Backends
// accept letters, digits, dash and underscore only.
func Job(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Server returns the fully qualified node identifier of a cloud server:
// "<cluster>-<index>.<site>.<job>". The first label keeps the
// "<cluster>-<n>" shape of testbed node names.
func Server(job, site, cluster string, index int) string {
	return fmt.Sprintf("%s-%d.%s.%s", cluster, index, site, job)
}

// PrivateNetwork returns the name of a private network created for a
// network group.
func PrivateNetwork(job, networkID string) string {
	return fmt.Sprintf("%s-%s", job, networkID)
}
