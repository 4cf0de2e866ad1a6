// Package cloud reserves Hetzner Cloud servers as if they were testbed
// nodes.
//
// A location plays the part of a site and a server type the part of a
// cluster. Reservations are immediate: the cloud has no calendar, so a
// requested start date is not honored and Feasible only checks that the
// server types can be ordered right now. Servers and private networks are
// labelled with the job name, which makes Reserve idempotent and lets
// Destroy find everything again.
package cloud
