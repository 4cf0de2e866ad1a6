// Package network models the networks and hosts handed out by a testbed.
//
// A [Network] wraps the backend descriptor(s) a network group was bound to.
// The set of kinds is closed: [ProductionNetwork], [VLANNetwork] and
// [SubnetNetwork] cover every [spec.NetworkKind]. Hosts take part in
// networks without owning them; a [Host] registers itself with its primary
// and secondary networks when it is created.
//
// [Roles] and [Networks] are the role-indexed views handed to whatever runs
// commands on the hosts afterwards.
package network
