// Package simulator serves a local testbed speaking the same REST API as
// the real scheduler.
//
// Sites, clusters and networks come from a YAML inventory. Jobs,
// deployments and VLAN memberships live in a sqlite database. Jobs are
// placed on a calendar: a reservation is accepted only when its resources
// are free over its whole interval, and refused with the earliest start
// that would work otherwise.
package simulator
