// Package hcloud wraps the Hetzner Cloud API for the cloud reservation
// backend.
//
// Servers stand in for testbed nodes: a location plays the part of a site
// and a server type the part of a cluster. Private networks back every
// non-production network group. Every resource carries the labels of the
// job that created it, so a reservation can be found again and torn down
// by label alone.
//
// # Generic Operations
//
// DeleteOperation provides idempotent deletion with retries while the
// resource is locked. EnsureOperation provides get-or-create semantics with
// optional validation of an existing resource.
//
// # Retry and Timeout Configuration
//
// Timeouts and retry parameters come from [config.LoadTimeouts]:
//
//   - RESERVOIR_TIMEOUT_SERVER_CREATE: server creation timeout (default: 10m)
//   - RESERVOIR_TIMEOUT_DELETE: resource deletion timeout (default: 5m)
//   - RESERVOIR_RETRY_MAX_ATTEMPTS: maximum retry attempts (default: 5)
//   - RESERVOIR_RETRY_INITIAL_DELAY: initial retry delay (default: 1s)
package hcloud
