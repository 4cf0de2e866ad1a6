// Package driver defines the contract between a provider and a reservation
// backend.
//
// A [Driver] owns its backend jobs. It reserves them, waits for them to run,
// reports the raw nodes and networks they hold, images nodes and tears the
// jobs down again. It knows nothing about machine groups: turning its raw
// [Allocation] into groups is the concretization step's job.
//
// Implementations live in sub-packages: oar for batch-scheduled testbeds and
// cloud for Hetzner Cloud.
package driver
