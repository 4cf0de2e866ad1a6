// Package naming derives backend resource names from the logical job name.
//
// Names are deterministic so that repeated runs of the same experiment find
// the resources of the previous run.
package naming
