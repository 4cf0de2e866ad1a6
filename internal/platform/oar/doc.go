// Package oar is a client for the REST API of OAR-scheduled testbeds.
//
// The API is organised per site: every site runs its own scheduler, keeps
// its own jobs and deployments and owns its VLANs. The wire types in this
// package are shared with the local simulator.
package oar
