// Package spec describes the resources an experiment asks for.
//
// A [Resources] value is built once through a [Builder], validated, and never
// mutated afterwards. Machine groups select nodes either by cluster and count
// or by an explicit server list, and reference the network groups their
// primary and secondary interfaces attach to. Every machine group carries an
// opaque ID used to re-identify it after its nodes come back from a backend.
package spec
