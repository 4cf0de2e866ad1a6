// Package concretize binds a resource specification to what a backend
// actually handed out.
//
// Backends return flat, unordered lists of node identifiers and network
// descriptors. [Nodes] and [Networks] map them onto machine and network
// groups deterministically: the same set of identifiers always produces
// the same assignment, whatever order the backend listed them in. This is
// what makes reloading a reservation equivalent to creating it.
package concretize
