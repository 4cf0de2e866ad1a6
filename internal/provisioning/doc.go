// Package provisioning runs ordered provisioning pipelines and reports
// their progress.
//
// # Subpackages
//
//   - concretize/: binds a resource specification to backend allocations
//   - deploy/: images hosts, retrying partial failures
//
// # Core Types
//
// Context carries the request context and the Observer. Phase is one named
// step. RunPhases executes phases strictly in order and stops at the first
// failure, emitting phase events along the way.
package provisioning
