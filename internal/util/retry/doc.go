// Package retry provides the two waiting strategies used against remote
// testbed APIs.
//
// [WithExponentialBackoff] retries a failing call with growing delays and is
// reserved for transient transport errors. [Poll] re-checks a condition at a
// fixed interval and is used wherever the backend is asked "are you done
// yet", such as waiting for a job to run or a deployment to terminate.
package retry
