// Package s3 uploads reservation inventories to S3-compatible object
// storage.
//
// Only the handful of calls the publisher needs are wrapped: ensuring the
// bucket, putting and fetching an object, and removing it again on destroy.
// Errors from S3-compatible services that do not return the SDK's typed
// errors are classified by their API error code.
package s3
