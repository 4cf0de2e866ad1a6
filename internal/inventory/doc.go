// Package inventory renders the outcome of a reservation for the tools that
// run on the hosts afterwards, and publishes it to a file or an S3 bucket.
package inventory
