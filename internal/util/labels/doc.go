// Package labels builds the label sets attached to cloud resources owned by
// a reservation.
//
// Every server and private network created for a job carries the job name,
// which is how a later run finds and reloads them instead of creating
// duplicates.
package labels
