// Package deploy images hosts with a bounded number of attempts.
//
// Hosts are handled per (site, primary network) partition. Unless a
// redeploy is forced, a partition is first probed for hosts already
// running the requested image; the rest is imaged, retrying whatever the
// backend reports as failed, up to a fixed number of attempts. Hosts still
// failing after that are reported, not returned as an error: the caller
// decides whether partial success is acceptable.
package deploy
