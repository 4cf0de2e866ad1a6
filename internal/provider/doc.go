// Package provider turns one testbed reservation into hosts ready for use.
//
// A [Provider] owns a driver and the resources requested from it. [Provider.Init]
// runs the whole pipeline: reserve, wait for the jobs, bind nodes and
// networks to the requested groups, attach secondary interfaces, image the
// nodes and prepare them for the tools that run afterwards. The
// reservation settings (start date and walltime) are plain values that the
// slot synchronizer reads and moves through [Provider.Snapshot],
// [Provider.SetReservation] and [Provider.OffsetWalltime].
package provider
