// Package oar implements [driver.Driver] on top of OAR-scheduled testbeds.
//
// [JobDriver] submits one job per site, named after the experiment, and
// reloads an existing job with that name instead of submitting a second
// one. [StaticDriver] reloads jobs from identifiers supplied by the caller
// and never creates or deletes anything.
package oar
