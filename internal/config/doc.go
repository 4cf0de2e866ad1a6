// Package config loads experiment files and environment tunables.
//
// An experiment file ([Config]) names the logical job, its walltime and
// the providers taking part in it. Each provider entry selects a backend
// and carries the machine and network groups to reserve there. Secrets are
// never read from the file, only from the environment (see [LoadSecrets]).
// Durations and retry ceilings come from [LoadTimeouts].
package config
