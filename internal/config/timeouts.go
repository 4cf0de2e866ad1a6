package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all tunable durations and retry ceilings.
// These values can be customized via environment variables.
type Timeouts struct {
	PollInterval      time.Duration // Interval between job and deployment status polls
	WaitTimeout       time.Duration // Upper bound for jobs to start running
	DeployAttempts    int           // Imaging attempts per partition
	DeployTimeout     time.Duration // Upper bound for a single imaging attempt
	SlotIncrement     time.Duration // Step between candidate start times
	SlotRetries       int           // Retries of refused slot commits, 0 disables them
	StartMargin       time.Duration // Lead time added to "now" for the first candidate
	ServerCreate      time.Duration // Timeout for cloud server creation
	Delete            time.Duration // Timeout for cloud delete operations
	SSHDial           time.Duration // Timeout for a single SSH connection attempt
	CacheTTL          time.Duration // Lifetime of cached site metadata
	RetryMaxAttempts  int           // Maximum number of retry attempts for API calls
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - RESERVOIR_POLL_INTERVAL (default: 5s)
//   - RESERVOIR_WAIT_TIMEOUT (default: 2h)
//   - RESERVOIR_DEPLOY_ATTEMPTS (default: 3)
//   - RESERVOIR_DEPLOY_TIMEOUT (default: 30m)
//   - RESERVOIR_SLOT_INCREMENT (default: 5m)
//   - RESERVOIR_SLOT_RETRIES (default: 5)
//   - RESERVOIR_START_MARGIN (default: 1m)
//   - RESERVOIR_TIMEOUT_SERVER_CREATE (default: 10m)
//   - RESERVOIR_TIMEOUT_DELETE (default: 5m)
//   - RESERVOIR_SSH_DIAL_TIMEOUT (default: 10s)
//   - RESERVOIR_CACHE_TTL (default: 10m)
//   - RESERVOIR_RETRY_MAX_ATTEMPTS (default: 5)
//   - RESERVOIR_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		PollInterval:      parseDuration("RESERVOIR_POLL_INTERVAL", 5*time.Second),
		WaitTimeout:       parseDuration("RESERVOIR_WAIT_TIMEOUT", 2*time.Hour),
		DeployAttempts:    parseInt("RESERVOIR_DEPLOY_ATTEMPTS", 3),
		DeployTimeout:     parseDuration("RESERVOIR_DEPLOY_TIMEOUT", 30*time.Minute),
		SlotIncrement:     parseDuration("RESERVOIR_SLOT_INCREMENT", 5*time.Minute),
		SlotRetries:       parseCount("RESERVOIR_SLOT_RETRIES", 5),
		StartMargin:       parseDuration("RESERVOIR_START_MARGIN", time.Minute),
		ServerCreate:      parseDuration("RESERVOIR_TIMEOUT_SERVER_CREATE", 10*time.Minute),
		Delete:            parseDuration("RESERVOIR_TIMEOUT_DELETE", 5*time.Minute),
		SSHDial:           parseDuration("RESERVOIR_SSH_DIAL_TIMEOUT", 10*time.Second),
		CacheTTL:          parseDuration("RESERVOIR_CACHE_TTL", 10*time.Minute),
		RetryMaxAttempts:  parseInt("RESERVOIR_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("RESERVOIR_RETRY_INITIAL_DELAY", time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses a positive integer from an environment variable.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i <= 0 {
		return defaultVal
	}

	return i
}

// parseCount is parseInt that also accepts zero.
func parseCount(envVar string, defaultVal int) int {
	if os.Getenv(envVar) == "0" {
		return 0
	}
	return parseInt(envVar, defaultVal)
}
