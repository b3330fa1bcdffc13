package testutil

import "time"

// Timing for require.Eventually in tests that wait on goroutines.
const (
	WaitTimeout  = 2 * time.Second
	PollInterval = 5 * time.Millisecond
)
