package domain

import "time"

type CycleStatus string

const (
	CycleCompleted CycleStatus = "completed"
	CycleSkipped   CycleStatus = "skipped"
)

// CycleResult holds statistics about one polling cycle.
type CycleResult struct {
	Status        CycleStatus
	SkipReason    string
	StartedAt     time.Time
	Fetched       int
	New           int
	Invited       int
	Failed        int
	Unextracted   int
	GivenUp       int
	ResetDetected bool
	Duration      time.Duration
}

// Skipped builds the outcome of a cycle whose preconditions were not met.
func Skipped(reason string) *CycleResult {
	return &CycleResult{Status: CycleSkipped, SkipReason: reason}
}
