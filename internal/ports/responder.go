package ports

import (
	"context"
)

// RunReport summarizes one responder pass
type RunReport struct {
	Threads int
	// Replied counts replies sent, or drafted when DryRun is set
	Replied   int
	Skipped   int
	Failed    int
	Malformed []string
	// Conflicts lists ids that appeared more than once with differing content
	Conflicts []string
	DryRun    bool
}

// Responder drives the fetch, reconstruct and reply cycle
type Responder interface {
	// RunOnce performs a single pass over the folder
	RunOnce(ctx context.Context) (*RunReport, error)

	// Start starts the responder service
	Start() error

	// Stop stops the responder service
	Stop() error
}
