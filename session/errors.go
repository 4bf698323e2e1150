package session

import (
	"errors"
	"fmt"
)

const (
	StepCreateArtifactsDir = "create artifacts dir"
	StepLaunchBrowser      = "launch browser"
	StepNewContext         = "new context"
	StepStartTracing       = "start tracing"
	StepNewPage            = "new page"
)

var (
	// ErrNotAcquired is returned when browser resources are requested outside the ready state.
	ErrNotAcquired = errors.New("session not acquired")
	// ErrClosed is returned when acquiring a session that was already released.
	ErrClosed = errors.New("session closed")
)

// ResourceAcquisitionError reports that a browser resource could not be created.
// All resources created before the failing step have been released when it is returned.
type ResourceAcquisitionError struct {
	Step string
	Err  error
}

func (e *ResourceAcquisitionError) Error() string {
	return fmt.Sprintf("acquiring browser session: %s: %v", e.Step, e.Err)
}

func (e *ResourceAcquisitionError) Unwrap() error {
	return e.Err
}
