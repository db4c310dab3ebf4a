package backend

import (
	"context"

	"faturas/internal/documents"
	"faturas/internal/sources"
)

// Backend bundles the ports the viewer needs from one data backend.
type Backend struct {
	Name      string
	Records   sources.RecordSource
	Accounts  sources.AccountRecordSource // per-account months query
	Documents sources.DocumentFetcher     // sources.Unavailable when none is configured
	Notifier  documents.Notifier          // nil without AMQP
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
