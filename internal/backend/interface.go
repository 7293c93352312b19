package backend

import (
	"context"

	"budgetd/internal/store"
)

// CleanupFunc releases the resources a backend holds.
type CleanupFunc func() error

// BackendResult is a ready backend. Reads go straight to Backend; budget
// writes go through Writer, which may also publish export events.
type BackendResult struct {
	Backend store.Backend
	Writer  store.BudgetWriter
	// Ping reports whether the backend can serve requests; nil means always.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend: placeholder data for this user in the current month.
	SampleUser string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
