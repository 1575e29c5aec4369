// Package backend builds the storage backend and the optional event
// publisher selected by configuration.
package backend

import (
	"context"

	"edufund/internal/ports"
	"edufund/internal/services"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result is a ready backend. Publisher is nil when AMQP is not configured.
type Result struct {
	Store     ports.Store
	Publisher services.EventPublisher
	// Ping reports whether the store is reachable.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
