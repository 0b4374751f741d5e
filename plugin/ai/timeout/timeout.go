// Package timeout defines the deadlines applied to provider calls.
package timeout

import "time"

const (
	// EmbeddingTimeout bounds a single embedding request, query or batch.
	EmbeddingTimeout = 30 * time.Second

	// GenerationTimeout bounds one completion. It starts after a generation slot is acquired.
	GenerationTimeout = 2 * time.Minute

	// ProbeTimeout bounds provider health checks and model listings.
	ProbeTimeout = 10 * time.Second
)
