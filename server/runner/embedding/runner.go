package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/notesrag/plugin/ai/rag"
)

const (
	DefaultInterval  = 2 * time.Minute
	DefaultBatchSize = 8
)

// Reconciler embeds notes that lack a current vector.
type Reconciler interface {
	Reconcile(ctx context.Context, limit int) (int, error)
}

var _ Reconciler = (*rag.Indexer)(nil)

// Runner re-embeds notes whose vector is missing, either because embedding failed when the note
// was written or because the embedding model changed.
type Runner struct {
	reconciler Reconciler
	interval   time.Duration
	batchSize  int
	// maxBatches bounds a single pass.
	maxBatches int
}

// NewRunner creates a reconciliation runner. Non-positive values fall back to the defaults.
func NewRunner(reconciler Reconciler, interval time.Duration, batchSize int) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Runner{
		reconciler: reconciler,
		interval:   interval,
		batchSize:  batchSize,
		maxBatches: 20,
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce reconciles batches until nothing is left, a batch fails, or the pass limit is hit.
// It returns the number of notes indexed.
func (r *Runner) RunOnce(ctx context.Context) int {
	total := 0
	for i := 0; i < r.maxBatches; i++ {
		if ctx.Err() != nil {
			slog.Info("embedding reconciliation cancelled", "indexed", total)
			return total
		}

		indexed, err := r.reconciler.Reconcile(ctx, r.batchSize)
		total += indexed
		if err != nil {
			slog.Error("failed to reconcile note embeddings", "indexed", total, "error", err)
			return total
		}
		if indexed < r.batchSize {
			break
		}
	}
	if total > 0 {
		slog.Info("note embeddings reconciled", "count", total)
	}
	return total
}
