package ai

import (
	"context"
	"errors"
	"log/slog"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	"github.com/hrygo/notesrag/plugin/ai/timeout"
)

// dimensionProbeText is embedded once at startup to learn the provider's output size.
const dimensionProbeText = "dimension probe"

// VerifyEmbeddingDimensions checks that the configured dimension matches both the vectors
// already stored and what the provider actually returns. A mismatch is a
// CONFIGURATION_MISMATCH error. An unreachable provider is only logged, since notes are
// re-embedded by the reconciliation runner once it comes back.
func VerifyEmbeddingDimensions(ctx context.Context, svc EmbeddingService, storedDimensions int) error {
	configured := svc.Dimensions()

	if storedDimensions > 0 && storedDimensions != configured {
		return aierrors.ConfigurationMismatch("stored vectors do not match the configured embedding dimension").
			WithContext("configured", configured).
			WithContext("stored", storedDimensions)
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
	defer cancel()

	// Probe the raw size: Embed already rejects mismatched vectors with ErrDimensionMismatch.
	vectors, err := svc.EmbedBatch(probeCtx, []string{dimensionProbeText})
	if err != nil {
		if actual, ok := mismatchedDimension(err); ok {
			return aierrors.ConfigurationMismatch("embedding provider does not match the configured dimension").
				WithContext("configured", configured).
				WithContext("actual", actual)
		}
		slog.Warn("embedding provider unreachable, skipping dimension check",
			"model", svc.Model(),
			"error", err,
		)
		return nil
	}
	if len(vectors) == 1 && len(vectors[0]) != configured {
		return aierrors.ConfigurationMismatch("embedding provider does not match the configured dimension").
			WithContext("configured", configured).
			WithContext("actual", len(vectors[0]))
	}

	slog.Info("embedding dimension verified", "model", svc.Model(), "dimension", configured)
	return nil
}

func mismatchedDimension(err error) (int, bool) {
	var mismatch *DimensionMismatchError
	if errors.As(err, &mismatch) {
		return mismatch.Got, true
	}
	return 0, false
}
