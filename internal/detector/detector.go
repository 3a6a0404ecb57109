// Package detector implements the four independent fraud-detection
// signals: behavioral deviation, pattern matching, statistical anomaly,
// and blacklist lookup.
package detector

import (
	"context"

	"github.com/upishield/shikra/internal/domain"
)

// Detector produces one FraudScore for a transaction. Detectors only
// read store state; they never mutate it. Routine no-data conditions
// (new sender, thin history) are expected states with their own reason
// strings, not errors.
type Detector interface {
	// Method is the tag this detector reports under. It determines the
	// aggregation weight bucket.
	Method() domain.DetectionMethod

	Evaluate(ctx context.Context, tx *domain.TransactionContext) (domain.FraudScore, error)
}

// clamp bounds a score or confidence to [0,100].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
