package detector

import (
	"context"
	"errors"
	"fmt"

	"github.com/upishield/shikra/internal/domain"
)

// blacklistSeverityScore is steeper than the pattern table: a curated
// report is stronger evidence than a heuristic match.
var blacklistSeverityScore = map[domain.Severity]float64{
	domain.SeverityLow:      20,
	domain.SeverityMedium:   40,
	domain.SeverityHigh:     70,
	domain.SeverityCritical: 100,
}

const blacklistConfidence = 95

// Blacklist checks the receiver against the curated blacklist.
// It reports under the pattern_matching method tag and therefore
// shares that bucket's aggregation weight.
type Blacklist struct {
	entries domain.BlacklistRepository
}

// NewBlacklist creates the blacklist checker.
func NewBlacklist(entries domain.BlacklistRepository) *Blacklist {
	return &Blacklist{entries: entries}
}

func (d *Blacklist) Method() domain.DetectionMethod {
	return domain.MethodPatternMatching
}

func (d *Blacklist) Evaluate(ctx context.Context, tx *domain.TransactionContext) (domain.FraudScore, error) {
	entry, err := d.entries.GetBlacklistEntry(ctx, tx.ReceiverUPI, domain.IdentifierUPI)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return zeroScore(domain.MethodPatternMatching), nil
		}
		return zeroScore(domain.MethodPatternMatching), fmt.Errorf("blacklist: lookup failed: %w", err)
	}

	return domain.FraudScore{
		TotalScore: clamp(blacklistSeverityScore[entry.Severity]),
		Confidence: blacklistConfidence,
		Reasons: []string{
			fmt.Sprintf("Blacklisted receiver: %s (reports: %d)", entry.Reason, entry.ReportCount),
		},
		Method: domain.MethodPatternMatching,
	}, nil
}
