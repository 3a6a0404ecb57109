package detector

import (
	"context"
	"fmt"

	"github.com/upishield/shikra/internal/domain"
	"github.com/upishield/shikra/internal/rules"
)

// patternSeverityScore is the additive contribution of one matched
// pattern, indexed by severity.
var patternSeverityScore = map[domain.Severity]float64{
	domain.SeverityLow:      10,
	domain.SeverityMedium:   25,
	domain.SeverityHigh:     50,
	domain.SeverityCritical: 100,
}

const patternConfidence = 85

// PatternMatcher checks a transaction against the active fraud
// pattern catalog.
type PatternMatcher struct {
	catalog *rules.Catalog
}

// NewPatternMatcher creates the pattern-matching detector.
func NewPatternMatcher(catalog *rules.Catalog) *PatternMatcher {
	return &PatternMatcher{catalog: catalog}
}

func (d *PatternMatcher) Method() domain.DetectionMethod {
	return domain.MethodPatternMatching
}

func (d *PatternMatcher) Evaluate(ctx context.Context, tx *domain.TransactionContext) (domain.FraudScore, error) {
	var (
		reasons []string
		score   float64
	)

	for _, cp := range d.catalog.Patterns() {
		if d.catalog.Matches(cp, tx) {
			reasons = append(reasons, fmt.Sprintf("Matches pattern: %s", cp.Pattern.Name))
			score += patternSeverityScore[cp.Pattern.Severity]
		}
	}

	confidence := 0.0
	if len(reasons) > 0 {
		confidence = patternConfidence
	}

	return domain.FraudScore{
		TotalScore: clamp(score),
		Confidence: confidence,
		Reasons:    reasons,
		Method:     domain.MethodPatternMatching,
	}, nil
}
