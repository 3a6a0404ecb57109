package detector

import (
	"context"
	"fmt"
	"math"

	"github.com/upishield/shikra/internal/domain"
	"github.com/upishield/shikra/internal/history"
)

const (
	anomalyWindowDays = 7
	anomalyMinSamples = 3
	anomalyZThreshold = 2.0
	anomalyScorePerZ  = 15
	anomalyScoreCap   = 80
	anomalyConfidence = 80
)

// Anomaly flags statistically unusual amounts using the z-score of the
// transaction against the sender's recent amount distribution.
type Anomaly struct {
	history *history.Service
}

// NewAnomaly creates the statistical anomaly detector.
func NewAnomaly(hist *history.Service) *Anomaly {
	return &Anomaly{history: hist}
}

func (d *Anomaly) Method() domain.DetectionMethod {
	return domain.MethodAnomaly
}

func (d *Anomaly) Evaluate(ctx context.Context, tx *domain.TransactionContext) (domain.FraudScore, error) {
	recent, err := d.history.Recent(ctx, tx.SenderUPI, anomalyWindowDays)
	if err != nil {
		return zeroScore(domain.MethodAnomaly), fmt.Errorf("anomaly: %w", err)
	}

	if len(recent) < anomalyMinSamples {
		return domain.FraudScore{
			Reasons: []string{"Insufficient history for anomaly detection"},
			Method:  domain.MethodAnomaly,
		}, nil
	}

	var sum float64
	for _, t := range recent {
		sum += t.Amount
	}
	mean := sum / float64(len(recent))

	var variance float64
	for _, t := range recent {
		variance += (t.Amount - mean) * (t.Amount - mean)
	}
	variance /= float64(len(recent))
	stdDev := math.Sqrt(variance)

	zScore := abs(tx.Amount-mean) / max1(stdDev)

	var (
		score   float64
		reasons []string
	)
	if zScore > anomalyZThreshold {
		reasons = append(reasons, fmt.Sprintf("Statistical anomaly: Z-score %.2f", zScore))
		score = math.Min(zScore*anomalyScorePerZ, anomalyScoreCap)
	}

	confidence := 0.0
	if score > 0 {
		confidence = anomalyConfidence
	}

	return domain.FraudScore{
		TotalScore: score,
		Confidence: confidence,
		Reasons:    reasons,
		Method:     domain.MethodAnomaly,
	}, nil
}
