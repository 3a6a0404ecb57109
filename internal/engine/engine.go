// Package engine implements the score aggregator: it fans the four
// detectors out concurrently and combines their outputs into one
// fraud decision.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/upishield/shikra/internal/detector"
	"github.com/upishield/shikra/internal/domain"
)

var tracer = otel.Tracer("shikra-engine")

// Engine orchestrates the detectors against one transaction snapshot.
// Detectors only read store state, so runs against unchanged stores
// are deterministic.
type Engine struct {
	detectors []detector.Detector // fixed order: behavioral, pattern, anomaly, blacklist
	cfg       domain.DetectionConfig
}

// New creates an engine over the four standard detectors.
func New(behavioral, patterns, anomaly, blacklist detector.Detector, cfg domain.DetectionConfig) *Engine {
	if cfg.Weights == nil {
		cfg = domain.DefaultDetectionConfig()
	}
	if cfg.DetectorTimeout <= 0 {
		cfg.DetectorTimeout = domain.DefaultDetectionConfig().DetectorTimeout
	}
	return &Engine{
		detectors: []detector.Detector{behavioral, patterns, anomaly, blacklist},
		cfg:       cfg,
	}
}

// Detect scores a transaction. It always returns a complete Assessment:
// a detector that fails or times out contributes a zero score instead
// of aborting the aggregation. Hard detector failures are additionally
// joined into the returned error so callers (the batch pipeline) can
// surface them per row; a timeout is not a hard failure, its result
// just drops into the default weight bucket.
func (e *Engine) Detect(ctx context.Context, tx *domain.TransactionContext) (*domain.Assessment, error) {
	ctx, span := tracer.Start(ctx, "engine.Detect")
	defer span.End()

	span.SetAttributes(
		attribute.String("tx.sender", tx.SenderUPI),
		attribute.String("tx.receiver", tx.ReceiverUPI),
		attribute.Float64("tx.amount", tx.Amount),
	)

	results := make([]domain.FraudScore, len(e.detectors))
	errs := make([]error, len(e.detectors))

	var wg sync.WaitGroup
	for i, d := range e.detectors {
		wg.Add(1)
		go func(idx int, d detector.Detector) {
			defer wg.Done()

			dctx, cancel := context.WithTimeout(ctx, e.cfg.DetectorTimeout)
			defer cancel()

			score, err := d.Evaluate(dctx, tx)
			switch {
			case err == nil:
				results[idx] = score
			case errors.Is(err, context.DeadlineExceeded):
				// Timed-out detector: fail closed and drop the method
				// tag so the result lands in the default weight bucket.
				results[idx] = domain.FraudScore{}
			default:
				results[idx] = domain.FraudScore{Method: d.Method()}
				errs[idx] = fmt.Errorf("%s: %w", d.Method(), err)
			}
		}(i, d)
	}
	wg.Wait()

	assessment := e.aggregate(results)

	span.SetAttributes(
		attribute.Float64("risk.score", assessment.RiskScore),
		attribute.Bool("risk.fraudulent", assessment.IsFraudulent),
	)

	return assessment, errors.Join(errs...)
}

// aggregate combines detector results with the fixed weighted average.
func (e *Engine) aggregate(results []domain.FraudScore) *domain.Assessment {
	var (
		weightedScore float64
		totalWeight   float64
		confidenceSum float64
		allReasons    []string
	)

	details := make([]domain.DetectionDetail, 0, len(results))

	for _, r := range results {
		weight, ok := e.cfg.Weights[r.Method]
		if !ok {
			weight = e.cfg.DefaultWeight
		}
		weightedScore += r.TotalScore * weight
		totalWeight += weight
		confidenceSum += r.Confidence
		allReasons = append(allReasons, r.Reasons...)

		details = append(details, domain.DetectionDetail{
			Method:     r.Method,
			Score:      r.TotalScore,
			Confidence: r.Confidence,
			Reasons:    r.Reasons,
		})
	}

	finalScore := 0.0
	if totalWeight > 0 {
		finalScore = weightedScore / totalWeight
	}

	confidence := 0.0
	if len(results) > 0 {
		confidence = math.Round(confidenceSum / float64(len(results)))
	}

	// Round before the threshold comparison so that accumulated float
	// error cannot push a score of exactly 60 over the line.
	rounded := math.Round(finalScore*100) / 100

	return &domain.Assessment{
		RiskScore:        rounded,
		IsFraudulent:     rounded > e.cfg.FraudThreshold,
		Confidence:       confidence,
		AllReasons:       allReasons,
		DetectionDetails: details,
	}
}
