package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/upishield/shikra/internal/domain"
	"github.com/upishield/shikra/internal/history"
)

// Behavioral score increments per triggered check.
const (
	scoreNewUser         = 15
	scoreNoRecentHistory = 10
	scoreAmountDeviation = 25
	scoreHighVelocity    = 30
	scoreNewLocation     = 20
	scoreNewDevice       = 15

	behaviorWindowDays  = 30
	velocityLimit       = 5
	amountDeviationMax  = 2.0
	confidencePerReason = 15
	confidenceCap       = 95
)

// Behavioral compares a transaction against the sender's historical
// profile and recent activity.
type Behavioral struct {
	profiles domain.ProfileRepository
	history  *history.Service
}

// NewBehavioral creates the behavioral-deviation detector.
func NewBehavioral(profiles domain.ProfileRepository, hist *history.Service) *Behavioral {
	return &Behavioral{profiles: profiles, history: hist}
}

func (d *Behavioral) Method() domain.DetectionMethod {
	return domain.MethodBehavioral
}

func (d *Behavioral) Evaluate(ctx context.Context, tx *domain.TransactionContext) (domain.FraudScore, error) {
	var (
		reasons []string
		score   float64
	)

	profile, err := d.profiles.GetProfile(ctx, tx.SenderUPI)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return zeroScore(domain.MethodBehavioral), fmt.Errorf("behavioral: profile lookup failed: %w", err)
	}

	if profile == nil {
		// First sighting of this sender; nothing else to compare against.
		reasons = append(reasons, "New/unrecognized user")
		score += scoreNewUser
		return behaviorScore(score, reasons), nil
	}

	recent, err := d.history.Recent(ctx, tx.SenderUPI, behaviorWindowDays)
	if err != nil {
		return zeroScore(domain.MethodBehavioral), fmt.Errorf("behavioral: %w", err)
	}

	if len(recent) == 0 {
		// No baseline for amount or velocity checks.
		reasons = append(reasons, "No recent transaction history")
		score += scoreNoRecentHistory
	} else {
		var sum float64
		for _, t := range recent {
			sum += t.Amount
		}
		avg := sum / float64(len(recent))

		deviation := abs(tx.Amount-avg) / max1(avg)
		if deviation > amountDeviationMax {
			reasons = append(reasons, fmt.Sprintf("Unusual amount: %.2f vs avg %.2f", tx.Amount, avg))
			score += scoreAmountDeviation
		}

		if n := history.CountWithinHour(recent, tx.Timestamp); n > velocityLimit {
			reasons = append(reasons, fmt.Sprintf("High velocity: %d tx in 1 hour", n))
			score += scoreHighVelocity
		}
	}

	if tx.Location != nil && len(profile.FrequentLocations) > 0 {
		cities := make([]string, 0, len(profile.FrequentLocations))
		known := false
		for _, loc := range profile.FrequentLocations {
			cities = append(cities, loc.City)
			if loc.City == tx.Location.City {
				known = true
			}
		}
		if !known {
			reasons = append(reasons, fmt.Sprintf("Unusual location: %s (usual: %s)",
				tx.Location.City, strings.Join(cities, ", ")))
			score += scoreNewLocation
		}
	}

	// Coarse heuristic: device info on a sender with recorded location
	// history counts as a trigger. Device identity is not compared
	// against a stored device list.
	if tx.DeviceInfo != nil && len(profile.FrequentLocations) > 0 {
		reasons = append(reasons, "New device detected")
		score += scoreNewDevice
	}

	return behaviorScore(score, reasons), nil
}

func behaviorScore(score float64, reasons []string) domain.FraudScore {
	confidence := float64(len(reasons) * confidencePerReason)
	if confidence > confidenceCap {
		confidence = confidenceCap
	}
	return domain.FraudScore{
		TotalScore: clamp(score),
		Confidence: confidence,
		Reasons:    reasons,
		Method:     domain.MethodBehavioral,
	}
}

func zeroScore(method domain.DetectionMethod) domain.FraudScore {
	return domain.FraudScore{Method: method}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// max1 floors a divisor at 1 so near-zero baselines cannot explode
// relative deviations.
func max1(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}
