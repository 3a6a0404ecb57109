// Package pipeline owns the write path around the scoring engine:
// persisting transactions, audit events, alerts, and profile updates,
// plus the CSV batch pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/upishield/shikra/internal/domain"
	"github.com/upishield/shikra/internal/engine"
	"github.com/upishield/shikra/internal/history"
)

// Processor runs detection for one transaction and performs the
// sequential write path: transaction insert, detection event, optional
// alert, profile update, bus publications.
type Processor struct {
	engine  *engine.Engine
	repo    domain.Repository
	bus     domain.EventBus
	cache   domain.Cache
	history *history.Service

	// senderLocks serializes profile read-modify-write per sender.
	senderLocks sync.Map // upi -> *sync.Mutex
}

// NewProcessor creates a transaction processor. bus and cache may be nil.
func NewProcessor(eng *engine.Engine, repo domain.Repository, bus domain.EventBus, cache domain.Cache, hist *history.Service) *Processor {
	return &Processor{
		engine:  eng,
		repo:    repo,
		bus:     bus,
		cache:   cache,
		history: hist,
	}
}

// Result is the outcome of processing one transaction.
type Result struct {
	Transaction *domain.Transaction `json:"transaction"`
	Assessment  *domain.Assessment  `json:"assessment"`

	// VelocityLastHour is the sender's transaction count over the past
	// hour, including this one.
	VelocityLastHour int64 `json:"velocityLastHour"`
}

// Process validates, scores, and persists a single transaction.
// A hard detection failure aborts processing; routine no-data states
// do not.
func (p *Processor) Process(ctx context.Context, tx *domain.TransactionContext, transactionID string) (*Result, error) {
	start := time.Now()

	if err := validate(tx); err != nil {
		return nil, err
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if transactionID == "" {
		transactionID = fmt.Sprintf("TXN-%s", uuid.New().String())
	}
	status := tx.Status
	if status == "" {
		status = domain.TxStatusPending
	}

	assessment, err := p.engine.Detect(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("fraud detection failed: %w", err)
	}

	record := &domain.Transaction{
		ID:            uuid.New().String(),
		TransactionID: transactionID,
		SenderUPI:     tx.SenderUPI,
		ReceiverUPI:   tx.ReceiverUPI,
		Amount:        tx.Amount,
		Timestamp:     tx.Timestamp,
		Status:        status,
		Description:   tx.Description,
		RiskScore:     assessment.RiskScore,
		IsFraudulent:  assessment.IsFraudulent,
		FlaggedReason: strings.Join(assessment.AllReasons, "; "),
		CreatedAt:     time.Now().UTC(),
	}

	if err := p.repo.SaveTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	p.writeAuditEvent(ctx, record, assessment)

	if assessment.IsFraudulent {
		p.raiseAlert(ctx, record, assessment)
	}

	p.updateProfile(ctx, tx)
	p.history.Invalidate(ctx, tx.SenderUPI)
	velocity := p.trackVelocity(ctx, tx.SenderUPI)
	p.publishDecision(ctx, record, assessment)

	slog.Info("transaction processed",
		"tx_id", record.ID,
		"sender", tx.SenderUPI,
		"risk_score", assessment.RiskScore,
		"fraudulent", assessment.IsFraudulent,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{Transaction: record, Assessment: assessment, VelocityLastHour: velocity}, nil
}

func validate(tx *domain.TransactionContext) error {
	if tx.SenderUPI == "" || tx.ReceiverUPI == "" {
		return fmt.Errorf("%w: sender and receiver upi are required", domain.ErrInvalidInput)
	}
	if tx.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	if tx.Status != "" && !domain.ValidTxStatus(tx.Status) {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, tx.Status)
	}
	return nil
}

// writeAuditEvent appends the detection event. Audit-sink failures are
// logged, not propagated.
func (p *Processor) writeAuditEvent(ctx context.Context, record *domain.Transaction, assessment *domain.Assessment) {
	method := domain.DetectionMethod("")
	if len(assessment.DetectionDetails) > 0 {
		method = assessment.DetectionDetails[0].Method
	}

	action := domain.ActionApprove
	if assessment.IsFraudulent {
		action = domain.ActionAlert
	}

	event := &domain.DetectionEvent{
		ID:              uuid.New().String(),
		TransactionID:   record.ID,
		DetectionMethod: method,
		RiskScore:       assessment.RiskScore,
		Confidence:      assessment.Confidence,
		FlagDetails: domain.FlagDetails{
			Reasons: assessment.AllReasons,
			Scores:  assessment.DetectionDetails,
		},
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}

	if err := p.repo.SaveDetectionEvent(ctx, event); err != nil {
		slog.Error("failed to save detection event",
			"tx_id", record.ID,
			"error", err,
		)
	}
}

func (p *Processor) raiseAlert(ctx context.Context, record *domain.Transaction, assessment *domain.Assessment) {
	severity := domain.AlertSeverityWarning
	if assessment.RiskScore > 80 {
		severity = domain.AlertSeverityCritical
	}

	topReasons := assessment.AllReasons
	if len(topReasons) > 2 {
		topReasons = topReasons[:2]
	}

	alert := &domain.FraudAlert{
		ID:             uuid.New().String(),
		UserID:         record.SenderUPI,
		TransactionID:  record.ID,
		AlertType:      "suspicious_activity",
		Severity:       severity,
		Title:          "Suspicious Transaction Detected",
		Message: fmt.Sprintf("Transaction of %.2f to %s flagged. Reasons: %s",
			record.Amount, record.ReceiverUPI, strings.Join(topReasons, ", ")),
		ActionRequired: assessment.RiskScore > 80,
		Status:         domain.AlertStatusNew,
		CreatedAt:      time.Now().UTC(),
	}

	if err := p.repo.SaveAlert(ctx, alert); err != nil {
		slog.Error("failed to save fraud alert",
			"tx_id", record.ID,
			"error", err,
		)
		return
	}

	if p.bus != nil {
		payload, err := encodeAlert(alert)
		if err == nil {
			if err := p.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
				slog.Error("failed to publish alert", "alert_id", alert.ID, "error", err)
			}
		}
	}
}

// updateProfile folds the transaction into the sender's baseline under
// a per-sender lock. Profile counters only ever grow; a failed update
// is logged and the transaction stands.
func (p *Processor) updateProfile(ctx context.Context, tx *domain.TransactionContext) {
	mu := p.lockFor(tx.SenderUPI)
	mu.Lock()
	defer mu.Unlock()

	profile, err := p.repo.GetProfile(ctx, tx.SenderUPI)
	if err != nil && !isNotFound(err) {
		slog.Error("failed to load profile", "sender", tx.SenderUPI, "error", err)
		return
	}
	if profile == nil {
		profile = &domain.UserProfile{
			UPIAddress: tx.SenderUPI,
			TrustScore: domain.DefaultTrustScore,
			CreatedAt:  time.Now().UTC(),
		}
	}

	city := ""
	if tx.Location != nil {
		city = tx.Location.City
	}
	profile.RecordTransaction(tx.Amount, city, tx.Timestamp)

	if err := p.repo.SaveProfile(ctx, profile); err != nil {
		slog.Error("failed to save profile", "sender", tx.SenderUPI, "error", err)
	}
}

// trackVelocity counts the sender's transactions over a rolling hour.
// The count is returned on the processing result and surfaced by the
// scoring API.
func (p *Processor) trackVelocity(ctx context.Context, sender string) int64 {
	if p.cache == nil {
		return 0
	}
	count, err := p.cache.IncrementCounter(ctx, "velocity:"+sender, time.Hour)
	if err != nil {
		return 0
	}
	slog.Debug("sender velocity", "sender", sender, "tx_last_hour", count)
	return count
}

func (p *Processor) publishDecision(ctx context.Context, record *domain.Transaction, assessment *domain.Assessment) {
	if p.bus == nil {
		return
	}
	payload, err := encodeDecision(record, assessment)
	if err != nil {
		return
	}
	if err := p.bus.Publish(ctx, domain.TopicDecision, payload); err != nil {
		slog.Error("failed to publish decision", "tx_id", record.ID, "error", err)
	}
}

func (p *Processor) lockFor(sender string) *sync.Mutex {
	mu, _ := p.senderLocks.LoadOrStore(sender, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
