// Package worker provides async transaction scoring off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/upishield/shikra/internal/domain"
	"github.com/upishield/shikra/internal/pipeline"
)

// Worker consumes ingested transactions from the EventBus and runs
// them through the scoring pipeline.
type Worker struct {
	bus       domain.EventBus
	processor *pipeline.Processor

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, processor *pipeline.Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the transaction-ingested topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicTransactionIngested,
	)
	return nil
}

// handleMessage scores one ingested transaction.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var in pipeline.IngestMessage
	if err := json.Unmarshal(msg.Payload, &in); err != nil {
		slog.Error("failed to parse ingest message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	tx := &domain.TransactionContext{
		SenderUPI:    in.SenderUPI,
		ReceiverUPI:  in.ReceiverUPI,
		Amount:       in.Amount,
		Status:       in.Status,
		Description:  in.Description,
		MerchantName: in.MerchantName,
		DeviceInfo:   in.DeviceInfo,
	}
	if in.City != "" {
		tx.Location = &domain.Location{City: in.City}
	}
	if in.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, in.Timestamp); err == nil {
			tx.Timestamp = ts
		}
	}

	result, err := w.processor.Process(ctx, tx, in.TransactionID)
	if err != nil {
		slog.Error("async scoring failed",
			"message_id", msg.ID,
			"sender_upi", in.SenderUPI,
			"error", err,
		)
		return err
	}

	slog.Info("transaction processed async",
		"tx_id", result.Transaction.ID,
		"risk_score", result.Assessment.RiskScore,
		"is_fraudulent", result.Assessment.IsFraudulent,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
