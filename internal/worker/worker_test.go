package worker

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/upishield/shikra/internal/bus"
	"github.com/upishield/shikra/internal/cache"
	"github.com/upishield/shikra/internal/detector"
	"github.com/upishield/shikra/internal/domain"
	"github.com/upishield/shikra/internal/engine"
	"github.com/upishield/shikra/internal/history"
	"github.com/upishield/shikra/internal/pipeline"
	"github.com/upishield/shikra/internal/repository"
	"github.com/upishield/shikra/internal/rules"
)

func newWorkerStack(t *testing.T) (*Worker, domain.EventBus, domain.Repository) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "shikra-worker-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(1000)
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	catalog, err := rules.NewCatalog()
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	catalog.Load(rules.BuiltinPatterns())

	hist := history.NewService(repo, c, 100)
	eng := engine.New(
		detector.NewBehavioral(repo, hist),
		detector.NewPatternMatcher(catalog),
		detector.NewAnomaly(hist),
		detector.NewBlacklist(repo),
		domain.DefaultDetectionConfig(),
	)
	processor := pipeline.NewProcessor(eng, repo, eventBus, c, hist)

	return NewWorker(eventBus, processor), eventBus, repo
}

func TestWorkerProcessesIngestedTransaction(t *testing.T) {
	w, eventBus, repo := newWorkerStack(t)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	msg := pipeline.IngestMessage{
		TransactionID: "TXN-async-1",
		SenderUPI:     "alice@okbank",
		ReceiverUPI:   "bob@okbank",
		Amount:        500,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		City:          "Mumbai",
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	ctx := context.Background()
	if err := eventBus.Publish(ctx, domain.TopicTransactionIngested, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// The worker consumes asynchronously; poll for the persisted profile.
	deadline := time.After(3 * time.Second)
	for {
		profile, err := repo.GetProfile(ctx, "alice@okbank")
		if err == nil && profile.TotalTransactions == 1 {
			if len(profile.FrequentLocations) != 1 || profile.FrequentLocations[0].City != "Mumbai" {
				t.Errorf("expected city recorded, got %+v", profile.FrequentLocations)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("worker did not process ingested transaction in time")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestWorkerIgnoresMalformedMessage(t *testing.T) {
	w, eventBus, _ := newWorkerStack(t)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	ctx := context.Background()
	if err := eventBus.Publish(ctx, domain.TopicTransactionIngested, []byte("not json")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// A bad message must not break the subscription.
	payload, _ := json.Marshal(pipeline.IngestMessage{
		SenderUPI:   "carol@okbank",
		ReceiverUPI: "dave@okbank",
		Amount:      100,
	})
	if err := eventBus.Publish(ctx, domain.TopicTransactionIngested, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := w.GetStats().SubscriptionCount; got != 1 {
		t.Errorf("expected subscription intact, got %d", got)
	}
}

func TestWorkerStats(t *testing.T) {
	w, _, _ := newWorkerStack(t)

	if got := w.GetStats().SubscriptionCount; got != 0 {
		t.Errorf("expected 0 subscriptions before start, got %d", got)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	stats := w.GetStats()
	if stats.SubscriptionCount != 1 {
		t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
	}
	if len(stats.Topics) != 1 || stats.Topics[0] != domain.TopicTransactionIngested {
		t.Errorf("unexpected topics %v", stats.Topics)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := w.GetStats().SubscriptionCount; got != 0 {
		t.Errorf("expected 0 subscriptions after stop, got %d", got)
	}
}
