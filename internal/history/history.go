// Package history provides the bounded transaction-history lookup the
// detectors read from.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/upishield/shikra/internal/domain"
)

// DefaultLimit caps how many recent transactions a lookup returns.
const DefaultLimit = 100

// cacheTTL keeps history reads cheap during a batch without letting
// the window go stale for long.
const cacheTTL = 30 * time.Second

// Service serves recent-transaction windows for a sender, optionally
// read-through cached.
type Service struct {
	repo  domain.TransactionRepository
	cache domain.Cache
	limit int
}

// NewService creates a history service. cache may be nil.
func NewService(repo domain.TransactionRepository, cache domain.Cache, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{
		repo:  repo,
		cache: cache,
		limit: limit,
	}
}

// Recent returns the sender's successful transactions from the last
// day-count window, newest first, capped at the service limit.
func (s *Service) Recent(ctx context.Context, upi string, days int) ([]*domain.Transaction, error) {
	if upi == "" {
		return nil, fmt.Errorf("%w: sender upi is required", domain.ErrInvalidInput)
	}

	key := cacheKey(upi, days)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
			var txs []*domain.Transaction
			if err := json.Unmarshal(cached, &txs); err == nil {
				return txs, nil
			}
		}
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	txs, err := s.repo.RecentBySender(ctx, upi, since, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction history: %w", err)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(txs); err == nil {
			_ = s.cache.Set(ctx, key, payload, cacheTTL)
		}
	}

	return txs, nil
}

// Invalidate drops cached windows for a sender after a write.
func (s *Service) Invalidate(ctx context.Context, upi string) {
	if s.cache == nil {
		return
	}
	for _, days := range []int{7, 30} {
		_ = s.cache.Delete(ctx, cacheKey(upi, days))
	}
}

// CountWithinHour counts transactions whose timestamp falls in the hour
// preceding the given instant.
func CountWithinHour(txs []*domain.Transaction, at time.Time) int {
	hourAgo := at.Add(-time.Hour)
	count := 0
	for _, tx := range txs {
		if tx.Timestamp.After(hourAgo) {
			count++
		}
	}
	return count
}

func cacheKey(upi string, days int) string {
	return fmt.Sprintf("history:%s:%dd", upi, days)
}
