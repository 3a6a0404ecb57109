package domain

import (
	"context"
	"time"
)

// TransactionRepository persists transactions and serves the bounded
// history window the detectors read.
type TransactionRepository interface {
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// RecentBySender returns successful transactions for a sender since
	// the given instant, newest first, capped at limit.
	RecentBySender(ctx context.Context, senderUPI string, since time.Time, limit int) ([]*Transaction, error)
}

// ProfileRepository stores sender behavioral baselines.
type ProfileRepository interface {
	// GetProfile returns nil, ErrNotFound-wrapping error when the sender
	// has never been seen.
	GetProfile(ctx context.Context, upi string) (*UserProfile, error)
	SaveProfile(ctx context.Context, profile *UserProfile) error
}

// PatternRepository stores the externally curated fraud pattern catalog.
type PatternRepository interface {
	ListActivePatterns(ctx context.Context) ([]*FraudPattern, error)
	SavePattern(ctx context.Context, pattern *FraudPattern) error
}

// BlacklistRepository stores reported fraudulent identifiers.
type BlacklistRepository interface {
	// GetBlacklistEntry returns the active, non-expired entry for the
	// (identifier, type) key, or a not-found error.
	GetBlacklistEntry(ctx context.Context, identifier string, idType IdentifierType) (*BlacklistEntry, error)
	SaveBlacklistEntry(ctx context.Context, entry *BlacklistEntry) error
	ListBlacklist(ctx context.Context) ([]*BlacklistEntry, error)
}

// EventRepository is the append-only audit sink.
type EventRepository interface {
	SaveDetectionEvent(ctx context.Context, event *DetectionEvent) error
	ListDetectionEvents(ctx context.Context, transactionID string) ([]*DetectionEvent, error)
}

// AlertRepository stores fraud alerts and their status transitions.
type AlertRepository interface {
	SaveAlert(ctx context.Context, alert *FraudAlert) error
	GetAlert(ctx context.Context, id string) (*FraudAlert, error)
	ListAlerts(ctx context.Context, status string) ([]*FraudAlert, error)
	UpdateAlertStatus(ctx context.Context, id string, status string, resolvedAt *time.Time) error
}

// StatsRepository serves aggregate fraud statistics for the dashboard.
type StatsRepository interface {
	FraudStats(ctx context.Context) (*FraudStats, error)
}

// Repository is the full persistence surface, composed from the
// per-entity interfaces so components depend only on what they use.
type Repository interface {
	TransactionRepository
	ProfileRepository
	PatternRepository
	BlacklistRepository
	EventRepository
	AlertRepository
	StatsRepository

	Ping(ctx context.Context) error
	Close() error
}

// FraudStats summarizes processed transactions.
type FraudStats struct {
	TotalTransactions      int     `json:"totalTransactions"`
	FraudulentTransactions int     `json:"fraudulentTransactions"`
	FraudRate              float64 `json:"fraudRate"`
	TotalAmount            float64 `json:"totalAmount"`
	FraudAmount            float64 `json:"fraudAmount"`
	AvgRiskScore           float64 `json:"avgRiskScore"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
