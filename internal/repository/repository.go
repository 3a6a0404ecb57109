// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/upishield/shikra/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a scored transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, transaction_id, sender_upi, receiver_upi, amount,
			timestamp, status, description, risk_score, is_fraudulent,
			flagged_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.TransactionID,
		tx.SenderUPI, tx.ReceiverUPI, tx.Amount,
		tx.Timestamp, tx.Status, tx.Description,
		tx.RiskScore, boolToInt(tx.IsFraudulent),
		tx.FlaggedReason, tx.CreatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `
		SELECT id, transaction_id, sender_upi, receiver_upi, amount,
			   timestamp, status, description, risk_score, is_fraudulent,
			   flagged_reason, created_at
		FROM transactions
		WHERE id = ?
	`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return tx, err
}

// RecentBySender retrieves the sender's successful transactions since
// the given instant, newest first, capped at limit.
func (r *SQLRepository) RecentBySender(ctx context.Context, senderUPI string, since time.Time, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, transaction_id, sender_upi, receiver_upi, amount,
			   timestamp, status, description, risk_score, is_fraudulent,
			   flagged_reason, created_at
		FROM transactions
		WHERE sender_upi = ?
		  AND status = 'success'
		  AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), senderUPI, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx            domain.Transaction
		description   sql.NullString
		flaggedReason sql.NullString
		fraudulent    int
	)

	err := row.Scan(
		&tx.ID, &tx.TransactionID,
		&tx.SenderUPI, &tx.ReceiverUPI, &tx.Amount,
		&tx.Timestamp, &tx.Status, &description,
		&tx.RiskScore, &fraudulent,
		&flaggedReason, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Description = description.String
	tx.FlaggedReason = flaggedReason.String
	tx.IsFraudulent = fraudulent != 0
	return &tx, nil
}

// GetProfile retrieves a sender's behavioral baseline.
func (r *SQLRepository) GetProfile(ctx context.Context, upi string) (*domain.UserProfile, error) {
	query := `
		SELECT upi_address, display_name, trust_score, total_transactions,
			   total_amount, avg_transaction_amount, frequent_locations,
			   created_at, updated_at
		FROM user_profiles
		WHERE upi_address = ?
	`

	var (
		profile     domain.UserProfile
		displayName sql.NullString
		locations   sql.NullString
	)

	err := r.db.QueryRowContext(ctx, r.rebind(query), upi).Scan(
		&profile.UPIAddress, &displayName, &profile.TrustScore,
		&profile.TotalTransactions, &profile.TotalAmount,
		&profile.AvgTransactionAmount, &locations,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	profile.DisplayName = displayName.String
	if locations.Valid && locations.String != "" {
		if err := json.Unmarshal([]byte(locations.String), &profile.FrequentLocations); err != nil {
			return nil, fmt.Errorf("corrupt frequent_locations for %s: %w", upi, err)
		}
	}

	return &profile, nil
}

// SaveProfile upserts a sender's behavioral baseline.
func (r *SQLRepository) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	if profile.UPIAddress == "" {
		return fmt.Errorf("%w: upi address is required", domain.ErrInvalidInput)
	}

	locations, err := json.Marshal(profile.FrequentLocations)
	if err != nil {
		return err
	}

	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = profile.CreatedAt
	}

	query := `
		INSERT INTO user_profiles (
			upi_address, display_name, trust_score, total_transactions,
			total_amount, avg_transaction_amount, frequent_locations,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(upi_address) DO UPDATE SET
			display_name = excluded.display_name,
			trust_score = excluded.trust_score,
			total_transactions = excluded.total_transactions,
			total_amount = excluded.total_amount,
			avg_transaction_amount = excluded.avg_transaction_amount,
			frequent_locations = excluded.frequent_locations,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		profile.UPIAddress, profile.DisplayName, profile.TrustScore,
		profile.TotalTransactions, profile.TotalAmount,
		profile.AvgTransactionAmount, string(locations),
		profile.CreatedAt, profile.UpdatedAt,
	)
	return err
}

// ListActivePatterns returns all active fraud patterns.
func (r *SQLRepository) ListActivePatterns(ctx context.Context) ([]*domain.FraudPattern, error) {
	query := `
		SELECT id, name, description, category, severity,
			   detection_rules, expression, indicators, is_active,
			   created_at, updated_at
		FROM fraud_patterns
		WHERE is_active = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []*domain.FraudPattern
	for rows.Next() {
		var (
			p           domain.FraudPattern
			description sql.NullString
			rules       string
			expression  sql.NullString
			indicators  sql.NullString
			active      int
		)

		if err := rows.Scan(
			&p.ID, &p.Name, &description, &p.Category, &p.Severity,
			&rules, &expression, &indicators, &active,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		p.Description = description.String
		p.Expression = expression.String
		p.IsActive = active != 0

		if rules != "" {
			if err := json.Unmarshal([]byte(rules), &p.Rules); err != nil {
				return nil, fmt.Errorf("corrupt detection_rules for pattern %s: %w", p.ID, err)
			}
		}
		if indicators.Valid && indicators.String != "" {
			if err := json.Unmarshal([]byte(indicators.String), &p.Indicators); err != nil {
				return nil, fmt.Errorf("corrupt indicators for pattern %s: %w", p.ID, err)
			}
		}

		patterns = append(patterns, &p)
	}

	return patterns, rows.Err()
}

// SavePattern upserts a fraud pattern.
func (r *SQLRepository) SavePattern(ctx context.Context, pattern *domain.FraudPattern) error {
	if pattern.ID == "" || pattern.Name == "" {
		return fmt.Errorf("%w: pattern id and name are required", domain.ErrInvalidInput)
	}

	rules, err := json.Marshal(pattern.Rules)
	if err != nil {
		return err
	}
	indicators, err := json.Marshal(pattern.Indicators)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = now
	}
	pattern.UpdatedAt = now

	query := `
		INSERT INTO fraud_patterns (
			id, name, description, category, severity,
			detection_rules, expression, indicators, is_active,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			severity = excluded.severity,
			detection_rules = excluded.detection_rules,
			expression = excluded.expression,
			indicators = excluded.indicators,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		pattern.ID, pattern.Name, pattern.Description,
		string(pattern.Category), string(pattern.Severity),
		string(rules), pattern.Expression, string(indicators),
		boolToInt(pattern.IsActive),
		pattern.CreatedAt, pattern.UpdatedAt,
	)
	return err
}

// GetBlacklistEntry returns the active, non-expired entry keyed by
// (identifier, type).
func (r *SQLRepository) GetBlacklistEntry(ctx context.Context, identifier string, idType domain.IdentifierType) (*domain.BlacklistEntry, error) {
	query := `
		SELECT id, identifier, identifier_type, reason, severity,
			   reported_by, report_count, is_active, expires_at, created_at
		FROM blacklist_entries
		WHERE identifier = ? AND identifier_type = ? AND is_active = 1
	`

	entry, err := scanBlacklistEntry(r.db.QueryRowContext(ctx, r.rebind(query), identifier, string(idType)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.Expired(time.Now().UTC()) {
		return nil, domain.ErrNotFound
	}
	return entry, nil
}

// SaveBlacklistEntry upserts a blacklist entry on its natural key.
func (r *SQLRepository) SaveBlacklistEntry(ctx context.Context, entry *domain.BlacklistEntry) error {
	if entry.Identifier == "" || !entry.IdentifierType.Valid() {
		return fmt.Errorf("%w: identifier and a valid identifier type are required", domain.ErrInvalidInput)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ReportCount <= 0 {
		entry.ReportCount = 1
	}

	query := `
		INSERT INTO blacklist_entries (
			id, identifier, identifier_type, reason, severity,
			reported_by, report_count, is_active, expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier, identifier_type) DO UPDATE SET
			reason = excluded.reason,
			severity = excluded.severity,
			reported_by = excluded.reported_by,
			report_count = excluded.report_count,
			is_active = excluded.is_active,
			expires_at = excluded.expires_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.ID, entry.Identifier, string(entry.IdentifierType),
		entry.Reason, string(entry.Severity),
		entry.ReportedBy, entry.ReportCount,
		boolToInt(entry.IsActive), entry.ExpiresAt, entry.CreatedAt,
	)
	return err
}

// ListBlacklist returns all blacklist entries, active first, newest first.
func (r *SQLRepository) ListBlacklist(ctx context.Context) ([]*domain.BlacklistEntry, error) {
	query := `
		SELECT id, identifier, identifier_type, reason, severity,
			   reported_by, report_count, is_active, expires_at, created_at
		FROM blacklist_entries
		ORDER BY is_active DESC, created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.BlacklistEntry
	for rows.Next() {
		entry, err := scanBlacklistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanBlacklistEntry(row rowScanner) (*domain.BlacklistEntry, error) {
	var (
		entry      domain.BlacklistEntry
		idType     string
		severity   string
		reportedBy sql.NullString
		active     int
		expiresAt  sql.NullTime
	)

	err := row.Scan(
		&entry.ID, &entry.Identifier, &idType, &entry.Reason, &severity,
		&reportedBy, &entry.ReportCount, &active, &expiresAt, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.IdentifierType = domain.IdentifierType(idType)
	entry.Severity = domain.Severity(severity)
	entry.ReportedBy = reportedBy.String
	entry.IsActive = active != 0
	if expiresAt.Valid {
		t := expiresAt.Time
		entry.ExpiresAt = &t
	}
	return &entry, nil
}

// SaveDetectionEvent appends an audit record. Events are append-only.
func (r *SQLRepository) SaveDetectionEvent(ctx context.Context, event *domain.DetectionEvent) error {
	details, err := json.Marshal(event.FlagDetails)
	if err != nil {
		return err
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO detection_events (
			id, transaction_id, pattern_id, detection_method,
			risk_score, confidence, flag_details, action, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		event.ID, event.TransactionID, nullable(event.PatternID),
		string(event.DetectionMethod), event.RiskScore, event.Confidence,
		string(details), event.Action, event.CreatedAt,
	)
	return err
}

// ListDetectionEvents returns the audit trail for a transaction.
func (r *SQLRepository) ListDetectionEvents(ctx context.Context, transactionID string) ([]*domain.DetectionEvent, error) {
	query := `
		SELECT id, transaction_id, pattern_id, detection_method,
			   risk_score, confidence, flag_details, action, created_at
		FROM detection_events
		WHERE transaction_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.DetectionEvent
	for rows.Next() {
		var (
			event     domain.DetectionEvent
			patternID sql.NullString
			method    string
			details   string
		)

		if err := rows.Scan(
			&event.ID, &event.TransactionID, &patternID, &method,
			&event.RiskScore, &event.Confidence, &details,
			&event.Action, &event.CreatedAt,
		); err != nil {
			return nil, err
		}

		event.PatternID = patternID.String
		event.DetectionMethod = domain.DetectionMethod(method)
		if details != "" {
			if err := json.Unmarshal([]byte(details), &event.FlagDetails); err != nil {
				return nil, fmt.Errorf("corrupt flag_details for event %s: %w", event.ID, err)
			}
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}

// SaveAlert stores a fraud alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.FraudAlert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO fraud_alerts (
			id, user_id, transaction_id, alert_type, severity,
			title, message, action_required, status, created_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.UserID, alert.TransactionID,
		alert.AlertType, alert.Severity,
		alert.Title, alert.Message,
		boolToInt(alert.ActionRequired), alert.Status,
		alert.CreatedAt, alert.ResolvedAt,
	)
	return err
}

// GetAlert retrieves an alert by ID.
func (r *SQLRepository) GetAlert(ctx context.Context, id string) (*domain.FraudAlert, error) {
	query := `
		SELECT id, user_id, transaction_id, alert_type, severity,
			   title, message, action_required, status, created_at, resolved_at
		FROM fraud_alerts
		WHERE id = ?
	`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return alert, err
}

// ListAlerts returns alerts, optionally filtered by status, newest first.
func (r *SQLRepository) ListAlerts(ctx context.Context, status string) ([]*domain.FraudAlert, error) {
	query := `
		SELECT id, user_id, transaction_id, alert_type, severity,
			   title, message, action_required, status, created_at, resolved_at
		FROM fraud_alerts
	`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.FraudAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// UpdateAlertStatus transitions an alert's status.
func (r *SQLRepository) UpdateAlertStatus(ctx context.Context, id string, status string, resolvedAt *time.Time) error {
	query := `UPDATE fraud_alerts SET status = ?, resolved_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query), status, resolvedAt, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAlert(row rowScanner) (*domain.FraudAlert, error) {
	var (
		alert          domain.FraudAlert
		actionRequired int
		resolvedAt     sql.NullTime
	)

	err := row.Scan(
		&alert.ID, &alert.UserID, &alert.TransactionID,
		&alert.AlertType, &alert.Severity,
		&alert.Title, &alert.Message,
		&actionRequired, &alert.Status,
		&alert.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.ActionRequired = actionRequired != 0
	if resolvedAt.Valid {
		t := resolvedAt.Time
		alert.ResolvedAt = &t
	}
	return &alert, nil
}

// FraudStats aggregates processed transactions.
func (r *SQLRepository) FraudStats(ctx context.Context) (*domain.FraudStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(is_fraudulent), 0),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(CASE WHEN is_fraudulent = 1 THEN amount ELSE 0 END), 0),
			COALESCE(AVG(risk_score), 0)
		FROM transactions
	`

	var stats domain.FraudStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalTransactions,
		&stats.FraudulentTransactions,
		&stats.TotalAmount,
		&stats.FraudAmount,
		&stats.AvgRiskScore,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalTransactions > 0 {
		stats.FraudRate = float64(stats.FraudulentTransactions) / float64(stats.TotalTransactions) * 100
	}
	return &stats, nil
}

// Ping verifies database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $N for the postgres driver.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
