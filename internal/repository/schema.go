package repository

// Schema definitions for the Shikra database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    sender_upi TEXT NOT NULL,
    receiver_upi TEXT NOT NULL,
    amount REAL NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    status TEXT NOT NULL,
    description TEXT,
    risk_score REAL NOT NULL DEFAULT 0,
    is_fraudulent INTEGER NOT NULL DEFAULT 0,
    flagged_reason TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions(sender_upi, status, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions(receiver_upi);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
`

const schemaProfiles = `
CREATE TABLE IF NOT EXISTS user_profiles (
    upi_address TEXT PRIMARY KEY,
    display_name TEXT,
    trust_score REAL NOT NULL DEFAULT 50,
    total_transactions INTEGER NOT NULL DEFAULT 0,
    total_amount REAL NOT NULL DEFAULT 0,
    avg_transaction_amount REAL NOT NULL DEFAULT 0,
    frequent_locations TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaPatterns = `
CREATE TABLE IF NOT EXISTS fraud_patterns (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    category TEXT NOT NULL,
    severity TEXT NOT NULL,
    detection_rules TEXT NOT NULL,
    expression TEXT,
    indicators TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_patterns_active ON fraud_patterns(is_active);
CREATE INDEX IF NOT EXISTS idx_patterns_category ON fraud_patterns(category);
`

const schemaDetectionEvents = `
CREATE TABLE IF NOT EXISTS detection_events (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    pattern_id TEXT,
    detection_method TEXT NOT NULL,
    risk_score REAL NOT NULL,
    confidence REAL NOT NULL,
    flag_details TEXT NOT NULL,
    action TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_transaction ON detection_events(transaction_id);
CREATE INDEX IF NOT EXISTS idx_events_method ON detection_events(detection_method);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS fraud_alerts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    action_required INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'new',
    created_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_user ON fraud_alerts(user_id);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON fraud_alerts(status);
`

const schemaBlacklist = `
CREATE TABLE IF NOT EXISTS blacklist_entries (
    id TEXT PRIMARY KEY,
    identifier TEXT NOT NULL,
    identifier_type TEXT NOT NULL,
    reason TEXT NOT NULL,
    severity TEXT NOT NULL,
    reported_by TEXT,
    report_count INTEGER NOT NULL DEFAULT 1,
    is_active INTEGER NOT NULL DEFAULT 1,
    expires_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (identifier, identifier_type)
);

CREATE INDEX IF NOT EXISTS idx_blacklist_type ON blacklist_entries(identifier_type);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaProfiles,
		schemaPatterns,
		schemaDetectionEvents,
		schemaAlerts,
		schemaBlacklist,
	}
}
