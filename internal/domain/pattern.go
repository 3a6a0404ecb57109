package domain

import "time"

// Severity of a fraud pattern or blacklist entry.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// PatternCategory classifies a fraud tactic.
type PatternCategory string

const (
	CategoryVerificationScam  PatternCategory = "verification_scam"
	CategoryRefundScam        PatternCategory = "refund_scam"
	CategoryImpersonation     PatternCategory = "impersonation"
	CategoryQRSwap            PatternCategory = "qr_swap"
	CategoryPhishing          PatternCategory = "phishing"
	CategoryIdentityTheft     PatternCategory = "identity_theft"
	CategorySocialEngineering PatternCategory = "social_engineering"
	CategoryOther             PatternCategory = "other"
)

// RawRule is the stored wire shape of a detection rule.
// The catalog decodes it into a closed typed variant at load time;
// unknown fields or operators are rejected there, never at match time.
type RawRule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// FraudPattern is a curated, externally managed fraud tactic.
// A pattern matches a transaction when ANY of its rules matches.
// A pattern with zero rules and no expression never matches.
type FraudPattern struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    PatternCategory `json:"category"`
	Severity    Severity        `json:"severity"`

	// Rules are OR-combined field/operator/value conditions.
	Rules []RawRule `json:"detectionRules"`

	// Expression is an optional CEL guard compiled at catalog load.
	// When set, it participates in the same OR as Rules.
	Expression string `json:"expression,omitempty"`

	// Indicators are human-facing red flags, not used for matching.
	Indicators []string `json:"indicators,omitempty"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
