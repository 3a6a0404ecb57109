package domain

import "time"

// DetectionMethod tags which detector produced a FraudScore.
// The blacklist checker reports under MethodPatternMatching; it shares
// that method's aggregation weight bucket.
type DetectionMethod string

const (
	MethodBehavioral      DetectionMethod = "behavioral_analysis"
	MethodPatternMatching DetectionMethod = "pattern_matching"
	MethodAnomaly         DetectionMethod = "anomaly_detection"
)

// FraudScore is the output of a single detector.
// TotalScore and Confidence are always within [0,100].
type FraudScore struct {
	TotalScore float64         `json:"totalScore"`
	Confidence float64         `json:"confidence"`
	Reasons    []string        `json:"reasons"`
	Method     DetectionMethod `json:"method"`
}

// DetectionDetail is one detector's contribution inside an Assessment,
// preserved verbatim for the audit log.
type DetectionDetail struct {
	Method     DetectionMethod `json:"method"`
	Score      float64         `json:"score"`
	Confidence float64         `json:"confidence"`
	Reasons    []string        `json:"reasons"`
}

// Assessment is the aggregate fraud decision for one transaction.
type Assessment struct {
	RiskScore        float64           `json:"riskScore"`
	IsFraudulent     bool              `json:"isFraudulent"`
	Confidence       float64           `json:"confidence"`
	AllReasons       []string          `json:"allReasons"`
	DetectionDetails []DetectionDetail `json:"detectionDetails"`
}

// Actions recorded on a detection event.
const (
	ActionAlert   = "alert"
	ActionBlock   = "block"
	ActionVerify  = "verify"
	ActionApprove = "approve"
)

// DetectionEvent is the immutable audit record of one scoring decision.
type DetectionEvent struct {
	ID              string          `json:"id"`
	TransactionID   string          `json:"transactionId"`
	PatternID       string          `json:"patternId,omitempty"`
	DetectionMethod DetectionMethod `json:"detectionMethod"`
	RiskScore       float64         `json:"riskScore"`
	Confidence      float64         `json:"confidence"`
	FlagDetails     FlagDetails     `json:"flagDetails"`
	Action          string          `json:"action"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// FlagDetails is the structured detail blob on a detection event.
type FlagDetails struct {
	Reasons []string          `json:"reasons"`
	Scores  []DetectionDetail `json:"scores"`
}

// Alert severities and statuses.
const (
	AlertSeverityInfo     = "info"
	AlertSeverityWarning  = "warning"
	AlertSeverityCritical = "critical"

	AlertStatusNew           = "new"
	AlertStatusAcknowledged  = "acknowledged"
	AlertStatusResolved      = "resolved"
	AlertStatusFalsePositive = "false_positive"
)

// FraudAlert is raised when the aggregate decision is fraudulent.
// Immutable except for Status, which is driven by external user action.
type FraudAlert struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	TransactionID  string     `json:"transactionId"`
	AlertType      string     `json:"alertType"`
	Severity       string     `json:"severity"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	ActionRequired bool       `json:"actionRequired"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// ValidAlertTransition reports whether an alert status change is legal:
// new → acknowledged → resolved, with false_positive reachable from
// new and acknowledged.
func ValidAlertTransition(from, to string) bool {
	switch from {
	case AlertStatusNew:
		return to == AlertStatusAcknowledged || to == AlertStatusResolved || to == AlertStatusFalsePositive
	case AlertStatusAcknowledged:
		return to == AlertStatusResolved || to == AlertStatusFalsePositive
	}
	return false
}
