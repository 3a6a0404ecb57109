package rules

import "github.com/upishield/shikra/internal/domain"

// BuiltinPatterns returns the standard catalog of known UPI scam
// tactics. They are seeded into the pattern store on first start and
// curated via the API afterwards.
func BuiltinPatterns() []*domain.FraudPattern {
	return []*domain.FraudPattern{
		{
			ID:          "pattern-refund-scam",
			Name:        "Refund Scam (OTP Phishing)",
			Description: "Victim is told a refund is pending and directed to a fake refund page asking for their UPI PIN.",
			Category:    domain.CategoryPhishing,
			Severity:    domain.SeverityCritical,
			Indicators:  []string{"refund", "verify account", "otp", "urgent action required"},
			Rules: []domain.RawRule{
				{Field: "merchantKeywords", Operator: "contains", Value: "refund"},
				// Small test amount often precedes the real drain.
				{Field: "amount", Operator: "<", Value: 500.0},
			},
			IsActive: true,
		},
		{
			ID:          "pattern-qr-swap",
			Name:        "QR Code Swap at Store",
			Description: "Fraudster replaces a merchant's QR code with their own at the point of sale.",
			Category:    domain.CategorySocialEngineering,
			Severity:    domain.SeverityCritical,
			Indicators:  []string{"store", "merchant", "point of sale"},
			Rules: []domain.RawRule{
				{Field: "receiverUpi", Operator: "contains", Value: "merchant"},
			},
			IsActive: true,
		},
		{
			ID:          "pattern-delivery-impersonation",
			Name:        "Impersonation - Delivery Partner",
			Description: "Scammer impersonates a delivery partner claiming a COD or delivery issue and asks for a UPI transfer.",
			Category:    domain.CategoryImpersonation,
			Severity:    domain.SeverityHigh,
			Indicators:  []string{"delivery", "payment issue", "cod", "courier", "package"},
			Rules: []domain.RawRule{
				{Field: "merchantKeywords", Operator: "contains", Value: "delivery"},
			},
			Expression: "amount > 200.0 && amount < 50000.0 && merchant_name.contains('courier')",
			IsActive:   true,
		},
		{
			ID:          "pattern-bank-impersonation",
			Name:        "Impersonation - Bank/RBI Call",
			Description: "Fake call from the victim's bank or RBI about suspicious activity, asking for a test payment or fine.",
			Category:    domain.CategoryImpersonation,
			Severity:    domain.SeverityCritical,
			Indicators:  []string{"rbi", "bank", "account locked", "fine", "penalty"},
			Expression:  "amount > 5000.0 && amount < 100000.0 && (description.contains('fine') || description.contains('penalty') || description.contains('verify'))",
			IsActive:    true,
		},
		{
			ID:          "pattern-loan-scam",
			Name:        "Loan Scam",
			Description: "Easy-loan offer with an upfront processing fee paid via UPI. After payment the lender disappears.",
			Category:    domain.CategoryPhishing,
			Severity:    domain.SeverityMedium,
			Indicators:  []string{"loan", "processing fee", "quick disbursal"},
			Rules: []domain.RawRule{
				{Field: "merchantKeywords", Operator: "contains", Value: "loan"},
			},
			IsActive: true,
		},
		{
			ID:          "pattern-verification-scam",
			Name:        "Account Verification Scam",
			Description: "Victim is asked to make a small payment to 'verify' or 'unlock' their account.",
			Category:    domain.CategoryVerificationScam,
			Severity:    domain.SeverityHigh,
			Indicators:  []string{"verify", "unlock", "kyc"},
			Rules: []domain.RawRule{
				{Field: "merchantKeywords", Operator: "contains", Value: "verify"},
				{Field: "receiverUpi", Operator: "startsWith", Value: "kyc"},
			},
			IsActive: true,
		},
		{
			ID:          "pattern-prize-lottery",
			Name:        "Prize/Lottery Scam",
			Description: "Victim is told they won a lottery or prize they never entered and must pay a tax or processing fee to claim it.",
			Category:    domain.CategoryPhishing,
			Severity:    domain.SeverityMedium,
			Indicators:  []string{"congratulations", "won", "prize", "lottery", "tax", "claim"},
			Rules: []domain.RawRule{
				{Field: "merchantKeywords", Operator: "contains", Value: "lottery"},
				{Field: "merchantKeywords", Operator: "contains", Value: "prize"},
			},
			Expression: "amount > 1000.0 && amount < 50000.0 && (description.contains('prize') || description.contains('lottery') || description.contains('claim'))",
			IsActive:   true,
		},
		{
			ID:          "pattern-verification-transaction",
			Name:        "Verification Transaction Attack",
			Description: "Small test transaction to confirm account access, typically followed by a large fraudulent transfer.",
			Category:    domain.CategoryVerificationScam,
			Severity:    domain.SeverityHigh,
			Indicators:  []string{"test", "verify", "check", "trial"},
			Expression:  "amount > 1.0 && amount < 100.0 && (description.contains('test') || description.contains('verify') || description.contains('trial'))",
			IsActive:    true,
		},
		{
			ID:          "pattern-fake-support",
			Name:        "Fake Customer Support",
			Description: "Scammer poses as customer support for a subscription service, claims a billing issue, and asks for a UPI payment.",
			Category:    domain.CategoryPhishing,
			Severity:    domain.SeverityMedium,
			Indicators:  []string{"subscription", "billing issue", "payment failed", "update payment"},
			Rules: []domain.RawRule{
				{Field: "merchantKeywords", Operator: "contains", Value: "subscription"},
			},
			Expression: "amount > 100.0 && amount < 5000.0 && (description.contains('subscription') || description.contains('billing'))",
			IsActive:   true,
		},
		{
			ID:          "pattern-rental-fraud",
			Name:        "Rental Fraud",
			Description: "Fake property listing collecting an advance or booking deposit via UPI for a property that does not exist.",
			Category:    domain.CategoryIdentityTheft,
			Severity:    domain.SeverityHigh,
			Indicators:  []string{"rent", "property", "advance", "booking", "deposit"},
			Expression:  "amount > 10000.0 && (description.contains('rent') || description.contains('deposit') || description.contains('booking'))",
			IsActive:    true,
		},
		{
			ID:          "pattern-job-scam",
			Name:        "Job Scam",
			Description: "Fake job offer asking for a training, verification, or setup fee via UPI after a sham interview.",
			Category:    domain.CategoryPhishing,
			Severity:    domain.SeverityMedium,
			Indicators:  []string{"job", "work from home", "training", "recruitment", "verification fee"},
			Rules: []domain.RawRule{
				{Field: "merchantKeywords", Operator: "contains", Value: "recruitment"},
			},
			Expression: "amount > 500.0 && amount < 25000.0 && (description.contains('job') || description.contains('training fee'))",
			IsActive:   true,
		},
		{
			// No rules: this tactic is caught by velocity and anomaly
			// analysis, not per-transaction matching. Kept in the
			// catalog so analysts can curate its indicators.
			ID:          "pattern-identity-theft-chain",
			Name:        "Identity Theft Attack Chain",
			Description: "Many small transactions to different receivers in a short span, a sign of a compromised account or credential testing.",
			Category:    domain.CategoryIdentityTheft,
			Severity:    domain.SeverityCritical,
			Indicators:  []string{"rapid", "multiple", "unusual", "bot"},
			IsActive:    true,
		},
		{
			ID:          "pattern-darling-scam",
			Name:        "Darling Scam (Romantic Fraud)",
			Description: "Fake online relationship culminating in an urgent request for money, usually a medical or travel emergency.",
			Category:    domain.CategorySocialEngineering,
			Severity:    domain.SeverityHigh,
			Indicators:  []string{"emergency", "help me", "medical", "travel", "accident"},
			Expression:  "amount > 5000.0 && (description.contains('emergency') || description.contains('medical') || description.contains('accident'))",
			IsActive:    true,
		},
	}
}
