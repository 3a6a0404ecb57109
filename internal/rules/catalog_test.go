package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/upishield/shikra/internal/domain"
)

type fakePatternStore struct {
	patterns []*domain.FraudPattern
	err      error
}

func (f *fakePatternStore) ListActivePatterns(ctx context.Context) ([]*domain.FraudPattern, error) {
	return f.patterns, f.err
}

func (f *fakePatternStore) SavePattern(ctx context.Context, pattern *domain.FraudPattern) error {
	f.patterns = append(f.patterns, pattern)
	return nil
}

func activePattern(id, name string, severity domain.Severity) *domain.FraudPattern {
	return &domain.FraudPattern{
		ID:       id,
		Name:     name,
		Category: domain.CategoryOther,
		Severity: severity,
		IsActive: true,
	}
}

func TestCatalogCompile(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	t.Run("ValidPattern", func(t *testing.T) {
		p := activePattern("p-1", "High Value", domain.SeverityHigh)
		p.Rules = []domain.RawRule{{Field: "amount", Operator: ">", Value: 10000.0}}
		p.Expression = `amount > 10000.0 && receiver_upi.contains("new")`

		compiled, err := catalog.Compile(p)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if len(compiled.Rules) != 1 {
			t.Errorf("expected 1 rule, got %d", len(compiled.Rules))
		}
		if compiled.Guard == nil {
			t.Error("expected compiled guard program")
		}
	})

	t.Run("NilPattern", func(t *testing.T) {
		if _, err := catalog.Compile(nil); err == nil {
			t.Error("expected error for nil pattern")
		}
	})

	t.Run("UnknownSeverity", func(t *testing.T) {
		p := activePattern("p-bad", "Bad Severity", "catastrophic")
		if _, err := catalog.Compile(p); err == nil {
			t.Error("expected error for unknown severity")
		}
	})

	t.Run("MalformedRule", func(t *testing.T) {
		p := activePattern("p-bad", "Bad Rule", domain.SeverityLow)
		p.Rules = []domain.RawRule{{Field: "nonsense", Operator: ">", Value: 1.0}}
		if _, err := catalog.Compile(p); err == nil {
			t.Error("expected error for malformed rule")
		}
	})

	t.Run("ExpressionSyntaxError", func(t *testing.T) {
		p := activePattern("p-bad", "Bad Expression", domain.SeverityLow)
		p.Expression = "amount >"
		if _, err := catalog.Compile(p); err == nil {
			t.Error("expected error for broken expression")
		}
	})

	t.Run("ExpressionNotBool", func(t *testing.T) {
		p := activePattern("p-bad", "Non Bool", domain.SeverityLow)
		p.Expression = "amount + 1.0"
		if _, err := catalog.Compile(p); err == nil {
			t.Error("expected error for non-boolean expression")
		}
	})
}

func TestCatalogLoad(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	valid := activePattern("p-valid", "Beta Pattern", domain.SeverityMedium)
	valid.Rules = []domain.RawRule{{Field: "amount", Operator: ">", Value: 100.0}}

	alsoValid := activePattern("p-also", "Alpha Pattern", domain.SeverityLow)
	alsoValid.Expression = "amount < 10.0"

	broken := activePattern("p-broken", "Broken Pattern", domain.SeverityLow)
	broken.Expression = "city ==" // does not compile

	inactive := activePattern("p-off", "Inactive Pattern", domain.SeverityLow)
	inactive.IsActive = false

	catalog.Load([]*domain.FraudPattern{valid, broken, inactive, alsoValid})

	if catalog.Count() != 2 {
		t.Fatalf("expected 2 loaded patterns, got %d", catalog.Count())
	}

	patterns := catalog.Patterns()
	if patterns[0].Pattern.Name != "Alpha Pattern" || patterns[1].Pattern.Name != "Beta Pattern" {
		t.Errorf("expected name order [Alpha Beta], got [%s %s]",
			patterns[0].Pattern.Name, patterns[1].Pattern.Name)
	}
}

func TestCatalogMatches(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	tx := &domain.TransactionContext{
		SenderUPI:    "alice@okbank",
		ReceiverUPI:  "shop@upi",
		Amount:       250,
		MerchantName: "Corner Store",
		Description:  "groceries",
	}

	t.Run("RuleMatch", func(t *testing.T) {
		p := activePattern("p-1", "Amount", domain.SeverityLow)
		p.Rules = []domain.RawRule{{Field: "amount", Operator: ">", Value: 100.0}}
		compiled, err := catalog.Compile(p)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if !catalog.Matches(compiled, tx) {
			t.Error("expected rule match")
		}
	})

	t.Run("GuardMatchWithoutRules", func(t *testing.T) {
		p := activePattern("p-2", "Guard Only", domain.SeverityLow)
		p.Expression = `merchant_name.contains("Corner") && amount < 1000.0`
		compiled, err := catalog.Compile(p)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if !catalog.Matches(compiled, tx) {
			t.Error("expected guard match")
		}
	})

	t.Run("OrSemantics", func(t *testing.T) {
		// Rules miss but the guard hits; the pattern still matches.
		p := activePattern("p-3", "Either", domain.SeverityLow)
		p.Rules = []domain.RawRule{{Field: "amount", Operator: ">", Value: 99999.0}}
		p.Expression = `description == "groceries"`
		compiled, err := catalog.Compile(p)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if !catalog.Matches(compiled, tx) {
			t.Error("expected match via guard when rules miss")
		}
	})

	t.Run("EmptyPatternNeverMatches", func(t *testing.T) {
		p := activePattern("p-4", "Empty", domain.SeverityLow)
		compiled, err := catalog.Compile(p)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if catalog.Matches(compiled, tx) {
			t.Error("pattern with no rules and no guard must not match")
		}
	})

	t.Run("NilLocationCity", func(t *testing.T) {
		p := activePattern("p-5", "City", domain.SeverityLow)
		p.Expression = `city == ""`
		compiled, err := catalog.Compile(p)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if !catalog.Matches(compiled, tx) {
			t.Error("expected nil location to evaluate as empty city")
		}
	})
}

func TestCatalogReloadFromStore(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	t.Run("LoadsStorePatterns", func(t *testing.T) {
		store := &fakePatternStore{patterns: []*domain.FraudPattern{
			activePattern("p-1", "One", domain.SeverityLow),
			activePattern("p-2", "Two", domain.SeverityHigh),
		}}
		if err := catalog.ReloadFromStore(context.Background(), store); err != nil {
			t.Fatalf("ReloadFromStore failed: %v", err)
		}
		if catalog.Count() != 2 {
			t.Errorf("expected 2 patterns, got %d", catalog.Count())
		}
	})

	t.Run("StoreError", func(t *testing.T) {
		store := &fakePatternStore{err: errors.New("db down")}
		if err := catalog.ReloadFromStore(context.Background(), store); err == nil {
			t.Error("expected error from failing store")
		}
		// The previous set stays loaded on a failed reload.
		if catalog.Count() != 2 {
			t.Errorf("expected previous patterns retained, got %d", catalog.Count())
		}
	})
}

func TestBuiltinPatterns(t *testing.T) {
	catalog, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	builtins := BuiltinPatterns()
	if len(builtins) == 0 {
		t.Fatal("expected builtin patterns")
	}

	// Every builtin must survive compilation verbatim.
	for _, p := range builtins {
		if _, err := catalog.Compile(p); err != nil {
			t.Errorf("builtin %s failed to compile: %v", p.ID, err)
		}
	}

	catalog.Load(builtins)
	if catalog.Count() != len(builtins) {
		t.Errorf("expected all %d builtins loaded, got %d", len(builtins), catalog.Count())
	}

	t.Run("RefundScam", func(t *testing.T) {
		tx := &domain.TransactionContext{
			SenderUPI:    "victim@okbank",
			ReceiverUPI:  "support@upi",
			Amount:       2000,
			MerchantName: "Refund Desk",
		}
		if !matchesAny(catalog, tx, "pattern-refund-scam") {
			t.Error("expected refund scam pattern to match")
		}
	})

	t.Run("QRSwap", func(t *testing.T) {
		tx := &domain.TransactionContext{
			SenderUPI:   "victim@okbank",
			ReceiverUPI: "fake-merchant-123@upi",
			Amount:      800,
		}
		if !matchesAny(catalog, tx, "pattern-qr-swap") {
			t.Error("expected QR swap pattern to match")
		}
	})

	t.Run("PrizeLottery", func(t *testing.T) {
		tx := &domain.TransactionContext{
			SenderUPI:   "victim@okbank",
			ReceiverUPI: "winner-desk@upi",
			Amount:      5000,
			Description: "tax to claim lottery prize",
		}
		if !matchesAny(catalog, tx, "pattern-prize-lottery") {
			t.Error("expected prize/lottery pattern to match")
		}
	})

	t.Run("RentalFraud", func(t *testing.T) {
		tx := &domain.TransactionContext{
			SenderUPI:   "victim@okbank",
			ReceiverUPI: "owner@upi",
			Amount:      25000,
			Description: "advance booking deposit for flat",
		}
		if !matchesAny(catalog, tx, "pattern-rental-fraud") {
			t.Error("expected rental fraud pattern to match")
		}
	})

	t.Run("DarlingScam", func(t *testing.T) {
		tx := &domain.TransactionContext{
			SenderUPI:   "victim@okbank",
			ReceiverUPI: "friend@upi",
			Amount:      15000,
			Description: "medical emergency help",
		}
		if !matchesAny(catalog, tx, "pattern-darling-scam") {
			t.Error("expected darling scam pattern to match")
		}
	})

	t.Run("IdentityTheftChainNeverRuleMatches", func(t *testing.T) {
		tx := &domain.TransactionContext{
			SenderUPI:   "victim@okbank",
			ReceiverUPI: "mule@upi",
			Amount:      50,
			Description: "rapid bot transfer",
		}
		if matchesAny(catalog, tx, "pattern-identity-theft-chain") {
			t.Error("velocity-only pattern must not match per transaction")
		}
	})

	t.Run("CleanTransaction", func(t *testing.T) {
		tx := &domain.TransactionContext{
			SenderUPI:    "alice@okbank",
			ReceiverUPI:  "bob@okbank",
			Amount:       1200,
			Description:  "weekly shopping",
			MerchantName: "Grocery Mart",
		}
		for _, cp := range catalog.Patterns() {
			if catalog.Matches(cp, tx) {
				t.Errorf("clean transaction matched %s", cp.Pattern.ID)
			}
		}
	})
}

func matchesAny(catalog *Catalog, tx *domain.TransactionContext, patternID string) bool {
	for _, cp := range catalog.Patterns() {
		if cp.Pattern.ID == patternID && catalog.Matches(cp, tx) {
			return true
		}
	}
	return false
}
