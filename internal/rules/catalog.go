package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/upishield/shikra/internal/domain"
)

// Catalog holds the active fraud patterns with their rules decoded and
// guard expressions pre-compiled. It is the pattern detector's view of
// the pattern store and supports hot reload.
type Catalog struct {
	mu       sync.RWMutex
	env      *cel.Env
	patterns []*CompiledPattern // sorted by pattern name for stable output
}

// CompiledPattern is a load-time validated pattern.
type CompiledPattern struct {
	Pattern *domain.FraudPattern
	Rules   []Rule
	Guard   cel.Program // nil when the pattern has no expression
}

// NewCatalog creates an empty catalog with the CEL environment used by
// pattern guard expressions.
func NewCatalog() (*Catalog, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("sender_upi", cel.StringType),
		cel.Variable("receiver_upi", cel.StringType),
		cel.Variable("merchant_name", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("description", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Catalog{env: env}, nil
}

// Compile validates a pattern without loading it. Every rule must
// decode into a typed variant and the guard expression, if present,
// must compile to a boolean.
func (c *Catalog) Compile(p *domain.FraudPattern) (*CompiledPattern, error) {
	if p == nil {
		return nil, fmt.Errorf("pattern is required")
	}
	if !p.Severity.Valid() {
		return nil, fmt.Errorf("pattern %s: unknown severity %q", p.ID, p.Severity)
	}

	compiled := &CompiledPattern{Pattern: p}

	for i, raw := range p.Rules {
		rule, err := ParseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("pattern %s rule %d: %w", p.ID, i, err)
		}
		compiled.Rules = append(compiled.Rules, rule)
	}

	if p.Expression != "" {
		ast, issues := c.env.Compile(p.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("pattern %s: failed to compile expression: %w", p.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("pattern %s: expression must return bool, got %s", p.ID, ast.OutputType())
		}
		prog, err := c.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: failed to create program: %w", p.ID, err)
		}
		compiled.Guard = prog
	}

	return compiled, nil
}

// Load validates and loads patterns, replacing the current set.
// Invalid patterns are skipped with a warning; a malformed pattern must
// never trigger, so rejection happens here rather than at match time.
func (c *Catalog) Load(patterns []*domain.FraudPattern) {
	loaded := make([]*CompiledPattern, 0, len(patterns))
	for _, p := range patterns {
		if !p.IsActive {
			continue
		}
		compiled, err := c.Compile(p)
		if err != nil {
			slog.Warn("rejecting fraud pattern at load",
				"pattern_id", p.ID,
				"error", err,
			)
			continue
		}
		loaded = append(loaded, compiled)
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Pattern.Name < loaded[j].Pattern.Name
	})

	c.mu.Lock()
	c.patterns = loaded
	c.mu.Unlock()
}

// ReloadFromStore fetches active patterns from the store and loads them.
func (c *Catalog) ReloadFromStore(ctx context.Context, repo domain.PatternRepository) error {
	patterns, err := repo.ListActivePatterns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active patterns: %w", err)
	}
	c.Load(patterns)
	return nil
}

// Matches reports whether a compiled pattern matches the transaction:
// OR across its rules and guard expression. A pattern with zero rules
// and no guard never matches.
func (c *Catalog) Matches(cp *CompiledPattern, tx *domain.TransactionContext) bool {
	for _, rule := range cp.Rules {
		if rule.Matches(tx) {
			return true
		}
	}
	if cp.Guard != nil {
		out, _, err := cp.Guard.Eval(guardActivation(tx))
		if err != nil {
			// Evaluation failure is never a match.
			return false
		}
		if b, ok := out.(types.Bool); ok && bool(b) {
			return true
		}
	}
	return false
}

// Patterns returns the loaded patterns in stable (name) order.
func (c *Catalog) Patterns() []*CompiledPattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*CompiledPattern, len(c.patterns))
	copy(out, c.patterns)
	return out
}

// Count returns the number of loaded patterns.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns)
}

// Close clears the catalog.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = nil
	return nil
}

func guardActivation(tx *domain.TransactionContext) map[string]any {
	city := ""
	if tx.Location != nil {
		city = tx.Location.City
	}
	return map[string]any{
		"amount":        tx.Amount,
		"sender_upi":    tx.SenderUPI,
		"receiver_upi":  tx.ReceiverUPI,
		"merchant_name": tx.MerchantName,
		"city":          city,
		"description":   tx.Description,
	}
}
