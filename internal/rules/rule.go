// Package rules provides the typed detection-rule matcher and the
// fraud pattern catalog.
package rules

import (
	"fmt"
	"strings"

	"github.com/upishield/shikra/internal/domain"
)

// NumericOp compares transaction amounts.
type NumericOp string

const (
	OpGreater      NumericOp = ">"
	OpLess         NumericOp = "<"
	OpEqual        NumericOp = "="
	OpGreaterEqual NumericOp = ">="
	OpLessEqual    NumericOp = "<="
)

// StringOp compares string attributes, always case-insensitively.
type StringOp string

const (
	OpContains   StringOp = "contains"
	OpEquals     StringOp = "equals"
	OpStartsWith StringOp = "startsWith"
)

// Rule is one decoded detection condition. The set of implementations
// is closed: AmountRule, ReceiverRule, MerchantKeywordRule. Matching
// has no side effects and never errors; anything unexpected that
// survives load-time validation evaluates to false.
type Rule interface {
	Matches(tx *domain.TransactionContext) bool
}

// AmountRule compares the transaction amount against a threshold.
type AmountRule struct {
	Op    NumericOp
	Value float64
}

func (r AmountRule) Matches(tx *domain.TransactionContext) bool {
	return compareNumbers(tx.Amount, r.Op, r.Value)
}

// ReceiverRule matches against the receiver UPI address.
type ReceiverRule struct {
	Op    StringOp
	Value string
}

func (r ReceiverRule) Matches(tx *domain.TransactionContext) bool {
	return compareStrings(tx.ReceiverUPI, r.Op, r.Value)
}

// MerchantKeywordRule matches against the merchant name.
type MerchantKeywordRule struct {
	Op    StringOp
	Value string
}

func (r MerchantKeywordRule) Matches(tx *domain.TransactionContext) bool {
	return compareStrings(tx.MerchantName, r.Op, r.Value)
}

func compareNumbers(actual float64, op NumericOp, expected float64) bool {
	switch op {
	case OpGreater:
		return actual > expected
	case OpLess:
		return actual < expected
	case OpEqual:
		return actual == expected
	case OpGreaterEqual:
		return actual >= expected
	case OpLessEqual:
		return actual <= expected
	}
	return false
}

func compareStrings(actual string, op StringOp, expected string) bool {
	a := strings.ToLower(actual)
	e := strings.ToLower(expected)
	switch op {
	case OpContains:
		return strings.Contains(a, e)
	case OpEquals:
		return a == e
	case OpStartsWith:
		return strings.HasPrefix(a, e)
	}
	return false
}

// ParseRule decodes a stored rule into its typed variant. Unknown
// fields, operators, or value shapes are rejected here so that a
// malformed rule can never become a match at evaluation time.
func ParseRule(raw domain.RawRule) (Rule, error) {
	switch raw.Field {
	case "amount":
		op := NumericOp(raw.Operator)
		switch op {
		case OpGreater, OpLess, OpEqual, OpGreaterEqual, OpLessEqual:
		default:
			return nil, fmt.Errorf("amount rule: unknown operator %q", raw.Operator)
		}
		value, ok := toFloat(raw.Value)
		if !ok {
			return nil, fmt.Errorf("amount rule: non-numeric value %v", raw.Value)
		}
		return AmountRule{Op: op, Value: value}, nil

	case "receiverUpi":
		op, value, err := stringRule(raw)
		if err != nil {
			return nil, fmt.Errorf("receiverUpi rule: %w", err)
		}
		return ReceiverRule{Op: op, Value: value}, nil

	case "merchantKeywords":
		op, value, err := stringRule(raw)
		if err != nil {
			return nil, fmt.Errorf("merchantKeywords rule: %w", err)
		}
		return MerchantKeywordRule{Op: op, Value: value}, nil
	}
	return nil, fmt.Errorf("unknown rule field %q", raw.Field)
}

// MatchesRaw evaluates a stored rule directly, failing closed: a rule
// that does not decode never matches.
func MatchesRaw(tx *domain.TransactionContext, raw domain.RawRule) bool {
	rule, err := ParseRule(raw)
	if err != nil {
		return false
	}
	return rule.Matches(tx)
}

func stringRule(raw domain.RawRule) (StringOp, string, error) {
	op := StringOp(raw.Operator)
	switch op {
	case OpContains, OpEquals, OpStartsWith:
	default:
		return "", "", fmt.Errorf("unknown operator %q", raw.Operator)
	}
	value, ok := raw.Value.(string)
	if !ok {
		return "", "", fmt.Errorf("non-string value %v", raw.Value)
	}
	return op, value, nil
}

// toFloat accepts the numeric shapes a JSON decode can produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
