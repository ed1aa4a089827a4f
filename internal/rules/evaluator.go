// Package rules holds the deterministic approval rules applied to every charge attempt.
package rules

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Reasons returned with a Decision.
const (
	ReasonLimitExceeded    = "amount exceeds permitted limit"
	ReasonCardRequirements = "card does not meet requirements"
	ReasonCardNotSupported = "card not supported"
	ReasonApproved         = "charge approved"
)

// BlockedBIN is the issuer prefix the simulator declines outright.
const BlockedBIN = "400000"

// AmountLimit is the largest approvable amount; anything strictly above is declined.
var AmountLimit = decimal.NewFromInt(10000)

// Card is the card view rules need. Only the BIN and last four digits are ever evaluated.
type Card struct {
	BIN   string
	Last4 string
}

type Decision struct {
	Approved bool
	Reason   string
	// Rule names the rule that rejected the charge; empty when approved.
	Rule string
}

// Rule rejects a charge by returning a non-empty reason.
type Rule struct {
	Name  string
	Check func(amount decimal.Decimal, card Card) (reason string)
}

// Evaluator applies rules in order; the first rejection wins.
type Evaluator struct {
	rules []Rule
}

func NewEvaluator(rules ...Rule) *Evaluator {
	return &Evaluator{rules: rules}
}

// Default returns the evaluator with the simulator's fixed rule set.
func Default() *Evaluator {
	return NewEvaluator(AmountLimitRule(), OddLast4Rule(), BlockedBINRule())
}

func (e *Evaluator) Evaluate(amount decimal.Decimal, card Card) Decision {
	for _, r := range e.rules {
		if reason := r.Check(amount, card); reason != "" {
			return Decision{Reason: reason, Rule: r.Name}
		}
	}
	return Decision{Approved: true, Reason: ReasonApproved}
}

// Evaluate runs the default rule set.
func Evaluate(amount decimal.Decimal, card Card) Decision {
	return Default().Evaluate(amount, card)
}

func AmountLimitRule() Rule {
	return Rule{
		Name: "amount_limit",
		Check: func(amount decimal.Decimal, _ Card) string {
			if amount.GreaterThan(AmountLimit) {
				return ReasonLimitExceeded
			}
			return ""
		},
	}
}

// OddLast4Rule declines cards whose last four digits form an odd number.
// Values that are not all digits never trigger it.
func OddLast4Rule() Rule {
	return Rule{
		Name: "odd_last4",
		Check: func(_ decimal.Decimal, card Card) string {
			if card.Last4 == "" || !isDigits(card.Last4) {
				return ""
			}
			n, err := strconv.Atoi(card.Last4)
			if err != nil || n%2 == 0 {
				return ""
			}
			return ReasonCardRequirements
		},
	}
}

func BlockedBINRule() Rule {
	return Rule{
		Name: "blocked_bin",
		Check: func(_ decimal.Decimal, card Card) string {
			if card.BIN == BlockedBIN {
				return ReasonCardNotSupported
			}
			return ""
		},
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
