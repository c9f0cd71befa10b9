// Package categorize assigns a category to each transaction by walking an
// ordered chain of strategies: stored rules, the bank's own category, built-in
// keyword heuristics and finally a default bucket.
package categorize

import (
	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/rules"
)

// Confidence awarded by the fallback strategies. Rule confidence depends on the
// match kind, see model.MatchKind.Confidence.
const (
	BankMappingConfidence = 60
	HeuristicConfidence   = 60
	DefaultConfidence     = 10
)

// Labels reported in Categorization.AppliedRule by the fallback strategies.
const (
	BankMappingLabel = "Bank category mapping"
	HeuristicPrefix  = "Heuristic: "
	DefaultLabel     = "Default"
)

// Strategy is one stage of the categorization chain. Attempt returns false when
// the strategy has nothing to say about txn, letting the next stage run.
type Strategy interface {
	Name() string
	Attempt(txn model.Transaction) (model.Categorization, bool)
}

// RuleStrategy evaluates a fixed rule snapshot.
type RuleStrategy struct {
	snapshot *rules.Snapshot
}

// NewRuleStrategy creates a rule stage over snap.
func NewRuleStrategy(snap *rules.Snapshot) *RuleStrategy {
	return &RuleStrategy{snapshot: snap}
}

// Name implements Strategy.
func (s *RuleStrategy) Name() string { return "rules" }

// Attempt implements Strategy.
func (s *RuleStrategy) Attempt(txn model.Transaction) (model.Categorization, bool) {
	rule, ok := s.snapshot.Match(txn)
	if !ok {
		return model.Categorization{}, false
	}
	return model.Categorization{
		Category:    rule.Category,
		Subcategory: rule.Subcategory,
		Confidence:  rule.MatchKind.Confidence(),
		AppliedRule: rule.Name,
		RuleID:      rule.ID,
		Strategy:    model.StrategyRule,
	}, true
}

// DefaultStrategy always succeeds with the uncategorized bucket.
type DefaultStrategy struct{}

// Name implements Strategy.
func (DefaultStrategy) Name() string { return DefaultLabel }

// Attempt implements Strategy.
func (DefaultStrategy) Attempt(model.Transaction) (model.Categorization, bool) {
	return Uncategorized(), true
}

// Uncategorized returns the default bucket result.
func Uncategorized() model.Categorization {
	return model.Categorization{
		Category:    model.UncategorizedCategory,
		Subcategory: model.UncategorizedSubcategory,
		Confidence:  DefaultConfidence,
		AppliedRule: DefaultLabel,
		Strategy:    model.StrategyDefault,
	}
}
