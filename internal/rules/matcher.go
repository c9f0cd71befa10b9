// Package rules holds the prioritized, mutable categorization rule set.
package rules

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/gasto/internal/model"
)

// compiledRule pairs a rule with its pre-processed pattern.
type compiledRule struct {
	compiledRegex *regexp.Regexp
	pattern       string // normalized pattern for the literal match kinds
	model.Rule
}

func compileRule(rule model.Rule) compiledRule {
	c := compiledRule{Rule: rule}

	if rule.MatchKind != model.MatchRegex {
		c.pattern = model.NormalizeDescription(rule.Pattern)
		return c
	}

	regexStr := rule.Pattern
	if !strings.HasPrefix(regexStr, "(?i)") {
		regexStr = "(?i)" + regexStr
	}
	re, err := regexp.Compile(regexStr)
	if err != nil {
		slog.Warn("Rule pattern is not a valid regular expression, rule will never match",
			"rule_id", rule.ID,
			"rule", rule.Name,
			"pattern", rule.Pattern,
			"error", err)
		return c
	}
	c.compiledRegex = re
	return c
}

// matches evaluates the predicate against an already normalized description.
func (c *compiledRule) matches(description string) bool {
	switch c.MatchKind {
	case model.MatchContains:
		return c.pattern != "" && strings.Contains(description, c.pattern)
	case model.MatchStartsWith:
		return c.pattern != "" && strings.HasPrefix(description, c.pattern)
	case model.MatchEndsWith:
		return c.pattern != "" && strings.HasSuffix(description, c.pattern)
	case model.MatchExact:
		return c.pattern != "" && description == c.pattern
	case model.MatchRegex:
		return c.compiledRegex != nil && c.compiledRegex.MatchString(description)
	}
	return false
}

// Snapshot is an immutable, priority-ordered view of a rule set. It is safe
// for concurrent use.
type Snapshot struct {
	rules []compiledRule
}

// Compile builds a snapshot from a rule list. Equal priorities keep the order
// of the input slice.
func Compile(list []model.Rule) *Snapshot {
	compiled := make([]compiledRule, 0, len(list))
	for _, rule := range list {
		compiled = append(compiled, compileRule(rule))
	}
	return newSnapshot(compiled)
}

func newSnapshot(insertionOrder []compiledRule) *Snapshot {
	ordered := make([]compiledRule, len(insertionOrder))
	copy(ordered, insertionOrder)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return &Snapshot{rules: ordered}
}

// Match returns the first active rule, in priority order, that applies to txn.
func (s *Snapshot) Match(txn model.Transaction) (model.Rule, bool) {
	if s == nil {
		return model.Rule{}, false
	}

	description := txn.NormalizedDescription()
	for i := range s.rules {
		rule := &s.rules[i]
		if !rule.Active || !rule.AppliesTo(txn) {
			continue
		}
		if rule.matches(description) {
			return rule.Rule, true
		}
	}
	return model.Rule{}, false
}

// Rules returns the rules in evaluation order.
func (s *Snapshot) Rules() []model.Rule {
	if s == nil {
		return nil
	}
	out := make([]model.Rule, len(s.rules))
	for i, rule := range s.rules {
		out[i] = rule.Rule
	}
	return out
}

// Len returns the number of rules, active or not.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
