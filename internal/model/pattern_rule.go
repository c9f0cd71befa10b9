// Package model defines the core data structures for the gasto application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// MatchKind selects how a rule pattern is compared against a description.
type MatchKind string

// Match kinds. The set is closed; anything else is rejected by ParseMatchKind.
const (
	MatchContains   MatchKind = "contains"
	MatchStartsWith MatchKind = "starts_with"
	MatchEndsWith   MatchKind = "ends_with"
	MatchExact      MatchKind = "exact"
	MatchRegex      MatchKind = "regex"
)

// MatchKinds lists every valid match kind.
var MatchKinds = []MatchKind{MatchContains, MatchStartsWith, MatchEndsWith, MatchExact, MatchRegex}

// Confidence returns the categorization confidence awarded when a rule of this
// kind matches.
func (k MatchKind) Confidence() int {
	switch k {
	case MatchExact:
		return 100
	case MatchRegex:
		return 95
	case MatchStartsWith:
		return 90
	case MatchContains:
		return 85
	case MatchEndsWith:
		return 80
	}
	return 0
}

// Valid reports whether k is one of the known match kinds.
func (k MatchKind) Valid() bool {
	for _, known := range MatchKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseMatchKind accepts the canonical names plus a few spellings used on the
// command line ("startswith", "starts-with").
func ParseMatchKind(s string) (MatchKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "contains":
		return MatchContains, nil
	case "starts_with", "startswith", "prefix":
		return MatchStartsWith, nil
	case "ends_with", "endswith", "suffix":
		return MatchEndsWith, nil
	case "exact", "equals":
		return MatchExact, nil
	case "regex", "regexp":
		return MatchRegex, nil
	}
	return "", fmt.Errorf("unknown match kind %q", s)
}

// RuleSource records who created a rule.
type RuleSource string

// Rule sources.
const (
	SourceSeed    RuleSource = "seed"
	SourceUser    RuleSource = "user"
	SourceLearned RuleSource = "learned"
)

// Rule maps a description pattern to a category.
type Rule struct {
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Pattern        string     `json:"pattern"`
	MatchKind      MatchKind  `json:"match_kind"`
	Category       string     `json:"category"`
	Subcategory    string     `json:"subcategory,omitempty"`
	ScopeAccountID string     `json:"scope_account_id,omitempty"`
	Direction      Direction  `json:"direction,omitempty"`
	Source         RuleSource `json:"source"`
	Priority       int        `json:"priority"`
	Active         bool       `json:"active"`
}

// Validate ensures the rule has the fields every match kind needs. An invalid
// regular expression is not a validation error: such rules are kept and never
// match.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("rule pattern is required")
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("rule category is required")
	}
	if !r.MatchKind.Valid() {
		return fmt.Errorf("unknown match kind %q", r.MatchKind)
	}
	switch r.Direction {
	case DirectionAny, DirectionIncome, DirectionExpense:
	default:
		return fmt.Errorf("unknown direction %q", r.Direction)
	}
	return nil
}

// AppliesTo reports whether the rule's account scope and direction admit txn.
func (r *Rule) AppliesTo(txn Transaction) bool {
	if r.ScopeAccountID != "" && r.ScopeAccountID != txn.AccountID {
		return false
	}
	if r.Direction != DirectionAny && r.Direction != txn.Direction() {
		return false
	}
	return true
}

// RulePatch carries a partial update. Nil fields are left untouched.
type RulePatch struct {
	Name           *string
	Pattern        *string
	MatchKind      *MatchKind
	Category       *string
	Subcategory    *string
	ScopeAccountID *string
	Direction      *Direction
	Priority       *int
	Active         *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p RulePatch) IsEmpty() bool {
	return p.Name == nil && p.Pattern == nil && p.MatchKind == nil &&
		p.Category == nil && p.Subcategory == nil && p.ScopeAccountID == nil &&
		p.Direction == nil && p.Priority == nil && p.Active == nil
}

// Apply returns a copy of r with the patch merged in.
func (p RulePatch) Apply(r Rule) Rule {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Pattern != nil {
		r.Pattern = *p.Pattern
	}
	if p.MatchKind != nil {
		r.MatchKind = *p.MatchKind
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Subcategory != nil {
		r.Subcategory = *p.Subcategory
	}
	if p.ScopeAccountID != nil {
		r.ScopeAccountID = *p.ScopeAccountID
	}
	if p.Direction != nil {
		r.Direction = *p.Direction
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	return r
}
