package learning

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/rules"
)

// Generator synthesizes rules from manual recategorizations and inserts them
// into a rule store. It only ever adds rules or re-points its own learned
// rules; it never removes or demotes anything.
type Generator struct {
	store    *rules.Store
	priority int
	mu       sync.Mutex // serializes lookup-then-insert
}

// NewGenerator creates a generator feeding store.
func NewGenerator(store *rules.Store) *Generator {
	return &Generator{
		store:    store,
		priority: rules.LearnedPriority,
	}
}

// OnUserCorrection records that txn belongs in category/subcategory. It
// returns the rule that now captures the correction, or false when no usable
// pattern could be extracted. The returned rule must be persisted by the
// caller.
func (g *Generator) OnUserCorrection(txn model.Transaction, category, subcategory string) (model.Rule, bool) {
	category = strings.TrimSpace(category)
	subcategory = strings.TrimSpace(subcategory)
	if category == "" {
		return model.Rule{}, false
	}

	pattern, kind, ok := ExtractPattern(txn.Description)
	if !ok {
		slog.Debug("No learnable pattern in description", "description", txn.Description)
		return model.Rule{}, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, found := g.findLearned(pattern, kind, txn.AccountID); found {
		if existing.Category == category && existing.Subcategory == subcategory {
			return existing, true
		}
		updated, err := g.store.Update(existing.ID, model.RulePatch{
			Category:    &category,
			Subcategory: &subcategory,
		})
		if err != nil {
			slog.Warn("Failed to re-point learned rule", "rule_id", existing.ID, "error", err)
			return model.Rule{}, false
		}
		slog.Info("Re-pointed learned rule",
			"rule_id", updated.ID,
			"pattern", pattern,
			"category", category,
			"subcategory", subcategory)
		return updated, true
	}

	rule, err := g.store.Add(model.Rule{
		Name:           "Learned: " + displayName(pattern),
		Pattern:        pattern,
		MatchKind:      kind,
		Category:       category,
		Subcategory:    subcategory,
		ScopeAccountID: txn.AccountID,
		Priority:       g.priority,
		Active:         true,
		Source:         model.SourceLearned,
	})
	if err != nil {
		slog.Warn("Failed to add learned rule", "pattern", pattern, "error", err)
		return model.Rule{}, false
	}

	slog.Info("Learned rule from correction",
		"rule_id", rule.ID,
		"pattern", pattern,
		"match_kind", kind,
		"category", category,
		"account_id", txn.AccountID)
	return rule, true
}

func (g *Generator) findLearned(pattern string, kind model.MatchKind, accountID string) (model.Rule, bool) {
	for _, r := range g.store.Rules() {
		if r.Source == model.SourceLearned && r.Pattern == pattern &&
			r.MatchKind == kind && r.ScopeAccountID == accountID {
			return r, true
		}
	}
	return model.Rule{}, false
}

func displayName(pattern string) string {
	return strings.ReplaceAll(pattern, ".*", " ")
}
