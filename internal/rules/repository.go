package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/gasto/internal/model"
)

// Repository is the contract a persistence layer implements to keep the rule
// set across runs. LoadRules must return rules in insertion order.
type Repository interface {
	LoadRules(ctx context.Context) ([]model.Rule, error)
	SaveRule(ctx context.Context, rule model.Rule) error
	DeleteRule(ctx context.Context, id string) error
}

// Load builds a store from the repository. An empty repository is seeded with
// DefaultRules, which are persisted so later runs load them like any other rule.
func Load(ctx context.Context, repo Repository) (*Store, error) {
	stored, err := repo.LoadRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	if len(stored) > 0 {
		slog.Debug("Loaded rules", "count", len(stored))
		return NewStore(stored), nil
	}

	store := NewDefaultStore()
	for _, rule := range store.insertionOrder() {
		if err := repo.SaveRule(ctx, rule); err != nil {
			return nil, fmt.Errorf("failed to seed rule %s: %w", rule.ID, err)
		}
	}
	slog.Info("Seeded default rules", "count", store.Len())

	return store, nil
}

// insertionOrder returns the rules in the order they were registered.
func (s *Store) insertionOrder() []model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Rule, len(s.entries))
	for i, entry := range s.entries {
		out[i] = entry.Rule
	}
	return out
}
