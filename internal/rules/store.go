package rules

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/google/uuid"
)

// ErrInvalidRule is returned when a mutation would leave a rule unusable.
var ErrInvalidRule = common.ErrInvalidRule

// Store is the single-writer rule collection. Mutations are serialized and
// publish a fresh Snapshot; readers never observe a half-applied change.
type Store struct {
	now     func() time.Time
	snap    *Snapshot
	entries []compiledRule // insertion order
	mu      sync.RWMutex
}

// NewStore creates a store holding exactly the given rules. Rules that fail
// validation are dropped with a warning.
func NewStore(initial []model.Rule) *Store {
	s := &Store{now: time.Now}

	seen := make(map[string]bool, len(initial))
	for _, rule := range initial {
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		if err := rule.Validate(); err != nil {
			slog.Warn("Skipping invalid rule", "rule_id", rule.ID, "rule", rule.Name, "error", err)
			continue
		}
		if seen[rule.ID] {
			slog.Warn("Skipping rule with duplicate id", "rule_id", rule.ID, "rule", rule.Name)
			continue
		}
		seen[rule.ID] = true
		s.entries = append(s.entries, compileRule(rule))
	}
	s.snap = newSnapshot(s.entries)

	return s
}

// NewDefaultStore creates a store seeded with DefaultRules.
func NewDefaultStore() *Store {
	return NewStore(DefaultRules())
}

// Snapshot returns the current immutable view of the rules.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Rules returns every rule ordered by ascending priority, insertion order
// breaking ties.
func (s *Store) Rules() []model.Rule {
	return s.Snapshot().Rules()
}

// Len returns the number of stored rules.
func (s *Store) Len() int {
	return s.Snapshot().Len()
}

// Get returns the rule with the given id.
func (s *Store) Get(id string) (model.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.entries[i].Rule, true
	}
	return model.Rule{}, false
}

// Add inserts a rule after all existing rules of the same priority. Empty ids
// are filled with a UUID and an empty source defaults to user.
func (s *Store) Add(rule model.Rule) (model.Rule, error) {
	if err := rule.Validate(); err != nil {
		return model.Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	} else if s.indexOf(rule.ID) >= 0 {
		return model.Rule{}, fmt.Errorf("%w: rule %s already exists", ErrInvalidRule, rule.ID)
	}
	if rule.Source == "" {
		rule.Source = model.SourceUser
	}
	now := s.now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	s.entries = append(s.entries, compileRule(rule))
	s.publish()

	slog.Debug("Added rule", "rule_id", rule.ID, "rule", rule.Name, "priority", rule.Priority)
	return rule, nil
}

// Update merges patch into the rule with the given id. The rule keeps its
// insertion slot, so tie-breaks against equal priorities do not change.
func (s *Store) Update(id string, patch model.RulePatch) (model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Rule{}, fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}
	if patch.IsEmpty() {
		return s.entries[i].Rule, nil
	}

	updated := patch.Apply(s.entries[i].Rule)
	if err := updated.Validate(); err != nil {
		return model.Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	updated.UpdatedAt = s.now()

	s.entries[i] = compileRule(updated)
	s.publish()

	slog.Debug("Updated rule", "rule_id", id)
	return updated, nil
}

// Remove deletes the rule with the given id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}

	entries := make([]compiledRule, 0, len(s.entries)-1)
	entries = append(entries, s.entries[:i]...)
	entries = append(entries, s.entries[i+1:]...)
	s.entries = entries
	s.publish()

	slog.Debug("Removed rule", "rule_id", id)
	return nil
}

// publish rebuilds the snapshot. Callers hold the write lock.
func (s *Store) publish() {
	s.snap = newSnapshot(s.entries)
}

func (s *Store) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}
