package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
)

// LoadRules returns every stored rule in insertion order.
func (s *SQLiteStorage) LoadRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.loadRules(ctx, s.db)
}

func (s *SQLiteStorage) loadRules(ctx context.Context, q queryable) ([]model.Rule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, pattern, match_kind, category, subcategory,
		       scope_account_id, direction, source, priority, is_active,
		       created_at, updated_at
		FROM rules
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		var rule model.Rule
		var matchKind, direction, source string
		var createdAt, updatedAt sql.NullTime

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Pattern, &matchKind, &rule.Category, &rule.Subcategory,
			&rule.ScopeAccountID, &direction, &source, &rule.Priority, &rule.Active,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rule.MatchKind = model.MatchKind(matchKind)
		rule.Direction = model.Direction(direction)
		rule.Source = model.RuleSource(source)
		if createdAt.Valid {
			rule.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			rule.UpdatedAt = updatedAt.Time
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// SaveRule inserts a rule or replaces the stored copy with the same ID. An
// update keeps the rule's original position in the insertion order.
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(&rule); err != nil {
		return err
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = now
	}
	if rule.Source == "" {
		rule.Source = model.SourceUser
	}

	_, err := s.exec(ctx, `
		INSERT INTO rules (
			id, name, pattern, match_kind, category, subcategory,
			scope_account_id, direction, source, priority, is_active,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			pattern = excluded.pattern,
			match_kind = excluded.match_kind,
			category = excluded.category,
			subcategory = excluded.subcategory,
			scope_account_id = excluded.scope_account_id,
			direction = excluded.direction,
			source = excluded.source,
			priority = excluded.priority,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`,
		rule.ID, rule.Name, rule.Pattern, string(rule.MatchKind), rule.Category, rule.Subcategory,
		rule.ScopeAccountID, string(rule.Direction), string(rule.Source), rule.Priority, rule.Active,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}

	return nil
}

// DeleteRule removes a rule by ID.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.exec(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}

	return nil
}
