package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(id, pattern, category string, priority int) model.Rule {
	return model.Rule{
		ID:        id,
		Name:      "Rule " + id,
		Pattern:   pattern,
		MatchKind: model.MatchContains,
		Category:  category,
		Source:    model.SourceUser,
		Priority:  priority,
		Active:    true,
	}
}

func TestRules_SaveAndLoad(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	scoped := testRule("r-2", "bizum", "Transferencias", 1)
	scoped.ScopeAccountID = "acct-1"
	scoped.Direction = model.DirectionExpense
	scoped.Subcategory = "Bizum"
	scoped.MatchKind = model.MatchStartsWith

	require.NoError(t, store.SaveRule(ctx, testRule("r-1", "mercadona", "Alimentación", 10)))
	require.NoError(t, store.SaveRule(ctx, scoped))
	require.NoError(t, store.SaveRule(ctx, testRule("r-3", "lidl", "Alimentación", 10)))

	loaded, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, []string{"r-1", "r-2", "r-3"}, []string{loaded[0].ID, loaded[1].ID, loaded[2].ID})

	got := loaded[1]
	assert.Equal(t, "acct-1", got.ScopeAccountID)
	assert.Equal(t, model.DirectionExpense, got.Direction)
	assert.Equal(t, model.MatchStartsWith, got.MatchKind)
	assert.Equal(t, "Bizum", got.Subcategory)
	assert.Equal(t, model.SourceUser, got.Source)
	assert.True(t, got.Active)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRules_SaveUpdatesInPlace(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveRule(ctx, testRule("r-1", "mercadona", "Alimentación", 10)))
	require.NoError(t, store.SaveRule(ctx, testRule("r-2", "repsol", "Transporte", 10)))

	updated := testRule("r-1", "mercadona", "Supermercado", 1)
	updated.Active = false
	require.NoError(t, store.SaveRule(ctx, updated))

	loaded, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "r-1", loaded[0].ID, "an update keeps the insertion slot")
	assert.Equal(t, "Supermercado", loaded[0].Category)
	assert.Equal(t, 1, loaded[0].Priority)
	assert.False(t, loaded[0].Active)
}

func TestRules_SaveInvalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name string
		rule model.Rule
	}{
		{"missing id", testRule("", "x", "Otros", 1)},
		{"missing pattern", testRule("r-1", "", "Otros", 1)},
		{"missing category", testRule("r-1", "x", "", 1)},
		{"unknown kind", func() model.Rule { r := testRule("r-1", "x", "Otros", 1); r.MatchKind = "fuzzy"; return r }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.SaveRule(ctx, tt.rule), common.ErrInvalidRule)
		})
	}

	loaded, err := store.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRules_Delete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveRule(ctx, testRule("r-1", "mercadona", "Alimentación", 10)))
	require.NoError(t, store.DeleteRule(ctx, "r-1"))

	err := store.DeleteRule(ctx, "r-1")
	assert.True(t, common.IsNotFound(err))

	loaded, err := store.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRules_LoadSeedsEmptyDatabase(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seeded, err := rules.Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, len(rules.DefaultRules()), seeded.Len())

	persisted, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, seeded.Len())

	// A second load reads the persisted rules back without reseeding.
	reloaded, err := rules.Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, ruleIDs(seeded.Rules()), ruleIDs(reloaded.Rules()))
}

func ruleIDs(list []model.Rule) []string {
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	return ids
}
