package categorize

import (
	"fmt"
	"testing"

	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userRule(id, pattern string, kind model.MatchKind, category string, priority int) model.Rule {
	return model.Rule{
		ID:        id,
		Name:      "Rule " + id,
		Pattern:   pattern,
		MatchKind: kind,
		Category:  category,
		Priority:  priority,
		Active:    true,
	}
}

func TestEngine_SeededMercadona(t *testing.T) {
	engine := New(rules.NewDefaultStore())

	result := engine.Categorize(model.Transaction{Description: "MERCADONA VALENCIA CENTRO", Amount: -45.67})

	assert.Equal(t, "Alimentación", result.Category)
	assert.Equal(t, "Supermercado", result.Subcategory)
	assert.Greater(t, result.Confidence, 80)
	assert.Contains(t, result.AppliedRule, "Mercadona")
	assert.Equal(t, model.StrategyRule, result.Strategy)
	assert.Equal(t, "seed-mercadona", result.RuleID)
}

func TestEngine_CustomPriorityBeatsSeed(t *testing.T) {
	store := rules.NewDefaultStore()
	_, err := store.Add(model.Rule{
		ID: "seed-test", Name: "Seeded test", Pattern: "test", MatchKind: model.MatchContains,
		Category: "Seeded", Priority: rules.SeedPriority, Active: true, Source: model.SourceSeed,
	})
	require.NoError(t, err)
	_, err = store.Add(model.Rule{
		Name: "Custom test", Pattern: "test description", MatchKind: model.MatchContains,
		Category: "Custom", Priority: rules.UserPriority, Active: true,
	})
	require.NoError(t, err)

	result := New(store).Categorize(model.Transaction{Description: "TEST DESCRIPTION", Amount: -1})

	assert.Equal(t, "Custom", result.Category)
	assert.Equal(t, "Custom test", result.AppliedRule)
}

func TestEngine_UnknownDescriptionFallsToDefault(t *testing.T) {
	engine := New(rules.NewDefaultStore())

	result := engine.Categorize(model.Transaction{Description: "SOMETHING COMPLETELY UNKNOWN", Amount: -20})

	assert.Equal(t, model.UncategorizedCategory, result.Category)
	assert.Equal(t, model.UncategorizedSubcategory, result.Subcategory)
	assert.Equal(t, 10, result.Confidence)
	assert.Equal(t, DefaultLabel, result.AppliedRule)
	assert.Equal(t, model.StrategyDefault, result.Strategy)
}

func TestEngine_MatchKindConfidence(t *testing.T) {
	tests := []struct {
		kind    model.MatchKind
		pattern string
		want    int
	}{
		{model.MatchExact, "acme widgets", 100},
		{model.MatchRegex, `^acme\s+wid`, 95},
		{model.MatchStartsWith, "acme", 90},
		{model.MatchContains, "widg", 85},
		{model.MatchEndsWith, "widgets", 80},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			store := rules.NewStore([]model.Rule{userRule("r", tt.pattern, tt.kind, "Compras", 1)})
			result := New(store).Categorize(model.Transaction{Description: "ACME  Widgets", Amount: -5})
			assert.Equal(t, tt.want, result.Confidence)
			assert.Equal(t, "Compras", result.Category)
		})
	}
}

func TestEngine_ChainOrder(t *testing.T) {
	store := rules.NewStore([]model.Rule{userRule("gym", "gimnasio", model.MatchContains, "Salud", 1)})
	engine := New(store)

	tests := []struct {
		name     string
		txn      model.Transaction
		strategy model.Strategy
		category string
		label    string
		conf     int
	}{
		{
			name:     "rule wins over bank category",
			txn:      model.Transaction{Description: "GIMNASIO CENTRO", BankCategory: "Ocio", Amount: -30},
			strategy: model.StrategyRule, category: "Salud", label: "Rule gym", conf: 85,
		},
		{
			name:     "bank category with subcategory",
			txn:      model.Transaction{Description: "RECIBO 0042", BankCategory: "RECIBOS", BankSubcategory: "Luz", Amount: -60},
			strategy: model.StrategyBankMapping, category: "Hogar", label: BankMappingLabel, conf: 60,
		},
		{
			name:     "bank category falls back to bare category",
			txn:      model.Transaction{Description: "RECIBO 0042", BankCategory: "Recibos", BankSubcategory: "Otros recibos", Amount: -60},
			strategy: model.StrategyBankMapping, category: "Hogar", label: BankMappingLabel, conf: 60,
		},
		{
			name:     "bank category accents folded",
			txn:      model.Transaction{Description: "X", BankCategory: "ALIMENTACIÓN", Amount: -10},
			strategy: model.StrategyBankMapping, category: "Alimentación", label: BankMappingLabel, conf: 60,
		},
		{
			name:     "unknown bank category goes to heuristics",
			txn:      model.Transaction{Description: "COMPRA SUPERMERCADO LA PLAZA", BankCategory: "Varios", Amount: -10},
			strategy: model.StrategyHeuristic, category: "Alimentación", label: "Heuristic: Supermarket", conf: 60,
		},
		{
			name:     "fuel station heuristic",
			txn:      model.Transaction{Description: "E.S. PLENOIL MADRID", Amount: -50},
			strategy: model.StrategyHeuristic, category: "Transporte", label: "Heuristic: Fuel station", conf: 60,
		},
		{
			name:     "payroll heuristic for income",
			txn:      model.Transaction{Description: "ABONO HABERES MARZO", Amount: 1800},
			strategy: model.StrategyHeuristic, category: "Ingresos", label: "Heuristic: Payroll", conf: 60,
		},
		{
			name:     "payroll heuristic ignores expenses",
			txn:      model.Transaction{Description: "ABONO HABERES MARZO", Amount: -1800},
			strategy: model.StrategyDefault, category: model.UncategorizedCategory, label: DefaultLabel, conf: 10,
		},
		{
			name:     "heuristic requires whole words",
			txn:      model.Transaction{Description: "BPXYZ HOLDINGS", Amount: -10},
			strategy: model.StrategyDefault, category: model.UncategorizedCategory, label: DefaultLabel, conf: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Categorize(tt.txn)
			assert.Equal(t, tt.strategy, result.Strategy)
			assert.Equal(t, tt.category, result.Category)
			assert.Equal(t, tt.label, result.AppliedRule)
			assert.Equal(t, tt.conf, result.Confidence)
		})
	}
}

func TestEngine_InactiveRuleFallsThrough(t *testing.T) {
	store := rules.NewStore([]model.Rule{userRule("lidl", "lidl", model.MatchContains, "Compras", 1)})
	engine := New(store)
	txn := model.Transaction{Description: "LIDL SEVILLA", Amount: -12}

	before := engine.Categorize(txn)
	require.Equal(t, model.StrategyRule, before.Strategy)

	inactive := false
	_, err := store.Update("lidl", model.RulePatch{Active: &inactive})
	require.NoError(t, err)

	after := engine.Categorize(txn)
	assert.Equal(t, model.StrategyHeuristic, after.Strategy)
	assert.Equal(t, "Alimentación", after.Category)
}

func TestEngine_InvalidRegexNeverApplies(t *testing.T) {
	store := rules.NewStore([]model.Rule{
		{ID: "broken", Name: "Broken", Pattern: "([unclosed", MatchKind: model.MatchRegex, Category: "Broken", Priority: 1, Active: true},
		userRule("ok", "unclosed", model.MatchContains, "Fine", 2),
	})

	var result model.Categorization
	require.NotPanics(t, func() {
		result = New(store).Categorize(model.Transaction{Description: "([unclosed", Amount: -1})
	})

	assert.NotEqual(t, "Broken", result.AppliedRule)
	assert.Equal(t, "Fine", result.Category)
}

func TestEngine_ScopedRule(t *testing.T) {
	scoped := userRule("work", "comida", model.MatchContains, "Trabajo", 1)
	scoped.ScopeAccountID = "acct-work"
	engine := New(rules.NewStore([]model.Rule{scoped}))

	assert.Equal(t, "Trabajo", engine.Categorize(model.Transaction{Description: "COMIDA", AccountID: "acct-work"}).Category)
	assert.Equal(t, model.UncategorizedCategory, engine.Categorize(model.Transaction{Description: "COMIDA", AccountID: "acct-home"}).Category)
}

type panickyStrategy struct{}

func (panickyStrategy) Name() string { return "panicky" }
func (panickyStrategy) Attempt(model.Transaction) (model.Categorization, bool) {
	panic("boom")
}

type overconfident struct{}

func (overconfident) Name() string { return "overconfident" }
func (overconfident) Attempt(model.Transaction) (model.Categorization, bool) {
	return model.Categorization{Category: "X", Confidence: 250}, true
}

func TestEngine_ChainIsDefensive(t *testing.T) {
	engine := New(nil)
	engine.fallbacks = []Strategy{panickyStrategy{}, overconfident{}, DefaultStrategy{}}

	result := engine.Categorize(model.Transaction{Description: "anything"})

	assert.Equal(t, "X", result.Category)
	assert.Equal(t, 100, result.Confidence)
	assert.Equal(t, "overconfident", result.AppliedRule)
}

func TestEngine_AlwaysReturnsValidResult(t *testing.T) {
	engine := New(rules.NewDefaultStore())
	inputs := []model.Transaction{
		{},
		{Description: "   "},
		{Description: "\x00\xff"},
		{Description: "NOMINA", Amount: 0},
		{Description: "ÑANDÚ S.L.", BankCategory: "???", BankSubcategory: "|"},
	}

	for i, txn := range inputs {
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			result := engine.Categorize(txn)
			assert.GreaterOrEqual(t, result.Confidence, 0)
			assert.LessOrEqual(t, result.Confidence, 100)
			assert.NotEmpty(t, result.AppliedRule)
			assert.NotEmpty(t, result.Category)
		})
	}
}

func TestEngine_CategorizeBatch(t *testing.T) {
	store := rules.NewDefaultStore()
	engine := NewWithConfig(store, Config{Workers: 4})

	txns := make([]model.Transaction, 0, 200)
	for i := 0; i < 50; i++ {
		txns = append(txns,
			model.Transaction{Description: "MERCADONA VALENCIA CENTRO", Amount: -45.67},
			model.Transaction{Description: "SOMETHING COMPLETELY UNKNOWN", Amount: -1},
			model.Transaction{Description: "BIZUM DE ANA", Amount: 20},
			model.Transaction{Description: fmt.Sprintf("REF %d", i), BankCategory: "Seguros", Amount: -9},
		)
	}

	results := engine.CategorizeBatch(txns)
	require.Len(t, results, len(txns))

	for i, txn := range txns {
		assert.Equal(t, engine.Categorize(txn), results[i], "index %d", i)
	}
	assert.Equal(t, "Alimentación", results[0].Category)
	assert.Equal(t, model.UncategorizedCategory, results[1].Category)
	assert.Equal(t, "Transferencias", results[2].Category)
	assert.Equal(t, "Seguros", results[3].Category)

	assert.Empty(t, engine.CategorizeBatch(nil))
}
