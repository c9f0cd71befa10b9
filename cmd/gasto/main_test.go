package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/storage"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementCSV = "Fecha;Concepto;Importe;Saldo\n" +
	"05/03/2024;COMPRA TARJETA EN MERCADONA VALENCIA;-45,67;1.954,33\n" +
	"06/03/2024;PANADERIA LA ESPIGA;-3,20;1.951,13\n" +
	"28/03/2024;NOMINA ACME SL;1.500,00;3.451,13\n"

type testEnv struct {
	dir    string
	dbPath string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		dbPath: filepath.Join(dir, "gasto.db"),
		config: filepath.Join(dir, "config.yaml"),
	}
	require.NoError(t, os.WriteFile(env.config, []byte("logging:\n  level: error\n"), 0o600))
	return env
}

// run executes the root command with a fresh viper instance.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.config, "--db", e.dbPath}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) writeStatement(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (e *testEnv) stored(t *testing.T) []model.ImportedTransaction {
	t.Helper()
	store, err := storage.NewSQLiteStorage(e.dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	items, err := store.ListTransactions(context.Background(), "", 0)
	require.NoError(t, err)
	return items
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gasto dev")
}

func TestMigrateStatus(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0 of")

	_, err = env.run(t, "", "migrate")
	require.NoError(t, err)

	out, err = env.run(t, "", "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2 of 2")
}

func TestImport_StoresAndSkipsReimport(t *testing.T) {
	env := newTestEnv(t)
	file := env.writeStatement(t, "marzo.csv", statementCSV)

	out, err := env.run(t, "", "import", file, "--account", "acct-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported: 3")
	assert.Contains(t, out, "Alimentación / Supermercado")

	items := env.stored(t)
	require.Len(t, items, 3)
	assert.Equal(t, "acct-1", items[0].Transaction.AccountID)

	out, err = env.run(t, "", "import", file, "--account", "acct-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported: 0")
	assert.Contains(t, out, "Skipped: 3")
	assert.Len(t, env.stored(t), 3)
}

func TestImport_DryRunStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	file := env.writeStatement(t, "marzo.csv", statementCSV)

	out, err := env.run(t, "", "import", file, "--account", "acct-1", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry Run")
	assert.Empty(t, env.stored(t))
}

func TestImport_DeclinedConfirmation(t *testing.T) {
	env := newTestEnv(t)
	file := env.writeStatement(t, "marzo.csv", statementCSV)

	out, err := env.run(t, "n\n", "import", file, "--account", "acct-1", "--confirm")
	require.NoError(t, err)
	assert.Contains(t, out, "[y/N]")
	assert.Empty(t, env.stored(t))
}

func TestImport_RequiresAccountForCSV(t *testing.T) {
	env := newTestEnv(t)
	file := env.writeStatement(t, "marzo.csv", statementCSV)

	_, err := env.run(t, "", "import", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--account")
}

func TestRules_AddListTestRemove(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "rules", "add",
		"--id", "espiga",
		"--name", "Panadería",
		"--pattern", "espiga",
		"--category", "Alimentación",
		"--subcategory", "Panadería")
	require.NoError(t, err)

	out, err := env.run(t, "", "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Panadería")

	out, err = env.run(t, "", "rules", "test", "PANADERIA LA ESPIGA", "--amount", "-3,20")
	require.NoError(t, err)
	assert.Contains(t, out, "Winner: Panadería")

	out, err = env.run(t, "", "categorize", "PANADERIA LA ESPIGA", "--amount", "-3,20")
	require.NoError(t, err)
	assert.Contains(t, out, "Alimentación / Panadería")
	assert.Contains(t, out, "espiga")

	_, err = env.run(t, "", "rules", "update", "espiga", "--active=false")
	require.NoError(t, err)

	out, err = env.run(t, "", "rules", "test", "PANADERIA LA ESPIGA")
	require.NoError(t, err)
	assert.Contains(t, out, "No rule matches")

	_, err = env.run(t, "", "rules", "remove", "espiga")
	require.NoError(t, err)

	_, err = env.run(t, "", "rules", "remove", "espiga")
	require.Error(t, err)
}

func TestRules_AddRejectsInvalidKind(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "rules", "add", "--name", "x", "--pattern", "x", "--category", "Otros", "--kind", "fuzzy")
	require.Error(t, err)
}

func TestCorrect_LearnsRule(t *testing.T) {
	env := newTestEnv(t)
	file := env.writeStatement(t, "marzo.csv", statementCSV)

	_, err := env.run(t, "", "import", file, "--account", "acct-1")
	require.NoError(t, err)

	var bakery model.ImportedTransaction
	for _, item := range env.stored(t) {
		if strings.Contains(item.Transaction.Description, "ESPIGA") {
			bakery = item
		}
	}
	require.NotEmpty(t, bakery.Transaction.ID)

	out, err := env.run(t, "", "correct", bakery.Transaction.ID, "--category", "Alimentación", "--subcategory", "Panadería")
	require.NoError(t, err)
	assert.Contains(t, out, "Learned rule")

	for _, item := range env.stored(t) {
		if item.Transaction.ID == bakery.Transaction.ID {
			assert.Equal(t, "Alimentación", item.Categorization.Category)
			assert.Equal(t, model.StrategyManual, item.Categorization.Strategy)
			assert.Equal(t, 100, item.Categorization.Confidence)
		}
	}

	out, err = env.run(t, "", "categorize", "PANADERIA LA ESPIGA", "--account", "acct-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Alimentación / Panadería")

	out, err = env.run(t, "", "list", "--account", "acct-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Manual correction")
}

func TestCorrect_UnchangedCategoryLearnsNothing(t *testing.T) {
	env := newTestEnv(t)
	file := env.writeStatement(t, "marzo.csv", statementCSV)

	_, err := env.run(t, "", "import", file, "--account", "acct-1")
	require.NoError(t, err)

	var grocery model.ImportedTransaction
	for _, item := range env.stored(t) {
		if strings.Contains(item.Transaction.Description, "MERCADONA") {
			grocery = item
		}
	}
	require.Equal(t, "Alimentación", grocery.Categorization.Category)
	rulesBefore := env.ruleCount(t)

	out, err := env.run(t, "", "correct", grocery.Transaction.ID,
		"--category", grocery.Categorization.Category,
		"--subcategory", grocery.Categorization.Subcategory)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to learn")
	assert.NotContains(t, out, "Learned rule")
	assert.Equal(t, rulesBefore, env.ruleCount(t))
}

func TestCategoryChanged(t *testing.T) {
	current := model.Categorization{Category: "Alimentación", Subcategory: "Supermercado"}

	assert.False(t, categoryChanged(current, "Alimentación", "Supermercado"))
	assert.False(t, categoryChanged(current, " Alimentación ", "Supermercado"))
	assert.True(t, categoryChanged(current, "Alimentación", "Panadería"))
	assert.True(t, categoryChanged(current, "Ocio", "Supermercado"))
}

func (e *testEnv) ruleCount(t *testing.T) int {
	t.Helper()
	store, err := storage.NewSQLiteStorage(e.dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	list, err := store.LoadRules(context.Background())
	require.NoError(t, err)
	return len(list)
}
