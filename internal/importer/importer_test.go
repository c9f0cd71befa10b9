package importer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/gasto/internal/categorize"
	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/importer"
	"github.com/Veraticus/gasto/internal/importer/mocks"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/rules"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func newOrchestrator(source importer.WindowSource) *importer.Orchestrator {
	return importer.New(categorize.New(rules.NewDefaultStore()), source)
}

func TestOrchestrator_ProcessImportBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	existing := model.Transaction{Date: day, Amount: -45.67, Description: "MERCADONA VALENCIA CENTRO", AccountID: "acct-1", ID: "stored-1"}
	raw := []model.Transaction{
		{Date: day, Amount: -45.67, Description: "MERCADONA VALENCIA CENTRO"},
		{Date: day.AddDate(0, 0, 3), Amount: -19.99, Description: "SOMETHING COMPLETELY UNKNOWN"},
		{Date: day.AddDate(0, 0, 1), Amount: 1500, Description: "NOMINA ACME SL"},
	}

	source := mocks.NewMockWindowSource(ctrl)
	source.EXPECT().
		GetTransactionWindow(gomock.Any(), "acct-1", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, from, to time.Time) ([]model.Transaction, error) {
			assert.Equal(t, day.AddDate(0, 0, -2), from)
			assert.True(t, to.After(day.AddDate(0, 0, 5)))
			assert.True(t, to.Before(day.AddDate(0, 0, 6)))
			return []model.Transaction{existing}, nil
		})

	batch, err := newOrchestrator(source).ProcessImportBatch(context.Background(), raw, "acct-1")
	require.NoError(t, err)
	require.Len(t, batch.Items, 3)
	assert.Equal(t, "acct-1", batch.AccountID)

	dup := batch.Items[0]
	assert.True(t, dup.Duplicate.IsDuplicate)
	assert.Equal(t, 100, dup.Duplicate.Confidence)
	require.NotNil(t, dup.Duplicate.Match)
	assert.Equal(t, "stored-1", dup.Duplicate.Match.ID)
	assert.Equal(t, "Alimentación", dup.Categorization.Category, "category is kept for dubious rows")
	assert.Equal(t, 30, dup.Categorization.Confidence)
	assert.Equal(t, "Mercadona [possible duplicate: exact fingerprint match]", dup.Categorization.AppliedRule)

	unknown := batch.Items[1]
	assert.False(t, unknown.Duplicate.IsDuplicate)
	assert.Equal(t, 10, unknown.Categorization.Confidence)
	assert.Equal(t, categorize.DefaultLabel, unknown.Categorization.AppliedRule)

	payroll := batch.Items[2]
	assert.Equal(t, "Ingresos", payroll.Categorization.Category)
	assert.Equal(t, 95, payroll.Categorization.Confidence)

	for _, item := range batch.Items {
		assert.Equal(t, "acct-1", item.Transaction.AccountID)
		assert.NotEmpty(t, item.Transaction.Hash)
		assert.NotEmpty(t, item.Transaction.ID)
		assert.Empty(t, item.Disposition, "the orchestrator never decides persistence")
	}

	assert.Equal(t, importer.Stats{Total: 3, Duplicates: 1, Dubious: 1, Uncategorized: 1}, batch.Stats)
}

func TestOrchestrator_ProcessImportBatchErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("empty batch", func(t *testing.T) {
		source := mocks.NewMockWindowSource(ctrl)
		_, err := newOrchestrator(source).ProcessImportBatch(context.Background(), nil, "acct-1")
		assert.ErrorIs(t, err, common.ErrNoTransactions)
	})

	t.Run("window error", func(t *testing.T) {
		source := mocks.NewMockWindowSource(ctrl)
		source.EXPECT().
			GetTransactionWindow(gomock.Any(), "acct-1", gomock.Any(), gomock.Any()).
			Return(nil, errors.New("database is locked"))

		_, err := newOrchestrator(source).ProcessImportBatch(context.Background(), []model.Transaction{{Date: day, Description: "X"}}, "acct-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database is locked")
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newOrchestrator(nil).Process(ctx, []model.Transaction{{Date: day, Description: "X"}}, "acct-1", nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOrchestrator_DubiousThreshold(t *testing.T) {
	window := []model.Transaction{{Date: day, Amount: -12, Description: "CAFETERIA SOL", AccountID: "acct-1"}}

	tests := []struct {
		name       string
		candidate  model.Transaction
		capped     bool
		confidence int
	}{
		{"same amount three days later is not dubious", model.Transaction{Date: day.AddDate(0, 0, 3), Amount: -12, Description: "KIOSKO"}, false, 10},
		{"same amount same day is dubious", model.Transaction{Date: day, Amount: -12, Description: "KIOSKO"}, true, 10},
		{"overlapping description is dubious", model.Transaction{Date: day.AddDate(0, 0, 1), Amount: -12, Description: "CAFETERIA SOL MAYOR"}, true, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := newOrchestrator(nil).Process(context.Background(), []model.Transaction{tt.candidate}, "acct-1", window)
			require.NoError(t, err)

			item := batch.Items[0]
			assert.Equal(t, tt.capped, item.Duplicate.Confidence > 30)
			assert.Equal(t, tt.capped, batch.Stats.Dubious == 1)
			assert.Equal(t, tt.confidence, item.Categorization.Confidence)
			assert.Equal(t, tt.capped, len(item.Categorization.AppliedRule) > len(categorize.DefaultLabel))
		})
	}
}

func TestOrchestrator_ProcessLargeBatchKeepsOrder(t *testing.T) {
	raw := make([]model.Transaction, 0, 300)
	for i := 0; i < 300; i++ {
		raw = append(raw, model.Transaction{
			Date:        day.AddDate(0, 0, i%30),
			Amount:      -float64(i + 1),
			Description: fmt.Sprintf("RECIBO %03d", i),
		})
	}

	batch, err := newOrchestrator(nil).Process(context.Background(), raw, "acct-1", nil)
	require.NoError(t, err)
	require.Len(t, batch.Items, len(raw))
	for i, item := range batch.Items {
		assert.Equal(t, raw[i].Description, item.Transaction.Description)
		assert.Equal(t, raw[i].Amount, item.Transaction.Amount)
	}
	assert.Zero(t, batch.Stats.Duplicates)
}

func TestPolicy_Decide(t *testing.T) {
	policy := importer.DefaultPolicy()
	require.NoError(t, policy.Validate())

	tests := []struct {
		confidence int
		want       model.Disposition
	}{
		{0, model.DispositionImport},
		{49, model.DispositionImport},
		{50, model.DispositionWarn},
		{94, model.DispositionWarn},
		{95, model.DispositionSkip},
		{100, model.DispositionSkip},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.confidence), func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Decide(model.DuplicateResult{Confidence: tt.confidence}))
		})
	}

	custom := importer.Policy{SkipThreshold: 101, WarnThreshold: 101}
	assert.ErrorIs(t, custom.Validate(), common.ErrInvalidConfig)

	lenient := importer.Policy{SkipThreshold: 100, WarnThreshold: 100}
	assert.Equal(t, model.DispositionImport, lenient.Decide(model.DuplicateResult{Confidence: 95}))
}

func item(id string, confidence int) model.ImportedTransaction {
	return model.ImportedTransaction{
		Transaction: model.Transaction{ID: id, Hash: "hash-" + id},
		Duplicate:   model.DuplicateResult{Confidence: confidence},
	}
}

func TestPolicy_Commit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	batch := &importer.Batch{
		AccountID: "acct-1",
		Items: []model.ImportedTransaction{
			item("new", 0),
			item("dubious", 70),
			item("certain", 100),
			item("raced", 10),
		},
	}

	sink := mocks.NewMockSink(ctrl)
	gomock.InOrder(
		sink.EXPECT().SaveTransaction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, it model.ImportedTransaction) error {
				assert.Equal(t, "new", it.Transaction.ID)
				assert.Equal(t, model.DispositionImport, it.Disposition)
				return nil
			}),
		sink.EXPECT().SaveTransaction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, it model.ImportedTransaction) error {
				assert.Equal(t, "dubious", it.Transaction.ID)
				assert.Equal(t, model.DispositionWarn, it.Disposition)
				return nil
			}),
		sink.EXPECT().SaveTransaction(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("transaction hash-raced: %w", common.ErrDuplicateEntry)),
	)

	result, err := importer.DefaultPolicy().Commit(context.Background(), batch, sink)
	require.NoError(t, err)
	assert.Equal(t, importer.CommitResult{Imported: 2, Warned: 1, Skipped: 2}, result)

	assert.Equal(t, model.DispositionSkip, batch.Items[2].Disposition)
	raced := batch.Items[3]
	assert.Equal(t, model.DispositionSkip, raced.Disposition)
	assert.True(t, raced.Duplicate.IsDuplicate)
	assert.Equal(t, 100, raced.Duplicate.Confidence)
	assert.Equal(t, importer.ReasonStoredFingerprint, raced.Duplicate.Reason)
}

func TestPolicy_CommitStopsOnSinkError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	batch := &importer.Batch{Items: []model.ImportedTransaction{item("a", 0), item("b", 0)}}

	sink := mocks.NewMockSink(ctrl)
	sink.EXPECT().SaveTransaction(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	result, err := importer.DefaultPolicy().Commit(context.Background(), batch, sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, result.Imported)
}
