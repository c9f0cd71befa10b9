// Package importer runs duplicate detection and categorization over a batch of
// statement rows and hands the decorated result to the persistence policy.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/gasto/internal/categorize"
	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/dedup"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration options for the orchestrator.
type Config struct {
	Dedup dedup.Config
	// DubiousThreshold is the duplicate confidence above which categorization
	// confidence is capped.
	DubiousThreshold int
	// ConfidenceCeiling is the cap applied to dubious rows.
	ConfidenceCeiling int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Dedup:             dedup.DefaultConfig(),
		DubiousThreshold:  30,
		ConfidenceCeiling: 30,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if err := c.Dedup.Validate(); err != nil {
		return err
	}
	if c.DubiousThreshold < 0 || c.DubiousThreshold > 100 {
		return fmt.Errorf("%w: dubious threshold must be between 0 and 100", common.ErrInvalidConfig)
	}
	if c.ConfidenceCeiling < 0 || c.ConfidenceCeiling > 100 {
		return fmt.Errorf("%w: confidence ceiling must be between 0 and 100", common.ErrInvalidConfig)
	}
	return nil
}

// Stats summarizes a processed batch.
type Stats struct {
	Total         int
	Duplicates    int // IsDuplicate results
	Dubious       int // rows whose categorization confidence was capped
	Uncategorized int // rows that fell through to the default bucket
}

// Batch is the decorated result of one import, in input order.
type Batch struct {
	AccountID string
	Items     []model.ImportedTransaction
	Stats     Stats
}

// Orchestrator composes the duplicate detector and the categorization engine.
type Orchestrator struct {
	engine *categorize.Engine
	source WindowSource
	config Config
}

// New creates an orchestrator with the default configuration.
func New(engine *categorize.Engine, source WindowSource) *Orchestrator {
	return NewWithConfig(engine, source, DefaultConfig())
}

// NewWithConfig creates an orchestrator with custom configuration.
func NewWithConfig(engine *categorize.Engine, source WindowSource, config Config) *Orchestrator {
	return &Orchestrator{
		engine: engine,
		source: source,
		config: config,
	}
}

// ProcessImportBatch loads the account's existing transactions around the
// batch dates and processes raw against them.
func (o *Orchestrator) ProcessImportBatch(ctx context.Context, raw []model.Transaction, accountID string) (*Batch, error) {
	if len(raw) == 0 {
		return nil, common.ErrNoTransactions
	}
	if o.source == nil {
		return nil, fmt.Errorf("no transaction window source configured")
	}

	from, to := o.windowBounds(raw)
	window, err := o.source.GetTransactionWindow(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing transactions: %w", err)
	}

	slog.Debug("Loaded duplicate window",
		"account_id", accountID,
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"count", len(window))

	return o.Process(ctx, raw, accountID, window)
}

// Process decorates raw with duplicate and categorization results computed
// against window. Detection and categorization run concurrently.
func (o *Orchestrator) Process(ctx context.Context, raw []model.Transaction, accountID string, window []model.Transaction) (*Batch, error) {
	txns := make([]model.Transaction, len(raw))
	for i, txn := range raw {
		txn.AccountID = accountID
		txn.EnsureHash()
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}
		txns[i] = txn
	}

	var (
		duplicates map[int]model.DuplicateResult
		categories []model.Categorization
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		duplicates = dedup.NewDetector(window, o.config.Dedup).DetectBatch(txns)
		return gctx.Err()
	})
	g.Go(func() error {
		categories = o.engine.CategorizeBatch(txns)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("import processing interrupted: %w", err)
	}

	batch := &Batch{
		AccountID: accountID,
		Items:     make([]model.ImportedTransaction, len(txns)),
	}
	for i, txn := range txns {
		item := o.merge(txn, categories[i], duplicates[i])
		batch.Items[i] = item
		batch.Stats.add(item, o.config.DubiousThreshold)
	}

	slog.Info("Processed import batch",
		"account_id", accountID,
		"total", batch.Stats.Total,
		"duplicates", batch.Stats.Duplicates,
		"dubious", batch.Stats.Dubious,
		"uncategorized", batch.Stats.Uncategorized)

	return batch, nil
}

// merge caps the categorization confidence of rows that look like duplicates
// and notes why. The assigned category is left alone.
func (o *Orchestrator) merge(txn model.Transaction, cat model.Categorization, dup model.DuplicateResult) model.ImportedTransaction {
	if dup.Confidence > o.config.DubiousThreshold {
		cat.Confidence = min(cat.Confidence, o.config.ConfidenceCeiling)
		cat.AppliedRule = fmt.Sprintf("%s [possible duplicate: %s]", cat.AppliedRule, dup.Reason)
	}
	return model.ImportedTransaction{
		Transaction:    txn,
		Categorization: cat,
		Duplicate:      dup,
	}
}

func (s *Stats) add(item model.ImportedTransaction, dubiousThreshold int) {
	s.Total++
	if item.Duplicate.IsDuplicate {
		s.Duplicates++
	}
	if item.Duplicate.Confidence > dubiousThreshold {
		s.Dubious++
	}
	if item.Categorization.Strategy == model.StrategyDefault {
		s.Uncategorized++
	}
}

// windowBounds spans the batch dates widened by the date tolerance.
func (o *Orchestrator) windowBounds(raw []model.Transaction) (time.Time, time.Time) {
	from, to := raw[0].Date, raw[0].Date
	for _, txn := range raw[1:] {
		if txn.Date.Before(from) {
			from = txn.Date
		}
		if txn.Date.After(to) {
			to = txn.Date
		}
	}
	pad := o.config.Dedup.DateToleranceDays
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location()).AddDate(0, 0, -pad)
	to = time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, to.Location()).AddDate(0, 0, pad)
	return from, to
}
