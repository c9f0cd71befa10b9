package categorize

import (
	"log/slog"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/rules"
)

// Config holds configuration options for the categorization engine.
type Config struct {
	// BankMapping overrides DefaultBankMapping when non-nil.
	BankMapping map[string]Target
	// Heuristics overrides DefaultHeuristics when non-nil.
	Heuristics []Heuristic
	// Workers bounds CategorizeBatch parallelism. Zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{}
}

// Engine runs the strategy chain. The rule stage always reads the store's
// current snapshot; the fallback stages are fixed at construction.
type Engine struct {
	store     *rules.Store
	fallbacks []Strategy
	workers   int
}

// New creates an engine over store with the default configuration.
func New(store *rules.Store) *Engine {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates an engine over store with custom configuration.
func NewWithConfig(store *rules.Store, config Config) *Engine {
	return &Engine{
		store: store,
		fallbacks: []Strategy{
			NewBankMappingStrategy(config.BankMapping),
			NewHeuristicStrategy(config.Heuristics),
			DefaultStrategy{},
		},
		workers: config.Workers,
	}
}

// Categorize assigns a category to one transaction.
func (e *Engine) Categorize(txn model.Transaction) model.Categorization {
	return e.categorizeWith(e.snapshot(), txn)
}

// CategorizeBatch categorizes every transaction against one rule snapshot. The
// result has one entry per input, in input order.
func (e *Engine) CategorizeBatch(txns []model.Transaction) []model.Categorization {
	snap := e.snapshot()
	results := make([]model.Categorization, len(txns))

	common.ForEachIndex(len(txns), e.workers, func(i int) {
		results[i] = e.categorizeWith(snap, txns[i])
	})

	slog.Debug("Categorized batch", "count", len(txns), "rules", snap.Len())
	return results
}

// Chain returns the strategies evaluated against snap, in order.
func (e *Engine) Chain(snap *rules.Snapshot) []Strategy {
	chain := make([]Strategy, 0, len(e.fallbacks)+1)
	chain = append(chain, NewRuleStrategy(snap))
	return append(chain, e.fallbacks...)
}

func (e *Engine) snapshot() *rules.Snapshot {
	if e.store == nil {
		return nil
	}
	return e.store.Snapshot()
}

func (e *Engine) categorizeWith(snap *rules.Snapshot, txn model.Transaction) model.Categorization {
	for _, strategy := range e.Chain(snap) {
		result, ok := attempt(strategy, txn)
		if !ok {
			continue
		}
		if result.AppliedRule == "" {
			result.AppliedRule = strategy.Name()
		}
		result.Confidence = clamp(result.Confidence)
		return result
	}
	return Uncategorized()
}

// attempt shields the chain from a misbehaving strategy; a panic counts as no match.
func attempt(strategy Strategy, txn model.Transaction) (result model.Categorization, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Categorization strategy panicked",
				"strategy", strategy.Name(),
				"description", txn.Description,
				"panic", r)
			result, ok = model.Categorization{}, false
		}
	}()
	return strategy.Attempt(txn)
}

func clamp(confidence int) int {
	switch {
	case confidence < 0:
		return 0
	case confidence > 100:
		return 100
	}
	return confidence
}
