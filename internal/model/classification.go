package model

// Default bucket for transactions nothing else could place.
const (
	UncategorizedCategory    = "Otros"
	UncategorizedSubcategory = "Sin categorizar"
)

// Strategy names which stage of the categorization chain produced a result.
type Strategy string

// Strategy constants.
const (
	StrategyRule        Strategy = "rule"
	StrategyBankMapping Strategy = "bank_mapping"
	StrategyHeuristic   Strategy = "heuristic"
	StrategyDefault     Strategy = "default"
	StrategyManual      Strategy = "manual"
)

// Categorization is the engine's decision for one transaction.
type Categorization struct {
	Category    string
	Subcategory string
	AppliedRule string // Human-readable audit label: a rule name or a fallback name
	RuleID      string // Set only when a stored rule fired
	Strategy    Strategy
	Confidence  int // 0-100
}

// DuplicateResult describes how likely a transaction is already stored.
type DuplicateResult struct {
	Match       *Transaction
	Reason      string
	Confidence  int // 0-100
	IsDuplicate bool
}

// Disposition is the persistence decision for an imported row.
type Disposition string

// Disposition constants.
const (
	DispositionImport Disposition = "import"
	DispositionWarn   Disposition = "warn"
	DispositionSkip   Disposition = "skip"
)

// ImportedTransaction is a transaction decorated with both engine outputs.
type ImportedTransaction struct {
	Duplicate      DuplicateResult
	Categorization Categorization
	Disposition    Disposition
	Transaction    Transaction
}
