// Package dedup estimates whether an incoming transaction is already stored.
package dedup

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Config tunes the detector signals.
type Config struct {
	// DateToleranceDays is how many calendar days apart two rows may be and
	// still count as close in date.
	DateToleranceDays int
	// AmountEpsilon is the largest absolute difference treated as equal.
	AmountEpsilon float64
	// MinPrefixLength is the shared-prefix length, in runes, that makes two
	// descriptions similar.
	MinPrefixLength int
	// SimilarityRatio is the Levenshtein ratio above which two descriptions
	// are similar.
	SimilarityRatio float64
	// Threshold is the confidence at or above which a result is a duplicate.
	Threshold int
	// Workers bounds DetectBatch parallelism. Zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DateToleranceDays: 2,
		AmountEpsilon:     0.01,
		MinPrefixLength:   6,
		SimilarityRatio:   0.85,
		Threshold:         50,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("%w: date tolerance must not be negative", common.ErrInvalidConfig)
	}
	if c.AmountEpsilon < 0 {
		return fmt.Errorf("%w: amount epsilon must not be negative", common.ErrInvalidConfig)
	}
	if c.MinPrefixLength < 1 {
		return fmt.Errorf("%w: prefix length must be positive", common.ErrInvalidConfig)
	}
	if c.SimilarityRatio <= 0 || c.SimilarityRatio > 1 {
		return fmt.Errorf("%w: similarity ratio must be in (0, 1]", common.ErrInvalidConfig)
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("%w: duplicate threshold must be between 0 and 100", common.ErrInvalidConfig)
	}
	return nil
}

// Reasons reported in DuplicateResult.Reason for the two degenerate cases.
const (
	ReasonEmptyWindow = "no existing transactions to compare"
	ReasonNoMatch     = "no similar transaction found"
)

type windowEntry struct {
	txn         model.Transaction
	description string
	amount      *decimal.Decimal // nil for NaN or infinite amounts, which never compare equal
}

// Detector compares candidates against a fixed window of existing
// transactions. The window is never modified, so a Detector is safe for
// concurrent use.
type Detector struct {
	window  []windowEntry
	epsilon decimal.Decimal
	config  Config
}

// NewDetector creates a detector over window.
func NewDetector(window []model.Transaction, config Config) *Detector {
	entries := make([]windowEntry, len(window))
	for i, txn := range window {
		txn.EnsureHash()
		entries[i] = windowEntry{
			txn:         txn,
			description: txn.NormalizedDescription(),
			amount:      amountOf(txn.Amount),
		}
	}

	return &Detector{
		window:  entries,
		epsilon: decimal.NewFromFloat(config.AmountEpsilon),
		config:  config,
	}
}

// Len returns the window size.
func (d *Detector) Len() int {
	return len(d.window)
}

// Detect scores candidate against every window entry and reports the best
// match. Ties keep the earliest entry.
func (d *Detector) Detect(candidate model.Transaction) model.DuplicateResult {
	if len(d.window) == 0 {
		return model.DuplicateResult{Reason: ReasonEmptyWindow}
	}

	candidate.EnsureHash()
	c := windowEntry{
		txn:         candidate,
		description: candidate.NormalizedDescription(),
		amount:      amountOf(candidate.Amount),
	}

	best, bestIdx, bestReason := 0, -1, ReasonNoMatch
	for i := range d.window {
		score, reason := d.score(&c, &d.window[i])
		if score > best {
			best, bestIdx, bestReason = score, i, reason
		}
		if best == 100 {
			break
		}
	}

	result := model.DuplicateResult{
		Confidence:  best,
		Reason:      bestReason,
		IsDuplicate: best >= d.config.Threshold && best > 0,
	}
	if bestIdx >= 0 {
		match := d.window[bestIdx].txn
		result.Match = &match
	}
	return result
}

// DetectBatch evaluates each candidate independently against the window only.
// Candidates never see each other, so batch order cannot change a result.
func (d *Detector) DetectBatch(candidates []model.Transaction) map[int]model.DuplicateResult {
	results := make([]model.DuplicateResult, len(candidates))
	common.ForEachIndex(len(candidates), d.config.Workers, func(i int) {
		results[i] = d.Detect(candidates[i])
	})

	out := make(map[int]model.DuplicateResult, len(results))
	duplicates := 0
	for i, result := range results {
		out[i] = result
		if result.IsDuplicate {
			duplicates++
		}
	}

	slog.Debug("Duplicate detection completed",
		"candidates", len(candidates),
		"window", len(d.window),
		"duplicates", duplicates)
	return out
}

// Description similarity levels, weakest to strongest.
const (
	simNone = iota
	simFuzzy
	simContained
	simEqual
)

func (d *Detector) score(c, e *windowEntry) (int, string) {
	if c.txn.Hash != "" && c.txn.Hash == e.txn.Hash {
		return 100, "exact fingerprint match"
	}

	days := dayDistance(c.txn.Date, e.txn.Date)
	sameAmount := c.amount != nil && e.amount != nil &&
		c.amount.Sub(*e.amount).Abs().LessThanOrEqual(d.epsilon)
	sim := d.similarity(c.description, e.description)

	tolerance := d.config.DateToleranceDays
	sameDay := days == 0
	near := !sameDay && days <= tolerance

	var score int
	switch {
	case sameAmount && sim > simNone:
		switch {
		case sameDay:
			score = [...]int{0, 80, 88, 95}[sim]
		case near:
			score = min(50+8*(sim-simFuzzy)+5*(tolerance-days), 79)
		default:
			score = 30 + 5*sim
		}
	case sameAmount:
		switch {
		case sameDay:
			score = 40
		case near:
			score = 30
		default:
			score = 20
		}
	case sim > simNone:
		switch {
		case sameDay:
			score = 25
		case near:
			score = 15
		default:
			score = 10
		}
	case sameDay:
		score = 5
	}

	return score, describe(sameAmount, sim, days)
}

func describe(sameAmount bool, sim, days int) string {
	parts := make([]string, 0, 3)
	switch days {
	case 0:
		parts = append(parts, "same date")
	case 1:
		parts = append(parts, "1 day apart")
	default:
		parts = append(parts, fmt.Sprintf("%d days apart", days))
	}
	if sameAmount {
		parts = append(parts, "same amount")
	} else {
		parts = append(parts, "different amount")
	}
	switch sim {
	case simEqual:
		parts = append(parts, "same description")
	case simContained:
		parts = append(parts, "overlapping description")
	case simFuzzy:
		parts = append(parts, "similar description")
	default:
		parts = append(parts, "different description")
	}
	return strings.Join(parts, ", ")
}

func (d *Detector) similarity(a, b string) int {
	if a == "" || b == "" {
		return simNone
	}
	if a == b {
		return simEqual
	}

	shorter, longer := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if utf8.RuneCountInString(shorter) >= 3 && strings.Contains(longer, shorter) {
		return simContained
	}

	if commonPrefix(a, b) >= d.config.MinPrefixLength {
		return simFuzzy
	}
	if ratio(a, b) >= d.config.SimilarityRatio {
		return simFuzzy
	}
	return simNone
}

func commonPrefix(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := 0
	for n < len(ra) && n < len(rb) && ra[n] == rb[n] {
		n++
	}
	return n
}

// ratio is 1 for identical strings and falls toward 0 as the edit distance
// approaches the combined length.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return 1 - float64(distance)/float64(total)
}

// dayDistance counts calendar days between two dates, ignoring time of day.
func dayDistance(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

func amountOf(f float64) *decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	amount := decimal.NewFromFloat(f)
	return &amount
}
