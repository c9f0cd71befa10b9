package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
)

// ReasonStoredFingerprint is reported when persistence rejects a row because
// its fingerprint already exists.
const ReasonStoredFingerprint = "fingerprint already stored"

// Policy decides, from the duplicate confidence, whether a row is persisted.
type Policy struct {
	// SkipThreshold is the confidence at or above which a row is not stored.
	SkipThreshold int
	// WarnThreshold is the confidence at or above which a row is stored but
	// flagged for review.
	WarnThreshold int
}

// DefaultPolicy returns the default thresholds.
func DefaultPolicy() Policy {
	return Policy{
		SkipThreshold: 95,
		WarnThreshold: 50,
	}
}

// Validate checks that 0 <= WarnThreshold <= SkipThreshold <= 100.
func (p Policy) Validate() error {
	if p.WarnThreshold < 0 || p.SkipThreshold > 100 || p.WarnThreshold > p.SkipThreshold {
		return fmt.Errorf("%w: thresholds must satisfy 0 <= warn (%d) <= skip (%d) <= 100",
			common.ErrInvalidConfig, p.WarnThreshold, p.SkipThreshold)
	}
	return nil
}

// Decide returns the disposition for a duplicate result.
func (p Policy) Decide(dup model.DuplicateResult) model.Disposition {
	switch {
	case dup.Confidence >= p.SkipThreshold:
		return model.DispositionSkip
	case dup.Confidence >= p.WarnThreshold:
		return model.DispositionWarn
	}
	return model.DispositionImport
}

// Apply sets the disposition of every item in batch.
func (p Policy) Apply(batch *Batch) {
	for i := range batch.Items {
		batch.Items[i].Disposition = p.Decide(batch.Items[i].Duplicate)
	}
}

// CommitResult counts what Commit did.
type CommitResult struct {
	Imported int
	Warned   int // stored, but flagged as possible duplicates
	Skipped  int
}

// Commit applies the policy and saves every row that is not skipped. A row the
// sink rejects as a duplicate becomes a definite duplicate and is skipped. Any
// other sink error stops the commit; rows already saved stay saved.
func (p Policy) Commit(ctx context.Context, batch *Batch, sink Sink) (CommitResult, error) {
	var result CommitResult
	p.Apply(batch)

	for i := range batch.Items {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("commit interrupted: %w", err)
		}

		item := &batch.Items[i]
		if item.Disposition == model.DispositionSkip {
			result.Skipped++
			continue
		}

		if err := sink.SaveTransaction(ctx, *item); err != nil {
			if common.IsDuplicate(err) {
				item.Duplicate = model.DuplicateResult{
					IsDuplicate: true,
					Confidence:  100,
					Reason:      ReasonStoredFingerprint,
				}
				item.Disposition = model.DispositionSkip
				result.Skipped++
				slog.Debug("Skipped stored fingerprint", "hash", item.Transaction.Hash)
				continue
			}
			return result, fmt.Errorf("failed to save transaction %s: %w", item.Transaction.ID, err)
		}

		if item.Disposition == model.DispositionWarn {
			result.Warned++
		}
		result.Imported++
	}

	slog.Info("Committed import batch",
		"account_id", batch.AccountID,
		"imported", result.Imported,
		"warned", result.Warned,
		"skipped", result.Skipped)
	return result, nil
}
