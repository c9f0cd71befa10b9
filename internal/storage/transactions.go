package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
)

// ManualCorrectionLabel is the audit label stored for user corrections.
const ManualCorrectionLabel = "Manual correction"

const transactionColumns = `
	id, hash, account_id, date, description, amount, running_balance,
	bank_category, bank_subcategory, category, subcategory, confidence,
	applied_rule, rule_id, strategy, duplicate_confidence, duplicate_reason,
	disposition
`

// SaveTransaction stores one imported row. A row whose ID or fingerprint is
// already stored is rejected with common.ErrDuplicateEntry.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, item model.ImportedTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	txn := item.Transaction
	txn.EnsureHash()
	if err := validateTransaction(&txn); err != nil {
		return err
	}

	disposition := item.Disposition
	if disposition == "" {
		disposition = model.DispositionImport
	}

	var balance sql.NullFloat64
	if txn.RunningBalance != nil {
		balance = sql.NullFloat64{Float64: *txn.RunningBalance, Valid: true}
	}

	cat := item.Categorization
	_, err := s.exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID, txn.Hash, txn.AccountID, txn.Date.Format(time.DateOnly), txn.Description, txn.Amount, balance,
		txn.BankCategory, txn.BankSubcategory, cat.Category, cat.Subcategory, cat.Confidence,
		cat.AppliedRule, cat.RuleID, string(cat.Strategy), item.Duplicate.Confidence, item.Duplicate.Reason,
		string(disposition),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction %s: %w", txn.ID, common.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	return nil
}

// GetTransactionWindow returns the stored transactions of an account dated
// within [from, to], compared by calendar day.
func (s *SQLiteStorage) GetTransactionWindow(ctx context.Context, accountID string, from, to time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, ErrInvalidDateRange
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, created_at ASC, id ASC
	`, accountID, from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction window: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items, err := scanImported(rows)
	if err != nil {
		return nil, err
	}

	window := make([]model.Transaction, len(items))
	for i, item := range items {
		window[i] = item.Transaction
	}
	return window, nil
}

// GetTransactionByID retrieves a single stored row by ID.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.ImportedTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items, err := scanImported(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return &items[0], nil
}

// ListTransactions returns the most recent stored rows, newest first. An empty
// accountID lists every account; a non-positive limit lists everything.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, accountID string, limit int) ([]model.ImportedTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE ? = '' OR account_id = ?
		ORDER BY date DESC, created_at DESC, id DESC
		LIMIT ?
	`, accountID, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanImported(rows)
}

// UpdateTransactionCategory records a user correction. The row keeps its
// fingerprint and is marked as user modified.
func (s *SQLiteStorage) UpdateTransactionCategory(ctx context.Context, id, category, subcategory string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(category, "category"); err != nil {
		return err
	}

	result, err := s.exec(ctx, `
		UPDATE transactions
		SET category = ?, subcategory = ?, confidence = 100,
		    applied_rule = ?, rule_id = '', strategy = ?, user_modified = 1
		WHERE id = ?
	`, category, subcategory, ManualCorrectionLabel, string(model.StrategyManual), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}

	return nil
}

// CountTransactions returns the number of stored rows.
func (s *SQLiteStorage) CountTransactions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func scanImported(rows *sql.Rows) ([]model.ImportedTransaction, error) {
	var items []model.ImportedTransaction
	for rows.Next() {
		var item model.ImportedTransaction
		var date, strategy, disposition string
		var balance sql.NullFloat64
		txn := &item.Transaction
		cat := &item.Categorization

		if err := rows.Scan(
			&txn.ID, &txn.Hash, &txn.AccountID, &date, &txn.Description, &txn.Amount, &balance,
			&txn.BankCategory, &txn.BankSubcategory, &cat.Category, &cat.Subcategory, &cat.Confidence,
			&cat.AppliedRule, &cat.RuleID, &strategy, &item.Duplicate.Confidence, &item.Duplicate.Reason,
			&disposition,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		parsed, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("transaction %s has invalid date %q", txn.ID, date), err)
		}
		txn.Date = parsed
		if balance.Valid {
			v := balance.Float64
			txn.RunningBalance = &v
		}
		cat.Strategy = model.Strategy(strategy)
		item.Disposition = model.Disposition(disposition)

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return items, nil
}
