// Package statement turns bank statement exports into raw transactions.
package statement

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
)

// Format identifies a statement file format.
type Format string

// Supported formats.
const (
	FormatOFX Format = "ofx"
	FormatCSV Format = "csv"
)

// RowError describes one statement row that could not be read.
type RowError struct {
	Err  error
	Line int
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Statement is the parsed content of one file.
type Statement struct {
	Format       Format
	Transactions []model.Transaction
	Skipped      []RowError
}

// Accounts returns the distinct account IDs carried by the file, sorted. CSV
// exports carry none.
func (s *Statement) Accounts() []string {
	seen := make(map[string]bool)
	var accounts []string
	for _, txn := range s.Transactions {
		if txn.AccountID == "" || seen[txn.AccountID] {
			continue
		}
		seen[txn.AccountID] = true
		accounts = append(accounts, txn.AccountID)
	}
	sort.Strings(accounts)
	return accounts
}

// ByAccount groups transactions by account, keeping file order within each
// group. Rows without an account are grouped under fallback.
func (s *Statement) ByAccount(fallback string) map[string][]model.Transaction {
	groups := make(map[string][]model.Transaction)
	for _, txn := range s.Transactions {
		acct := txn.AccountID
		if acct == "" {
			acct = fallback
		}
		groups[acct] = append(groups[acct], txn)
	}
	return groups
}

// Parser reads one statement format.
type Parser interface {
	Parse(ctx context.Context, r io.Reader) (*Statement, error)
}

// DetectFormat chooses a format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return FormatOFX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %s", common.ErrUnknownFormat, filepath.Base(path))
}

// NewParser returns the parser for format.
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatOFX:
		return NewOFXParser(), nil
	case FormatCSV:
		return NewCSVParser(), nil
	}
	return nil, fmt.Errorf("%w: %s", common.ErrUnknownFormat, format)
}

// ParseFile opens path and parses it with the parser matching its extension.
func ParseFile(ctx context.Context, path string) (*Statement, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	parser, err := NewParser(format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path) //nolint:gosec // user-provided statement path
	if err != nil {
		return nil, fmt.Errorf("failed to open statement: %w", err)
	}
	defer func() { _ = f.Close() }()

	stmt, err := parser.Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return stmt, nil
}

// calendarDay drops the clock and zone so that dates compare by day.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
