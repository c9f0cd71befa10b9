package model

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates whether money flows into or out of an account.
type Direction string

// Direction constants. An empty Direction on a rule means it applies to both.
const (
	DirectionAny     Direction = ""
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Transaction represents a single statement row.
type Transaction struct {
	Date            time.Time
	RunningBalance  *float64 // Balance after this row, when the statement provides it
	ID              string
	Description     string // Raw description as exported by the bank
	AccountID       string
	Hash            string
	BankCategory    string // Category hint from the bank export
	BankSubcategory string
	Amount          float64 // Negative for expenses, positive for income
}

// Direction derives the flow direction from the amount sign.
func (t Transaction) Direction() Direction {
	if t.Amount > 0 {
		return DirectionIncome
	}
	return DirectionExpense
}

// NormalizedDescription returns the description in the form used for matching.
func (t Transaction) NormalizedDescription() string {
	return NormalizeDescription(t.Description)
}

// GenerateHash creates the fingerprint used for exact duplicate detection.
func (t *Transaction) GenerateHash() string {
	return Fingerprint(t.Date, t.Amount, t.Description, t.AccountID)
}

// EnsureHash fills Hash when it has not been computed yet.
func (t *Transaction) EnsureHash() {
	if t.Hash == "" {
		t.Hash = t.GenerateHash()
	}
}

// NormalizeDescription case-folds, trims and collapses internal whitespace so
// that re-exports of the same statement compare equal.
func NormalizeDescription(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}

// Fingerprint derives a stable identity key for a transaction. Two rows that
// differ only in description formatting produce the same key.
func Fingerprint(date time.Time, amount float64, description, accountID string) string {
	data := fmt.Sprintf("%s|%s|%s|%s",
		date.Format("2006-01-02"),
		amountToken(amount),
		NormalizeDescription(description),
		strings.TrimSpace(accountID))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// amountToken renders amount at two decimals. NaN and infinities, which
// decimal cannot represent, hash as their float spelling.
func amountToken(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return strconv.FormatFloat(amount, 'f', -1, 64)
	}
	return decimal.NewFromFloat(amount).StringFixed(2)
}
