package statement

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxPreambleRows bounds how far into the file the header row is searched.
// Spanish bank exports often start with account details and a title.
const maxPreambleRows = 15

var (
	errNoHeader     = errors.New("no header row with date, description and amount columns")
	errMissingField = errors.New("missing field")
)

// Column aliases, compared after lower-casing and accent folding.
var columnAliases = map[string][]string{
	"date":        {"fecha", "fecha operacion", "fecha valor", "f. valor", "f. operacion", "date", "booking date", "transaction date"},
	"description": {"concepto", "descripcion", "description", "detalle", "movimiento", "concept", "details"},
	"amount":      {"importe", "importe (eur)", "importe eur", "cantidad", "amount"},
	"debit":       {"cargo", "cargos", "debe", "debit"},
	"credit":      {"abono", "abonos", "haber", "credit"},
	"balance":     {"saldo", "saldo (eur)", "disponible", "balance"},
	"category":    {"categoria", "category"},
	"subcategory": {"subcategoria", "subcategory"},
}

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"2006/01/02",
	"02/01/06",
	"02-01-06",
}

// CSVParser reads CSV exports from online banking. It has no account
// information; callers assign the account.
type CSVParser struct {
	// Comma forces the field delimiter. Zero means detect ';' or ','.
	Comma rune
}

// NewCSVParser creates a CSV parser that detects the delimiter.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

type columns struct {
	date, description, amount, debit, credit, balance, category, subcategory int
}

// Parse reads rows after the header. Rows that cannot be read are reported in
// Statement.Skipped; the file fails only when no row can be read.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader) (*Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = p.Comma
	if reader.Comma == 0 {
		reader.Comma = detectDelimiter(content)
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	cols, err := findHeader(reader)
	if err != nil {
		return nil, err
	}

	stmt := &Statement{Format: FormatCSV}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			var parseErr *csv.ParseError
			line := 0
			if errors.As(readErr, &parseErr) {
				line = parseErr.Line
			}
			stmt.Skipped = append(stmt.Skipped, RowError{Line: line, Err: readErr})
			continue
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)

		txn, rowErr := cols.transaction(record)
		if rowErr != nil {
			stmt.Skipped = append(stmt.Skipped, RowError{Line: line, Err: rowErr})
			continue
		}
		stmt.Transactions = append(stmt.Transactions, txn)
	}

	if len(stmt.Transactions) == 0 {
		if len(stmt.Skipped) > 0 {
			return nil, fmt.Errorf("%w: every row failed, first: %v", common.ErrNoTransactions, stmt.Skipped[0])
		}
		return nil, common.ErrNoTransactions
	}

	if len(stmt.Skipped) > 0 {
		slog.Warn("Skipped unreadable CSV rows", "skipped", len(stmt.Skipped), "first", stmt.Skipped[0].Error())
	}
	slog.Info("Parsed CSV file", "total_transactions", len(stmt.Transactions))

	return stmt, nil
}

// detectDelimiter picks ';' or ',' by counting them in the first lines.
func detectDelimiter(content []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	var semicolons, commas int
	for i := 0; i < maxPreambleRows && scanner.Scan(); i++ {
		line := scanner.Text()
		semicolons += strings.Count(line, ";")
		commas += strings.Count(line, ",")
	}
	if semicolons > 0 && semicolons >= commas/2 {
		return ';'
	}
	if strings.Count(string(content), "\t") > commas {
		return '\t'
	}
	return ','
}

// findHeader consumes rows until one names the required columns.
func findHeader(reader *csv.Reader) (columns, error) {
	for i := 0; i < maxPreambleRows; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		if cols, ok := matchHeader(record); ok {
			return cols, nil
		}
	}
	return columns{}, errNoHeader
}

func matchHeader(record []string) (columns, bool) {
	cols := columns{-1, -1, -1, -1, -1, -1, -1, -1}
	targets := map[string]*int{
		"date":        &cols.date,
		"description": &cols.description,
		"amount":      &cols.amount,
		"debit":       &cols.debit,
		"credit":      &cols.credit,
		"balance":     &cols.balance,
		"category":    &cols.category,
		"subcategory": &cols.subcategory,
	}

	for i, field := range record {
		name := foldHeader(field)
		for key, aliases := range columnAliases {
			if *targets[key] >= 0 {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					*targets[key] = i
					break
				}
			}
		}
	}

	hasAmount := cols.amount >= 0 || (cols.debit >= 0 && cols.credit >= 0)
	return cols, cols.date >= 0 && cols.description >= 0 && hasAmount
}

func foldHeader(field string) string {
	name := strings.Join(strings.Fields(strings.ToLower(field)), " ")
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		return name
	}
	return folded
}

func (c columns) transaction(record []string) (model.Transaction, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := parseDate(field(c.date))
	if err != nil {
		return model.Transaction{}, err
	}

	desc := strings.Join(strings.Fields(field(c.description)), " ")
	if desc == "" {
		return model.Transaction{}, fmt.Errorf("%w: description", errMissingField)
	}

	amount, err := c.amountOf(field)
	if err != nil {
		return model.Transaction{}, err
	}

	txn := model.Transaction{
		Date:            date,
		Description:     desc,
		Amount:          amount,
		BankCategory:    field(c.category),
		BankSubcategory: field(c.subcategory),
	}

	if raw := field(c.balance); raw != "" {
		balance, err := ParseAmount(raw)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("balance: %w", err)
		}
		f := balance.InexactFloat64()
		txn.RunningBalance = &f
	}

	return txn, nil
}

// amountOf reads a signed amount column, or debit and credit columns where
// debits are shown unsigned.
func (c columns) amountOf(field func(int) string) (float64, error) {
	if c.amount >= 0 {
		raw := field(c.amount)
		if raw == "" {
			return 0, fmt.Errorf("%w: amount", errMissingField)
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			return 0, err
		}
		return amount.InexactFloat64(), nil
	}

	debitRaw, creditRaw := field(c.debit), field(c.credit)
	if debitRaw == "" && creditRaw == "" {
		return 0, fmt.Errorf("%w: amount", errMissingField)
	}

	total := decimal.Zero
	if debitRaw != "" {
		debit, err := ParseAmount(debitRaw)
		if err != nil {
			return 0, err
		}
		total = total.Sub(debit.Abs())
	}
	if creditRaw != "" {
		credit, err := ParseAmount(creditRaw)
		if err != nil {
			return 0, err
		}
		total = total.Add(credit.Abs())
	}
	return total.InexactFloat64(), nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: date", errMissingField)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return calendarDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// ParseAmount reads a money amount in European ("1.234,56") or English
// ("1,234.56") notation. Currency symbols, spaces and a trailing minus are
// accepted.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("€", "", "EUR", "", "eur", "", "$", "", " ", "", "\u00a0", "", "+", "").Replace(s)

	negative := false
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		negative = true
		s = s[1 : len(s)-1]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = strings.TrimSuffix(s, "-")
	case strings.HasPrefix(s, "-"):
		negative = true
		s = strings.TrimPrefix(s, "-")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma > lastDot:
		// Comma is the decimal separator.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma && lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		// "1.234.567" has only thousands separators.
		s = strings.ReplaceAll(s, ".", "")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unrecognized amount %q", raw)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
