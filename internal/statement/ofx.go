package statement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/aclindsa/ofxgo"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags at end of line with no closing bracket.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// OFXParser reads OFX and QFX statements.
type OFXParser struct{}

// NewOFXParser creates a new OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// preprocess fixes common formatting issues in bank-exported OFX files.
func (p *OFXParser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads bank and credit card statements. Amounts keep the OFX sign:
// debits are negative.
func (p *OFXParser) Parse(ctx context.Context, r io.Reader) (*Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	stmt := &Statement{Format: FormatOFX}
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if bank, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			stmt.Transactions = append(stmt.Transactions,
				p.convertList(bank.BankTranList, string(bank.BankAcctFrom.AcctID), ledgerBalance(bank.BalAmt, bank.DtAsOf))...)
		}
	}

	for _, msg := range resp.CreditCard {
		if cc, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			stmt.Transactions = append(stmt.Transactions,
				p.convertList(cc.BankTranList, string(cc.CCAcctFrom.AcctID), ledgerBalance(cc.BalAmt, cc.DtAsOf))...)
		}
	}

	if bankStmts+ccStmts == 0 {
		return nil, fmt.Errorf("%w: OFX file has no bank or credit card statement", common.ErrNoTransactions)
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(stmt.Transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return stmt, nil
}

// convertList converts one statement's transaction list. The ledger balance is
// the balance after the last row, so it is attached there.
func (p *OFXParser) convertList(list *ofxgo.TransactionList, accountID string, ledger *float64) []model.Transaction {
	if list == nil || len(list.Transactions) == 0 {
		return nil
	}

	txns := make([]model.Transaction, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		txns = append(txns, p.convertTransaction(ofxTx, accountID))
	}

	txns[len(txns)-1].RunningBalance = ledger

	return txns
}

// ledgerBalance returns nil when the statement has no LEDGERBAL aggregate.
func ledgerBalance(amount ofxgo.Amount, asOf ofxgo.Date) *float64 {
	if asOf.IsZero() {
		return nil
	}
	balance, _ := amount.Float64()
	return &balance
}

// convertTransaction converts an OFX transaction to our model.
func (p *OFXParser) convertTransaction(ofxTx ofxgo.Transaction, accountID string) model.Transaction {
	amount, _ := ofxTx.TrnAmt.Float64()

	return model.Transaction{
		Date:        calendarDay(ofxTx.DtPosted.Time),
		Description: description(ofxTx),
		Amount:      amount,
		AccountID:   accountID,
	}
}

// description prefers NAME, adding MEMO when it carries extra detail. Some
// banks leave NAME generic and put the merchant in MEMO or PAYEE.
func description(tx ofxgo.Transaction) string {
	name := strings.TrimSpace(string(tx.Name))
	if name == "" && tx.Payee != nil {
		name = strings.TrimSpace(string(tx.Payee.Name))
	}
	memo := strings.TrimSpace(string(tx.Memo))

	switch {
	case name == "":
		return memo
	case memo == "" || strings.EqualFold(memo, name):
		return name
	case isGenericDescription(name):
		return memo
	case strings.Contains(strings.ToLower(memo), strings.ToLower(name)):
		return memo
	}
	return name + " " + memo
}

// isGenericDescription checks if a transaction name says nothing about the
// counterparty.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PAYMENT",
		"PURCHASE",
		"CARGO",
		"ABONO",
		"COMPRA",
		"PAGO",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
