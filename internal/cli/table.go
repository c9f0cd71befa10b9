package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/gasto/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

const maxDescriptionWidth = 42

// RenderTable lays out rows under headers with columns as wide as their widest
// cell.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(headers, widths, TableHeaderStyle))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(renderRow(row, widths, lipgloss.NewStyle()))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(cells []string, widths []int, style lipgloss.Style) string {
	rendered := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		rendered[i] = TableCellStyle.Width(w + TableCellStyle.GetPaddingRight()).Render(cell)
	}
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
}

// RenderReview renders an import batch for review before it is committed.
func RenderReview(items []model.ImportedTransaction) string {
	headers := []string{"#", "Date", "Description", "Amount", "Category", "Conf", "Applied", "Duplicate"}
	rows := make([][]string, len(items))
	for i, item := range items {
		rows[i] = []string{
			fmt.Sprint(i + 1),
			item.Transaction.Date.Format("2006-01-02"),
			Truncate(item.Transaction.Description, maxDescriptionWidth),
			AmountStyle(item.Transaction.Amount).Render(FormatAmount(item.Transaction.Amount)),
			categoryLabel(item.Categorization.Category, item.Categorization.Subcategory),
			ConfidenceStyle(item.Categorization.Confidence).Render(fmt.Sprint(item.Categorization.Confidence)),
			item.Categorization.AppliedRule,
			duplicateLabel(item),
		}
	}
	return RenderTable(headers, rows)
}

// RenderTransactions renders stored transactions.
func RenderTransactions(items []model.ImportedTransaction) string {
	headers := []string{"ID", "Date", "Account", "Description", "Amount", "Category", "Conf", "Applied"}
	rows := make([][]string, len(items))
	for i, item := range items {
		rows[i] = []string{
			item.Transaction.ID,
			item.Transaction.Date.Format("2006-01-02"),
			item.Transaction.AccountID,
			Truncate(item.Transaction.Description, maxDescriptionWidth),
			AmountStyle(item.Transaction.Amount).Render(FormatAmount(item.Transaction.Amount)),
			categoryLabel(item.Categorization.Category, item.Categorization.Subcategory),
			ConfidenceStyle(item.Categorization.Confidence).Render(fmt.Sprint(item.Categorization.Confidence)),
			item.Categorization.AppliedRule,
		}
	}
	return RenderTable(headers, rows)
}

// RenderRules renders rules in evaluation order.
func RenderRules(rules []model.Rule) string {
	headers := []string{"ID", "Name", "Kind", "Pattern", "Category", "Priority", "Scope", "Source", "Active"}
	rows := make([][]string, len(rules))
	for i, rule := range rules {
		scope := string(rule.Direction)
		if rule.ScopeAccountID != "" {
			scope = strings.TrimSpace(rule.ScopeAccountID + " " + scope)
		}
		active := SuccessStyle.Render(SuccessIcon)
		if !rule.Active {
			active = SubtleStyle.Render(ErrorIcon)
		}
		rows[i] = []string{
			rule.ID,
			rule.Name,
			string(rule.MatchKind),
			Truncate(rule.Pattern, 30),
			categoryLabel(rule.Category, rule.Subcategory),
			fmt.Sprint(rule.Priority),
			scope,
			string(rule.Source),
			active,
		}
	}
	return RenderTable(headers, rows)
}

// RenderCategorization renders a single engine decision.
func RenderCategorization(txn model.Transaction, result model.Categorization) string {
	lines := []string{
		fmt.Sprintf("Description: %s", txn.Description),
		fmt.Sprintf("Amount:      %s", FormatAmount(txn.Amount)),
		fmt.Sprintf("Category:    %s", categoryLabel(result.Category, result.Subcategory)),
		fmt.Sprintf("Confidence:  %d", result.Confidence),
		fmt.Sprintf("Applied:     %s (%s)", result.AppliedRule, result.Strategy),
	}
	if result.RuleID != "" {
		lines = append(lines, fmt.Sprintf("Rule ID:     %s", result.RuleID))
	}
	return RenderBox("Categorization", strings.Join(lines, "\n"))
}

// FormatAmount prints an amount with two decimals.
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// Truncate shortens s to at most width runes, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width || width < 2 {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func categoryLabel(category, subcategory string) string {
	if subcategory == "" {
		return category
	}
	return category + " / " + subcategory
}

func duplicateLabel(item model.ImportedTransaction) string {
	if item.Duplicate.Confidence == 0 {
		return ""
	}
	label := fmt.Sprintf("%d%% %s", item.Duplicate.Confidence, item.Duplicate.Reason)
	if item.Disposition == model.DispositionSkip {
		label = SkipIcon + " " + label
	}
	return DispositionStyle(item.Disposition).Render(label)
}
