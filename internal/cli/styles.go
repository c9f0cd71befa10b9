// Package cli renders gasto's terminal output: review tables, summaries,
// prompts and progress.
package cli

import (
	"github.com/Veraticus/gasto/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	PrimaryColor = lipgloss.Color("#2E86AB")
	IncomeColor  = lipgloss.Color("#4ECDC4")
	ExpenseColor = lipgloss.Color("#FF6B6B")
	WarningColor = lipgloss.Color("#FFE66D")
	InfoColor    = lipgloss.Color("#95E1D3")
	SubtleColor  = lipgloss.Color("#666666")
	BorderColor  = lipgloss.Color("#333")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)
	SuccessStyle = lipgloss.NewStyle().Foreground(IncomeColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ExpenseColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)
	PromptStyle  = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)

	// BoxStyle frames the import summary and single categorizations.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(1, 2)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(BorderColor)
	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	WalletIcon  = "💶"
	SkipIcon    = "↷"
)

// Confidence bands used to color categorization confidence.
const (
	highConfidence = 80
	lowConfidence  = 50
)

func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a section title with the wallet icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(WalletIcon + " " + title)
}

// FormatPrompt formats a question waiting for an answer on the same line.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// AmountStyle colors income and expenses apart.
func AmountStyle(amount float64) lipgloss.Style {
	if amount > 0 {
		return SuccessStyle
	}
	return ErrorStyle
}

// ConfidenceStyle colors a categorization confidence by band.
func ConfidenceStyle(confidence int) lipgloss.Style {
	switch {
	case confidence >= highConfidence:
		return SuccessStyle
	case confidence >= lowConfidence:
		return WarningStyle
	}
	return SubtleStyle
}

// DispositionStyle colors a row by what the import policy decided for it.
func DispositionStyle(d model.Disposition) lipgloss.Style {
	switch d {
	case model.DispositionSkip:
		return ErrorStyle
	case model.DispositionWarn:
		return WarningStyle
	}
	return SubtleStyle
}

// RenderBox renders content under a title inside a rounded border.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}
