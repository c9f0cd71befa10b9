package cli

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// ImportSummary collects the counts shown after an import.
type ImportSummary struct {
	Files         int
	Parsed        int
	Unreadable    int
	Duplicates    int
	Dubious       int
	Uncategorized int
	Imported      int
	Warned        int
	Skipped       int
	DryRun        bool
}

// RenderImportSummary renders the end-of-import box.
func RenderImportSummary(s ImportSummary) string {
	content := fmt.Sprintf("  • Files: %d\n", s.Files) +
		fmt.Sprintf("  • Rows parsed: %d\n", s.Parsed) +
		fmt.Sprintf("  • Rows unreadable: %d\n", s.Unreadable) +
		fmt.Sprintf("  • Likely duplicates: %d\n", s.Duplicates) +
		fmt.Sprintf("  • Confidence capped as possible duplicate: %d\n", s.Dubious) +
		fmt.Sprintf("  • Uncategorized: %d\n", s.Uncategorized)

	title := "Import Complete"
	if s.DryRun {
		title = "Dry Run (nothing stored)"
	} else {
		content += fmt.Sprintf("  • Imported: %d (%d flagged for review)\n", s.Imported, s.Warned) +
			fmt.Sprintf("  • Skipped: %d", s.Skipped)
	}

	return RenderBox(title, content)
}

// NewProgressBar creates the progress bar shown while files are imported.
func NewProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}
