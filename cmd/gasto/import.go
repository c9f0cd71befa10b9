package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/Veraticus/gasto/internal/cli"
	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/importer"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/statement"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <files...>",
		Short: "Import bank statements",
		Long: `Parse OFX/QFX or CSV bank statements, detect rows that are already
stored and categorize the rest.

Rows with a duplicate confidence at or above the skip threshold are not
stored. Rows above the warn threshold are stored but flagged for review.`,
		Example: `  gasto import ~/Descargas/movimientos.csv --account ES12-3456
  gasto import "statements/*.ofx" --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("account", "", "Account ID for every row (required when the file carries none)")
	cmd.Flags().Bool("dry-run", false, "Show what would be imported without storing anything")
	cmd.Flags().Bool("confirm", false, "Ask before storing each batch")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	account, _ := cmd.Flags().GetString("account")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	confirm, _ := cmd.Flags().GetBool("confirm")
	out := cmd.OutOrStdout()

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx, stop := handler.HandleInterrupts(cmd.Context())
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("Starting import", "files", len(files), "dry_run", dryRun)

	groups, summary, err := parseStatements(ctx, files, account, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	orchestrator := importer.NewWithConfig(a.engine, a.store, a.cfg.ImporterConfig())
	policy := a.cfg.Policy()
	reader := cli.NewLineReader(cmd.InOrStdin())

	for _, acct := range sortedKeys(groups) {
		batch, err := orchestrator.ProcessImportBatch(ctx, groups[acct], acct)
		if err != nil {
			return fmt.Errorf("failed to process account %s: %w", acct, err)
		}
		policy.Apply(batch)

		summary.Duplicates += batch.Stats.Duplicates
		summary.Dubious += batch.Stats.Dubious
		summary.Uncategorized += batch.Stats.Uncategorized

		_, _ = fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%s Account %s: %d rows", cli.WalletIcon, acct, len(batch.Items))))
		_, _ = fmt.Fprint(out, cli.RenderReview(batch.Items))

		if dryRun {
			continue
		}

		if confirm {
			ok, err := cli.Confirm(ctx, reader, out, fmt.Sprintf("Store %d rows for %s?", len(batch.Items), acct))
			if err != nil {
				return interruptedOr(handler, err)
			}
			if !ok {
				summary.Skipped += len(batch.Items)
				continue
			}
		}

		result, err := policy.Commit(ctx, batch, a.store)
		summary.Imported += result.Imported
		summary.Warned += result.Warned
		summary.Skipped += result.Skipped
		if err != nil {
			return interruptedOr(handler, err)
		}
	}

	summary.DryRun = dryRun
	_, _ = fmt.Fprintln(out, cli.RenderImportSummary(summary))
	return nil
}

// parseStatements reads every file and groups the rows by account. Unreadable
// rows are reported and counted; files that fail entirely stop the import.
func parseStatements(ctx context.Context, files []string, account string, progress io.Writer) (map[string][]model.Transaction, cli.ImportSummary, error) {
	summary := cli.ImportSummary{Files: len(files)}
	groups := make(map[string][]model.Transaction)

	bar := cli.NewProgressBar(progress, len(files), "Parsing statements")
	for _, file := range files {
		stmt, err := statement.ParseFile(ctx, file)
		if err != nil {
			return nil, summary, common.NewUserError(fmt.Sprintf("Could not read %s", filepath.Base(file)), err)
		}

		for _, rowErr := range stmt.Skipped {
			slog.Warn("Skipped unreadable row", "file", file, "line", rowErr.Line, "error", rowErr.Err)
		}
		summary.Unreadable += len(stmt.Skipped)
		summary.Parsed += len(stmt.Transactions)

		var byAccount map[string][]model.Transaction
		if account != "" {
			byAccount = map[string][]model.Transaction{account: stmt.Transactions}
		} else {
			byAccount = stmt.ByAccount("")
		}

		for acct, txns := range byAccount {
			if acct == "" {
				return nil, summary, common.NewUserError(
					fmt.Sprintf("%s has rows without an account: pass --account", filepath.Base(file)),
					common.ErrNoTransactions)
			}
			groups[acct] = append(groups[acct], txns...)
		}

		_ = bar.Add(1)
	}
	_ = bar.Finish()

	return groups, summary, nil
}

func interruptedOr(handler *cli.InterruptHandler, err error) error {
	if handler.WasInterrupted() || errors.Is(err, context.Canceled) {
		return common.NewUserError("Import interrupted; rows already stored were kept", err)
	}
	return err
}

func sortedKeys(groups map[string][]model.Transaction) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
