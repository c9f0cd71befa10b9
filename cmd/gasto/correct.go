package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/gasto/internal/cli"
	"github.com/Veraticus/gasto/internal/learning"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/spf13/cobra"
)

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <transaction-id>",
		Short: "Recategorize a stored transaction and learn from it",
		Long: `Set the category of a stored transaction by hand. Unless --no-learn is
given, a rule is learned from the description so similar movements are
categorized the same way on the next import.`,
		Args: cobra.ExactArgs(1),
		RunE: runCorrect,
	}

	cmd.Flags().String("category", "", "New category")
	cmd.Flags().String("subcategory", "", "New subcategory")
	cmd.Flags().Bool("no-learn", false, "Do not create a rule from this correction")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func runCorrect(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	subcategory, _ := cmd.Flags().GetString("subcategory")
	noLearn, _ := cmd.Flags().GetBool("no-learn")
	out := cmd.OutOrStdout()

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	item, err := a.store.GetTransactionByID(ctx, args[0])
	if err != nil {
		return err
	}

	if err := a.store.UpdateTransactionCategory(ctx, item.Transaction.ID, category, subcategory); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s → %s", cli.Truncate(item.Transaction.Description, 40), category)))

	if noLearn {
		return nil
	}
	if !categoryChanged(item.Categorization, category, subcategory) {
		_, _ = fmt.Fprintln(out, cli.FormatInfo("Category unchanged; nothing to learn"))
		return nil
	}

	rule, ok := learning.NewGenerator(a.rules).OnUserCorrection(item.Transaction, category, subcategory)
	if !ok {
		_, _ = fmt.Fprintln(out, cli.FormatWarning("No pattern could be learned from this description"))
		return nil
	}
	if err := a.store.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to save learned rule: %w", err)
	}

	_, _ = fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Learned rule %q (%s %q)", rule.Name, rule.MatchKind, rule.Pattern)))
	return nil
}

// categoryChanged reports whether the correction moves the transaction away
// from the category it already had.
func categoryChanged(current model.Categorization, category, subcategory string) bool {
	return strings.TrimSpace(category) != current.Category ||
		strings.TrimSpace(subcategory) != current.Subcategory
}
