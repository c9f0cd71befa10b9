package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/gasto/internal/cli"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/Veraticus/gasto/internal/rules"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
		Long: `List, add, update, remove and test the rules used to categorize
transactions. Rules are evaluated by ascending priority; the first
matching active rule wins.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesUpdateCmd())
	cmd.AddCommand(rulesRemoveCmd())
	cmd.AddCommand(rulesTestCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.rules.Rules()
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%d rules", len(list))))
			_, _ = fmt.Fprint(out, cli.RenderRules(list))
			return nil
		},
	}
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule",
		Example: `  gasto rules add --name Mercadona --pattern mercadona --category Alimentación --subcategory Supermercado
  gasto rules add --name Nómina --pattern "^nomina" --kind regex --category Ingresos --direction income`,
		Args: cobra.NoArgs,
		RunE: runRulesAdd,
	}

	cmd.Flags().String("id", "", "Rule ID (default: generated)")
	cmd.Flags().String("name", "", "Rule name")
	cmd.Flags().String("pattern", "", "Pattern matched against the description")
	cmd.Flags().String("kind", string(model.MatchContains), "Match kind (contains, starts_with, ends_with, exact, regex)")
	cmd.Flags().String("category", "", "Category")
	cmd.Flags().String("subcategory", "", "Subcategory")
	cmd.Flags().Int("priority", rules.UserPriority, "Priority (lower is evaluated first)")
	cmd.Flags().String("account", "", "Only apply to this account")
	cmd.Flags().String("direction", "", "Only apply to income or expense")
	cmd.Flags().Bool("inactive", false, "Store the rule disabled")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func runRulesAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	id, _ := flags.GetString("id")
	name, _ := flags.GetString("name")
	pattern, _ := flags.GetString("pattern")
	kindFlag, _ := flags.GetString("kind")
	category, _ := flags.GetString("category")
	subcategory, _ := flags.GetString("subcategory")
	priority, _ := flags.GetInt("priority")
	account, _ := flags.GetString("account")
	directionFlag, _ := flags.GetString("direction")
	inactive, _ := flags.GetBool("inactive")

	kind, err := model.ParseMatchKind(kindFlag)
	if err != nil {
		return err
	}
	direction, err := parseDirection(directionFlag)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rule, err := a.rules.Add(model.Rule{
		ID:             id,
		Name:           name,
		Pattern:        pattern,
		MatchKind:      kind,
		Category:       category,
		Subcategory:    subcategory,
		Priority:       priority,
		ScopeAccountID: account,
		Direction:      direction,
		Source:         model.SourceUser,
		Active:         !inactive,
	})
	if err != nil {
		return err
	}

	if err := a.store.SaveRule(ctx, rule); err != nil {
		_ = a.rules.Remove(rule.ID)
		return fmt.Errorf("failed to save rule: %w", err)
	}

	slog.Info("Rule added", "rule_id", rule.ID, "rule", rule.Name)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added rule %s (%s)", rule.Name, rule.ID)))
	return nil
}

func rulesUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a rule",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesUpdate,
	}

	cmd.Flags().String("name", "", "Rule name")
	cmd.Flags().String("pattern", "", "Pattern matched against the description")
	cmd.Flags().String("kind", "", "Match kind (contains, starts_with, ends_with, exact, regex)")
	cmd.Flags().String("category", "", "Category")
	cmd.Flags().String("subcategory", "", "Subcategory")
	cmd.Flags().Int("priority", 0, "Priority (lower is evaluated first)")
	cmd.Flags().String("account", "", "Only apply to this account (empty for all)")
	cmd.Flags().String("direction", "", "Only apply to income or expense (empty for both)")
	cmd.Flags().Bool("active", true, "Enable or disable the rule")

	return cmd
}

func runRulesUpdate(cmd *cobra.Command, args []string) error {
	patch, err := patchFromFlags(cmd)
	if err != nil {
		return err
	}
	if patch.IsEmpty() {
		return fmt.Errorf("nothing to update: pass at least one field flag")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	previous, ok := a.rules.Get(args[0])
	if !ok {
		return fmt.Errorf("rule %s not found", args[0])
	}

	rule, err := a.rules.Update(args[0], patch)
	if err != nil {
		return err
	}

	if err := a.store.SaveRule(ctx, rule); err != nil {
		_, _ = a.rules.Update(previous.ID, restorePatch(previous))
		return fmt.Errorf("failed to save rule: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated rule %s", rule.ID)))
	return nil
}

// patchFromFlags builds a patch holding only the flags the user set.
func patchFromFlags(cmd *cobra.Command) (model.RulePatch, error) {
	var patch model.RulePatch
	flags := cmd.Flags()

	stringField := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		value, _ := flags.GetString(name)
		return &value
	}

	patch.Name = stringField("name")
	patch.Pattern = stringField("pattern")
	patch.Category = stringField("category")
	patch.Subcategory = stringField("subcategory")
	patch.ScopeAccountID = stringField("account")

	if raw := stringField("kind"); raw != nil {
		kind, err := model.ParseMatchKind(*raw)
		if err != nil {
			return patch, err
		}
		patch.MatchKind = &kind
	}
	if raw := stringField("direction"); raw != nil {
		direction, err := parseDirection(*raw)
		if err != nil {
			return patch, err
		}
		patch.Direction = &direction
	}
	if flags.Changed("priority") {
		priority, _ := flags.GetInt("priority")
		patch.Priority = &priority
	}
	if flags.Changed("active") {
		active, _ := flags.GetBool("active")
		patch.Active = &active
	}

	return patch, nil
}

// restorePatch returns a patch that sets every field back to r's values.
func restorePatch(r model.Rule) model.RulePatch {
	return model.RulePatch{
		Name:           &r.Name,
		Pattern:        &r.Pattern,
		MatchKind:      &r.MatchKind,
		Category:       &r.Category,
		Subcategory:    &r.Subcategory,
		ScopeAccountID: &r.ScopeAccountID,
		Direction:      &r.Direction,
		Priority:       &r.Priority,
		Active:         &r.Active,
	}
}

func rulesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteRule(ctx, args[0]); err != nil {
				return err
			}
			if err := a.rules.Remove(args[0]); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Removed rule %s", args[0])))
			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <description>",
		Short: "Show which rules match a description",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesTest,
	}

	cmd.Flags().String("amount", "-1", "Transaction amount (negative for expenses)")
	cmd.Flags().String("account", "", "Account ID")

	return cmd
}

func runRulesTest(cmd *cobra.Command, args []string) error {
	amountFlag, _ := cmd.Flags().GetString("amount")
	account, _ := cmd.Flags().GetString("account")

	amount, err := parseAmountFlag(amountFlag)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	txn := model.Transaction{Description: args[0], Amount: amount, AccountID: account}
	out := cmd.OutOrStdout()

	var matching []model.Rule
	for _, rule := range a.rules.Rules() {
		if _, ok := rules.Compile([]model.Rule{rule}).Match(txn); ok {
			matching = append(matching, rule)
		}
	}

	if len(matching) == 0 {
		_, _ = fmt.Fprintln(out, cli.FormatWarning("No rule matches"))
		return nil
	}

	_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Winner: %s → %s", matching[0].Name, matching[0].Category)))
	_, _ = fmt.Fprint(out, cli.RenderRules(matching))
	return nil
}
