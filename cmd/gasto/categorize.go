package main

import (
	"fmt"

	"github.com/Veraticus/gasto/internal/cli"
	"github.com/Veraticus/gasto/internal/model"
	"github.com/spf13/cobra"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize <description>",
		Short: "Categorize a single description without storing it",
		Example: `  gasto categorize "COMPRA TARJ. MERCADONA VALENCIA" --amount -45,60
  gasto categorize "RECIBO LUZ" --bank-category Hogar --bank-subcategory Suministros`,
		Args: cobra.ExactArgs(1),
		RunE: runCategorize,
	}

	cmd.Flags().String("amount", "-1", "Transaction amount (negative for expenses)")
	cmd.Flags().String("account", "", "Account ID")
	cmd.Flags().String("date", "", "Transaction date YYYY-MM-DD (default: today)")
	cmd.Flags().String("bank-category", "", "Category suggested by the bank export")
	cmd.Flags().String("bank-subcategory", "", "Subcategory suggested by the bank export")

	return cmd
}

func runCategorize(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	amountFlag, _ := flags.GetString("amount")
	account, _ := flags.GetString("account")
	dateFlag, _ := flags.GetString("date")
	bankCategory, _ := flags.GetString("bank-category")
	bankSubcategory, _ := flags.GetString("bank-subcategory")

	amount, err := parseAmountFlag(amountFlag)
	if err != nil {
		return err
	}
	date, err := parseDateFlag(dateFlag)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	txn := model.Transaction{
		Date:            date,
		Description:     args[0],
		Amount:          amount,
		AccountID:       account,
		BankCategory:    bankCategory,
		BankSubcategory: bankSubcategory,
	}

	result := a.engine.Categorize(txn)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderCategorization(txn, result))
	return nil
}
