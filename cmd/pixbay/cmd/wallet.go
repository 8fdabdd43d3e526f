package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aine1100/pixbay-backend/cmd/pixbay/internal/output"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet commands",
	Long:  "Check your balance and view settled payment transactions.",
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show wallet balance",
	Long:  "Display your current wallet balance.",
	RunE:  runBalance,
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "View transaction history",
	Long:  "List your recent wallet transactions.",
	RunE:  runTransactions,
}

var (
	txPageFlag  int
	txLimitFlag int
)

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(balanceCmd)
	walletCmd.AddCommand(transactionsCmd)

	transactionsCmd.Flags().IntVar(&txPageFlag, "page", 1, "page number")
	transactionsCmd.Flags().IntVar(&txLimitFlag, "limit", 10, "items per page")
}

func runBalance(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	wallet, err := c.GetWallet()
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(wallet)
	}

	output.Header("Wallet Balance")
	fmt.Println()
	output.KeyValue([][]string{
		{"Balance", output.Money(wallet.Balance, wallet.Currency)},
		{"Currency", wallet.Currency},
	})
	return nil
}

func runTransactions(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	transactions, err := c.GetTransactions(txPageFlag, txLimitFlag)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(transactions)
	}

	if len(transactions) == 0 {
		output.Info("No transactions found")
		return nil
	}

	output.Header("Transaction History")
	fmt.Println()

	rows := make([][]string, len(transactions))
	for i, tx := range transactions {
		booking := ""
		if tx.BookingID != nil {
			booking = shortID(*tx.BookingID)
		}
		rows[i] = []string{
			shortID(tx.ID),
			tx.Type,
			booking,
			output.FormatAmount(tx.Amount, tx.Currency),
			output.FormatStatus(tx.Status),
			shortDate(tx.CreatedAt),
		}
	}

	output.Table([]string{"ID", "Type", "Booking", "Amount", "Status", "Date"}, rows)
	return nil
}
