package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/config"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
)

var (
	balanceAccount string
	balanceAsOf    string
	balanceCleared bool
)

// balanceCmd represents the balance command.
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show account balances",
	Long: `Show the balance of one account, or of every real account.

Example:
  bookkeeper balance
  bookkeeper balance --account Checking --as-of 2024-06-30
  bookkeeper balance --account Checking --cleared-only`,
	Run: runBalance,
}

func init() {
	balanceCmd.Flags().StringVar(&balanceAccount, "account", "", "account name (default: all real accounts)")
	balanceCmd.Flags().StringVar(&balanceAsOf, "as-of", "", "balance as of date (YYYY-MM-DD)")
	balanceCmd.Flags().BoolVar(&balanceCleared, "cleared-only", false, "include only cleared postings")
}

func runBalance(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	slog.Debug("Opening book", "path", cfg.Book.DBPath)
	conn, err := db.Open(cfg.Book.DBPath)
	exitOnError(err, "failed to open book database")
	defer conn.Close()

	accounts := ledger.NewAccountStore(conn)
	calculator := ledger.NewCalculator(conn, accounts)

	opts := ledger.BalanceOptions{ClearedOnly: balanceCleared}
	if balanceAsOf != "" {
		asOf, err := time.ParseInLocation(ledger.DateLayout, balanceAsOf, time.UTC)
		exitOnError(err, "invalid --as-of date")
		opts.AsOf = &asOf
	}

	if balanceAccount != "" {
		account, err := accounts.GetByName(balanceAccount)
		exitOnError(err, "failed to look up account")
		if account == nil {
			exitOnError(fmt.Errorf("no account named %q", balanceAccount), "unknown account")
		}

		balance, err := calculator.Balance(account.ID, opts)
		exitOnError(err, "failed to compute balance")

		fmt.Printf("%-30s %12.2f\n", account.Name, balance)
		return
	}

	all, err := accounts.List(false)
	exitOnError(err, "failed to list accounts")

	for _, account := range all {
		if !account.IsReal() {
			continue
		}
		balance, err := calculator.Balance(account.ID, opts)
		exitOnError(err, "failed to compute balance")
		fmt.Printf("%-30s %12.2f\n", account.Name, balance)
	}
}
