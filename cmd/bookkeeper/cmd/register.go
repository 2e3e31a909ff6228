package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/config"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
)

var registerAccount string

// registerCmd represents the register command.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Show an account register with running balance",
	Long: `Show the register (statement view) of one account: every
posting in date order with debit/credit split, cleared and reconciled
flags, and the running balance, seeded by the opening balance.

Example:
  bookkeeper register --account Checking`,
	Run: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerAccount, "account", "", "account name (required)")
	registerCmd.MarkFlagRequired("account")
}

func runRegister(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	slog.Debug("Opening book", "path", cfg.Book.DBPath)
	conn, err := db.Open(cfg.Book.DBPath)
	exitOnError(err, "failed to open book database")
	defer conn.Close()

	accounts := ledger.NewAccountStore(conn)
	calculator := ledger.NewCalculator(conn, accounts)

	account, err := accounts.GetByName(registerAccount)
	exitOnError(err, "failed to look up account")
	if account == nil {
		exitOnError(fmt.Errorf("no account named %q", registerAccount), "unknown account")
	}

	entries, err := calculator.Register(account.ID)
	exitOnError(err, "failed to build register")

	fmt.Printf("%-12s %-28s %10s %10s %-2s %12s\n", "DATE", "PAYEE", "DEBIT", "CREDIT", "CR", "BALANCE")
	for _, e := range entries {
		flags := "  "
		if e.Reconciled {
			flags = "R "
		} else if e.Cleared {
			flags = "C "
		}

		debit, credit := "", ""
		if e.Debit != 0 {
			debit = fmt.Sprintf("%.2f", e.Debit)
		}
		if e.Credit != 0 {
			credit = fmt.Sprintf("%.2f", e.Credit)
		}

		fmt.Printf("%-12s %-28s %10s %10s %-2s %12.2f\n",
			e.Date.Format(ledger.DateLayout), truncate(e.Payee, 28), debit, credit, flags, e.Running)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
