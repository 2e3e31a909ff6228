package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/config"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a book and seed its chart of accounts",
	Long: `Create the book database and seed the chart of accounts.

The chart is read from the file named by BOOKKEEPER_CHART; without one,
a built-in small-business chart is used. Running init on an existing
book only adds chart accounts that are missing.

Example:
  bookkeeper init
  bookkeeper init --config ./books/acme.env`,
	Run: runInit,
}

func runInit(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate("book.dbPath"); err != nil {
		exitOnError(err, "invalid configuration")
	}

	slog.Debug("Opening book", "path", cfg.Book.DBPath)
	conn, err := db.Open(cfg.Book.DBPath)
	exitOnError(err, "failed to open book database")
	defer conn.Close()

	accountChart, err := loadChart(cfg)
	exitOnError(err, "failed to load chart of accounts")

	accounts := ledger.NewAccountStore(conn)
	created, err := accountChart.Seed(accounts)
	exitOnError(err, "failed to seed chart of accounts")

	fmt.Printf("Book ready at %s (%d account(s) created)\n", conn.GetPath(), created)
	slog.Info("Book initialized", "path", conn.GetPath(), "accounts_created", created)
}
